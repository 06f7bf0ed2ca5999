package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"smec/conclave/internal/catalog"
	"smec/conclave/internal/client"
	"smec/conclave/internal/model"
	"smec/conclave/internal/registration"
)

type apiFactory func() *client.Client

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// displayMessage is what the user sees for err.
func displayMessage(err error) string {
	var regErr *registration.Error
	if errors.As(err, &regErr) {
		return regErr.Message
	}
	return client.Message(err)
}

func passesCmd(api apiFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "passes [student|professional]",
		Short: "List the passes on offer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			categories := []model.Category{model.CategoryStudent, model.CategoryProfessional}
			if len(args) == 1 {
				category, err := model.ParseCategory(args[0])
				if err != nil {
					return err
				}
				categories = []model.Category{category}
			}
			for _, category := range categories {
				passes, err := api().Passes(cmd.Context(), category)
				if err != nil {
					return errors.New(displayMessage(err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", category)
				printPasses(cmd.OutOrStdout(), passes)
			}
			return nil
		},
	}
}

func printPasses(w io.Writer, passes []catalog.Pass) {
	for _, p := range passes {
		tag := ""
		if p.Recommended {
			tag = " (recommended)"
		}
		fmt.Fprintf(w, "  [%s] %s ₹%d%s\n", p.ID, p.Name, p.Price, tag)
		if p.Description != "" {
			fmt.Fprintf(w, "        %s\n", p.Description)
		}
	}
}

func subscribeCmd(api apiFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe EMAIL",
		Short: "Get the conclave brochure by email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := api().Subscribe(cmd.Context(), args[0])
			if err != nil {
				return errors.New(displayMessage(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func loginCmd(api apiFactory) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print the session as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			var err error
			if email == "" {
				if email, err = p.ask("Email"); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = p.ask("Password"); err != nil {
					return err
				}
			}
			result, err := api().Login(cmd.Context(), email, password)
			if err != nil {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) && apiErr.RequiresEmailVerification {
					fmt.Fprintln(cmd.ErrOrStderr(), "Check your inbox for the verification link.")
				}
				return errors.New(displayMessage(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"session": result.Session, "user": result.User})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when empty)")
	return cmd
}

func logoutCmd(api apiFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "logout ACCESS_TOKEN",
		Short: "End a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := api().Logout(cmd.Context(), args[0])
			if err != nil {
				return errors.New(displayMessage(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func resetPasswordCmd(api apiFactory) *cobra.Command {
	var token, password string
	cmd := &cobra.Command{
		Use:   "reset-password EMAIL",
		Short: "Request a password reset email, or finish one with --token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token != "" {
				if password == "" {
					var err error
					p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
					if password, err = p.ask("New password"); err != nil {
						return err
					}
				}
				msg, err := api().CompletePasswordReset(cmd.Context(), token, password)
				if err != nil {
					return errors.New(displayMessage(err))
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			}
			if len(args) != 1 {
				return errors.New("email is required")
			}
			msg, err := api().RequestPasswordReset(cmd.Context(), args[0])
			if err != nil {
				return errors.New(displayMessage(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Reset token from the emailed link")
	cmd.Flags().StringVar(&password, "password", "", "New password (prompted when empty)")
	return cmd
}
