package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"smec/conclave/internal/catalog"
	"smec/conclave/internal/model"
	"smec/conclave/internal/registration"
	"smec/conclave/internal/wizard"
)

const backWord = "back"

type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewScanner(in), out: out}
}

func (p *prompter) ask(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

func registerCmd(api apiFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register for the conclave step by step",
		RunE: func(cmd *cobra.Command, _ []string) error {
			passes := catalog.Default()
			w := wizard.New(passes, api())
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())

			result, err := runWizard(cmd, w, passes, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nCategory: %s\nPass: %s (₹%d)\n",
				result.Response.Message, result.Category, result.Pass.Name, result.Pass.Price)
			return nil
		},
	}
}

func runWizard(cmd *cobra.Command, w *wizard.Wizard, passes *catalog.Catalog, p *prompter) (wizard.Result, error) {
	out := cmd.OutOrStdout()
	for {
		switch w.State() {
		case wizard.CategorySelection:
			answer, err := p.ask("Category (student/professional)")
			if err != nil {
				return wizard.Result{}, err
			}
			category, err := model.ParseCategory(answer)
			if err == nil {
				err = w.PickCategory(category)
			}
			if err != nil {
				fmt.Fprintln(out, "Please choose student or professional.")
			}

		case wizard.PassSelection:
			printPasses(out, w.Options())
			answer, err := p.ask("Pass id (or back)")
			if err != nil {
				return wizard.Result{}, err
			}
			if answer == backWord {
				_ = w.Back()
				continue
			}
			if err := w.PickPass(answer); err != nil {
				fmt.Fprintln(out, "That pass is not offered for this category.")
			}

		case wizard.DetailsForm:
			details, err := askDetails(p, passes, w.Draft())
			if err != nil {
				return wizard.Result{}, err
			}
			if err := w.UpdateDetails(details); err != nil {
				return wizard.Result{}, err
			}
			answer, err := p.ask("Submit registration? (yes/back)")
			if err != nil {
				return wizard.Result{}, err
			}
			if answer == backWord {
				_ = w.Back()
				continue
			}
			result, err := w.Submit(cmd.Context())
			if err == nil {
				return result, nil
			}
			if registration.KindOf(err) == registration.KindValidation {
				fmt.Fprintln(out, displayMessage(err))
				continue
			}
			return wizard.Result{}, errors.New(displayMessage(err))

		default:
			return wizard.Result{}, fmt.Errorf("wizard stopped in %s", w.State())
		}
	}
}

func askDetails(p *prompter, passes *catalog.Catalog, draft wizard.Draft) (wizard.Details, error) {
	d := draft.Details
	fields := []struct {
		label string
		dst   *string
	}{
		{"Full name", &d.FullName},
		{"Phone number", &d.PhoneNumber},
		{"Email", &d.Email},
		{"Password", &d.Password},
		{"Confirm password", &d.ConfirmPassword},
		{"Gender", &d.Gender},
		{"Date of birth (YYYY-MM-DD)", &d.DateOfBirth},
	}
	for _, f := range fields {
		value, err := p.ask(f.label)
		if err != nil {
			return d, err
		}
		*f.dst = value
	}

	fmt.Fprintf(p.out, "Countries: %s\n", strings.Join(passes.Countries(), ", "))
	country, err := p.ask("Country")
	if err != nil {
		return d, err
	}
	d.Country = country
	if states := passes.States(country); len(states) > 0 {
		fmt.Fprintf(p.out, "States: %s\n", strings.Join(states, ", "))
	}
	if d.State, err = p.ask("State"); err != nil {
		return d, err
	}
	if d.Pincode, err = p.ask("Pincode"); err != nil {
		return d, err
	}

	switch draft.Category {
	case model.CategoryStudent:
		d.CollegeName, err = p.ask("College name")
	case model.CategoryProfessional:
		d.CompanyName, err = p.ask("Company name")
	}
	return d, err
}
