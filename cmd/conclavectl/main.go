// Command conclavectl talks to the conclave registration API from a terminal.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"smec/conclave/internal/client"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		apiURL  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:           "conclavectl",
		Short:         "SMEC Global Innovators Conclave registration client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("CONCLAVE_API_URL", "http://localhost:3000"), "Registration API base URL")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "HTTP timeout per request")

	api := func() *client.Client {
		return client.New(apiURL, newHTTPClient(timeout))
	}

	cmd.AddCommand(
		passesCmd(api),
		subscribeCmd(api),
		registerCmd(api),
		loginCmd(api),
		logoutCmd(api),
		resetPasswordCmd(api),
	)
	return cmd
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
