package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// envFile is the optional dotenv file loaded before any subcommand runs.
var envFile string

// NewRootCmd creates the root command. Running it without a subcommand serves the API.
func NewRootCmd() *cobra.Command {
	serve := NewServeCmd()
	cmd := &cobra.Command{
		Use:   "otp-api",
		Short: "Passwordless email sign-in API",
		Long: `otp-api signs users in by emailing a six digit one-time code
and exchanging it for a signed session token.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if err := godotenv.Load(envFile); err != nil {
				slog.Info("no .env file found, reading from environment", "file", envFile)
			}
		},
		RunE:         serve.RunE,
		SilenceUsage: true,
	}
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load")

	cmd.AddCommand(serve)
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
