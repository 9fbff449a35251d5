package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))

var rootCmd = &cobra.Command{
	Use:   "kafedractl",
	Short: "Kafedra operations CLI",
	Long: `kafedractl runs database migrations and bootstraps administrator
accounts for the Kafedra portal. Settings come from the same environment
variables and .env file as the server.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(migrateCmd, adminCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
