package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	// a bare invocation serves, so the serve flags are accepted on the root
	rootCmd.RunE = serveCmd.RunE
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "postflow",
	Short:        "Scheduled social publishing with AI assistance",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, tickCmd, refreshTokensCmd, keygenCmd, tokenCmd)
}
