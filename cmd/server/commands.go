package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/database"
	job "github.com/maheshrc27/postflow/internal/jobs"
	"github.com/maheshrc27/postflow/internal/vault"
	"github.com/maheshrc27/postflow/pkg/utils"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := database.Migrate(rt.db, rt.cfg.DatabaseDriver); err != nil {
			return err
		}
		version, dirty, err := database.Version(rt.db, rt.cfg.DatabaseDriver)
		if err != nil {
			return err
		}
		fmt.Printf("schema version %d (dirty: %t)\n", version, dirty)
		return nil
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one dispatch tick and print its report",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		report, err := rt.dispatcher().Tick(context.Background())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

var refreshTokensCmd = &cobra.Command{
	Use:   "refresh-tokens",
	Short: "Renew credentials that are about to expire",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		refreshed, failed := job.NewTokenRefreshJob(rt.accounts, rt.vault, rt.registry).Run(context.Background())
		fmt.Printf("refreshed %d, failed %d\n", refreshed, failed)
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a fresh VAULT_KEY",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := vault.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

var (
	tokenUserID int64
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cfg.SecretKey == "" {
			return fmt.Errorf("SECRET_KEY is not set")
		}

		token, err := utils.GenerateToken(cfg.SecretKey, tokenUserID, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenUserID, "user", 0, "user id to embed in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}
