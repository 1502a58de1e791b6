package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parlatrack/parlatrack/internal/auth"
	"github.com/parlatrack/parlatrack/internal/config"
	"github.com/parlatrack/parlatrack/internal/storage"
	"github.com/parlatrack/parlatrack/internal/storage/sqlite"
)

var (
	keyScope   string
	keyExpires string
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys directly on the database",
}

var keysNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Mint a new API key and print it once",
	RunE: func(cmd *cobra.Command, _ []string) error {
		scope := auth.Scope(keyScope)
		if !scope.IsValid() {
			return fmt.Errorf("unknown scope %q (want admin, keyadder or collector)", keyScope)
		}
		var expiresAt *time.Time
		if keyExpires != "" {
			t, err := time.Parse("2006-01-02", keyExpires)
			if err != nil {
				return fmt.Errorf("invalid expiry, want YYYY-MM-DD: %w", err)
			}
			expiresAt = &t
		}

		store, err := sqlite.New(cmd.Context(), config.DBURL(), sqlite.Options{Logger: zap.NewNop()})
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer func() { _ = store.Close() }()

		key, err := store.CreateKey(cmd.Context(), scope, 0, expiresAt)
		if err != nil {
			return err
		}
		fmt.Printf("api key (%s): %s\nkeytag: %s\n", scope, key, auth.Keytag(key))
		return nil
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <keytag>",
	Short: "Revoke a key by its tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sqlite.New(cmd.Context(), config.DBURL(), sqlite.Options{Logger: zap.NewNop()})
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer func() { _ = store.Close() }()

		err = store.RevokeKey(cmd.Context(), args[0])
		if errors.Is(err, storage.ErrNotModified) {
			fmt.Println("key already revoked")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println("key revoked")
		return nil
	},
}

func init() {
	keysNewCmd.Flags().StringVar(&keyScope, "scope", string(auth.ScopeCollector), "scope of the new key (admin, keyadder, collector)")
	keysNewCmd.Flags().StringVar(&keyExpires, "expires", "", "expiry date (YYYY-MM-DD), empty for no expiry")
	keysCmd.AddCommand(keysNewCmd)
	keysCmd.AddCommand(keysRevokeCmd)
}
