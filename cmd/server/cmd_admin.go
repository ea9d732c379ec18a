package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/afroash/flaura/internal/logging"
	"github.com/afroash/flaura/internal/server"
	"github.com/afroash/flaura/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE:  runMigrate,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete stored readings",
	Long: `Delete readings older than --older-than days, or every reading when
--all is given. Spaces and plants are kept.`,
	RunE: runPurge,
}

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue an API token for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

var (
	purgeAll       bool
	purgeOlderThan int
)

func init() {
	purgeCmd.Flags().BoolVar(&purgeAll, "all", false, "delete every reading")
	purgeCmd.Flags().IntVar(&purgeOlderThan, "older-than", 0, "delete readings older than this many days")

	rootCmd.AddCommand(migrateCmd, purgeCmd, tokenCmd)
}

func openStore(cmd *cobra.Command) (*storage.SQLStore, zerolog.Logger, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	logger, closer, err := logging.New(cfg.Logging, "flaura-admin")
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	if err := ensureDataDir(cfg); err != nil {
		closer.Close()
		return nil, logger, nil, err
	}

	store, err := storage.Open(cmd.Context(), cfg.Database.Driver, cfg.DatabaseDSN(), logger)
	if err != nil {
		closer.Close()
		return nil, logger, nil, err
	}
	return store, logger, func() {
		store.Close()
		closer.Close()
	}, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	store, logger, done, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer done()

	// Open already migrated; run again so the command reports on an
	// existing database too.
	if err := store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	logger.Info().Str("driver", store.Driver()).Msg("Schema up to date")
	return nil
}

func runPurge(cmd *cobra.Command, _ []string) error {
	if purgeAll == (purgeOlderThan > 0) {
		return fmt.Errorf("exactly one of --all or --older-than is required")
	}

	store, logger, done, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer done()

	var deleted int64
	if purgeAll {
		deleted, err = store.PurgeReadings(cmd.Context())
	} else {
		deleted, err = store.DeleteOlderThan(cmd.Context(), purgeOlderThan)
	}
	if err != nil {
		return fmt.Errorf("failed to purge readings: %w", err)
	}

	logger.Info().Int64("deleted", deleted).Msg("Readings purged")
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d readings\n", deleted)
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	auth := server.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, zerolog.Nop())
	token, expires, err := auth.IssueToken(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
	return nil
}
