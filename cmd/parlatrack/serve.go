package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/parlatrack/parlatrack/internal/auth"
	"github.com/parlatrack/parlatrack/internal/config"
	"github.com/parlatrack/parlatrack/internal/logging"
	"github.com/parlatrack/parlatrack/internal/notify"
	"github.com/parlatrack/parlatrack/internal/server"
	"github.com/parlatrack/parlatrack/internal/storage"
	"github.com/parlatrack/parlatrack/internal/storage/sqlite"
	"github.com/parlatrack/parlatrack/internal/types"
)

var seedFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&seedFile, "seed", "", "YAML file with vocabulary values to seed on startup")
}

func runServe(parent context.Context) error {
	log := logging.New(config.LogLevel(), config.LogFile())
	defer func() { _ = log.Sync() }()

	// One server per database. A second instance would fight over the
	// write lock and the notification worker.
	lock := flock.New(config.DBURL() + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire database lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("database %s is in use by another instance", config.DBURL())
	}
	defer func() { _ = lock.Unlock() }()

	var mailer notify.Mailer
	if config.MailServer() != "" {
		mailer = &notify.SMTPMailer{
			Server:    config.MailServer(),
			User:      config.MailUser(),
			Password:  config.MailPassword(),
			Sender:    config.MailSender(),
			Recipient: config.MailRecipient(),
		}
	} else {
		log.Warn("mail unconfigured, notifications go to the log only")
	}
	sink := notify.New(log, mailer)
	sink.Start()
	defer sink.Stop()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, config.DBURL(), sqlite.Options{
		Logger:          log,
		Sink:            sink,
		ScraperLogSize:  config.PerObjectScraperLogSize(),
		TitleSimilarity: config.MergeTitleSimilarity,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	if key := config.KeyadderKey(); key != "" {
		if err := store.EnsureKey(ctx, key, auth.ScopeKeyAdder); err != nil {
			return fmt.Errorf("failed to install keyadder key: %w", err)
		}
	}
	if seedFile != "" {
		if err := seedVocabularies(ctx, log, store, seedFile); err != nil {
			return err
		}
	}

	config.Watch(func(e fsnotify.Event) {
		log.Info("configuration reloaded", zap.String("file", e.Name))
	})

	srv := server.New(log, store, server.Options{
		RateCount:    config.ReqLimitCount(),
		RateInterval: config.ReqLimitInterval(),
	})
	addr := fmt.Sprintf("%s:%d", config.Host(), config.Port())
	return srv.Run(ctx, addr)
}

// seedVocabularies loads a YAML map of vocabulary name to values and upserts
// each. Already-present values are fine.
func seedVocabularies(ctx context.Context, log *zap.Logger, store storage.Storage, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed map[string][]string
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}
	for name, values := range seed {
		enum := types.EnumName(name)
		if !enum.IsValid() {
			return fmt.Errorf("seed file names unknown enumeration %q", name)
		}
		err := store.EnumPut(ctx, enum, values, nil)
		if err != nil && !errors.Is(err, storage.ErrNotModified) {
			return fmt.Errorf("failed to seed %s: %w", name, err)
		}
		log.Info("vocabulary seeded", zap.String("name", name), zap.Int("values", len(values)))
	}
	return nil
}
