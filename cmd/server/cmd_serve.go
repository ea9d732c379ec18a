package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/afroash/flaura/internal/aggregate"
	"github.com/afroash/flaura/internal/care"
	"github.com/afroash/flaura/internal/catalog"
	"github.com/afroash/flaura/internal/config"
	"github.com/afroash/flaura/internal/ingest"
	"github.com/afroash/flaura/internal/logging"
	"github.com/afroash/flaura/internal/server"
	"github.com/afroash/flaura/internal/storage"
	"github.com/afroash/flaura/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and sensor ingest",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Logging, "flaura-server")
	if err != nil {
		return err
	}
	defer closer.Close()

	logger.Info().
		Str("version", version).
		Str("addr", cfg.Addr()).
		Str("config", cfg.String()).
		Msg("Starting Flaura server")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ensureDataDir(cfg); err != nil {
		return err
	}
	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.DatabaseDSN(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics := telemetry.New()

	writer := storage.NewDBWriter(store, storage.DBWriterConfig{
		BatchSize:   cfg.Database.BatchSize,
		FlushPeriod: cfg.Database.FlushPeriod,
		ChannelSize: cfg.Database.ChannelSize,
		Observer:    metrics,
	}, logger)

	retention := storage.NewRetentionCleaner(store, storage.RetentionCleanerConfig{
		RetentionDays: cfg.Database.RetentionDays,
		CleanupPeriod: cfg.Database.CleanupPeriod,
		OnPrune:       metrics.ObservePrune,
	}, logger)

	lookup, err := newCatalog(cfg.Catalog, metrics, logger)
	if err != nil {
		return err
	}
	defer lookup.Close()

	live := server.NewLiveCache(cfg.Storage.BufferSize)
	pipeline := ingest.NewPipeline(live, writer, metrics, logger)
	stream := server.NewStreamHandler(cfg.Server.DeviceToken, pipeline, metrics, logger, cfg.Server.AllowedOrigins...)

	evaluator := care.NewEvaluator(cfg.Care)
	series := aggregate.NewService(store, aggregate.Config{
		MaxRows:      cfg.Metrics.MaxRows,
		DefaultHours: cfg.Metrics.DefaultHours,
		MaxHours:     cfg.Metrics.MaxHours,
		Location:     cfg.Metrics.Location(),
		LuxPerUnit:   cfg.Care.LuxPerUnit,
	}, logger)

	api := server.New(server.Options{
		Store:          store,
		Live:           live,
		Series:         series,
		Evaluator:      evaluator,
		Catalog:        lookup,
		Auth:           server.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, logger),
		Stream:         stream,
		Writer:         writer,
		Retention:      retention,
		Metrics:        metrics,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Version:        version,
	}, logger)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", httpServer.Addr).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	var subscriber *ingest.Subscriber
	if cfg.MQTT.Enabled {
		subscriber = ingest.NewSubscriber(ingest.SubscriberConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, pipeline, logger)
		g.Go(func() error { return subscriber.Start(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Server shutdown error")
		}
		return nil
	})

	err = g.Wait()

	if subscriber != nil {
		subscriber.Stop()
	}
	retention.Stop()
	writer.Stop()
	logger.Info().Interface("writer", writer.Stats()).Msg("Server stopped")

	return err
}

func newCatalog(cfg config.CatalogSettings, metrics *telemetry.Metrics, logger zerolog.Logger) (*catalog.Cached, error) {
	client := catalog.NewClient(catalog.Config{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		SearchPath: cfg.SearchPath,
		DetailPath: cfg.DetailPath,
		Timeout:    cfg.Timeout,
		MaxResults: cfg.MaxResults,
		Observer:   metrics,
	}, logger)
	if cfg.APIKey == "" {
		logger.Warn().Msg("Catalog API key not set, plant lookups will fail upstream")
	}
	return catalog.NewCached(client, cfg.CacheSize, cfg.CacheTTL, metrics, logger)
}
