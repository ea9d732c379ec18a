package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/afroash/flaura/internal/agent"
	"github.com/afroash/flaura/internal/client"
	"github.com/afroash/flaura/internal/config"
	"github.com/afroash/flaura/internal/logging"
	"github.com/afroash/flaura/internal/models"
	"github.com/afroash/flaura/internal/sensor"
)

const version = "v0.3.0"

func main() {
	configPath := flag.String("config", "configs/sensor.yaml", "path to config file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config")
	once := flag.Bool("once", false, "take a single reading, print it and exit")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, closer, err := logging.New(cfg.Logging, "flaura-sensor")
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()

	logger.Info().Str("version", version).Str("config", cfg.String()).Msg("Starting Flaura sensor agent")

	climate, err := sensor.NewDHT11Reader(cfg.Sensor.GPIOPin)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open climate sensor")
	}

	var light sensor.LightSensor
	if cfg.Sensor.LightPath != "" {
		iio, err := sensor.NewIIOLight(cfg.Sensor.LightPath, cfg.Sensor.LightScale)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to open light sensor")
		}
		light = iio
	} else {
		logger.Warn().Msg("No light sensor configured, brightness will be reported as 0")
	}

	info := models.NewSensorInfo(cfg.Sensor.ID, cfg.Sensor.Location, cfg.Sensor.Type, version)
	reader := sensor.NewReader(climate, light, info, cfg.Sensor.ReadInterval, logger)
	defer reader.Close()

	if *once {
		r, err := reader.ReadOnce()
		if err != nil {
			logger.Fatal().Err(err).Msg("Reading failed")
		}
		fmt.Println(r)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, info, reader, logger); err != nil {
		logger.Error().Err(err).Msg("Agent failed")
		os.Exit(1)
	}
}

// run drives the agent until ctx is cancelled
func run(ctx context.Context, cfg *config.Config, info *models.SensorInfo, source agent.Source, logger zerolog.Logger) error {
	policy := client.DropOldest
	if !cfg.Buffer.DropOldest {
		policy = client.DropNewest
	}
	buffer := client.NewBuffer(cfg.Buffer.Size, policy)

	conn := client.NewConnection(client.ConnectionConfig{
		URL:                  cfg.Server.URL,
		DeviceToken:          cfg.Server.AuthToken,
		ReconnectInterval:    cfg.Server.ReconnectInterval,
		MaxReconnectInterval: cfg.Server.MaxReconnectInterval,
		PingInterval:         cfg.Server.PingInterval,
		PongTimeout:          cfg.Server.PongTimeout,
		HandshakeTimeout:     cfg.Server.ConnectTimeout,
	}, info, buffer.Size, logger)

	a := agent.New(agent.Config{
		BatchSize:     cfg.Server.BatchSize,
		FlushInterval: cfg.Server.FlushInterval,
	}, source, buffer, conn, logger)

	err := a.Run(ctx)
	logger.Info().
		Interface("buffer", buffer.Stats()).
		Interface("connection", conn.Stats()).
		Msg("Sensor agent stopped")
	return err
}
