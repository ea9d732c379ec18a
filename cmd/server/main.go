package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/afroash/flaura/internal/config"
)

const version = "v0.3.0"

var (
	configPath string
	envFiles   []string
)

var rootCmd = &cobra.Command{
	Use:   "flaura-server",
	Short: "Flaura plant monitor server",
	Long: `Flaura collects readings from plant sensors, stores them and serves
the care dashboard API.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/server.yaml", "path to config file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads dotenv files then the YAML config
func loadConfig() (*config.AppConfig, error) {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.LoadAppConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// ensureDataDir creates the parent directory of a sqlite database file
func ensureDataDir(cfg *config.AppConfig) error {
	driver := strings.ToLower(cfg.Database.Driver)
	if driver != "sqlite" && driver != "sqlite3" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}
