package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/afroash/flaura/internal/config"
)

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	logger, closer, err := New(config.LoggingConfig{
		Level:      "debug",
		Format:     "json",
		FilePath:   path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	}, "flaura-test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Debug().Str("plant", "monstera").Msg("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	line := string(data)
	for _, want := range []string{`"service":"flaura-test"`, `"plant":"monstera"`, `"message":"hello"`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %s", line, want)
		}
	}
}

func TestNew_Level(t *testing.T) {
	logger, _, err := New(config.LoggingConfig{Level: "warn", Format: "text"}, "flaura-test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Errorf("level = %v, want warn", logger.GetLevel())
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, _, err := New(config.LoggingConfig{Level: "shouty"}, "x"); err == nil {
		t.Error("expected error for invalid level")
	}
}
