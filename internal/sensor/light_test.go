package sensor

import (
	"os"
	"path/filepath"
	"testing"
)

func writeChannel(t *testing.T, value string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in_illuminance_raw")
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		t.Fatalf("write channel: %v", err)
	}
	return path
}

func TestIIOLight_Level(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		scale   float64
		want    int
		wantErr bool
	}{
		{"integer", "57\n", 1, 57, false},
		{"scaled", "230", 0.25, 58, false},
		{"fractional", "12.6", 0, 13, false},
		{"garbage", "n/a", 1, 0, true},
		{"negative", "-3", 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewIIOLight(writeChannel(t, tt.value), tt.scale)
			if err != nil {
				t.Fatalf("NewIIOLight() error = %v", err)
			}
			got, err := l.Level()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Level() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Level() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewIIOLight_MissingFile(t *testing.T) {
	if _, err := NewIIOLight(filepath.Join(t.TempDir(), "missing"), 1); err == nil {
		t.Error("NewIIOLight() should fail for a missing channel")
	}
}
