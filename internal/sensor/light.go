package sensor

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// LightSensor reports brightness as the raw integer level stored with
// each reading
type LightSensor interface {
	Level() (int, error)
}

// IIOLight reads a Linux industrial-I/O illuminance channel, for example
// /sys/bus/iio/devices/iio:device0/in_illuminance_raw. The raw value is
// multiplied by scale before rounding.
type IIOLight struct {
	path  string
	scale float64
}

// NewIIOLight creates a light sensor backed by a sysfs file
func NewIIOLight(path string, scale float64) (*IIOLight, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open light sensor: %w", err)
	}
	if scale <= 0 {
		scale = 1
	}
	return &IIOLight{path: path, scale: scale}, nil
}

// Level reads the channel once
func (l *IIOLight) Level() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read light sensor: %w", err)
	}

	raw, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse light value %q: %w", strings.TrimSpace(string(data)), err)
	}
	if raw < 0 {
		return 0, fmt.Errorf("negative light value %v", raw)
	}

	return int(math.Round(raw * l.scale)), nil
}
