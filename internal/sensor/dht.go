// Package sensor reads the plant's environment on the Raspberry Pi: a DHT11
// for temperature and humidity and an IIO light sensor for brightness.
package sensor

import (
	"fmt"

	"github.com/afroash/dht"
)

// ClimateSensor reads temperature (°C) and relative humidity (%)
type ClimateSensor interface {
	Read() (temperature float64, humidity float64, err error)
	Close() error
}

// DHT11Reader implements ClimateSensor on DHT11 hardware
type DHT11Reader struct {
	pin        int
	maxRetries int
	sensor     *dht.Sensor
}

// NewDHT11Reader opens the DHT11 on the given GPIO pin
func NewDHT11Reader(pin int) (*DHT11Reader, error) {
	s, err := dht.NewDHT11(pin)
	if err != nil {
		return nil, fmt.Errorf("failed to open DHT11 on pin %d: %w", pin, err)
	}
	return &DHT11Reader{
		pin:        pin,
		maxRetries: 3,
		sensor:     s,
	}, nil
}

// Read performs a reading, retrying transient checksum failures
func (d *DHT11Reader) Read() (float64, float64, error) {
	reading, err := d.sensor.ReadRetry(d.maxRetries)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read DHT11 after %d retries: %w", d.maxRetries, err)
	}
	if err := validateClimate(reading.Temperature, reading.Humidity); err != nil {
		return 0, 0, fmt.Errorf("invalid reading: %w", err)
	}

	return reading.Temperature, reading.Humidity, nil
}

// Close releases the GPIO line
func (d *DHT11Reader) Close() error {
	return d.sensor.Close()
}

// validateClimate rejects values the DHT11 cannot produce
func validateClimate(temp, humidity float64) error {
	const (
		minTemp     = -20.0
		maxTemp     = 60.0
		minHumidity = 0.0
		maxHumidity = 100.0
	)
	if temp < minTemp || temp > maxTemp {
		return fmt.Errorf("temperature %.1f°C outside %.0f..%.0f", temp, minTemp, maxTemp)
	}
	if humidity < minHumidity || humidity > maxHumidity {
		return fmt.Errorf("humidity %.1f%% outside %.0f..%.0f", humidity, minHumidity, maxHumidity)
	}
	return nil
}
