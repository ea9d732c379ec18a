package models

import (
	"fmt"
	"time"
)

// Reading is one row collected by a plant sensor on the raspberry pi.
// Humidity and Brightness are kept in the raw integer units the device reports.
type Reading struct {
	ID          int64     `json:"id,omitempty"`
	SensorID    string    `json:"sensor_id"`
	Temperature float64   `json:"temperature"`
	Humidity    int       `json:"humidity"`
	Brightness  int       `json:"brightness"`
	CollectedAt time.Time `json:"collected_at"`
}

// Sanity bounds for readings coming off the device.
const (
	MinTemperature = -40.0
	MaxTemperature = 85.0
	MinHumidity    = 0
	MaxHumidity    = 100
	MinBrightness  = 0
)

// IsValid checks if the reading values are within acceptable ranges
func (r *Reading) IsValid() bool {
	if r.SensorID == "" {
		return false
	}
	if r.CollectedAt.IsZero() {
		return false
	}
	if r.Temperature < MinTemperature || r.Temperature > MaxTemperature {
		return false
	}
	if r.Humidity < MinHumidity || r.Humidity > MaxHumidity {
		return false
	}
	return r.Brightness >= MinBrightness
}

func (r *Reading) String() string {
	return fmt.Sprintf("SensorID: %s, CollectedAt: %s, Temperature: %.1f°C, Humidity: %d, Brightness: %d",
		r.SensorID,
		r.CollectedAt.Format(time.RFC3339),
		r.Temperature,
		r.Humidity,
		r.Brightness)
}

// NewReading creates a new Reading stamped with the current time
func NewReading(sensorID string, temperature float64, humidity, brightness int) *Reading {
	return &Reading{
		SensorID:    sensorID,
		Temperature: temperature,
		Humidity:    humidity,
		Brightness:  brightness,
		CollectedAt: time.Now().UTC(),
	}
}

// Copy returns a deep copy of the Reading
func (r *Reading) Copy() *Reading {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
