package models

import "time"

// SensorInfo describes the device running the agent
type SensorInfo struct {
	ID         string    `json:"id"`
	Location   string    `json:"location"`
	SensorType string    `json:"sensor_type"`
	Version    string    `json:"version"`
	StartTime  time.Time `json:"start_time"`
}

// Uptime returns the duration since the agent started
func (s *SensorInfo) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// NewSensorInfo creates a SensorInfo starting now
func NewSensorInfo(id, location, sensorType, version string) *SensorInfo {
	return &SensorInfo{
		ID:         id,
		Location:   location,
		SensorType: sensorType,
		Version:    version,
		StartTime:  time.Now(),
	}
}
