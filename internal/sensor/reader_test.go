package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/flaura/internal/models"
)

type fixedLight struct {
	level int
	err   error
}

func (f fixedLight) Level() (int, error) { return f.level, f.err }

func TestReader_ReadOnce(t *testing.T) {
	mock := &MockClimateSensor{temperature: 22.5, humidity: 45.6}
	info := models.NewSensorInfo("test-sensor", "Test Lab", "DHT11", "v1.0.0")
	reader := NewReader(mock, fixedLight{level: 72}, info, 30*time.Second, zerolog.Nop())

	reading, err := reader.ReadOnce()
	if err != nil {
		t.Fatalf("ReadOnce() failed: %v", err)
	}

	if reading.Temperature != 22.5 {
		t.Errorf("Temperature = %v, want 22.5", reading.Temperature)
	}
	if reading.Humidity != 46 {
		t.Errorf("Humidity = %v, want 46", reading.Humidity)
	}
	if reading.Brightness != 72 {
		t.Errorf("Brightness = %v, want 72", reading.Brightness)
	}
	if reading.SensorID != "test-sensor" {
		t.Errorf("SensorID = %v, want test-sensor", reading.SensorID)
	}
	if reading.CollectedAt.IsZero() {
		t.Error("CollectedAt should not be zero")
	}
}

func TestReader_ReadOnceErrors(t *testing.T) {
	info := models.NewSensorInfo("s", "", "DHT11", "v1")

	failing := NewReader(&MockClimateSensor{err: errors.New("checksum")}, nil, info, time.Second, zerolog.Nop())
	if _, err := failing.ReadOnce(); err == nil {
		t.Error("climate failure should surface")
	}

	dark := NewReader(&MockClimateSensor{temperature: 20, humidity: 50}, fixedLight{err: errors.New("i/o")}, info, time.Second, zerolog.Nop())
	if _, err := dark.ReadOnce(); err == nil {
		t.Error("light failure should surface")
	}

	noLight := NewReader(&MockClimateSensor{temperature: 20, humidity: 50}, nil, info, time.Second, zerolog.Nop())
	r, err := noLight.ReadOnce()
	if err != nil || r.Brightness != 0 {
		t.Errorf("reader without light: %v, %v", r, err)
	}
}

func TestReader_Start(t *testing.T) {
	mock := &MockClimateSensor{temperature: 22.5, humidity: 45.0}
	info := models.NewSensorInfo("test-sensor", "Test Lab", "DHT11", "v1.0.0")
	reader := NewReader(mock, fixedLight{level: 10}, info, 50*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reader.Start(ctx) }()

	var readings []*models.Reading
	timeout := time.After(2 * time.Second)
	for len(readings) < 3 {
		select {
		case r := <-reader.Readings():
			readings = append(readings, r)
		case <-timeout:
			t.Fatalf("got %d readings before timeout", len(readings))
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Start() returned %v, want context.Canceled", err)
	}
}
