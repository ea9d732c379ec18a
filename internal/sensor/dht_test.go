package sensor

import "testing"

// MockClimateSensor implements ClimateSensor for testing
type MockClimateSensor struct {
	temperature float64
	humidity    float64
	err         error
	readCount   int
}

func (m *MockClimateSensor) Read() (float64, float64, error) {
	m.readCount++
	return m.temperature, m.humidity, m.err
}

func (m *MockClimateSensor) Close() error {
	return nil
}

func TestValidateClimate(t *testing.T) {
	tests := []struct {
		name      string
		temp      float64
		humidity  float64
		wantError bool
	}{
		{"valid reading", 22.5, 45.0, false},
		{"valid edge low", -20.0, 0.0, false},
		{"valid edge high", 60.0, 100.0, false},
		{"temperature too low", -25.0, 45.0, true},
		{"temperature too high", 65.0, 45.0, true},
		{"humidity negative", 22.5, -5.0, true},
		{"humidity over 100", 22.5, 105.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateClimate(tt.temp, tt.humidity)
			if (err != nil) != tt.wantError {
				t.Errorf("validateClimate(%v, %v) error = %v, wantError %v",
					tt.temp, tt.humidity, err, tt.wantError)
			}
		})
	}
}
