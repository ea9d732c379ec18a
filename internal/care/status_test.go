package care

import (
	"math"
	"testing"
)

func TestClassify(t *testing.T) {
	bands := ComputeBands(ptr(22), DefaultProfiles()[Temperature])

	tests := []struct {
		value float64
		want  Status
	}{
		{22, StatusOptimal},
		{20, StatusOptimal},
		{24, StatusOptimal},
		{25, StatusWarning},
		{17, StatusWarning},
		{27, StatusWarning},
		{28, StatusCritical},
		{14, StatusCritical},
		{-40, StatusCritical},
		{math.NaN(), StatusCritical},
	}

	for _, tt := range tests {
		if got := Classify(tt.value, bands); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestClassify_Monotonic(t *testing.T) {
	for kind, p := range DefaultProfiles() {
		for _, ideal := range []*float64{nil, ptr(22), ptr(800)} {
			b := ComputeBands(ideal, p)
			mid := b.Optimal.Midpoint()
			step := (b.Critical.Max - b.Critical.Min) / 50

			for _, dir := range []float64{-1, 1} {
				prev := Classify(mid, b)
				for i := 1; i <= 80; i++ {
					cur := Classify(mid+dir*step*float64(i), b)
					if cur.Severity() < prev.Severity() {
						t.Fatalf("%s ideal=%v: classification improved moving away from midpoint (%s -> %s)",
							kind, ideal, prev, cur)
					}
					prev = cur
				}
			}
		}
	}
}

func TestDeviationFromIdeal(t *testing.T) {
	tests := []struct {
		name            string
		current, ideal  float64
		wantPercent     float64
		wantIncreased   bool
		wantSignificant bool
	}{
		{"above ideal", 30, 25, 20, true, true},
		{"below ideal", 20, 25, 20, false, true},
		{"within threshold", 26, 25, 4, true, false},
		{"just under threshold", 114, 100, 14, true, false},
		{"zero ideal", 5, 0, 0, true, false},
		{"negative ideal", -6, -5, 20, false, true},
		{"on ideal", 25, 25, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DeviationFromIdeal(tt.current, tt.ideal, 15)
			if math.Abs(d.Percent-tt.wantPercent) > 1e-9 {
				t.Errorf("Percent = %v, want %v", d.Percent, tt.wantPercent)
			}
			if d.Increased != tt.wantIncreased {
				t.Errorf("Increased = %v, want %v", d.Increased, tt.wantIncreased)
			}
			if d.Significant != tt.wantSignificant {
				t.Errorf("Significant = %v, want %v", d.Significant, tt.wantSignificant)
			}
			if d.Absolute != math.Abs(tt.current-tt.ideal) {
				t.Errorf("Absolute = %v, want %v", d.Absolute, math.Abs(tt.current-tt.ideal))
			}
		})
	}
}

func TestOverall(t *testing.T) {
	sig := &Deviation{Significant: true}
	minor := &Deviation{Significant: false}

	tests := []struct {
		name    string
		metrics []Metric
		want    OverallStatus
	}{
		{"empty", nil, OverallNoData},
		{
			name:    "all optimal",
			metrics: []Metric{{Status: StatusOptimal}, {Status: StatusOptimal, Deviation: minor}},
			want:    OverallOptimal,
		},
		{
			name:    "one warning",
			metrics: []Metric{{Status: StatusOptimal}, {Status: StatusWarning}},
			want:    OverallAttention,
		},
		{
			name:    "significant deviation while optimal",
			metrics: []Metric{{Status: StatusOptimal, Deviation: sig}},
			want:    OverallAttention,
		},
		{
			name:    "critical wins",
			metrics: []Metric{{Status: StatusWarning}, {Status: StatusCritical}, {Status: StatusOptimal}},
			want:    OverallCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overall(tt.metrics); got != tt.want {
				t.Errorf("Overall() = %q, want %q", got, tt.want)
			}
		})
	}
}
