// Package care evaluates live sensor values against a plant's ideal
// conditions. It is the only place optimal/warning/critical ranges are
// derived; handlers and charts consume it rather than re-deriving bands.
package care

import (
	"fmt"
	"math"
)

// Kind identifies the metric a band or evaluation applies to
type Kind string

const (
	Temperature Kind = "temperature"
	Humidity    Kind = "humidity"
	Brightness  Kind = "brightness"
)

// Mode selects how deltas widen a band around the ideal value
type Mode string

const (
	// Additive widens by a fixed amount on each side (ideal ± delta)
	Additive Mode = "additive"
	// Multiplicative widens by a ratio of the ideal (ideal × [1-r, 1+r])
	Multiplicative Mode = "multiplicative"
)

// Range is a closed numeric interval
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies within the range, bounds included
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Covers reports whether other lies entirely within r
func (r Range) Covers(other Range) bool {
	return other.Min >= r.Min && other.Max <= r.Max
}

// Midpoint returns the centre of the range
func (r Range) Midpoint() float64 {
	return (r.Min + r.Max) / 2
}

func (r Range) String() string {
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

// Bands holds the three nested ranges used to classify a value.
// Optimal ⊆ Warning ⊆ Critical.
type Bands struct {
	Optimal  Range `json:"optimal" yaml:"optimal"`
	Warning  Range `json:"warning" yaml:"warning"`
	Critical Range `json:"critical" yaml:"critical"`
}

// Nested reports whether the bands satisfy Optimal ⊆ Warning ⊆ Critical
func (b Bands) Nested() bool {
	return b.Optimal.Min <= b.Optimal.Max && b.Warning.Covers(b.Optimal) && b.Critical.Covers(b.Warning)
}

// Profile carries the band constants for one metric kind. Each delta widens
// the previous band: warning is optimal widened by WarningDelta, critical is
// warning widened by CriticalDelta.
type Profile struct {
	Mode          Mode    `json:"mode" yaml:"mode"`
	Default       Bands   `json:"default" yaml:"default"`
	OptimalDelta  float64 `json:"optimal_delta" yaml:"optimal_delta"`
	WarningDelta  float64 `json:"warning_delta" yaml:"warning_delta"`
	CriticalDelta float64 `json:"critical_delta" yaml:"critical_delta"`
}

// Validate checks the profile produces nested bands
func (p Profile) Validate() error {
	if p.Mode != Additive && p.Mode != Multiplicative {
		return fmt.Errorf("unknown band mode %q", p.Mode)
	}
	if p.OptimalDelta < 0 || p.WarningDelta < 0 || p.CriticalDelta < 0 {
		return fmt.Errorf("band deltas must not be negative")
	}
	if p.Default.Optimal.Min >= p.Default.Optimal.Max {
		return fmt.Errorf("default optimal band %s is empty", p.Default.Optimal)
	}
	if !p.Default.Nested() {
		return fmt.Errorf("default bands must be nested (optimal within warning within critical)")
	}
	return nil
}

// ComputeBands derives the bands for a metric from the plant's ideal value.
// A nil (or non-finite) ideal yields the profile's default bands.
func ComputeBands(ideal *float64, p Profile) Bands {
	if !usableIdeal(ideal) {
		return p.Default
	}

	v := *ideal
	optimal := math.Abs(p.OptimalDelta)
	warning := optimal + math.Abs(p.WarningDelta)
	critical := warning + math.Abs(p.CriticalDelta)

	if p.Mode == Multiplicative {
		return Bands{
			Optimal:  scaled(v, optimal),
			Warning:  scaled(v, warning),
			Critical: scaled(v, critical),
		}
	}
	return Bands{
		Optimal:  around(v, optimal),
		Warning:  around(v, warning),
		Critical: around(v, critical),
	}
}

// usableIdeal reports whether ideal is present and finite
func usableIdeal(ideal *float64) bool {
	return ideal != nil && !math.IsNaN(*ideal) && !math.IsInf(*ideal, 0)
}

func around(v, delta float64) Range {
	return Range{Min: v - delta, Max: v + delta}
}

// scaled keeps Min <= Max for negative ideals
func scaled(v, ratio float64) Range {
	lo, hi := v*(1-ratio), v*(1+ratio)
	if lo > hi {
		lo, hi = hi, lo
	}
	return Range{Min: lo, Max: hi}
}

// DefaultProfiles returns the reference constants: temperature bands are
// additive in °C, brightness bands multiplicative on lux, humidity only has
// fixed defaults since the catalog carries no humidity ideal.
func DefaultProfiles() map[Kind]Profile {
	return map[Kind]Profile{
		Temperature: {
			Mode: Additive,
			Default: Bands{
				Optimal:  Range{Min: 20, Max: 25},
				Warning:  Range{Min: 18, Max: 27},
				Critical: Range{Min: 15, Max: 30},
			},
			OptimalDelta:  2,
			WarningDelta:  3,
			CriticalDelta: 3,
		},
		Humidity: {
			Mode: Additive,
			Default: Bands{
				Optimal:  Range{Min: 60, Max: 80},
				Warning:  Range{Min: 50, Max: 90},
				Critical: Range{Min: 40, Max: 95},
			},
			OptimalDelta:  10,
			WarningDelta:  10,
			CriticalDelta: 5,
		},
		Brightness: {
			Mode: Multiplicative,
			Default: Bands{
				Optimal:  Range{Min: 60, Max: 90},
				Warning:  Range{Min: 40, Max: 95},
				Critical: Range{Min: 30, Max: 100},
			},
			OptimalDelta:  0.1,
			WarningDelta:  0.1,
			CriticalDelta: 0.1,
		},
	}
}
