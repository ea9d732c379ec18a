package care

import "fmt"

// Config holds the evaluator constants
type Config struct {
	Temperature             Profile `yaml:"temperature"`
	Humidity                Profile `yaml:"humidity"`
	Brightness              Profile `yaml:"brightness"`
	SignificantDeviationPct float64 `yaml:"significant_deviation_pct"`
	// LuxPerUnit converts the raw 0-100 light level into lux
	LuxPerUnit float64 `yaml:"lux_per_unit"`
}

// DefaultConfig returns the reference evaluator constants
func DefaultConfig() Config {
	p := DefaultProfiles()
	return Config{
		Temperature:             p[Temperature],
		Humidity:                p[Humidity],
		Brightness:              p[Brightness],
		SignificantDeviationPct: 15,
		LuxPerUnit:              100,
	}
}

// Validate checks every profile and the scalar constants
func (c Config) Validate() error {
	for kind, p := range map[Kind]Profile{Temperature: c.Temperature, Humidity: c.Humidity, Brightness: c.Brightness} {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%s profile: %w", kind, err)
		}
	}
	if c.SignificantDeviationPct < 0 {
		return fmt.Errorf("significant_deviation_pct must not be negative")
	}
	if c.LuxPerUnit <= 0 {
		return fmt.Errorf("lux_per_unit must be positive")
	}
	return nil
}

// Sample is one set of raw sensor values
type Sample struct {
	Temperature float64
	Humidity    int
	Brightness  int
}

// Ideals carries the plant's optional ideal values. Temperature is in °C,
// brightness in lux. Humidity has no ideal.
type Ideals struct {
	Temperature *float64
	Brightness  *float64
}

// Metric is the evaluation of one live value
type Metric struct {
	Kind      Kind       `json:"kind"`
	Value     float64    `json:"value"`
	Unit      string     `json:"unit"`
	Ideal     *float64   `json:"ideal,omitempty"`
	Bands     Bands      `json:"bands"`
	Status    Status     `json:"status"`
	Deviation *Deviation `json:"deviation,omitempty"`
}

// Evaluator classifies live values against plant ideals
type Evaluator struct {
	cfg Config
}

// NewEvaluator creates an evaluator with the given constants
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Config returns the evaluator constants
func (e *Evaluator) Config() Config {
	return e.cfg
}

// Profile returns the band profile for kind
func (e *Evaluator) Profile(kind Kind) Profile {
	switch kind {
	case Temperature:
		return e.cfg.Temperature
	case Humidity:
		return e.cfg.Humidity
	default:
		return e.cfg.Brightness
	}
}

// Bands computes the bands for kind around ideal
func (e *Evaluator) Bands(kind Kind, ideal *float64) Bands {
	if kind == Humidity {
		return e.cfg.Humidity.Default
	}
	return ComputeBands(ideal, e.Profile(kind))
}

// Lux converts a raw light level to lux
func (e *Evaluator) Lux(level int) float64 {
	return float64(level) * e.cfg.LuxPerUnit
}

// Evaluate classifies one value. value must already be in the unit the
// ideal is expressed in; with no ideal it is compared to the defaults.
func (e *Evaluator) Evaluate(kind Kind, value float64, ideal *float64) Metric {
	if !usableIdeal(ideal) {
		ideal = nil
	}
	bands := e.Bands(kind, ideal)
	m := Metric{
		Kind:   kind,
		Value:  value,
		Unit:   unitFor(kind, ideal != nil),
		Bands:  bands,
		Status: Classify(value, bands),
	}
	if ideal != nil && kind != Humidity {
		v := *ideal
		m.Ideal = &v
		d := DeviationFromIdeal(value, v, e.cfg.SignificantDeviationPct)
		m.Deviation = &d
	}
	return m
}

// EvaluateSample classifies all three metrics of a sample. Brightness is
// compared in lux when the plant has an ideal and as the raw level otherwise.
func (e *Evaluator) EvaluateSample(s Sample, ideals Ideals) []Metric {
	brightness := float64(s.Brightness)
	if usableIdeal(ideals.Brightness) {
		brightness = e.Lux(s.Brightness)
	}
	return []Metric{
		e.Evaluate(Temperature, s.Temperature, ideals.Temperature),
		e.Evaluate(Humidity, float64(s.Humidity), nil),
		e.Evaluate(Brightness, brightness, ideals.Brightness),
	}
}

func unitFor(kind Kind, hasIdeal bool) string {
	switch kind {
	case Temperature:
		return "°C"
	case Humidity:
		return "%"
	default:
		if hasIdeal {
			return "lux"
		}
		return "%"
	}
}
