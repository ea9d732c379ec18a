package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseError reports a catalog field that could not be interpreted
type ParseError struct {
	Field  string
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %s %q: %s", e.Field, e.Input, e.Reason)
}

// LightRange is an ideal light range in lux. Open ranges ("+21,500 lux")
// have no upper bound.
type LightRange struct {
	Min  float64
	Max  float64
	Open bool
}

// Ideal returns the value plants are evaluated against: the midpoint, or
// the lower bound of an open range
func (r LightRange) Ideal() float64 {
	if r.Open {
		return r.Min
	}
	return (r.Min + r.Max) / 2
}

var luxNumber = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`)

// ParseLightRange extracts the lux range from strings such as
// "Strong light ( 21,500 to 3,200 lux/2000 to 300 fc)". Only the part
// before the foot-candle section is read. Bounds may come in either order.
func ParseLightRange(s string) (LightRange, error) {
	fail := func(reason string) (LightRange, error) {
		return LightRange{}, &ParseError{Field: "Light ideal", Input: s, Reason: reason}
	}

	text := strings.TrimSpace(s)
	if text == "" {
		return fail("empty")
	}

	lux := text
	if i := strings.Index(lux, "/"); i >= 0 {
		lux = lux[:i]
	}
	if i := strings.Index(lux, "("); i >= 0 {
		lux = lux[i+1:]
	}

	matches := luxNumber.FindAllString(lux, -1)
	if len(matches) == 0 {
		return fail("no lux values")
	}

	values := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			return fail(err.Error())
		}
		values = append(values, v)
	}

	lower := strings.ToLower(lux)
	switch {
	case len(values) >= 2:
		lo, hi := values[0], values[1]
		if lo > hi {
			lo, hi = hi, lo
		}
		return LightRange{Min: lo, Max: hi}, nil
	case strings.Contains(lux, "+") || strings.Contains(lower, "more than"):
		return LightRange{Min: values[0], Open: true}, nil
	case strings.Contains(lower, "less than") || strings.Contains(lux, "<"):
		return LightRange{Min: 0, Max: values[0]}, nil
	default:
		return LightRange{Min: values[0], Max: values[0]}, nil
	}
}

// ParseTemperature returns the Celsius value of a "Temperature min/max"
// field. ok is false when the field is absent.
func ParseTemperature(field string, d *Degrees) (value float64, ok bool, err error) {
	v, ok, err := d.Celsius()
	if err != nil {
		return 0, true, &ParseError{Field: field, Input: string(d.C), Reason: err.Error()}
	}
	return v, ok, nil
}
