package care

import "math"

// Status is the classification of a single metric
type Status string

const (
	StatusOptimal  Status = "optimal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Severity orders statuses from best (0) to worst
func (s Status) Severity() int {
	switch s {
	case StatusOptimal:
		return 0
	case StatusWarning:
		return 1
	default:
		return 2
	}
}

// Classify places value in the first band that contains it. Anything
// outside the warning band, including NaN, is critical.
func Classify(value float64, b Bands) Status {
	if b.Optimal.Contains(value) {
		return StatusOptimal
	}
	if b.Warning.Contains(value) {
		return StatusWarning
	}
	return StatusCritical
}

// Deviation compares a live value with the plant's ideal
type Deviation struct {
	Delta       float64 `json:"delta"` // current - ideal
	Absolute    float64 `json:"absolute"`
	Percent     float64 `json:"percent"`
	Increased   bool    `json:"increased"`
	Significant bool    `json:"significant"`
}

// DeviationFromIdeal reports how far current is from ideal. Percent is
// relative to |ideal|; an ideal of zero has no meaningful percentage, so it
// reports 0 and is never significant.
func DeviationFromIdeal(current, ideal, thresholdPct float64) Deviation {
	delta := current - ideal
	d := Deviation{
		Delta:     delta,
		Absolute:  math.Abs(delta),
		Increased: delta > 0,
	}
	if ideal == 0 {
		return d
	}
	d.Percent = d.Absolute / math.Abs(ideal) * 100
	d.Significant = d.Percent > thresholdPct
	return d
}

// OverallStatus summarises a set of evaluated metrics
type OverallStatus string

const (
	OverallCritical  OverallStatus = "Critical Attention Needed"
	OverallAttention OverallStatus = "Some Parameters Need Attention"
	OverallOptimal   OverallStatus = "All Parameters Optimal"
	OverallNoData    OverallStatus = "No Data Available"
)

// Overall applies critical > warning-or-deviation > optimal
func Overall(metrics []Metric) OverallStatus {
	if len(metrics) == 0 {
		return OverallNoData
	}

	attention := false
	for _, m := range metrics {
		switch {
		case m.Status == StatusCritical:
			return OverallCritical
		case m.Status == StatusWarning:
			attention = true
		case m.Deviation != nil && m.Deviation.Significant:
			attention = true
		}
	}
	if attention {
		return OverallAttention
	}
	return OverallOptimal
}
