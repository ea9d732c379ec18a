// Package aggregate shapes raw sensor readings into the 24-slot hourly
// series drawn by the dashboard charts.
package aggregate

import (
	"sort"
	"time"

	"github.com/afroash/flaura/internal/models"
)

// SlotsPerDay is the fixed length of an hourly series
const SlotsPerDay = 24

// Slot is one hour-of-day bucket. Metric fields are nil when HasData is false.
type Slot struct {
	Hour        int        `json:"hour"`
	Temperature *float64   `json:"temperature"`
	Humidity    *float64   `json:"humidity"`
	Brightness  *float64   `json:"brightness"`
	HasData     bool       `json:"hasData"`
	Timestamp   *time.Time `json:"timestamp"`
	ReadingID   *int64     `json:"readingId,omitempty"`
}

// BuildHourlySeries buckets readings by hour-of-day. Each hour keeps only its
// most recent reading, regardless of calendar day. Readings are bucketed by
// the hour of their own timestamp location; a reading with an equal
// timestamp never replaces the one already in the slot.
func BuildHourlySeries(readings []*models.Reading, currentHour int) []Slot {
	series, _ := buildSeries(readings, currentHour)
	return series
}

// buildSeries also reports how many readings were skipped
func buildSeries(readings []*models.Reading, currentHour int) ([]Slot, int) {
	currentHour = ((currentHour % SlotsPerDay) + SlotsPerDay) % SlotsPerDay

	series := make([]Slot, 0, SlotsPerDay)
	index := make(map[int]int, SlotsPerDay)
	for i := 0; i < SlotsPerDay; i++ {
		hour := (currentHour - i + SlotsPerDay) % SlotsPerDay
		index[hour] = len(series)
		series = append(series, Slot{Hour: hour})
	}

	skipped := 0
	for _, r := range readings {
		if r == nil || r.CollectedAt.IsZero() {
			skipped++
			continue
		}

		slot := &series[index[r.CollectedAt.Hour()]]
		if slot.HasData && !r.CollectedAt.After(*slot.Timestamp) {
			continue
		}
		fill(slot, r)
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Hour < series[j].Hour
	})
	return series, skipped
}

func fill(slot *Slot, r *models.Reading) {
	temperature := r.Temperature
	humidity := float64(r.Humidity)
	brightness := float64(r.Brightness)
	ts := r.CollectedAt
	id := r.ID

	slot.Temperature = &temperature
	slot.Humidity = &humidity
	slot.Brightness = &brightness
	slot.Timestamp = &ts
	slot.HasData = true
	slot.ReadingID = nil
	if id != 0 {
		slot.ReadingID = &id
	}
}
