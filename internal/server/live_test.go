package server

import (
	"sync"
	"testing"
	"time"

	"github.com/afroash/flaura/internal/models"
)

func reading(sensor string, temp float64, at time.Time) *models.Reading {
	return &models.Reading{SensorID: sensor, Temperature: temp, Humidity: 50, Brightness: 40, CollectedAt: at}
}

func TestLiveCache_Capacity(t *testing.T) {
	c := NewLiveCache(3)
	base := time.Now()

	for i := 0; i < 5; i++ {
		c.Add(reading("pi-1", float64(i), base.Add(time.Duration(i)*time.Minute)))
	}

	latest := c.Latest("pi-1", 10)
	if len(latest) != 3 {
		t.Fatalf("Latest() returned %d readings, want 3", len(latest))
	}
	for i, want := range []float64{4, 3, 2} {
		if latest[i].Temperature != want {
			t.Errorf("latest[%d] = %v, want %v", i, latest[i].Temperature, want)
		}
	}

	stats := c.Stats()
	if stats.Received != 5 || stats.Buffered != 3 || stats.Sensors != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestLiveCache_OutOfOrder(t *testing.T) {
	c := NewLiveCache(5)
	base := time.Now()

	c.Add(reading("pi-1", 2, base.Add(2*time.Minute)))
	c.Add(reading("pi-1", 1, base.Add(time.Minute)))
	c.Add(reading("pi-1", 3, base.Add(3*time.Minute)))

	if got := c.Current("pi-1").Temperature; got != 3 {
		t.Errorf("Current() = %v, want 3", got)
	}
	latest := c.Latest("pi-1", 0)
	if latest[2].Temperature != 1 {
		t.Errorf("oldest = %v, want 1", latest[2].Temperature)
	}
}

func TestLiveCache_CurrentAcrossSensors(t *testing.T) {
	c := NewLiveCache(5)
	base := time.Now()

	if c.Current("") != nil {
		t.Error("Current() on empty cache should be nil")
	}

	c.Add(reading("pi-1", 20, base))
	c.Add(reading("pi-2", 25, base.Add(time.Minute)))

	if got := c.Current(""); got == nil || got.SensorID != "pi-2" {
		t.Errorf("Current(\"\") = %v, want pi-2", got)
	}
	if c.Current("pi-3") != nil {
		t.Error("Current() for unknown sensor should be nil")
	}

	ids := c.SensorIDs()
	if len(ids) != 2 || ids[0] != "pi-1" || ids[1] != "pi-2" {
		t.Errorf("SensorIDs() = %v", ids)
	}
}

func TestLiveCache_ReturnsCopies(t *testing.T) {
	c := NewLiveCache(5)
	original := reading("pi-1", 20, time.Now())
	c.Add(original)

	original.Temperature = 99
	got := c.Current("pi-1")
	got.Temperature = 50

	if c.Current("pi-1").Temperature != 20 {
		t.Error("cache contents were modified through a returned or added pointer")
	}
}

func TestLiveCache_Clear(t *testing.T) {
	c := NewLiveCache(5)
	c.Add(reading("pi-1", 20, time.Now()))
	c.Clear()

	if stats := c.Stats(); stats.Received != 0 || stats.Sensors != 0 {
		t.Errorf("Stats() after Clear = %+v", stats)
	}
}

func TestLiveCache_Concurrent(t *testing.T) {
	c := NewLiveCache(50)
	base := time.Now()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Add(reading("pi-1", float64(i), base.Add(time.Duration(g*100+i)*time.Second)))
				c.Latest("pi-1", 5)
				c.Stats()
			}
		}(g)
	}
	wg.Wait()

	if stats := c.Stats(); stats.Received != 400 || stats.Buffered != 50 {
		t.Errorf("Stats() = %+v", stats)
	}
}
