package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOpenFee(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		pct      float64
		expected float64
	}{
		{name: "Quarter percent on 1500", value: 1500, pct: 0.25, expected: 3.75},
		{name: "Zero rate", value: 1500, pct: 0, expected: 0},
		{name: "Zero value", value: 0, pct: 0.25, expected: 0},
		{name: "One percent", value: 2450, pct: 1, expected: 24.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, OpenFee(tt.value, tt.pct), 1e-9)
		})
	}
}

func TestCloseFee(t *testing.T) {
	// Commission on a closing fill is charged on the closed value only.
	assert.InDelta(t, 3.875, CloseFee(1550, 0.25), 1e-9)
	assert.InDelta(t, 2.4, CloseFee(960, 0.25), 1e-9)
}

func TestDailyNightFee(t *testing.T) {
	// 3.65% annualized on 1000 is exactly 0.1 per day.
	assert.InDelta(t, 0.1, DailyNightFee(1000, 3.65), 1e-9)
	assert.InDelta(t, 0, DailyNightFee(1000, 0), 1e-9)
}

func TestDaysHeld(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		openedAt time.Time
		closedAt time.Time
		expected int
	}{
		{name: "Exactly one day", openedAt: base, closedAt: base.Add(24 * time.Hour), expected: 1},
		{name: "A bit over one day rounds up", openedAt: base, closedAt: base.Add(25 * time.Hour), expected: 2},
		{name: "A few hours still counts as one day", openedAt: base, closedAt: base.Add(3 * time.Hour), expected: 1},
		{name: "Same instant", openedAt: base, closedAt: base, expected: 0},
		{name: "Close before open clamps to zero", openedAt: base, closedAt: base.Add(-time.Hour), expected: 0},
		{name: "Ten days", openedAt: base, closedAt: base.Add(240 * time.Hour), expected: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DaysHeld(tt.openedAt, tt.closedAt))
		})
	}
}

func TestNightFee(t *testing.T) {
	t.Run("Same UTC calendar day is free", func(t *testing.T) {
		openedAt := time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC)
		closedAt := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
		assert.Zero(t, NightFee(1000, 3.65, openedAt, closedAt))
	})

	t.Run("Crossing midnight charges at least one day", func(t *testing.T) {
		openedAt := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
		closedAt := time.Date(2025, 3, 11, 1, 0, 0, 0, time.UTC)
		// 2 hours held across midnight: one chargeable day.
		assert.InDelta(t, 0.1, NightFee(1000, 3.65, openedAt, closedAt), 1e-9)
	})

	t.Run("Multi-day hold accumulates daily fees", func(t *testing.T) {
		openedAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
		closedAt := openedAt.Add(5 * 24 * time.Hour)
		assert.InDelta(t, 0.5, NightFee(1000, 3.65, openedAt, closedAt), 1e-9)
	})

	t.Run("Calendar day compared in UTC", func(t *testing.T) {
		loc := time.FixedZone("UTC+3", 3*60*60)
		// Local dates differ but both instants fall on the same UTC day.
		openedAt := time.Date(2025, 3, 11, 1, 0, 0, 0, loc)  // 2025-03-10 22:00 UTC
		closedAt := time.Date(2025, 3, 11, 2, 30, 0, 0, loc) // 2025-03-10 23:30 UTC
		assert.Zero(t, NightFee(1000, 3.65, openedAt, closedAt))
	})
}
