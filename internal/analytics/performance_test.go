package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tr(symbol string, pnl float64, closedAt time.Time) *TradeResult {
	return &TradeResult{
		Symbol:    symbol,
		Quantity:  10,
		OpenPrice: 100,
		PnL:       pnl,
		Fees:      1.5,
		OpenedAt:  closedAt.Add(-24 * time.Hour),
		ClosedAt:  closedAt,
	}
}

func TestPerformanceEmpty(t *testing.T) {
	m := Performance(nil)
	require.NotNil(t, m)
	assert.Zero(t, m.TotalTrades)
	assert.Zero(t, m.WinRate)
	assert.Zero(t, m.ProfitFactor)
}

func TestPerformanceMixedTrades(t *testing.T) {
	day := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	trades := []*TradeResult{
		tr("AAPL", 50, day),
		tr("AAPL", -250, day.AddDate(0, 0, 1)),
		tr("TSLA", 640, day.AddDate(0, 0, 2)),
		tr("TSLA", -200, day.AddDate(0, 0, 3)),
		tr("AAPL", 150, day.AddDate(0, 0, 4)),
	}
	m := Performance(trades)

	assert.Equal(t, 5, m.TotalTrades)
	assert.Equal(t, 3, m.WinningTrades)
	assert.Equal(t, 2, m.LosingTrades)
	assert.InDelta(t, 60, m.WinRate, 1e-9)
	assert.InDelta(t, 280, m.AverageWin, 1e-9)  // (50+640+150)/3
	assert.InDelta(t, 225, m.AverageLoss, 1e-9) // (250+200)/2
	assert.InDelta(t, 840.0/450.0, m.ProfitFactor, 1e-9)
	assert.InDelta(t, 0.6*280-0.4*225, m.Expectancy, 1e-9)
	assert.InDelta(t, 640, m.LargestWin, 1e-9)
	assert.InDelta(t, 250, m.LargestLoss, 1e-9)
	assert.InDelta(t, 390, m.TotalPnL, 1e-9)
	assert.InDelta(t, 7.5, m.TotalFees, 1e-9)

	// Cumulative curve 50, -200, 440, 240, 390: the deepest fall from a
	// peak is 50 down to -200.
	assert.InDelta(t, 250, m.MaxDrawdown, 1e-9)
}

func TestPerformanceOrdersByCloseTime(t *testing.T) {
	day := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	// Same trades as above, handed over out of order. Drawdown depends on
	// chronology, so the result must not change.
	trades := []*TradeResult{
		tr("TSLA", 640, day.AddDate(0, 0, 2)),
		tr("AAPL", 150, day.AddDate(0, 0, 4)),
		tr("AAPL", 50, day),
		tr("TSLA", -200, day.AddDate(0, 0, 3)),
		tr("AAPL", -250, day.AddDate(0, 0, 1)),
	}
	m := Performance(trades)
	assert.InDelta(t, 250, m.MaxDrawdown, 1e-9)
}

func TestPerformanceNoLosses(t *testing.T) {
	day := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	m := Performance([]*TradeResult{tr("AAPL", 10, day), tr("AAPL", 20, day.AddDate(0, 0, 1))})

	assert.True(t, math.IsInf(m.ProfitFactor, 1))
	assert.InDelta(t, 100, m.WinRate, 1e-9)
	assert.Zero(t, m.MaxDrawdown)
}

func TestPerformanceBreakevenTradesCountNeither(t *testing.T) {
	day := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	m := Performance([]*TradeResult{tr("AAPL", 0, day), tr("AAPL", 100, day.AddDate(0, 0, 1))})

	assert.Equal(t, 2, m.TotalTrades)
	assert.Equal(t, 1, m.WinningTrades)
	assert.Equal(t, 0, m.LosingTrades)
	assert.InDelta(t, 50, m.WinRate, 1e-9)
}

func TestDailyMetrics(t *testing.T) {
	day := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	trades := []*TradeResult{
		tr("AAPL", 30, day.Add(9*time.Hour)),
		tr("TSLA", -10, day.Add(15*time.Hour)),
		tr("AAPL", 5, day.AddDate(0, 0, 1)), // next day, excluded
	}

	dm := DailyMetrics(trades, day)
	require.NotNil(t, dm)
	assert.Equal(t, day, dm.Date)
	assert.InDelta(t, 20, dm.PnL, 1e-9)
	assert.Equal(t, 2, dm.Trades)
	assert.Equal(t, 1, dm.Wins)
	assert.Equal(t, 1, dm.Losses)
	assert.InDelta(t, 2000, dm.Volume, 1e-9) // 2 trades x 10 x 100
	assert.InDelta(t, 3, dm.Fees, 1e-9)

	assert.Nil(t, DailyMetrics(trades, day.AddDate(0, 0, 5)))
}

func TestCalendarGrid(t *testing.T) {
	trades := []*TradeResult{
		tr("AAPL", 30, time.Date(2025, 4, 3, 9, 0, 0, 0, time.UTC)),
		tr("TSLA", -10, time.Date(2025, 4, 17, 15, 0, 0, 0, time.UTC)),
	}
	grid := CalendarGrid(trades, 2025, time.April)

	require.Len(t, grid, 30)
	assert.Nil(t, grid[0])
	require.NotNil(t, grid[2]) // April 3rd
	assert.InDelta(t, 30, grid[2].PnL, 1e-9)
	require.NotNil(t, grid[16]) // April 17th
	assert.InDelta(t, -10, grid[16].PnL, 1e-9)

	// February of a leap year has 29 slots.
	assert.Len(t, CalendarGrid(nil, 2024, time.February), 29)
}

func TestTimeBasedMetrics(t *testing.T) {
	// 2025-04-06 is a Sunday.
	sunday := time.Date(2025, 4, 6, 14, 0, 0, 0, time.UTC)
	monday := time.Date(2025, 4, 7, 9, 30, 0, 0, time.UTC)
	trades := []*TradeResult{
		tr("AAPL", 100, sunday),
		tr("AAPL", -40, monday),
		tr("TSLA", 25, monday.Add(10 * time.Minute)), // same hour bucket
	}

	tm := TimeBasedMetrics(trades)

	assert.InDelta(t, 100, tm.HourPnL[14], 1e-9)
	assert.Equal(t, 1, tm.HourTrades[14])
	assert.InDelta(t, -15, tm.HourPnL[9], 1e-9)
	assert.Equal(t, 2, tm.HourTrades[9])

	assert.InDelta(t, 100, tm.WeekdayPnL[0], 1e-9) // Sunday first
	assert.Equal(t, 1, tm.WeekdayTrades[0])
	assert.InDelta(t, -15, tm.WeekdayPnL[1], 1e-9)
	assert.Equal(t, 2, tm.WeekdayTrades[1])
}

func TestMonthlyPnL(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	t.Run("No trades", func(t *testing.T) {
		assert.Nil(t, MonthlyPnL(nil, now))
	})

	t.Run("Zero-fills gap months and extends to now", func(t *testing.T) {
		trades := []*TradeResult{
			{Symbol: "AAPL", PnL: 50, OpenedAt: time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), ClosedAt: time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)},
			{Symbol: "AAPL", PnL: -30, OpenedAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), ClosedAt: time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)},
		}
		series := MonthlyPnL(trades, now)

		// January (earliest open) through June (now).
		require.Len(t, series, 6)
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), series[0].Month)
		assert.Zero(t, series[0].Trades)

		assert.InDelta(t, 50, series[1].PnL, 1e-9) // February close
		assert.Equal(t, 1, series[1].Trades)
		assert.InDelta(t, 100, series[1].WinRate, 1e-9)

		assert.Zero(t, series[2].Trades) // March

		assert.InDelta(t, -30, series[3].PnL, 1e-9) // April
		assert.Zero(t, series[3].WinRate)

		assert.Zero(t, series[5].Trades) // June, up to now
	})
}

func TestSymbolDistribution(t *testing.T) {
	day := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	trades := []*TradeResult{
		tr("AAPL", 50, day),
		tr("AAPL", -20, day),
		tr("TSLA", 100, day),
		tr("MSFT", 10, day),
		tr("TSLA", 40, day),
		tr("AAPL", 30, day),
	}
	stats := SymbolDistribution(trades)

	require.Len(t, stats, 3)
	assert.Equal(t, "AAPL", stats[0].Symbol)
	assert.Equal(t, 3, stats[0].Trades)
	assert.InDelta(t, 60, stats[0].PnL, 1e-9)
	assert.InDelta(t, 100.0*2/3, stats[0].WinRate, 1e-9)

	assert.Equal(t, "TSLA", stats[1].Symbol)
	assert.Equal(t, 2, stats[1].Trades)
	assert.InDelta(t, 140, stats[1].PnL, 1e-9)
	assert.InDelta(t, 100, stats[1].WinRate, 1e-9)

	assert.Equal(t, "MSFT", stats[2].Symbol)
}
