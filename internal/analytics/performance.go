// Package analytics computes portfolio-level statistics over closed
// positions. Everything here is a pure function of its inputs; the
// lifecycle service assembles TradeResult values from position snapshots
// and the aggregations never reach back into storage.
package analytics

import (
	"math"
	"sort"
	"time"
)

// TradeResult is one closed position as the aggregator sees it: the
// snapshot's money fields plus the close metadata needed for bucketing.
type TradeResult struct {
	Symbol    string
	Quantity  float64 // opening-side cumulative quantity
	OpenPrice float64
	PnL       float64
	Fees      float64
	OpenedAt  time.Time
	ClosedAt  time.Time
}

// PerformanceMetrics holds portfolio statistics over a set of closed
// trades. AverageLoss and LargestLoss are magnitudes (positive numbers).
type PerformanceMetrics struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // percent; breakeven trades count in neither bucket
	AverageWin    float64
	AverageLoss   float64
	ProfitFactor  float64 // +Inf when there are wins and no losses
	Expectancy    float64
	LargestWin    float64
	LargestLoss   float64
	MaxDrawdown   float64 // peak-to-trough of the cumulative P&L curve, close-time order
	TotalPnL      float64
	TotalFees     float64
}

// Performance calculates portfolio metrics from closed trades.
func Performance(trades []*TradeResult) *PerformanceMetrics {
	m := &PerformanceMetrics{}
	if len(trades) == 0 {
		return m
	}

	ordered := byCloseTime(trades)

	var sumWins, sumLosses float64
	var cumulative, peak float64
	for _, tr := range ordered {
		m.TotalTrades++
		m.TotalPnL += tr.PnL
		m.TotalFees += tr.Fees

		switch {
		case tr.PnL > 0:
			m.WinningTrades++
			sumWins += tr.PnL
			if tr.PnL > m.LargestWin {
				m.LargestWin = tr.PnL
			}
		case tr.PnL < 0:
			m.LosingTrades++
			sumLosses += -tr.PnL
			if -tr.PnL > m.LargestLoss {
				m.LargestLoss = -tr.PnL
			}
		}

		cumulative += tr.PnL
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
		}
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	if m.WinningTrades > 0 {
		m.AverageWin = sumWins / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = sumLosses / float64(m.LosingTrades)
	}
	switch {
	case sumLosses > 0:
		m.ProfitFactor = sumWins / sumLosses
	case sumWins > 0:
		m.ProfitFactor = math.Inf(1)
	}
	winFrac := m.WinRate / 100
	m.Expectancy = winFrac*m.AverageWin - (1-winFrac)*m.AverageLoss

	return m
}

// DayMetrics aggregates the trades closed on one calendar day.
type DayMetrics struct {
	Date   time.Time
	PnL    float64
	Trades int
	Wins   int
	Losses int
	Volume float64 // sum of quantity x open price
	Fees   float64
}

// DailyMetrics aggregates the trades whose close falls on the given UTC
// calendar date. Returns nil when no trade closed that day.
func DailyMetrics(trades []*TradeResult, date time.Time) *DayMetrics {
	y, mo, d := date.UTC().Date()
	var day *DayMetrics
	for _, tr := range trades {
		cy, cmo, cd := tr.ClosedAt.UTC().Date()
		if cy != y || cmo != mo || cd != d {
			continue
		}
		if day == nil {
			day = &DayMetrics{Date: time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)}
		}
		day.PnL += tr.PnL
		day.Trades++
		if tr.PnL > 0 {
			day.Wins++
		} else if tr.PnL < 0 {
			day.Losses++
		}
		day.Volume += tr.Quantity * tr.OpenPrice
		day.Fees += tr.Fees
	}
	return day
}

// CalendarGrid returns one entry per day of the given month, nil for days
// without closed trades. The slice index is day-of-month minus one.
func CalendarGrid(trades []*TradeResult, year int, month time.Month) []*DayMetrics {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()

	grid := make([]*DayMetrics, days)
	for i := range grid {
		grid[i] = DailyMetrics(trades, first.AddDate(0, 0, i))
	}
	return grid
}

// TimeMetrics buckets closed-trade P&L by hour of day and weekday
// (Sunday first), both on the close timestamp.
type TimeMetrics struct {
	HourPnL       [24]float64
	HourTrades    [24]int
	WeekdayPnL    [7]float64
	WeekdayTrades [7]int
}

// TimeBasedMetrics computes hour-of-day and day-of-week P&L buckets.
func TimeBasedMetrics(trades []*TradeResult) TimeMetrics {
	var tm TimeMetrics
	for _, tr := range trades {
		closed := tr.ClosedAt.UTC()
		tm.HourPnL[closed.Hour()] += tr.PnL
		tm.HourTrades[closed.Hour()]++
		tm.WeekdayPnL[closed.Weekday()] += tr.PnL
		tm.WeekdayTrades[closed.Weekday()]++
	}
	return tm
}

// MonthBucket is one month of the continuous P&L series.
type MonthBucket struct {
	Month   time.Time // first instant of the month, UTC
	PnL     float64
	Trades  int
	Wins    int
	WinRate float64 // percent within the bucket
}

// MonthlyPnL builds a continuous month series spanning from the earliest
// trade's open to the latest close or now, whichever is later. Months
// without closed trades appear zero-filled.
func MonthlyPnL(trades []*TradeResult, now time.Time) []MonthBucket {
	if len(trades) == 0 {
		return nil
	}

	start := trades[0].OpenedAt
	end := trades[0].ClosedAt
	for _, tr := range trades[1:] {
		if tr.OpenedAt.Before(start) {
			start = tr.OpenedAt
		}
		if tr.ClosedAt.After(end) {
			end = tr.ClosedAt
		}
	}
	if now.After(end) {
		end = now
	}

	first := monthOf(start)
	last := monthOf(end)

	var series []MonthBucket
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		series = append(series, MonthBucket{Month: m})
	}
	for _, tr := range trades {
		idx := monthsBetween(first, monthOf(tr.ClosedAt))
		series[idx].PnL += tr.PnL
		series[idx].Trades++
		if tr.PnL > 0 {
			series[idx].Wins++
		}
	}
	for i := range series {
		if series[i].Trades > 0 {
			series[i].WinRate = float64(series[i].Wins) / float64(series[i].Trades) * 100
		}
	}
	return series
}

// SymbolStats aggregates closed trades per symbol.
type SymbolStats struct {
	Symbol  string
	Trades  int
	PnL     float64
	Wins    int
	WinRate float64 // percent
}

// SymbolDistribution aggregates closed trades per symbol, sorted by trade
// count descending (ties alphabetically).
func SymbolDistribution(trades []*TradeResult) []SymbolStats {
	bySymbol := make(map[string]*SymbolStats)
	for _, tr := range trades {
		st := bySymbol[tr.Symbol]
		if st == nil {
			st = &SymbolStats{Symbol: tr.Symbol}
			bySymbol[tr.Symbol] = st
		}
		st.Trades++
		st.PnL += tr.PnL
		if tr.PnL > 0 {
			st.Wins++
		}
	}

	stats := make([]SymbolStats, 0, len(bySymbol))
	for _, st := range bySymbol {
		if st.Trades > 0 {
			st.WinRate = float64(st.Wins) / float64(st.Trades) * 100
		}
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Trades != stats[j].Trades {
			return stats[i].Trades > stats[j].Trades
		}
		return stats[i].Symbol < stats[j].Symbol
	})
	return stats
}

func byCloseTime(trades []*TradeResult) []*TradeResult {
	ordered := make([]*TradeResult, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ClosedAt.Before(ordered[j].ClosedAt)
	})
	return ordered
}

func monthOf(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}
