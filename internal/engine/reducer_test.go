package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfdjournal/internal/domain"
)

var baseTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func openPosition() *domain.Position {
	return &domain.Position{ID: 1, AccountID: 1, SymbolID: 1, Status: domain.StatusOpen, OpenedAt: baseTime}
}

func closedPosition(closedAt time.Time) *domain.Position {
	return &domain.Position{ID: 1, AccountID: 1, SymbolID: 1, Status: domain.StatusClosed, OpenedAt: baseTime, ClosedAt: closedAt}
}

func TestReduceEmptyLedger(t *testing.T) {
	snap := Reduce(openPosition(), nil, 100)
	assert.True(t, snap.Degenerate)
	assert.Zero(t, snap.NetQuantity)
	assert.Zero(t, snap.PnL)
	assert.Empty(t, snap.TradeType)
}

func TestReduceFullRoundTripLong(t *testing.T) {
	// Long 10 @ 150 with 0.25% commission each way, closed same day at 155.
	fills := []*domain.Fill{
		{ID: 1, PositionID: 1, Side: domain.Buy, Quantity: 10, Price: 150, OpenFee: 3.75, ExecutedAt: baseTime},
		{ID: 2, PositionID: 1, Side: domain.Sell, Quantity: 10, Price: 155, CloseFee: 3.875, ExecutedAt: baseTime.Add(2 * time.Hour)},
	}
	snap := Reduce(closedPosition(baseTime.Add(2*time.Hour)), fills, 0)

	assert.Equal(t, domain.Long, snap.TradeType)
	assert.False(t, snap.Degenerate)
	assert.False(t, snap.IsPartiallyClosed)
	assert.InDelta(t, 0, snap.NetQuantity, 1e-9)
	assert.InDelta(t, 10, snap.OriginalQuantity, 1e-9)
	assert.InDelta(t, 150, snap.OpenPrice, 1e-9)
	assert.InDelta(t, 155, snap.ClosePrice, 1e-9)
	assert.InDelta(t, 7.625, snap.Fees.Total, 1e-9)
	assert.InDelta(t, 42.375, snap.RealizedPnL, 1e-9)
	assert.Zero(t, snap.UnrealizedPnL)
	assert.InDelta(t, 42.375, snap.PnL, 1e-9)
}

func TestReducePartialCloseShort(t *testing.T) {
	// Short 5 @ 490, 40% closed at 480. Commission 0.25% per fill.
	fills := []*domain.Fill{
		{ID: 1, PositionID: 1, Side: domain.Sell, Quantity: 5, Price: 490, OpenFee: 6.125, ExecutedAt: baseTime},
		{ID: 2, PositionID: 1, Side: domain.Buy, Quantity: 2, Price: 480, CloseFee: 2.4, ExecutedAt: baseTime.Add(time.Hour)},
	}
	snap := Reduce(openPosition(), fills, 485)

	assert.Equal(t, domain.Short, snap.TradeType)
	assert.True(t, snap.IsPartiallyClosed)
	assert.InDelta(t, 3, snap.NetQuantity, 1e-9)
	assert.InDelta(t, 2, snap.ClosedQuantity, 1e-9)
	assert.InDelta(t, 490, snap.OpenPrice, 1e-9)
	assert.InDelta(t, 480, snap.ClosePrice, 1e-9)

	// Realized: (490-480)*2 gained on the closed leg, minus all fees.
	assert.InDelta(t, 11.475, snap.RealizedPnL, 1e-9)
	// Unrealized remainder is marked fee-free: (490-485)*3.
	assert.InDelta(t, 15, snap.UnrealizedPnL, 1e-9)
	assert.InDelta(t, snap.RealizedPnL+snap.UnrealizedPnL, snap.PnL, 1e-9)
}

func TestReduceOpenNoMarkPrice(t *testing.T) {
	fills := []*domain.Fill{
		{ID: 1, PositionID: 1, Side: domain.Buy, Quantity: 10, Price: 150, OpenFee: 3.75, ExecutedAt: baseTime},
	}
	snap := Reduce(openPosition(), fills, 0)

	// Without a mark price only the fee drag shows.
	assert.InDelta(t, -3.75, snap.UnrealizedPnL, 1e-9)
	assert.Zero(t, snap.RealizedPnL)
	assert.InDelta(t, -3.75, snap.PnL, 1e-9)
}

func TestReduceBreakevenProperty(t *testing.T) {
	t.Run("Long", func(t *testing.T) {
		fills := []*domain.Fill{
			{ID: 1, PositionID: 1, Side: domain.Buy, Quantity: 10, Price: 150, OpenFee: 3.75, ExecutedAt: baseTime},
		}
		snap := Reduce(openPosition(), fills, 0)
		require.InDelta(t, 150.375, snap.BreakevenPrice, 1e-9)

		// Marking at breakeven yields exactly zero PnL.
		atBreakeven := Reduce(openPosition(), fills, snap.BreakevenPrice)
		assert.InDelta(t, 0, atBreakeven.PnL, 1e-9)
	})

	t.Run("Short", func(t *testing.T) {
		fills := []*domain.Fill{
			{ID: 1, PositionID: 1, Side: domain.Sell, Quantity: 4, Price: 200, OpenFee: 2, ExecutedAt: baseTime},
		}
		snap := Reduce(openPosition(), fills, 0)
		require.InDelta(t, 199.5, snap.BreakevenPrice, 1e-9)

		atBreakeven := Reduce(openPosition(), fills, snap.BreakevenPrice)
		assert.InDelta(t, 0, atBreakeven.PnL, 1e-9)
	})
}

func TestReduceWeightedAverageOpenPrice(t *testing.T) {
	fills := []*domain.Fill{
		{ID: 1, PositionID: 1, Side: domain.Buy, Quantity: 10, Price: 100, OpenFee: 2.5, ExecutedAt: baseTime},
		{ID: 2, PositionID: 1, Side: domain.Buy, Quantity: 30, Price: 110, OpenFee: 8.25, ExecutedAt: baseTime.Add(time.Hour)},
	}
	snap := Reduce(openPosition(), fills, 120)

	assert.InDelta(t, 107.5, snap.OpenPrice, 1e-9)
	assert.InDelta(t, 40, snap.NetQuantity, 1e-9)
	// (120-107.5)*40 - 10.75
	assert.InDelta(t, 489.25, snap.UnrealizedPnL, 1e-9)
}

func TestReduceDirectionTieBreak(t *testing.T) {
	// A fully round-tripped ledger has equal buy and sell quantity; the
	// chronologically first fill decides the direction.
	shortFirst := []*domain.Fill{
		{ID: 2, PositionID: 1, Side: domain.Buy, Quantity: 5, Price: 95, ExecutedAt: baseTime.Add(time.Hour)},
		{ID: 1, PositionID: 1, Side: domain.Sell, Quantity: 5, Price: 100, ExecutedAt: baseTime},
	}
	snap := Reduce(closedPosition(baseTime.Add(time.Hour)), shortFirst, 0)
	assert.Equal(t, domain.Short, snap.TradeType)
	// Short closed lower than it opened: a gain.
	assert.InDelta(t, 25, snap.RealizedPnL, 1e-9)

	longFirst := []*domain.Fill{
		{ID: 1, PositionID: 1, Side: domain.Buy, Quantity: 5, Price: 100, ExecutedAt: baseTime},
		{ID: 2, PositionID: 1, Side: domain.Sell, Quantity: 5, Price: 95, ExecutedAt: baseTime.Add(time.Hour)},
	}
	snap = Reduce(closedPosition(baseTime.Add(time.Hour)), longFirst, 0)
	assert.Equal(t, domain.Long, snap.TradeType)
	assert.InDelta(t, -25, snap.RealizedPnL, 1e-9)
}

func TestReduceIsPureAndOrderInsensitive(t *testing.T) {
	fills := []*domain.Fill{
		{ID: 2, PositionID: 1, Side: domain.Buy, Quantity: 2, Price: 480, CloseFee: 2.4, ExecutedAt: baseTime.Add(time.Hour)},
		{ID: 1, PositionID: 1, Side: domain.Sell, Quantity: 5, Price: 490, OpenFee: 6.125, ExecutedAt: baseTime},
	}
	pos := openPosition()

	first := Reduce(pos, fills, 485)
	second := Reduce(pos, fills, 485)
	assert.Equal(t, first, second)

	// The input slice is not reordered.
	assert.Equal(t, int64(2), fills[0].ID)
	assert.Equal(t, int64(1), fills[1].ID)
}

func TestReduceDirectionSign(t *testing.T) {
	long := []*domain.Fill{
		{ID: 1, PositionID: 1, Side: domain.Buy, Quantity: 10, Price: 150, OpenFee: 3.75, ExecutedAt: baseTime},
	}
	short := []*domain.Fill{
		{ID: 1, PositionID: 1, Side: domain.Sell, Quantity: 10, Price: 150, OpenFee: 3.75, ExecutedAt: baseTime},
	}

	// Long PnL rises with the mark price, short PnL falls.
	prev := Reduce(openPosition(), long, 140).PnL
	for _, mark := range []float64{145, 150, 155, 160} {
		cur := Reduce(openPosition(), long, mark).PnL
		assert.Greater(t, cur, prev)
		prev = cur
	}
	prev = Reduce(openPosition(), short, 140).PnL
	for _, mark := range []float64{145, 150, 155, 160} {
		cur := Reduce(openPosition(), short, mark).PnL
		assert.Less(t, cur, prev)
		prev = cur
	}
}

func TestReduceNightFeesInTotals(t *testing.T) {
	fills := []*domain.Fill{
		{ID: 1, PositionID: 1, Side: domain.Buy, Quantity: 10, Price: 150, OpenFee: 3.75, ExecutedAt: baseTime},
		{ID: 2, PositionID: 1, Side: domain.Sell, Quantity: 10, Price: 155, CloseFee: 3.875, NightFee: 0.3, ExecutedAt: baseTime.Add(72 * time.Hour)},
	}
	snap := Reduce(closedPosition(baseTime.Add(72*time.Hour)), fills, 0)

	assert.InDelta(t, 0.3, snap.Fees.Night, 1e-9)
	assert.InDelta(t, 7.925, snap.Fees.Total, 1e-9)
	assert.InDelta(t, 42.075, snap.RealizedPnL, 1e-9)
}
