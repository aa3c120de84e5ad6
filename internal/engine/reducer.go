package engine

import (
	"sort"

	"cfdjournal/internal/domain"
)

// FeeTotals breaks down the fees accumulated across a position's fills.
type FeeTotals struct {
	Open  float64
	Close float64
	Night float64
	Total float64
}

// Snapshot is the derived state of a position. It is never stored:
// every read folds the fill ledger again, so the snapshot can never
// drift from the fills that produced it.
type Snapshot struct {
	TradeType domain.TradeType
	// Degenerate is set when the ledger is empty. All numeric fields are
	// zero and TradeType is unset; the lifecycle controller never creates
	// such a position, so callers should treat this as a data error.
	Degenerate bool

	NetQuantity      float64
	OriginalQuantity float64 // cumulative opening-side quantity
	ClosedQuantity   float64

	OpenPrice  float64 // quantity-weighted average of opening-side fills
	ClosePrice float64 // quantity-weighted average of closing-side fills, 0 if none

	IsPartiallyClosed bool

	// RealizedPnL is the money locked in by closing-side fills, net of
	// all fees. UnrealizedPnL is the mark-to-market result on the open
	// remainder; it carries the fee drag only while no quantity has been
	// closed. PnL is always their sum.
	RealizedPnL   float64
	UnrealizedPnL float64
	PnL           float64

	Fees           FeeTotals
	BreakevenPrice float64
}

// Reduce folds a position's fill ledger into a Snapshot. latestPrice is
// the symbol's most recent known price; pass 0 when none is available,
// in which case unrealized legs report only the fee drag rather than an
// invented mark.
//
// Reduce is pure: identical inputs yield identical snapshots, and it
// never fails on well-formed input.
func Reduce(pos *domain.Position, fills []*domain.Fill, latestPrice float64) Snapshot {
	if len(fills) == 0 {
		return Snapshot{Degenerate: true}
	}

	ordered := make([]*domain.Fill, len(fills))
	copy(ordered, fills)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExecutedAt.Before(ordered[j].ExecutedAt)
	})

	var totalBuy, totalSell float64
	var snap Snapshot
	for _, f := range ordered {
		switch f.Side {
		case domain.Buy:
			totalBuy += f.Quantity
		case domain.Sell:
			totalSell += f.Quantity
		}
		snap.Fees.Open += f.OpenFee
		snap.Fees.Close += f.CloseFee
		snap.Fees.Night += f.NightFee
	}
	snap.Fees.Total = snap.Fees.Open + snap.Fees.Close + snap.Fees.Night

	// Direction: the side with the larger cumulative quantity. A fully
	// round-tripped ledger keeps the side of its chronologically first
	// fill.
	switch {
	case totalBuy > totalSell:
		snap.TradeType = domain.Long
	case totalSell > totalBuy:
		snap.TradeType = domain.Short
	default:
		if ordered[0].Side == domain.Sell {
			snap.TradeType = domain.Short
		} else {
			snap.TradeType = domain.Long
		}
	}

	openingSide := snap.TradeType.OpeningSide()
	var openQty, openValue, closeQty, closeValue float64
	for _, f := range ordered {
		if f.Side == openingSide {
			openQty += f.Quantity
			openValue += f.Value()
		} else {
			closeQty += f.Quantity
			closeValue += f.Value()
		}
	}

	snap.OriginalQuantity = openQty
	snap.ClosedQuantity = closeQty
	snap.NetQuantity = openQty - closeQty
	snap.OpenPrice = openValue / openQty
	if closeQty > 0 {
		snap.ClosePrice = closeValue / closeQty
	}

	dir := 1.0
	if snap.TradeType == domain.Short {
		dir = -1.0
	}

	switch {
	case pos.Status == domain.StatusClosed:
		snap.RealizedPnL = dir*(closeValue-openValue) - snap.Fees.Total
	case closeQty == 0:
		if latestPrice > 0 {
			snap.UnrealizedPnL = dir*(latestPrice-snap.OpenPrice)*snap.NetQuantity - snap.Fees.Total
		} else {
			snap.UnrealizedPnL = -snap.Fees.Total
		}
	default:
		// Partially closed: the realized leg absorbs all fees, the open
		// remainder is marked fee-free.
		snap.RealizedPnL = dir*(closeValue-closeQty*snap.OpenPrice) - snap.Fees.Total
		if latestPrice > 0 {
			snap.UnrealizedPnL = dir * (latestPrice - snap.OpenPrice) * snap.NetQuantity
		}
	}
	snap.PnL = snap.RealizedPnL + snap.UnrealizedPnL

	denom := snap.NetQuantity
	if denom <= 0 {
		denom = 1
	}
	snap.BreakevenPrice = snap.OpenPrice + dir*snap.Fees.Total/denom

	snap.IsPartiallyClosed = pos.Status == domain.StatusOpen &&
		snap.NetQuantity > 0 && snap.NetQuantity < snap.OriginalQuantity

	return snap
}
