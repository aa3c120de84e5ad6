package domain

import "time"

// Fill is one atomic execution within a position. Fills are append-only:
// once recorded they are never modified through the engine's own
// operations, and the ledger is always read back in chronological order.
type Fill struct {
	ID         int64
	PositionID int64
	Side       Side
	Quantity   float64 // > 0
	Price      float64 // > 0
	OpenFee    float64
	CloseFee   float64
	NightFee   float64
	ExecutedAt time.Time
}

// Value returns the notional value of the fill.
func (f *Fill) Value() float64 {
	return f.Quantity * f.Price
}

// TotalFee returns the sum of all fee buckets on this fill.
func (f *Fill) TotalFee() float64 {
	return f.OpenFee + f.CloseFee + f.NightFee
}
