package domain

import "time"

// Symbol represents a tradable ticker. LatestPrice is written out of band
// by the quote refresher and is nil until the first refresh succeeds.
type Symbol struct {
	ID          int64
	Ticker      string // e.g. "BTCUSDT"
	Name        string
	LatestPrice *float64
	PricedAt    time.Time // zero value until a price has been stored
	IsActive    bool
}

// MarkPrice returns the latest known price, or 0 when none is available.
func (s *Symbol) MarkPrice() float64 {
	if s.LatestPrice == nil {
		return 0
	}
	return *s.LatestPrice
}
