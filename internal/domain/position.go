package domain

import "time"

// Position is one logical trade ("operation group") comprising an ordered
// sequence of fills against a single account and symbol.
type Position struct {
	ID        int64
	AccountID int64
	SymbolID  int64
	Status    PositionStatus
	OpenedAt  time.Time
	ClosedAt  time.Time // zero value while the position is open
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}
