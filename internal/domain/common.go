package domain

// Side represents the side of a fill (BUY or SELL).
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// IsValid reports whether s is one of the two known sides.
func (s Side) IsValid() bool {
	return s == Buy || s == Sell
}

// TradeType represents the net direction of a position.
type TradeType string

const (
	Long  TradeType = "LONG"
	Short TradeType = "SHORT"
)

// OpeningSide maps a position direction to the fill side that opens it.
func (t TradeType) OpeningSide() Side {
	if t == Short {
		return Sell
	}
	return Buy
}

// PositionStatus represents the status of a position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)
