package domain

import "time"

// Account represents a trading account with its commission settings.
// The balance is a starting figure only; realized P&L is always derived
// from positions, never accumulated onto the account row.
type Account struct {
	ID           int64
	Name         string
	StartBalance float64
	IsActive     bool

	// OpenCloseCommissionPct is charged as a percentage of position value,
	// symmetrically on open and on close.
	OpenCloseCommissionPct float64
	// NightCommissionPct is an annualized percentage applied daily
	// (pro-rated by /365) to position value for each day held.
	NightCommissionPct float64

	CreatedAt time.Time
}
