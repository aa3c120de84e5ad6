package engine

import (
	"math"
	"time"
)

const daysPerYear = 365

// OpenFee returns the commission charged when opening a position,
// as a percentage of the opened value.
func OpenFee(positionValue, openCommissionPct float64) float64 {
	return positionValue * openCommissionPct / 100
}

// CloseFee returns the commission charged on a closing fill. It is
// computed on the value of the closing fill only, so partial closes pay
// commission proportional to the quantity actually closed.
func CloseFee(closeValue, closeCommissionPct float64) float64 {
	return closeValue * closeCommissionPct / 100
}

// DailyNightFee returns the overnight financing cost for one day of
// holding, pro-rated from the annualized rate.
func DailyNightFee(positionValue, nightCommissionPct float64) float64 {
	return positionValue * nightCommissionPct / 100 / daysPerYear
}

// DaysHeld returns the number of chargeable holding days between open and
// close: elapsed time rounded up to whole days, never negative.
func DaysHeld(openedAt, closedAt time.Time) int {
	elapsed := closedAt.Sub(openedAt)
	if elapsed <= 0 {
		return 0
	}
	return int(math.Ceil(elapsed.Hours() / 24))
}

// NightFee returns the total overnight financing fee for a holding
// period. A position opened and closed on the same UTC calendar day is
// charged nothing regardless of the nominal rate.
func NightFee(positionValue, nightCommissionPct float64, openedAt, closedAt time.Time) float64 {
	if sameCalendarDay(openedAt, closedAt) {
		return 0
	}
	return DailyNightFee(positionValue, nightCommissionPct) * float64(DaysHeld(openedAt, closedAt))
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
