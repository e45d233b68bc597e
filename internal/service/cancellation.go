package service

import (
	"time"

	"driverbook/internal/domain"
)

// freeCancellationDays is how many days before the start a traveller may cancel without penalty.
const freeCancellationDays = 2

// Proration is the outcome of a traveller cancellation.
type Proration struct {
	PenaltyAmount float64
	RefundAmount  float64
}

// Prorate applies the cancellation policy on calendar-day granularity:
//   - up to two days before the start: no penalty
//   - within two days of the start, or on the start day: half the price
//   - once underway: elapsed days in full plus half of the remaining days, capped at the price
//
// RefundAmount is the part of the price the traveller no longer owes.
func Prorate(now, start, end time.Time, totalPrice float64) Proration {
	today := domain.DateOf(now)
	start = domain.DateOf(start)
	end = domain.DateOf(end)

	var penalty float64
	switch {
	case !today.After(start.AddDate(0, 0, -freeCancellationDays)):
		penalty = 0
	case !today.After(start):
		penalty = 0.5 * totalPrice
	default:
		totalDays := domain.DaysBetween(start, end)
		if totalDays <= 0 {
			penalty = totalPrice
			break
		}

		until := today
		if until.After(end) {
			until = end
		}
		completed := float64(domain.DaysBetween(start, until))
		total := float64(totalDays)

		penalty = completed/total*totalPrice + 0.5*(total-completed)/total*totalPrice
	}

	if penalty > totalPrice {
		penalty = totalPrice
	}
	penalty = domain.RoundMoney(penalty)

	return Proration{
		PenaltyAmount: penalty,
		RefundAmount:  domain.RoundMoney(totalPrice - penalty),
	}
}
