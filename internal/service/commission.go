package service

import (
	"math"
	"time"

	"driverbook/internal/domain"
)

// DefaultBaseCommissionRate is the platform commission before discounts.
const DefaultBaseCommissionRate = 0.08

// MaxDiscountPercent is the widest discount band the platform offers.
const MaxDiscountPercent = 8.0

// RateResolution is the outcome of resolving the commission rate for a day.
type RateResolution struct {
	BaseRate         float64
	DiscountPercent  float64
	EffectiveRate    float64
	SourceDiscountID string
}

// ResolveCommissionRate picks the winning discount for date among those active at now
// and applies it to baseRate. Discounts never stack: the largest percent wins, ties go
// to the most recently created.
func ResolveCommissionRate(date time.Time, baseRate float64, discounts []*domain.CommissionDiscount, now time.Time) RateResolution {
	date = domain.DateOf(date)

	var winner *domain.CommissionDiscount
	for _, d := range discounts {
		if d.StatusAt(now) != domain.DiscountStatusActive || !d.Covers(date) {
			continue
		}
		if winner == nil ||
			d.DiscountPercent > winner.DiscountPercent ||
			(d.DiscountPercent == winner.DiscountPercent && d.CreatedAt.After(winner.CreatedAt)) {
			winner = d
		}
	}

	res := RateResolution{BaseRate: baseRate, EffectiveRate: baseRate}
	if winner == nil {
		return res
	}

	res.DiscountPercent = winner.DiscountPercent
	res.SourceDiscountID = winner.ID
	res.EffectiveRate = roundRate(math.Max(0, baseRate-winner.DiscountPercent/100))
	return res
}

// priceBooking derives every commission field of b from its total price, its base-rate
// snapshot and the discounts active at now. It is shared by booking creation, traveller
// edits and the recalculation sweep.
func priceBooking(b *domain.Booking, discounts []*domain.CommissionDiscount, now time.Time) RateResolution {
	res := ResolveCommissionRate(b.StartDate, b.CommissionBaseRateAtBooking, discounts, now)

	b.AppliedDiscountID = res.SourceDiscountID
	b.EffectiveCommissionRate = res.EffectiveRate
	b.CommissionAmount = domain.RoundMoney(b.TotalPrice * res.EffectiveRate)
	b.DriverEarnings = domain.RoundMoney(b.TotalPrice - b.CommissionAmount)

	return res
}

// roundRate trims float noise so that equal rates compare equal.
func roundRate(r float64) float64 {
	return math.Round(r*1e6) / 1e6
}
