package service

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"driverbook/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func discount(id string, percent float64, start, end time.Time, createdAt time.Time) *domain.CommissionDiscount {
	return &domain.CommissionDiscount{
		ID:              id,
		Name:            id,
		DiscountPercent: percent,
		StartDate:       start,
		EndDate:         end,
		Active:          true,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func TestResolveCommissionRate_NoDiscountUsesBase(t *testing.T) {
	t.Parallel()

	res := ResolveCommissionRate(day(15), 0.08, nil, day(1))

	assert.Equal(t, 0.08, res.EffectiveRate)
	assert.Empty(t, res.SourceDiscountID)
}

func TestResolveCommissionRate_LargestPercentWins(t *testing.T) {
	t.Parallel()

	discounts := []*domain.CommissionDiscount{
		discount("small", 2, day(1), day(30), day(1)),
		discount("large", 3, day(1), day(30), day(1)),
	}

	res := ResolveCommissionRate(day(15), 0.08, discounts, day(1))

	assert.Equal(t, "large", res.SourceDiscountID)
	assert.Equal(t, 0.05, res.EffectiveRate)
	assert.Equal(t, 3.0, res.DiscountPercent)
}

func TestResolveCommissionRate_TieGoesToNewest(t *testing.T) {
	t.Parallel()

	discounts := []*domain.CommissionDiscount{
		discount("older", 3, day(1), day(30), day(1).Add(time.Hour)),
		discount("newer", 3, day(1), day(30), day(1).Add(2*time.Hour)),
	}

	res := ResolveCommissionRate(day(15), 0.08, discounts, day(2))

	assert.Equal(t, "newer", res.SourceDiscountID)
}

func TestResolveCommissionRate_IgnoresInactiveAndUncovered(t *testing.T) {
	t.Parallel()

	disabled := discount("disabled", 5, day(1), day(30), day(1))
	disabled.Active = false
	scheduled := discount("scheduled", 5, day(20), day(30), day(1))
	elsewhere := discount("elsewhere", 5, day(1), day(10), day(1))

	res := ResolveCommissionRate(day(15), 0.08, []*domain.CommissionDiscount{disabled, scheduled, elsewhere}, day(12))

	assert.Equal(t, 0.08, res.EffectiveRate)
	assert.Empty(t, res.SourceDiscountID)
}

func TestResolveCommissionRate_ClampsAtZero(t *testing.T) {
	t.Parallel()

	discounts := []*domain.CommissionDiscount{discount("max", 8, day(1), day(30), day(1))}

	res := ResolveCommissionRate(day(15), 0.05, discounts, day(1))

	assert.Equal(t, 0.0, res.EffectiveRate)
}

func TestPriceBooking_DiscountExample(t *testing.T) {
	t.Parallel()

	b := &domain.Booking{
		StartDate:                   day(15),
		EndDate:                     day(18),
		TotalPrice:                  2000,
		CommissionBaseRateAtBooking: 0.08,
	}
	discounts := []*domain.CommissionDiscount{discount("june", 3, day(1), day(30), day(1))}

	priceBooking(b, discounts, day(1))

	assert.Equal(t, 0.05, b.EffectiveCommissionRate)
	assert.Equal(t, 100.0, b.CommissionAmount)
	assert.Equal(t, 1900.0, b.DriverEarnings)
	assert.Equal(t, "june", b.AppliedDiscountID)
}

func TestPriceBooking_CommissionPlusEarningsEqualsTotal(t *testing.T) {
	t.Parallel()

	prices := []float64{0.01, 0.05, 0.99, 1, 9.99, 100.1, 333.33, 1234.57, 2000, 99999.99}
	baseRates := []float64{0.08, 0.075, 0.1234}
	percents := []float64{0, 0.5, 2.75, 3, 7.999, 8}

	cents := func(v float64) int64 { return int64(math.Round(v * 100)) }

	for _, base := range baseRates {
		for _, percent := range percents {
			var discounts []*domain.CommissionDiscount
			if percent > 0 {
				discounts = append(discounts, discount("d", percent, day(1), day(30), testNow.Add(-time.Hour)))
			}

			for _, price := range prices {
				b := &domain.Booking{
					StartDate:                   day(10),
					EndDate:                     day(12),
					TotalPrice:                  price,
					CommissionBaseRateAtBooking: base,
				}
				priceBooking(b, discounts, testNow)

				msg := fmt.Sprintf("price=%v base=%v percent=%v", price, base, percent)
				assert.Equal(t, cents(price), cents(b.CommissionAmount)+cents(b.DriverEarnings), msg)
				assert.GreaterOrEqual(t, b.EffectiveCommissionRate, 0.0, msg)
				assert.LessOrEqual(t, b.EffectiveCommissionRate, base, msg)
				assert.GreaterOrEqual(t, b.CommissionAmount, 0.0, msg)
				assert.LessOrEqual(t, b.CommissionAmount, price, msg)
				assert.Equal(t, b.CommissionAmount, domain.RoundMoney(b.CommissionAmount), msg)
				assert.Equal(t, b.DriverEarnings, domain.RoundMoney(b.DriverEarnings), msg)
			}
		}
	}
}
