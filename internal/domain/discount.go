package domain

import "time"

// DiscountStatus is the status of a discount derived at read time.
type DiscountStatus string

const (
	DiscountStatusDisabled  DiscountStatus = "disabled"
	DiscountStatusScheduled DiscountStatus = "scheduled"
	DiscountStatusActive    DiscountStatus = "active"
	DiscountStatusExpired   DiscountStatus = "expired"
)

// CommissionDiscount is a time-boxed, platform-wide reduction of the commission rate.
type CommissionDiscount struct {
	ID              string
	Name            string
	Description     string
	DiscountPercent float64 // Percentage points off the base rate, 0-8
	StartDate       time.Time
	EndDate         time.Time
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StatusAt derives the discount status at the given instant. It is never stored.
func (d *CommissionDiscount) StatusAt(now time.Time) DiscountStatus {
	switch {
	case !d.Active:
		return DiscountStatusDisabled
	case now.Before(d.StartDate):
		return DiscountStatusScheduled
	case now.After(EndOfDay(d.EndDate)):
		return DiscountStatusExpired
	default:
		return DiscountStatusActive
	}
}

// Covers reports whether the given day lies inside the discount window.
func (d *CommissionDiscount) Covers(date time.Time) bool {
	date = DateOf(date)
	return !date.Before(d.StartDate) && !date.After(d.EndDate)
}

// DateWindow is an inclusive range of calendar days.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Window returns the discount's date range.
func (d *CommissionDiscount) Window() DateWindow {
	return DateWindow{Start: d.StartDate, End: d.EndDate}
}

// Span returns the smallest window covering both w and other.
func (w DateWindow) Span(other DateWindow) DateWindow {
	out := w
	if other.Start.Before(out.Start) {
		out.Start = other.Start
	}
	if other.End.After(out.End) {
		out.End = other.End
	}
	return out
}
