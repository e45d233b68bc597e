package domain

import "time"

// BookingStatus represents the current status of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusRejected  BookingStatus = "rejected"
)

// AllowedBookingTransitions is the booking state flow as code.
var AllowedBookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusRejected, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCancelled},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to BookingStatus) bool {
	next, ok := AllowedBookingTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// IsValid reports whether the status is one of the known booking statuses.
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further money-field changes are allowed.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusRejected
}

// Cancellation records the outcome of a traveller cancellation.
type Cancellation struct {
	CancelledAt   time.Time
	PenaltyAmount float64
	RefundAmount  float64
	Reason        string
}

// Booking represents a contracted trip between a traveller and a driver.
type Booking struct {
	ID         string
	TravelerID string
	DriverID   string
	VehicleID  string
	Status     BookingStatus

	// StartDate and EndDate are calendar days at UTC midnight.
	StartDate time.Time
	EndDate   time.Time

	PricePerDay     float64 // Zero for offer bookings
	TotalPrice      float64
	TotalKms        float64 // Offer terms, informational
	PricePerExtraKm float64 // Offer terms, informational

	CommissionBaseRateAtBooking float64
	AppliedDiscountID           string
	EffectiveCommissionRate     float64
	CommissionAmount            float64
	DriverEarnings              float64

	OfferID        string
	ConversationID string

	PickupPoint     string
	DropPoint       string
	FlightInfo      string
	SpecialRequests string

	Cancellation *Cancellation

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FromOffer reports whether the booking's price and dates were fixed by an accepted offer.
func (b *Booking) FromOffer() bool {
	return b.OfferID != ""
}

// Days returns the number of booked days.
func (b *Booking) Days() int {
	return DaysBetween(b.StartDate, b.EndDate)
}

// HasStarted reports whether the trip start date has been reached.
func (b *Booking) HasStarted(now time.Time) bool {
	return !now.Before(b.StartDate)
}

// IsCompleted reports whether the trip end date is no longer in the future.
func (b *Booking) IsCompleted(now time.Time) bool {
	return !b.EndDate.After(now)
}

// Repriceable reports whether a discount change may still alter the booking's commission.
func (b *Booking) Repriceable(now time.Time) bool {
	return (b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed) && !b.IsCompleted(now)
}

// Overlaps reports whether the booking's date range intersects the given range.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return RangesOverlap(b.StartDate, b.EndDate, start, end)
}

// BookingFilter narrows a booking listing. Empty fields match everything.
type BookingFilter struct {
	TravelerID string
	DriverID   string
	VehicleID  string
	Status     BookingStatus
}
