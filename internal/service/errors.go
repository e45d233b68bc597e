package service

import (
	"errors"
	"fmt"

	"driverbook/internal/domain"
)

var (
	// ErrValidation wraps every payload validation failure. The wrapped message is shown verbatim.
	ErrValidation = errors.New("validation error")

	// ErrInvalidBookingID is returned when booking ID is empty.
	ErrInvalidBookingID = fmt.Errorf("%w: booking id is required", ErrValidation)

	// ErrInvalidDiscountID is returned when discount ID is empty.
	ErrInvalidDiscountID = fmt.Errorf("%w: discount id is required", ErrValidation)

	// ErrInvalidDateRange is returned when a booking's start is not before its end.
	ErrInvalidDateRange = fmt.Errorf("%w: start date must be before end date", ErrValidation)

	// ErrStartDateInPast is returned when a booking would start before today.
	ErrStartDateInPast = fmt.Errorf("%w: start date cannot be in the past", ErrValidation)

	// ErrInvalidWindow is returned when a discount or slot ends before it starts.
	ErrInvalidWindow = fmt.Errorf("%w: end date cannot be before start date", ErrValidation)

	// ErrInvalidDiscountPercent is returned when a discount is outside the 0-8 band.
	ErrInvalidDiscountPercent = fmt.Errorf("%w: discount percent must be between 0 and 8", ErrValidation)

	// ErrInvalidPrice is returned when a booking has no usable price.
	ErrInvalidPrice = fmt.Errorf("%w: price must be greater than zero", ErrValidation)

	// ErrInvalidPeriod is returned when a period is not YYYY-MM.
	ErrInvalidPeriod = fmt.Errorf("%w: period must be formatted as YYYY-MM", ErrValidation)

	// ErrInvalidAction is returned when a driver response is neither accept nor reject.
	ErrInvalidAction = fmt.Errorf("%w: action must be accept or reject", ErrValidation)

	// ErrInvalidSlotStatus is returned when a slot status is unknown.
	ErrInvalidSlotStatus = fmt.Errorf("%w: status must be available or unavailable", ErrValidation)

	// ErrInvalidCommissionStatus is returned when a commission status is unknown.
	ErrInvalidCommissionStatus = fmt.Errorf("%w: status must be pending, submitted or approved", ErrValidation)

	// ErrOfferDatesImmutable is returned when a traveller edits the dates of an offer booking.
	ErrOfferDatesImmutable = fmt.Errorf("%w: dates of an offer booking cannot be changed", ErrValidation)

	// ErrInvalidTransition is returned for a booking status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid booking status transition")

	// ErrBookingNotEditable is returned when a booking is edited after it started or left pending/confirmed.
	ErrBookingNotEditable = errors.New("booking can no longer be edited")

	// ErrDriverNotAssigned is returned when a driver responds to another driver's booking.
	ErrDriverNotAssigned = errors.New("driver not assigned to this booking")

	// ErrTravelerMismatch is returned when a traveller acts on another traveller's booking.
	ErrTravelerMismatch = errors.New("booking belongs to another traveler")

	// ErrOfferTermsMismatch is returned when an offer already booked arrives again with different terms.
	ErrOfferTermsMismatch = errors.New("offer was already booked with different terms")

	// ErrConflict is returned when a booking changed underneath the caller.
	ErrConflict = errors.New("booking was modified concurrently, retry")

	// ErrOverlapConflict is returned when a slot collides with a slot of a different status.
	ErrOverlapConflict = errors.New("availability slot overlaps a slot with a different status")
)

// OverlapConflictError carries the slot that blocked an availability change.
type OverlapConflictError struct {
	Slot *domain.VehicleAvailability
}

func (e *OverlapConflictError) Error() string {
	return fmt.Sprintf("%s: %s slot %s from %s to %s",
		ErrOverlapConflict.Error(),
		e.Slot.Status,
		e.Slot.ID,
		e.Slot.StartDate.Format(domain.DateLayout),
		e.Slot.EndDate.Format(domain.DateLayout),
	)
}

func (e *OverlapConflictError) Unwrap() error {
	return ErrOverlapConflict
}

// validationError formats a validator failure as a validation error.
func validationError(err error) error {
	return fmt.Errorf("%w: %s", ErrValidation, err.Error())
}
