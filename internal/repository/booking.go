package repository

import (
	"context"
	"time"

	"driverbook/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking. Returns ErrDuplicate when the offer was already booked.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetByOfferID retrieves the booking created from an offer.
	// Returns nil if no booking exists for the offer.
	GetByOfferID(ctx context.Context, offerID string) (*domain.Booking, error)

	// List retrieves bookings matching the filter, newest first.
	List(ctx context.Context, filter domain.BookingFilter) ([]*domain.Booking, error)

	// Update writes the booking if its stored version equals expectedVersion,
	// then bumps booking.Version. Returns ErrVersionConflict otherwise.
	Update(ctx context.Context, booking *domain.Booking, expectedVersion int) error

	// ListRepriceable retrieves pending or confirmed bookings intersecting
	// [from, to] whose end date is after now.
	ListRepriceable(ctx context.Context, from, to, now time.Time) ([]*domain.Booking, error)

	// ListConfirmedByVehicle retrieves confirmed bookings on a vehicle intersecting [from, to].
	ListConfirmedByVehicle(ctx context.Context, vehicleID string, from, to time.Time) ([]*domain.Booking, error)

	// ListCompletedByDriver retrieves confirmed bookings of a driver whose end date
	// lies in [from, to) and is not after now.
	ListCompletedByDriver(ctx context.Context, driverID string, from, to, now time.Time) ([]*domain.Booking, error)
}
