package repository

import (
	"context"

	"driverbook/internal/domain"
)

// AvailabilityRepository defines the persistence operations for vehicle calendar slots.
type AvailabilityRepository interface {
	// Create persists a new slot.
	Create(ctx context.Context, slot *domain.VehicleAvailability) error

	// GetByID retrieves a slot by ID.
	GetByID(ctx context.Context, id string) (*domain.VehicleAvailability, error)

	// ListByVehicle retrieves a vehicle's slots ordered by start date.
	ListByVehicle(ctx context.Context, vehicleID string) ([]*domain.VehicleAvailability, error)

	// Update updates an existing slot.
	Update(ctx context.Context, slot *domain.VehicleAvailability) error

	// Delete removes a slot.
	Delete(ctx context.Context, id string) error
}
