package repository

import (
	"context"

	"driverbook/internal/domain"
)

// DiscountRepository defines the persistence operations for commission discounts.
type DiscountRepository interface {
	// Create persists a new discount.
	Create(ctx context.Context, discount *domain.CommissionDiscount) error

	// GetByID retrieves a discount by ID.
	GetByID(ctx context.Context, id string) (*domain.CommissionDiscount, error)

	// List retrieves all discounts, newest first.
	List(ctx context.Context) ([]*domain.CommissionDiscount, error)

	// Update updates an existing discount.
	Update(ctx context.Context, discount *domain.CommissionDiscount) error

	// Delete hard-deletes a discount.
	Delete(ctx context.Context, id string) error
}
