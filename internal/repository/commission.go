package repository

import (
	"context"
	"time"

	"driverbook/internal/domain"
)

// CommissionRepository defines the persistence operations for monthly driver statements.
type CommissionRepository interface {
	// GetOrCreate retrieves the record for (driverID, period), inserting a pending one if absent.
	GetOrCreate(ctx context.Context, driverID, period string) (*domain.DriverCommission, error)

	// GetByID retrieves a record by ID.
	GetByID(ctx context.Context, id string) (*domain.DriverCommission, error)

	// UpdateTotals stores recomputed totals without touching status or slip fields.
	UpdateTotals(ctx context.Context, commission *domain.DriverCommission) error

	// UpdateSlip attaches payment slip metadata.
	UpdateSlip(ctx context.Context, id, slipURL string, uploadedAt time.Time) error

	// UpdateStatus sets the settlement status.
	UpdateStatus(ctx context.Context, id string, status domain.CommissionStatus) error
}
