package postgres

import (
	"context"
	"database/sql"
	"errors"

	"driverbook/internal/domain"
	"driverbook/internal/repository"
)

// AvailabilityRepository is a PostgreSQL implementation of repository.AvailabilityRepository.
type AvailabilityRepository struct {
	q Querier
}

// NewAvailabilityRepository creates a new PostgreSQL availability repository.
func NewAvailabilityRepository(db *sql.DB) *AvailabilityRepository {
	return &AvailabilityRepository{q: db}
}

// Create persists a new slot.
func (r *AvailabilityRepository) Create(ctx context.Context, slot *domain.VehicleAvailability) error {
	query := `
		INSERT INTO vehicle_availability (id, vehicle_id, start_date, end_date, status, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		slot.ID,
		slot.VehicleID,
		slot.StartDate,
		slot.EndDate,
		slot.Status,
		slot.Note,
		slot.CreatedAt,
		slot.UpdatedAt,
	)

	return err
}

// GetByID retrieves a slot by ID.
func (r *AvailabilityRepository) GetByID(ctx context.Context, id string) (*domain.VehicleAvailability, error) {
	query := `
		SELECT id, vehicle_id, start_date, end_date, status, note, created_at, updated_at
		FROM vehicle_availability WHERE id = $1
	`

	slot, err := scanSlot(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return slot, nil
}

// ListByVehicle retrieves a vehicle's slots ordered by start date.
func (r *AvailabilityRepository) ListByVehicle(ctx context.Context, vehicleID string) ([]*domain.VehicleAvailability, error) {
	query := `
		SELECT id, vehicle_id, start_date, end_date, status, note, created_at, updated_at
		FROM vehicle_availability WHERE vehicle_id = $1 ORDER BY start_date
	`

	rows, err := r.q.QueryContext(ctx, query, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []*domain.VehicleAvailability
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

// Update updates an existing slot.
func (r *AvailabilityRepository) Update(ctx context.Context, slot *domain.VehicleAvailability) error {
	query := `
		UPDATE vehicle_availability
		SET start_date = $1, end_date = $2, status = $3, note = $4, updated_at = $5
		WHERE id = $6
	`

	result, err := r.q.ExecContext(ctx, query,
		slot.StartDate,
		slot.EndDate,
		slot.Status,
		slot.Note,
		slot.UpdatedAt,
		slot.ID,
	)
	if err != nil {
		return err
	}

	return expectOneRow(result)
}

// Delete removes a slot.
func (r *AvailabilityRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM vehicle_availability WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return expectOneRow(result)
}

func scanSlot(row rowScanner) (*domain.VehicleAvailability, error) {
	var slot domain.VehicleAvailability
	if err := row.Scan(
		&slot.ID,
		&slot.VehicleID,
		&slot.StartDate,
		&slot.EndDate,
		&slot.Status,
		&slot.Note,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	); err != nil {
		return nil, err
	}
	slot.StartDate = domain.DateOf(slot.StartDate)
	slot.EndDate = domain.DateOf(slot.EndDate)
	return &slot, nil
}

// Ensure AvailabilityRepository implements repository.AvailabilityRepository.
var _ repository.AvailabilityRepository = (*AvailabilityRepository)(nil)
