package postgres

import (
	"context"
	"database/sql"
	"errors"

	"driverbook/internal/domain"
	"driverbook/internal/repository"
)

// DiscountRepository is a PostgreSQL implementation of repository.DiscountRepository.
type DiscountRepository struct {
	q Querier
}

// NewDiscountRepository creates a new PostgreSQL discount repository.
func NewDiscountRepository(db *sql.DB) *DiscountRepository {
	return &DiscountRepository{q: db}
}

// Create persists a new discount.
func (r *DiscountRepository) Create(ctx context.Context, d *domain.CommissionDiscount) error {
	query := `
		INSERT INTO commission_discounts (id, name, description, discount_percent, start_date, end_date, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		d.ID,
		d.Name,
		d.Description,
		d.DiscountPercent,
		d.StartDate,
		d.EndDate,
		d.Active,
		d.CreatedAt,
		d.UpdatedAt,
	)

	return err
}

// GetByID retrieves a discount by ID.
func (r *DiscountRepository) GetByID(ctx context.Context, id string) (*domain.CommissionDiscount, error) {
	query := `
		SELECT id, name, description, discount_percent, start_date, end_date, active, created_at, updated_at
		FROM commission_discounts WHERE id = $1
	`

	d, err := scanDiscount(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// List retrieves all discounts, newest first.
func (r *DiscountRepository) List(ctx context.Context) ([]*domain.CommissionDiscount, error) {
	query := `
		SELECT id, name, description, discount_percent, start_date, end_date, active, created_at, updated_at
		FROM commission_discounts ORDER BY created_at DESC
	`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var discounts []*domain.CommissionDiscount
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, err
		}
		discounts = append(discounts, d)
	}

	return discounts, rows.Err()
}

// Update updates an existing discount.
func (r *DiscountRepository) Update(ctx context.Context, d *domain.CommissionDiscount) error {
	query := `
		UPDATE commission_discounts
		SET name = $1, description = $2, discount_percent = $3, start_date = $4, end_date = $5, active = $6, updated_at = $7
		WHERE id = $8
	`

	result, err := r.q.ExecContext(ctx, query,
		d.Name,
		d.Description,
		d.DiscountPercent,
		d.StartDate,
		d.EndDate,
		d.Active,
		d.UpdatedAt,
		d.ID,
	)
	if err != nil {
		return err
	}

	return expectOneRow(result)
}

// Delete hard-deletes a discount.
func (r *DiscountRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM commission_discounts WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return expectOneRow(result)
}

func scanDiscount(row rowScanner) (*domain.CommissionDiscount, error) {
	var d domain.CommissionDiscount
	if err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Description,
		&d.DiscountPercent,
		&d.StartDate,
		&d.EndDate,
		&d.Active,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.StartDate = domain.DateOf(d.StartDate)
	d.EndDate = domain.DateOf(d.EndDate)
	return &d, nil
}

// expectOneRow maps an update or delete that touched nothing to ErrNotFound.
func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Ensure DiscountRepository implements repository.DiscountRepository.
var _ repository.DiscountRepository = (*DiscountRepository)(nil)
