package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"driverbook/internal/domain"
	"driverbook/internal/repository"
)

// CommissionRepository is a PostgreSQL implementation of repository.CommissionRepository.
type CommissionRepository struct {
	q Querier
}

// NewCommissionRepository creates a new PostgreSQL commission repository.
func NewCommissionRepository(db *sql.DB) *CommissionRepository {
	return &CommissionRepository{q: db}
}

const commissionColumns = `id, driver_id, period, total_gross, total_commission, total_driver_earnings,
	booking_ids, status, payment_slip_url, payment_slip_uploaded_at, created_at, updated_at`

// GetOrCreate retrieves the record for (driverID, period), inserting a pending one if absent.
func (r *CommissionRepository) GetOrCreate(ctx context.Context, driverID, period string) (*domain.DriverCommission, error) {
	now := time.Now().UTC()
	insert := `
		INSERT INTO driver_commissions (id, driver_id, period, status, booking_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '{}', $5, $5)
		ON CONFLICT (driver_id, period) DO NOTHING
	`
	if _, err := r.q.ExecContext(ctx, insert, uuid.New().String(), driverID, period, domain.CommissionStatusPending, now); err != nil {
		return nil, err
	}

	query := `SELECT ` + commissionColumns + ` FROM driver_commissions WHERE driver_id = $1 AND period = $2`
	return scanCommission(r.q.QueryRowContext(ctx, query, driverID, period))
}

// GetByID retrieves a record by ID.
func (r *CommissionRepository) GetByID(ctx context.Context, id string) (*domain.DriverCommission, error) {
	query := `SELECT ` + commissionColumns + ` FROM driver_commissions WHERE id = $1`

	c, err := scanCommission(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// UpdateTotals stores recomputed totals without touching status or slip fields.
func (r *CommissionRepository) UpdateTotals(ctx context.Context, c *domain.DriverCommission) error {
	query := `
		UPDATE driver_commissions
		SET total_gross = $1, total_commission = $2, total_driver_earnings = $3, booking_ids = $4, updated_at = $5
		WHERE id = $6
	`

	result, err := r.q.ExecContext(ctx, query,
		c.TotalGross,
		c.TotalCommission,
		c.TotalDriverEarnings,
		pq.Array(c.BookingIDs),
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		return err
	}

	return expectOneRow(result)
}

// UpdateSlip attaches payment slip metadata.
func (r *CommissionRepository) UpdateSlip(ctx context.Context, id, slipURL string, uploadedAt time.Time) error {
	query := `
		UPDATE driver_commissions
		SET payment_slip_url = $1, payment_slip_uploaded_at = $2, updated_at = $2
		WHERE id = $3
	`

	result, err := r.q.ExecContext(ctx, query, slipURL, uploadedAt, id)
	if err != nil {
		return err
	}

	return expectOneRow(result)
}

// UpdateStatus sets the settlement status.
func (r *CommissionRepository) UpdateStatus(ctx context.Context, id string, status domain.CommissionStatus) error {
	query := `UPDATE driver_commissions SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.q.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}

	return expectOneRow(result)
}

func scanCommission(row rowScanner) (*domain.DriverCommission, error) {
	var (
		c          domain.DriverCommission
		slipURL    sql.NullString
		uploadedAt sql.NullTime
	)

	if err := row.Scan(
		&c.ID,
		&c.DriverID,
		&c.Period,
		&c.TotalGross,
		&c.TotalCommission,
		&c.TotalDriverEarnings,
		pq.Array(&c.BookingIDs),
		&c.Status,
		&slipURL,
		&uploadedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}

	c.PaymentSlipURL = slipURL.String
	if uploadedAt.Valid {
		c.PaymentSlipUploadedAt = uploadedAt.Time
	}

	return &c, nil
}

// Ensure CommissionRepository implements repository.CommissionRepository.
var _ repository.CommissionRepository = (*CommissionRepository)(nil)
