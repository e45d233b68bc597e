package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"driverbook/internal/domain"
	"driverbook/internal/repository"
)

const bookingColumns = `id, traveler_id, driver_id, vehicle_id, status, start_date, end_date,
	price_per_day, total_price, total_kms, price_per_extra_km,
	commission_base_rate, applied_discount_id, effective_commission_rate, commission_amount, driver_earnings,
	offer_id, conversation_id, pickup_point, drop_point, flight_info, special_requests,
	cancelled_at, penalty_amount, refund_amount, cancel_reason,
	version, created_at, updated_at`

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	query := `INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29)`

	args := bookingArgs(b)
	_, err := r.q.ExecContext(ctx, query, append([]any{b.ID}, args...)...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// GetByOfferID retrieves the booking created from an offer.
// Returns nil if no booking exists for the offer.
func (r *BookingRepository) GetByOfferID(ctx context.Context, offerID string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE offer_id = $1`

	b, err := scanBooking(r.q.QueryRowContext(ctx, query, offerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// List retrieves bookings matching the filter, newest first.
func (r *BookingRepository) List(ctx context.Context, filter domain.BookingFilter) ([]*domain.Booking, error) {
	var (
		conds []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("traveler_id", filter.TravelerID)
	add("driver_id", filter.DriverID)
	add("vehicle_id", filter.VehicleID)
	add("status", string(filter.Status))

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC LIMIT 500`

	return r.queryBookings(ctx, query, args...)
}

// Update writes the booking if its stored version equals expectedVersion.
func (r *BookingRepository) Update(ctx context.Context, b *domain.Booking, expectedVersion int) error {
	query := `
		UPDATE bookings
		SET traveler_id = $2, driver_id = $3, vehicle_id = $4, status = $5, start_date = $6, end_date = $7,
			price_per_day = $8, total_price = $9, total_kms = $10, price_per_extra_km = $11,
			commission_base_rate = $12, applied_discount_id = $13, effective_commission_rate = $14,
			commission_amount = $15, driver_earnings = $16, offer_id = $17, conversation_id = $18,
			pickup_point = $19, drop_point = $20, flight_info = $21, special_requests = $22,
			cancelled_at = $23, penalty_amount = $24, refund_amount = $25, cancel_reason = $26,
			version = $27, created_at = $28, updated_at = $29
		WHERE id = $1 AND version = $30
	`

	next := *b
	next.Version = expectedVersion + 1
	args := append([]any{b.ID}, bookingArgs(&next)...)
	args = append(args, expectedVersion)

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`, b.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrVersionConflict
	}

	b.Version = next.Version
	return nil
}

// ListRepriceable retrieves pending or confirmed bookings intersecting [from, to] that have not completed.
func (r *BookingRepository) ListRepriceable(ctx context.Context, from, to, now time.Time) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE status IN ($1, $2) AND start_date <= $3::date AND end_date >= $4::date AND end_date > $5::date
		ORDER BY start_date`

	return r.queryBookings(ctx, query,
		domain.BookingStatusPending, domain.BookingStatusConfirmed, sqlDate(to), sqlDate(from), sqlDate(now))
}

// ListConfirmedByVehicle retrieves confirmed bookings on a vehicle intersecting [from, to].
func (r *BookingRepository) ListConfirmedByVehicle(ctx context.Context, vehicleID string, from, to time.Time) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE vehicle_id = $1 AND status = $2 AND start_date <= $3::date AND end_date >= $4::date
		ORDER BY start_date`

	return r.queryBookings(ctx, query, vehicleID, domain.BookingStatusConfirmed, sqlDate(to), sqlDate(from))
}

// ListCompletedByDriver retrieves a driver's confirmed bookings ending in [from, to) and not after now.
func (r *BookingRepository) ListCompletedByDriver(ctx context.Context, driverID string, from, to, now time.Time) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE driver_id = $1 AND status = $2 AND end_date >= $3::date AND end_date < $4::date AND end_date <= $5::date
		ORDER BY end_date`

	return r.queryBookings(ctx, query, driverID, domain.BookingStatusConfirmed, sqlDate(from), sqlDate(to), sqlDate(now))
}

func (r *BookingRepository) queryBookings(ctx context.Context, query string, args ...any) ([]*domain.Booking, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

// bookingArgs returns the column values after id, in bookingColumns order.
func bookingArgs(b *domain.Booking) []any {
	var (
		cancelledAt   sql.NullTime
		penaltyAmount sql.NullFloat64
		refundAmount  sql.NullFloat64
		cancelReason  sql.NullString
	)
	if c := b.Cancellation; c != nil {
		cancelledAt = sql.NullTime{Time: c.CancelledAt, Valid: true}
		penaltyAmount = sql.NullFloat64{Float64: c.PenaltyAmount, Valid: true}
		refundAmount = sql.NullFloat64{Float64: c.RefundAmount, Valid: true}
		cancelReason = sql.NullString{String: c.Reason, Valid: c.Reason != ""}
	}

	return []any{
		b.TravelerID,
		b.DriverID,
		b.VehicleID,
		b.Status,
		b.StartDate,
		b.EndDate,
		b.PricePerDay,
		b.TotalPrice,
		b.TotalKms,
		b.PricePerExtraKm,
		b.CommissionBaseRateAtBooking,
		nullString(b.AppliedDiscountID),
		b.EffectiveCommissionRate,
		b.CommissionAmount,
		b.DriverEarnings,
		nullString(b.OfferID),
		nullString(b.ConversationID),
		b.PickupPoint,
		b.DropPoint,
		b.FlightInfo,
		b.SpecialRequests,
		cancelledAt,
		penaltyAmount,
		refundAmount,
		cancelReason,
		b.Version,
		b.CreatedAt,
		b.UpdatedAt,
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var (
		b                 domain.Booking
		appliedDiscountID sql.NullString
		offerID           sql.NullString
		conversationID    sql.NullString
		cancelledAt       sql.NullTime
		penaltyAmount     sql.NullFloat64
		refundAmount      sql.NullFloat64
		cancelReason      sql.NullString
	)

	err := row.Scan(
		&b.ID,
		&b.TravelerID,
		&b.DriverID,
		&b.VehicleID,
		&b.Status,
		&b.StartDate,
		&b.EndDate,
		&b.PricePerDay,
		&b.TotalPrice,
		&b.TotalKms,
		&b.PricePerExtraKm,
		&b.CommissionBaseRateAtBooking,
		&appliedDiscountID,
		&b.EffectiveCommissionRate,
		&b.CommissionAmount,
		&b.DriverEarnings,
		&offerID,
		&conversationID,
		&b.PickupPoint,
		&b.DropPoint,
		&b.FlightInfo,
		&b.SpecialRequests,
		&cancelledAt,
		&penaltyAmount,
		&refundAmount,
		&cancelReason,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.AppliedDiscountID = appliedDiscountID.String
	b.OfferID = offerID.String
	b.ConversationID = conversationID.String
	b.StartDate = domain.DateOf(b.StartDate)
	b.EndDate = domain.DateOf(b.EndDate)

	if cancelledAt.Valid {
		b.Cancellation = &domain.Cancellation{
			CancelledAt:   cancelledAt.Time,
			PenaltyAmount: penaltyAmount.Float64,
			RefundAmount:  refundAmount.Float64,
			Reason:        cancelReason.String,
		}
	}

	return &b, nil
}

// sqlDate renders the UTC calendar day of t so DATE comparisons do not depend on the session time zone.
func sqlDate(t time.Time) string {
	return domain.DateOf(t).Format(domain.DateLayout)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Ensure BookingRepository implements repository.BookingRepository.
var _ repository.BookingRepository = (*BookingRepository)(nil)
