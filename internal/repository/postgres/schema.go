package postgres

import (
	"context"
	"database/sql"
)

// schema is idempotent and applied on startup.
const schema = `
CREATE TABLE IF NOT EXISTS bookings (
	id TEXT PRIMARY KEY,
	traveler_id TEXT NOT NULL,
	driver_id TEXT NOT NULL,
	vehicle_id TEXT NOT NULL,
	status TEXT NOT NULL,
	start_date DATE NOT NULL,
	end_date DATE NOT NULL,
	price_per_day NUMERIC(12, 2) NOT NULL,
	total_price NUMERIC(12, 2) NOT NULL,
	total_kms DOUBLE PRECISION NOT NULL DEFAULT 0,
	price_per_extra_km NUMERIC(12, 2) NOT NULL DEFAULT 0,
	commission_base_rate DOUBLE PRECISION NOT NULL,
	applied_discount_id TEXT,
	effective_commission_rate DOUBLE PRECISION NOT NULL,
	commission_amount NUMERIC(12, 2) NOT NULL,
	driver_earnings NUMERIC(12, 2) NOT NULL,
	offer_id TEXT,
	conversation_id TEXT,
	pickup_point TEXT NOT NULL DEFAULT '',
	drop_point TEXT NOT NULL DEFAULT '',
	flight_info TEXT NOT NULL DEFAULT '',
	special_requests TEXT NOT NULL DEFAULT '',
	cancelled_at TIMESTAMPTZ,
	penalty_amount NUMERIC(12, 2),
	refund_amount NUMERIC(12, 2),
	cancel_reason TEXT,
	version INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS bookings_offer_id_key ON bookings (offer_id) WHERE offer_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS bookings_status_dates_idx ON bookings (status, start_date, end_date);
CREATE INDEX IF NOT EXISTS bookings_driver_end_idx ON bookings (driver_id, end_date);
CREATE INDEX IF NOT EXISTS bookings_vehicle_idx ON bookings (vehicle_id, status);

CREATE TABLE IF NOT EXISTS commission_discounts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	discount_percent DOUBLE PRECISION NOT NULL CHECK (discount_percent >= 0 AND discount_percent <= 8),
	start_date DATE NOT NULL,
	end_date DATE NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CHECK (start_date <= end_date)
);

CREATE TABLE IF NOT EXISTS vehicle_availability (
	id TEXT PRIMARY KEY,
	vehicle_id TEXT NOT NULL,
	start_date DATE NOT NULL,
	end_date DATE NOT NULL,
	status TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS vehicle_availability_vehicle_idx ON vehicle_availability (vehicle_id, start_date);

CREATE TABLE IF NOT EXISTS driver_commissions (
	id TEXT PRIMARY KEY,
	driver_id TEXT NOT NULL,
	period TEXT NOT NULL,
	total_gross NUMERIC(12, 2) NOT NULL DEFAULT 0,
	total_commission NUMERIC(12, 2) NOT NULL DEFAULT 0,
	total_driver_earnings NUMERIC(12, 2) NOT NULL DEFAULT 0,
	booking_ids TEXT[] NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	payment_slip_url TEXT,
	payment_slip_uploaded_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (driver_id, period)
);
`

// Migrate creates the tables and indexes if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
