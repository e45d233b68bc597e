package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driverbook/internal/domain"
	"driverbook/internal/repository"
)

func newBooking(id string) *domain.Booking {
	return &domain.Booking{
		ID:         id,
		TravelerID: "traveler-1",
		DriverID:   "driver-1",
		VehicleID:  "vehicle-1",
		Status:     domain.BookingStatusPending,
		StartDate:  time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		TotalPrice: 500,
		Version:    1,
	}
}

func TestBookingRepository_UpdateHonoursVersion(t *testing.T) {
	t.Parallel()
	repo := NewBookingRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newBooking("b-1")))

	first, err := repo.GetByID(ctx, "b-1")
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, "b-1")
	require.NoError(t, err)

	first.Status = domain.BookingStatusConfirmed
	require.NoError(t, repo.Update(ctx, first, first.Version))
	assert.Equal(t, 2, first.Version)

	second.Status = domain.BookingStatusCancelled
	err = repo.Update(ctx, second, second.Version)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	stored, err := repo.GetByID(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, stored.Status)
}

func TestBookingRepository_DuplicateOffer(t *testing.T) {
	t.Parallel()
	repo := NewBookingRepository()
	ctx := context.Background()

	a := newBooking("a")
	a.OfferID = "offer-1"
	b := newBooking("b")
	b.OfferID = "offer-1"

	require.NoError(t, repo.Create(ctx, a))
	assert.ErrorIs(t, repo.Create(ctx, b), repository.ErrDuplicate)

	got, err := repo.GetByOfferID(ctx, "offer-1")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	missing, err := repo.GetByOfferID(ctx, "offer-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestBookingRepository_ReadsAreCopies(t *testing.T) {
	t.Parallel()
	repo := NewBookingRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newBooking("b-1")))

	got, err := repo.GetByID(ctx, "b-1")
	require.NoError(t, err)
	got.TotalPrice = 1

	again, err := repo.GetByID(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, 500.0, again.TotalPrice)
}

func TestBookingRepository_ListRepriceable(t *testing.T) {
	t.Parallel()
	repo := NewBookingRepository()
	ctx := context.Background()
	now := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)

	live := newBooking("live")
	ended := newBooking("ended")
	ended.EndDate = time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
	rejected := newBooking("rejected")
	rejected.Status = domain.BookingStatusRejected
	outside := newBooking("outside")
	outside.StartDate = time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)
	outside.EndDate = time.Date(2024, 7, 12, 0, 0, 0, 0, time.UTC)

	for _, b := range []*domain.Booking{live, ended, rejected, outside} {
		repo.Put(b)
	}

	got, err := repo.ListRepriceable(ctx, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), now)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "live", got[0].ID)
}
