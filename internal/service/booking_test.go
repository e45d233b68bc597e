package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driverbook/internal/domain"
)

func directRequest(start, end time.Time) CreateBookingRequest {
	return CreateBookingRequest{
		TravelerID:  "traveler-1",
		DriverID:    "driver-1",
		VehicleID:   "vehicle-1",
		StartDate:   start,
		EndDate:     end,
		PricePerDay: 100,
	}
}

func acceptedOffer(offerID string) OfferAccepted {
	return OfferAccepted{
		OfferID:         offerID,
		ConversationID:  "conv-1",
		TravelerID:      "traveler-1",
		DriverID:        "driver-1",
		VehicleID:       "vehicle-1",
		StartDate:       "2024-06-15",
		EndDate:         "2024-06-18",
		TotalPrice:      2000,
		TotalKms:        450,
		PricePerExtraKm: 1.5,
	}
}

func TestBookingCreate_DirectBooking_PricesAtBaseRate(t *testing.T) {
	t.Parallel()
	env := newTestEnv(testNow)

	result, err := env.bookings.Create(context.Background(), directRequest(day(10), day(15)))
	require.NoError(t, err)

	b := result.Booking
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, domain.BookingStatusPending, b.Status)
	assert.Equal(t, 500.0, b.TotalPrice)
	assert.Equal(t, 0.08, b.CommissionBaseRateAtBooking)
	assert.Equal(t, 0.08, b.EffectiveCommissionRate)
	assert.Equal(t, 40.0, b.CommissionAmount)
	assert.Equal(t, 460.0, b.DriverEarnings)
	assert.Empty(t, b.AppliedDiscountID)
	assert.Equal(t, 1, b.Version)
	assert.Empty(t, result.Warnings)

	stored, err := env.bookingRepo.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.CommissionAmount, stored.CommissionAmount)
}

func TestBookingCreate_ActiveDiscountApplies(t *testing.T) {
	t.Parallel()
	env := newTestEnv(testNow)
	ctx := context.Background()

	require.NoError(t, env.discountRepo.Create(ctx, discount("june", 3, day(1), day(30), testNow)))

	result, err := env.bookings.CreateFromOffer(ctx, acceptedOffer("offer-1"))
	require.NoError(t, err)

	b := result.Booking
	assert.Equal(t, 0.05, b.EffectiveCommissionRate)
	assert.Equal(t, 100.0, b.CommissionAmount)
	assert.Equal(t, 1900.0, b.DriverEarnings)
	assert.Equal(t, "june", b.AppliedDiscountID)
	assert.Equal(t, "offer-1", b.OfferID)
	assert.Equal(t, "conv-1", b.ConversationID)
	assert.Zero(t, b.PricePerDay)
}

func TestBookingCreate_InvalidInput_Fails(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(*CreateBookingRequest)
		wantErr error
	}{
		{
			name:    "start in the past",
			mutate:  func(r *CreateBookingRequest) { r.StartDate = testNow.AddDate(0, 0, -1) },
			wantErr: ErrStartDateInPast,
		},
		{
			name:    "end before start",
			mutate:  func(r *CreateBookingRequest) { r.EndDate = day(9) },
			wantErr: ErrInvalidDateRange,
		},
		{
			name:    "same day",
			mutate:  func(r *CreateBookingRequest) { r.EndDate = r.StartDate },
			wantErr: ErrInvalidDateRange,
		},
		{
			name:    "no price",
			mutate:  func(r *CreateBookingRequest) { r.PricePerDay = 0 },
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "missing traveler",
			mutate:  func(r *CreateBookingRequest) { r.TravelerID = "" },
			wantErr: ErrValidation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(testNow)
			req := directRequest(day(10), day(15))
			tc.mutate(&req)

			_, err := env.bookings.Create(context.Background(), req)

			assert.ErrorIs(t, err, tc.wantErr)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Zero(t, env.bookingRepo.CreateCallCount)
		})
	}
}

func TestBookingCreateFromOffer_RepeatedEventIsIdempotent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(testNow)
	ctx := context.Background()

	first, err := env.bookings.CreateFromOffer(ctx, acceptedOffer("offer-1"))
	require.NoError(t, err)

	second, err := env.bookings.CreateFromOffer(ctx, acceptedOffer("offer-1"))
	require.NoError(t, err)

	assert.Equal(t, first.Booking.ID, second.Booking.ID)
	assert.EqualValues(t, 1, env.bookingRepo.CreateCallCount)
}

func TestBookingCreateFromOffer_ReplayByAnotherCaller_Fails(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(o *OfferAccepted)
		wantErr error
	}{
		{
			name:    "another traveler",
			mutate:  func(o *OfferAccepted) { o.TravelerID = "traveler-2"; o.TotalPrice = 1 },
			wantErr: ErrTravelerMismatch,
		},
		{
			name:    "same traveler with another price",
			mutate:  func(o *OfferAccepted) { o.TotalPrice = 1 },
			wantErr: ErrOfferTermsMismatch,
		},
		{
			name:    "same traveler with another vehicle",
			mutate:  func(o *OfferAccepted) { o.VehicleID = "vehicle-2" },
			wantErr: ErrOfferTermsMismatch,
		},
		{
			name:    "same traveler with other dates",
			mutate:  func(o *OfferAccepted) { o.EndDate = "2024-06-20" },
			wantErr: ErrOfferTermsMismatch,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(testNow)
			ctx := context.Background()

			first, err := env.bookings.CreateFromOffer(ctx, acceptedOffer("offer-1"))
			require.NoError(t, err)

			replay := acceptedOffer("offer-1")
			tc.mutate(&replay)

			result, err := env.bookings.CreateFromOffer(ctx, replay)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Nil(t, result)

			stored, err := env.bookingRepo.GetByID(ctx, first.Booking.ID)
			require.NoError(t, err)
			assert.Equal(t, "traveler-1", stored.TravelerID)
			assert.Equal(t, 2000.0, stored.TotalPrice)
			assert.EqualValues(t, 1, env.bookingRepo.CreateCallCount)
		})
	}
}

func TestBookingCreateFromOffer_BadDate_Fails(t *testing.T) {
	t.Parallel()
	env := newTestEnv(testNow)

	offer := acceptedOffer("offer-1")
	offer.StartDate = "15/06/2024"

	_, err := env.bookings.CreateFromOffer(context.Background(), offer)

	assert.ErrorIs(t, err, ErrValidation)
}

func TestBookingCreate_WarnsButDoesNotBlock(t *testing.T) {
	t.Parallel()
	env := newTestEnv(testNow)
	ctx := context.Background()

	_, err := env.availability.AddSlot(ctx, AddSlotRequest{
		VehicleID: "vehicle-1",
		StartDate: day(12),
		EndDate:   day(13),
		Status:    domain.SlotStatusUnavailable,
	})
	require.NoError(t, err)
	env.seedBooking("confirmed-1", "driver-1", domain.BookingStatusConfirmed, day(14), day(20), 600)

	result, err := env.bookings.Create(ctx, directRequest(day(10), day(15)))
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusPending, result.Booking.Status)
	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "unavailable")
	assert.Contains(t, result.Warnings[1], "confirmed-1")
}

func TestDriverRespond_Accept_ConfirmsAndFlagsOverlap(t *testing.T) {
	t.Parallel()
	env := newTestEnv(testNow)
	ctx := context.Background()

	env.seedBooking("pending-1", "driver-1", domain.BookingStatusPending, day(10), day(15), 500)
	env.seedBooking("confirmed-1", "driver-1", domain.BookingStatusConfirmed, day(14), day(20), 600)

	result, err := env.bookings.DriverRespond(ctx, RespondRequest{
		BookingID: "pending-1",
		DriverID:  "driver-1",
		Action:    DriverActionAccept,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusConfirmed, result.Booking.Status)
	assert.Equal(t, 2, result.Booking.Version)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "confirmed-1")
	assert.Contains(t, env.cache.invalidations(), "driver-1")
}

func TestDriverRespond_Rejections(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		status  domain.BookingStatus
		req     RespondRequest
		wantErr error
	}{
		{
			name:    "other driver",
			status:  domain.BookingStatusPending,
			req:     RespondRequest{BookingID: "b-1", DriverID: "driver-2", Action: DriverActionAccept},
			wantErr: ErrDriverNotAssigned,
		},
		{
			name:    "already confirmed",
			status:  domain.BookingStatusConfirmed,
			req:     RespondRequest{BookingID: "b-1", DriverID: "driver-1", Action: DriverActionReject},
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "already rejected",
			status:  domain.BookingStatusRejected,
			req:     RespondRequest{BookingID: "b-1", DriverID: "driver-1", Action: DriverActionAccept},
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "unknown action",
			status:  domain.BookingStatusPending,
			req:     RespondRequest{BookingID: "b-1", DriverID: "driver-1", Action: "maybe"},
			wantErr: ErrInvalidAction,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(testNow)
			env.seedBooking("b-1", "driver-1", tc.status, day(10), day(15), 500)

			_, err := env.bookings.DriverRespond(context.Background(), tc.req)

			assert.ErrorIs(t, err, tc.wantErr)
			assert.Zero(t, env.bookingRepo.UpdateCallCount)
		})
	}
}

func TestTravelerUpdate_NewDates_Reprices(t *testing.T) {
	t.Parallel()
	env := newTestEnv(testNow)
	ctx := context.Background()

	created, err := env.bookings.Create(ctx, directRequest(day(10), day(15)))
	require.NoError(t, err)

	require.NoError(t, env.discountRepo.Create(ctx, discount("june", 2, day(1), day(30), testNow)))

	start, end := day(21), day(23)
	pickup := "Airport"
	updated, err := env.bookings.TravelerUpdate(ctx, TravelerUpdateRequest{
		BookingID:   created.Booking.ID,
		TravelerID:  "traveler-1",
		StartDate:   &start,
		EndDate:     &end,
		PickupPoint: &pickup,
	})
	require.NoError(t, err)

	assert.Equal(t, 200.0, updated.TotalPrice)
	assert.Equal(t, 0.06, updated.EffectiveCommissionRate)
	assert.Equal(t, 12.0, updated.CommissionAmount)
	assert.Equal(t, 188.0, updated.DriverEarnings)
	assert.Equal(t, "june", updated.AppliedDiscountID)
	assert.Equal(t, "Airport", updated.PickupPoint)
	assert.Equal(t, 2, updated.Version)
}

func TestTravelerUpdate_OfferDatesAreFixed(t *testing.T) {
	t.Parallel()
	env := newTestEnv(testNow)
	ctx := context.Background()

	created, err := env.bookings.CreateFromOffer(ctx, acceptedOffer("offer-1"))
	require.NoError(t, err)

	end := day(19)
	_, err = env.bookings.TravelerUpdate(ctx, TravelerUpdateRequest{
		BookingID:  created.Booking.ID,
		TravelerID: "traveler-1",
		EndDate:    &end,
	})
	assert.ErrorIs(t, err, ErrOfferDatesImmutable)

	notes := "Child seat"
	updated, err := env.bookings.TravelerUpdate(ctx, TravelerUpdateRequest{
		BookingID:       created.Booking.ID,
		TravelerID:      "traveler-1",
		SpecialRequests: &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, "Child seat", updated.SpecialRequests)
	assert.Equal(t, 2000.0, updated.TotalPrice)
}

func TestTravelerUpdate_NotEditable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("trip started", func(t *testing.T) {
		env := newTestEnv(day(11))
		env.seedBooking("b-1", "driver-1", domain.BookingStatusConfirmed, day(10), day(15), 500)

		pickup := "Hotel"
		_, err := env.bookings.TravelerUpdate(ctx, TravelerUpdateRequest{BookingID: "b-1", TravelerID: "traveler-1", PickupPoint: &pickup})
		assert.ErrorIs(t, err, ErrBookingNotEditable)
	})

	t.Run("cancelled", func(t *testing.T) {
		env := newTestEnv(testNow)
		env.seedBooking("b-1", "driver-1", domain.BookingStatusCancelled, day(10), day(15), 500)

		pickup := "Hotel"
		_, err := env.bookings.TravelerUpdate(ctx, TravelerUpdateRequest{BookingID: "b-1", TravelerID: "traveler-1", PickupPoint: &pickup})
		assert.ErrorIs(t, err, ErrBookingNotEditable)
	})

	t.Run("other traveler", func(t *testing.T) {
		env := newTestEnv(testNow)
		env.seedBooking("b-1", "driver-1", domain.BookingStatusPending, day(10), day(15), 500)

		pickup := "Hotel"
		_, err := env.bookings.TravelerUpdate(ctx, TravelerUpdateRequest{BookingID: "b-1", TravelerID: "traveler-2", PickupPoint: &pickup})
		assert.ErrorIs(t, err, ErrTravelerMismatch)
	})
}

func TestTravelerCancel_RecordsPenaltyAndKeepsCommission(t *testing.T) {
	t.Parallel()
	env := newTestEnv(day(9))
	ctx := context.Background()

	env.seedBooking("b-1", "driver-1", domain.BookingStatusConfirmed, day(10), day(20), 1000)

	cancelled, err := env.bookings.TravelerCancel(ctx, CancelRequest{BookingID: "b-1", TravelerID: "traveler-1", Reason: "flight moved"})
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.Cancellation)
	assert.Equal(t, 500.0, cancelled.Cancellation.PenaltyAmount)
	assert.Equal(t, 500.0, cancelled.Cancellation.RefundAmount)
	assert.Equal(t, "flight moved", cancelled.Cancellation.Reason)
	assert.Equal(t, 80.0, cancelled.CommissionAmount)
	assert.Equal(t, 920.0, cancelled.DriverEarnings)

	_, err = env.bookings.TravelerCancel(ctx, CancelRequest{BookingID: "b-1", TravelerID: "traveler-1"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTravelerCancel_RejectedBooking_Fails(t *testing.T) {
	t.Parallel()
	env := newTestEnv(testNow)

	env.seedBooking("b-1", "driver-1", domain.BookingStatusRejected, day(10), day(20), 1000)

	_, err := env.bookings.TravelerCancel(context.Background(), CancelRequest{BookingID: "b-1", TravelerID: "traveler-1"})

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDriverRespond_ConcurrentWrite_ReturnsConflict(t *testing.T) {
	t.Parallel()
	env := newTestEnv(testNow)

	seeded := env.seedBooking("b-1", "driver-1", domain.BookingStatusPending, day(10), day(15), 500)

	// Another writer lands between our read and our write.
	env.bookingRepo.BeforeUpdate = func(b *domain.Booking) {
		bumped := *seeded
		bumped.Version = 2
		env.bookingRepo.Put(&bumped)
	}

	_, err := env.bookings.DriverRespond(context.Background(), RespondRequest{
		BookingID: "b-1",
		DriverID:  "driver-1",
		Action:    DriverActionAccept,
	})

	assert.ErrorIs(t, err, ErrConflict)
}

func TestBookingList_UnknownStatus_Fails(t *testing.T) {
	t.Parallel()
	env := newTestEnv(testNow)

	_, err := env.bookings.List(context.Background(), domain.BookingFilter{Status: "archived"})

	assert.ErrorIs(t, err, ErrValidation)
}
