package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"driverbook/internal/domain"
	"driverbook/internal/middleware"
	"driverbook/internal/repository/memory"
	"driverbook/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSlipStorage struct{}

func (stubSlipStorage) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	return "https://slips.example.com/" + key, nil
}

type testServer struct {
	router         *gin.Engine
	bookingRepo    *memory.BookingRepository
	commissionRepo *memory.CommissionRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := zap.NewNop()
	bookingRepo := memory.NewBookingRepository()
	discountRepo := memory.NewDiscountRepository()
	commissionRepo := memory.NewCommissionRepository()
	notifications := service.NewNotificationService(logger)

	availabilityService := service.NewAvailabilityService(memory.NewAvailabilityRepository(), nil, logger)
	bookingService := service.NewBookingService(bookingRepo, discountRepo, availabilityService, notifications, nil, nil, logger, 0.08)
	discountService := service.NewDiscountService(discountRepo, bookingRepo, nil, nil, notifications, nil, logger, time.Minute, time.Second)
	earningsService := service.NewEarningsService(bookingRepo, discountRepo, commissionRepo, stubSlipStorage{}, nil, logger, 5)

	bookings := NewBookingHandler(bookingService)
	discounts := NewDiscountHandler(discountService)
	availability := NewAvailabilityHandler(availabilityService)
	earnings := NewEarningsHandler(earningsService)

	r := gin.New()
	v1 := r.Group("/v1", middleware.ActorMiddleware())
	v1.POST("/bookings", bookings.CreateBooking)
	v1.GET("/bookings/:id", bookings.GetBooking)
	v1.POST("/bookings/:id/respond", bookings.RespondToBooking)
	v1.POST("/bookings/:id/cancel", bookings.CancelBooking)
	v1.POST("/offers/accepted", bookings.AcceptOffer)
	v1.POST("/vehicles/:id/availability", availability.AddSlot)
	v1.GET("/vehicles/:id/availability/check", availability.CheckAvailability)
	v1.GET("/drivers/:id/earnings", earnings.GetSummary)
	v1.POST("/commissions/:id/slip", earnings.UploadSlip)
	v1.POST("/admin/discounts", discounts.CreateDiscount)
	v1.PATCH("/admin/discounts/:id/active", discounts.SetDiscountActive)

	return &testServer{router: r, bookingRepo: bookingRepo, commissionRepo: commissionRepo}
}

func (s *testServer) do(t *testing.T, method, path, role, actorID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Role", role)
	req.Header.Set("X-Actor-ID", actorID)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func dateFromToday(days int) string {
	return domain.DateOf(time.Now()).AddDate(0, 0, days).Format(domain.DateLayout)
}

func createBooking(t *testing.T, s *testServer) BookingResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/bookings", "traveler", "traveler-1", CreateBookingRequest{
		DriverID:    "driver-1",
		VehicleID:   "vehicle-1",
		StartDate:   dateFromToday(10),
		EndDate:     dateFromToday(14),
		PricePerDay: 500,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[BookingResponse](t, w)
}

func TestCreateBooking_Returns201WithPricing(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	b := createBooking(t, s)

	assert.Equal(t, "pending", b.Status)
	assert.Equal(t, "traveler-1", b.TravelerID)
	assert.Equal(t, 4, b.Days)
	assert.Equal(t, 2000.0, b.TotalPrice)
	assert.Equal(t, 160.0, b.CommissionAmount)
	assert.Equal(t, 1840.0, b.DriverEarnings)
	assert.Equal(t, 0.0, b.CommissionSaved)
}

func TestCreateBooking_BadInput_Returns400(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/bookings", "traveler", "traveler-1", CreateBookingRequest{
		DriverID:    "driver-1",
		VehicleID:   "vehicle-1",
		StartDate:   "next week",
		EndDate:     dateFromToday(14),
		PricePerDay: 500,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/bookings", "traveler", "traveler-1", CreateBookingRequest{
		DriverID:    "driver-1",
		VehicleID:   "vehicle-1",
		StartDate:   dateFromToday(-3),
		EndDate:     dateFromToday(2),
		PricePerDay: 500,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Error, "past")
}

func TestDiscountLifecycle_RepricesBookingsOverHTTP(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	booking := createBooking(t, s)

	w := s.do(t, http.MethodPost, "/v1/admin/discounts", "admin", "admin-1", DiscountRequest{
		Name:            "Launch",
		DiscountPercent: 3,
		StartDate:       dateFromToday(0),
		EndDate:         dateFromToday(30),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[DiscountMutationResponse](t, w)
	assert.Equal(t, "active", created.Discount.Status)
	assert.Equal(t, 1, created.RecalculatedBookings)

	w = s.do(t, http.MethodGet, "/v1/bookings/"+booking.ID, "traveler", "traveler-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[BookingResponse](t, w)
	assert.Equal(t, 100.0, got.CommissionAmount)
	assert.Equal(t, 60.0, got.CommissionSaved)
	assert.Equal(t, created.Discount.ID, got.AppliedDiscountID)

	w = s.do(t, http.MethodPatch, "/v1/admin/discounts/"+created.Discount.ID+"/active", "admin", "admin-1", SetActiveRequest{Active: new(bool)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	deactivated := decode[DiscountMutationResponse](t, w)
	assert.Equal(t, "disabled", deactivated.Discount.Status)
	assert.Equal(t, 1, deactivated.RecalculatedBookings)

	w = s.do(t, http.MethodGet, "/v1/bookings/"+booking.ID, "driver", "driver-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 160.0, decode[BookingResponse](t, w).CommissionAmount)
}

func TestCreateDiscount_PercentOutOfRange_Returns400(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/admin/discounts", "admin", "admin-1", DiscountRequest{
		Name:            "Too generous",
		DiscountPercent: 12,
		StartDate:       dateFromToday(0),
		EndDate:         dateFromToday(30),
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBooking_OtherTraveler_Returns403(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	booking := createBooking(t, s)

	w := s.do(t, http.MethodGet, "/v1/bookings/"+booking.ID, "traveler", "traveler-2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/v1/bookings/missing", "admin", "admin-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRespondToBooking_StateMachineOverHTTP(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	booking := createBooking(t, s)

	w := s.do(t, http.MethodPost, "/v1/bookings/"+booking.ID+"/respond", "driver", "driver-2", RespondRequest{Action: "accept"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/v1/bookings/"+booking.ID+"/respond", "driver", "driver-1", RespondRequest{Action: "reject"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rejected", decode[BookingResponse](t, w).Status)

	w = s.do(t, http.MethodPost, "/v1/bookings/"+booking.ID+"/cancel", "traveler", "traveler-1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelBooking_FreeWindow(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	booking := createBooking(t, s)

	w := s.do(t, http.MethodPost, "/v1/bookings/"+booking.ID+"/cancel", "traveler", "traveler-1", CancelBookingRequest{Reason: "changed plans"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := decode[BookingResponse](t, w)
	assert.Equal(t, "cancelled", got.Status)
	require.NotNil(t, got.Cancellation)
	assert.Equal(t, 0.0, got.Cancellation.PenaltyAmount)
	assert.Equal(t, 2000.0, got.Cancellation.RefundAmount)
}

func TestAcceptOffer_IsIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	offer := service.OfferAccepted{
		OfferID:    "offer-9",
		DriverID:   "driver-1",
		VehicleID:  "vehicle-1",
		StartDate:  dateFromToday(5),
		EndDate:    dateFromToday(8),
		TotalPrice: 1200,
	}

	w := s.do(t, http.MethodPost, "/v1/offers/accepted", "traveler", "traveler-1", offer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[BookingResponse](t, w)

	w = s.do(t, http.MethodPost, "/v1/offers/accepted", "traveler", "traveler-1", offer)
	require.Equal(t, http.StatusCreated, w.Code)
	second := decode[BookingResponse](t, w)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "traveler-1", first.TravelerID)
	assert.Equal(t, "offer-9", first.OfferID)
}

func TestAcceptOffer_ReplayByAnotherTraveler_Returns403(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	offer := service.OfferAccepted{
		OfferID:    "offer-10",
		DriverID:   "driver-1",
		VehicleID:  "vehicle-1",
		StartDate:  dateFromToday(5),
		EndDate:    dateFromToday(8),
		TotalPrice: 1200,
	}

	w := s.do(t, http.MethodPost, "/v1/offers/accepted", "traveler", "traveler-1", offer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	owned := decode[BookingResponse](t, w)

	offer.TotalPrice = 1
	w = s.do(t, http.MethodPost, "/v1/offers/accepted", "traveler", "traveler-2", offer)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), owned.ID)

	w = s.do(t, http.MethodPost, "/v1/offers/accepted", "traveler", "traveler-1", offer)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/v1/bookings/"+owned.ID, "traveler", "traveler-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1200.0, decode[BookingResponse](t, w).TotalPrice)
}

func TestAddSlot_Conflict_Returns409WithSlot(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/vehicles/vehicle-1/availability", "driver", "driver-1", SlotRequest{
		StartDate: dateFromToday(5),
		EndDate:   dateFromToday(10),
		Status:    "available",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[SlotResponse](t, w)

	w = s.do(t, http.MethodPost, "/v1/vehicles/vehicle-1/availability", "driver", "driver-1", SlotRequest{
		StartDate: dateFromToday(7),
		EndDate:   dateFromToday(12),
		Status:    "unavailable",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	conflict := decode[ConflictResponse](t, w)
	require.NotNil(t, conflict.Conflicting)
	assert.Equal(t, first.ID, conflict.Conflicting.ID)

	w = s.do(t, http.MethodGet, "/v1/vehicles/vehicle-1/availability/check?start="+dateFromToday(6)+"&end="+dateFromToday(7), "traveler", "traveler-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[AvailabilityCheckResponse](t, w).Available)
}

func TestEarnings_SummaryAndSlipUpload(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	today := domain.DateOf(time.Now())
	periodStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	s.bookingRepo.Put(&domain.Booking{
		ID:                          "done-1",
		TravelerID:                  "traveler-1",
		DriverID:                    "driver-1",
		VehicleID:                   "vehicle-1",
		Status:                      domain.BookingStatusConfirmed,
		StartDate:                   periodStart.AddDate(0, 0, 2),
		EndDate:                     periodStart.AddDate(0, 0, 5),
		TotalPrice:                  1500,
		CommissionBaseRateAtBooking: 0.08,
		EffectiveCommissionRate:     0.08,
		CommissionAmount:            120,
		DriverEarnings:              1380,
		Version:                     1,
	})
	period := periodStart.Format(domain.PeriodLayout)

	w := s.do(t, http.MethodGet, "/v1/drivers/driver-2/earnings?period="+period, "driver", "driver-1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/v1/drivers/driver-1/earnings?period="+period, "driver", "driver-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	statement := decode[StatementResponse](t, w)
	assert.Equal(t, 1500.0, statement.TotalGross)
	assert.Equal(t, 120.0, statement.TotalCommission)
	assert.Equal(t, 1380.0, statement.TotalDriverEarnings)
	assert.Equal(t, []string{"done-1"}, statement.BookingIDs)
	assert.Equal(t, "pending", statement.Status)
	assert.Equal(t, periodStart.AddDate(0, 1, 4).Format(domain.DateLayout), statement.DueDate)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "slip.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/commissions/"+statement.ID+"/slip", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Actor-Role", "driver")
	req.Header.Set("X-Actor-ID", "driver-1")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	record := decode[CommissionResponse](t, rec)
	assert.True(t, strings.HasPrefix(record.PaymentSlipURL, "https://slips.example.com/payment-slips/driver-1/"+period+"/"))
	assert.NotEmpty(t, record.PaymentSlipUploadedAt)
	assert.Equal(t, "pending", record.Status)
}

func TestEarnings_BadPeriod_Returns400(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/v1/drivers/driver-1/earnings?period=June", "admin", "admin-1", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
