package service

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"driverbook/internal/domain"
	"driverbook/internal/repository/memory"
)

// testNow is the fixed clock used across the service tests: 2024-06-01 09:00 UTC.
var testNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// fakeCache records invalidations and serves whatever was stored.
type fakeCache struct {
	mu          sync.Mutex
	histories   map[string][]*domain.EarningsStatement
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{histories: make(map[string][]*domain.EarningsStatement)}
}

func (c *fakeCache) GetEarningsHistory(ctx context.Context, driverID string) ([]*domain.EarningsStatement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.histories[driverID], nil
}

func (c *fakeCache) SetEarningsHistory(ctx context.Context, driverID string, history []*domain.EarningsStatement) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.histories[driverID] = history
	return nil
}

func (c *fakeCache) InvalidateEarningsHistory(ctx context.Context, driverIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range driverIDs {
		delete(c.histories, id)
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}

func (c *fakeCache) invalidations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.invalidated...)
}

// fakeLocker hands out a lock held by someone else until released.
type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	acquired int
	released int
}

func (l *fakeLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return "", nil
	}
	l.held = true
	l.acquired++
	return "token", nil
}

func (l *fakeLocker) Release(ctx context.Context, name, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.released++
	return nil
}

// fakeSlipStorage keeps uploaded bodies in memory.
type fakeSlipStorage struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (s *fakeSlipStorage) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.keys = append(s.keys, key)
	s.bodies = append(s.bodies, data)
	return "https://cdn.example.com/" + key, nil
}

// testEnv wires every service against the in-memory repositories.
type testEnv struct {
	bookingRepo      *memory.BookingRepository
	discountRepo     *memory.DiscountRepository
	availabilityRepo *memory.AvailabilityRepository
	commissionRepo   *memory.CommissionRepository
	cache            *fakeCache
	slips            *fakeSlipStorage

	availability *AvailabilityService
	bookings     *BookingService
	discounts    *DiscountService
	earnings     *EarningsService
}

func newTestEnv(now time.Time) *testEnv {
	env := &testEnv{
		bookingRepo:      memory.NewBookingRepository(),
		discountRepo:     memory.NewDiscountRepository(),
		availabilityRepo: memory.NewAvailabilityRepository(),
		commissionRepo:   memory.NewCommissionRepository(),
		cache:            newFakeCache(),
		slips:            &fakeSlipStorage{},
	}

	logger := zap.NewNop()
	notifications := NewNotificationService(logger)

	env.availability = NewAvailabilityService(env.availabilityRepo, nil, logger)
	env.bookings = NewBookingService(env.bookingRepo, env.discountRepo, env.availability, notifications, env.cache, nil, logger, DefaultBaseCommissionRate)
	env.discounts = NewDiscountService(env.discountRepo, env.bookingRepo, nil, env.cache, notifications, nil, logger, time.Minute, time.Second)
	env.earnings = NewEarningsService(env.bookingRepo, env.discountRepo, env.commissionRepo, env.slips, env.cache, logger, DefaultStatementDueDay)

	env.setNow(now)
	return env
}

func (e *testEnv) setNow(now time.Time) {
	clock := fixedClock(now)
	e.availability.now = clock
	e.bookings.now = clock
	e.discounts.now = clock
	e.earnings.now = clock
}

// seedBooking stores a priced booking directly, bypassing creation checks.
func (e *testEnv) seedBooking(id, driverID string, status domain.BookingStatus, start, end time.Time, total float64) *domain.Booking {
	b := &domain.Booking{
		ID:                          id,
		TravelerID:                  "traveler-1",
		DriverID:                    driverID,
		VehicleID:                   "vehicle-1",
		Status:                      status,
		StartDate:                   start,
		EndDate:                     end,
		TotalPrice:                  total,
		CommissionBaseRateAtBooking: DefaultBaseCommissionRate,
		EffectiveCommissionRate:     DefaultBaseCommissionRate,
		CommissionAmount:            domain.RoundMoney(total * DefaultBaseCommissionRate),
		DriverEarnings:              domain.RoundMoney(total - total*DefaultBaseCommissionRate),
		Version:                     1,
		CreatedAt:                   testNow,
		UpdatedAt:                   testNow,
	}
	e.bookingRepo.Put(b)
	return b
}
