// Package memory provides thread-safe in-memory repositories. They honour the
// same contracts as the PostgreSQL repositories, including compare-and-set on
// booking versions, and back the test suites and STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"driverbook/internal/domain"
	"driverbook/internal/repository"
)

// BookingRepository is an in-memory implementation of repository.BookingRepository.
type BookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	// UpdateErrors fails Update for specific booking IDs.
	UpdateErrors map[string]error
	// BeforeUpdate runs before the version check, outside the lock.
	BeforeUpdate func(b *domain.Booking)
}

// NewBookingRepository creates an empty booking repository.
func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		bookings:     make(map[string]*domain.Booking),
		UpdateErrors: make(map[string]error),
	}
}

func (m *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookings[b.ID]; ok {
		return repository.ErrDuplicate
	}
	if b.OfferID != "" {
		for _, existing := range m.bookings {
			if existing.OfferID == b.OfferID {
				return repository.ErrDuplicate
			}
		}
	}
	m.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (m *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (m *BookingRepository) GetByOfferID(ctx context.Context, offerID string) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bookings {
		if b.OfferID == offerID {
			return cloneBooking(b), nil
		}
	}
	return nil, nil
}

func (m *BookingRepository) List(ctx context.Context, filter domain.BookingFilter) ([]*domain.Booking, error) {
	out := m.collect(func(b *domain.Booking) bool {
		return (filter.TravelerID == "" || b.TravelerID == filter.TravelerID) &&
			(filter.DriverID == "" || b.DriverID == filter.DriverID) &&
			(filter.VehicleID == "" || b.VehicleID == filter.VehicleID) &&
			(filter.Status == "" || b.Status == filter.Status)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *BookingRepository) Update(ctx context.Context, b *domain.Booking, expectedVersion int) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if hook := m.BeforeUpdate; hook != nil {
		hook(b)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.UpdateErrors[b.ID]; err != nil {
		return err
	}
	stored, ok := m.bookings[b.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}

	b.Version = expectedVersion + 1
	m.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (m *BookingRepository) ListRepriceable(ctx context.Context, from, to, now time.Time) ([]*domain.Booking, error) {
	out := m.collect(func(b *domain.Booking) bool {
		return b.Repriceable(now) && b.Overlaps(from, to)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *BookingRepository) ListConfirmedByVehicle(ctx context.Context, vehicleID string, from, to time.Time) ([]*domain.Booking, error) {
	out := m.collect(func(b *domain.Booking) bool {
		return b.VehicleID == vehicleID && b.Status == domain.BookingStatusConfirmed && b.Overlaps(from, to)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *BookingRepository) ListCompletedByDriver(ctx context.Context, driverID string, from, to, now time.Time) ([]*domain.Booking, error) {
	out := m.collect(func(b *domain.Booking) bool {
		return b.DriverID == driverID &&
			b.Status == domain.BookingStatusConfirmed &&
			!b.EndDate.Before(from) && b.EndDate.Before(to) &&
			b.IsCompleted(now)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

// Put stores a booking as-is, bypassing Create. Useful for seeding history.
func (m *BookingRepository) Put(b *domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = cloneBooking(b)
}

func (m *BookingRepository) collect(match func(*domain.Booking) bool) []*domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Booking
	for _, b := range m.bookings {
		if match(b) {
			out = append(out, cloneBooking(b))
		}
	}
	return out
}

func cloneBooking(b *domain.Booking) *domain.Booking {
	c := *b
	if b.Cancellation != nil {
		cancellation := *b.Cancellation
		c.Cancellation = &cancellation
	}
	return &c
}

var _ repository.BookingRepository = (*BookingRepository)(nil)
