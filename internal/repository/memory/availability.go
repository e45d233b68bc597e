package memory

import (
	"context"
	"sort"
	"sync"

	"driverbook/internal/domain"
	"driverbook/internal/repository"
)

// AvailabilityRepository is an in-memory implementation of repository.AvailabilityRepository.
type AvailabilityRepository struct {
	mu    sync.RWMutex
	slots map[string]*domain.VehicleAvailability
}

// NewAvailabilityRepository creates an empty availability repository.
func NewAvailabilityRepository() *AvailabilityRepository {
	return &AvailabilityRepository{slots: make(map[string]*domain.VehicleAvailability)}
}

func (m *AvailabilityRepository) Create(ctx context.Context, slot *domain.VehicleAvailability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *slot
	m.slots[slot.ID] = &c
	return nil
}

func (m *AvailabilityRepository) GetByID(ctx context.Context, id string) (*domain.VehicleAvailability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	slot, ok := m.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *slot
	return &c, nil
}

func (m *AvailabilityRepository) ListByVehicle(ctx context.Context, vehicleID string) ([]*domain.VehicleAvailability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.VehicleAvailability
	for _, slot := range m.slots {
		if slot.VehicleID == vehicleID {
			c := *slot
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *AvailabilityRepository) Update(ctx context.Context, slot *domain.VehicleAvailability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[slot.ID]; !ok {
		return repository.ErrNotFound
	}
	c := *slot
	m.slots[slot.ID] = &c
	return nil
}

func (m *AvailabilityRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.slots, id)
	return nil
}

var _ repository.AvailabilityRepository = (*AvailabilityRepository)(nil)
