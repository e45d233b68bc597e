package memory

import (
	"context"
	"sort"
	"sync"

	"driverbook/internal/domain"
	"driverbook/internal/repository"
)

// DiscountRepository is an in-memory implementation of repository.DiscountRepository.
type DiscountRepository struct {
	mu        sync.RWMutex
	discounts map[string]*domain.CommissionDiscount

	// Error injection
	ListError error
}

// NewDiscountRepository creates an empty discount repository.
func NewDiscountRepository() *DiscountRepository {
	return &DiscountRepository{discounts: make(map[string]*domain.CommissionDiscount)}
}

func (m *DiscountRepository) Create(ctx context.Context, d *domain.CommissionDiscount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.discounts[d.ID]; ok {
		return repository.ErrDuplicate
	}
	c := *d
	m.discounts[d.ID] = &c
	return nil
}

func (m *DiscountRepository) GetByID(ctx context.Context, id string) (*domain.CommissionDiscount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.discounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *d
	return &c, nil
}

func (m *DiscountRepository) List(ctx context.Context) ([]*domain.CommissionDiscount, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.CommissionDiscount, 0, len(m.discounts))
	for _, d := range m.discounts {
		c := *d
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *DiscountRepository) Update(ctx context.Context, d *domain.CommissionDiscount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.discounts[d.ID]; !ok {
		return repository.ErrNotFound
	}
	c := *d
	m.discounts[d.ID] = &c
	return nil
}

func (m *DiscountRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.discounts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.discounts, id)
	return nil
}

var _ repository.DiscountRepository = (*DiscountRepository)(nil)
