package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"driverbook/internal/domain"
	"driverbook/internal/repository"
)

// CommissionRepository is an in-memory implementation of repository.CommissionRepository.
type CommissionRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.DriverCommission
}

// NewCommissionRepository creates an empty commission repository.
func NewCommissionRepository() *CommissionRepository {
	return &CommissionRepository{records: make(map[string]*domain.DriverCommission)}
}

func (m *CommissionRepository) GetOrCreate(ctx context.Context, driverID, period string) (*domain.DriverCommission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.records {
		if rec.DriverID == driverID && rec.Period == period {
			return cloneCommission(rec), nil
		}
	}

	now := time.Now().UTC()
	rec := &domain.DriverCommission{
		ID:        uuid.New().String(),
		DriverID:  driverID,
		Period:    period,
		Status:    domain.CommissionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.records[rec.ID] = rec
	return cloneCommission(rec), nil
}

func (m *CommissionRepository) GetByID(ctx context.Context, id string) (*domain.DriverCommission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneCommission(rec), nil
}

func (m *CommissionRepository) UpdateTotals(ctx context.Context, c *domain.DriverCommission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	rec.TotalGross = c.TotalGross
	rec.TotalCommission = c.TotalCommission
	rec.TotalDriverEarnings = c.TotalDriverEarnings
	rec.BookingIDs = append([]string(nil), c.BookingIDs...)
	rec.UpdatedAt = c.UpdatedAt
	return nil
}

func (m *CommissionRepository) UpdateSlip(ctx context.Context, id, slipURL string, uploadedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	rec.PaymentSlipURL = slipURL
	rec.PaymentSlipUploadedAt = uploadedAt
	rec.UpdatedAt = uploadedAt
	return nil
}

func (m *CommissionRepository) UpdateStatus(ctx context.Context, id string, status domain.CommissionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneCommission(c *domain.DriverCommission) *domain.DriverCommission {
	out := *c
	out.BookingIDs = append([]string(nil), c.BookingIDs...)
	return &out
}

var _ repository.CommissionRepository = (*CommissionRepository)(nil)
