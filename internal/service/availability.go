package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"driverbook/internal/domain"
	"driverbook/internal/repository"
)

// AvailabilityService manages vehicle availability calendars.
type AvailabilityService struct {
	slotRepo repository.AvailabilityRepository
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewAvailabilityService creates a new AvailabilityService.
func NewAvailabilityService(slotRepo repository.AvailabilityRepository, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AvailabilityService{
		slotRepo: slotRepo,
		validate: validate,
		logger:   logger.Named("availability"),
		now:      time.Now,
	}
}

// AddSlotRequest contains the parameters for adding a calendar slot.
type AddSlotRequest struct {
	VehicleID string            `validate:"required"`
	StartDate time.Time         `validate:"required"`
	EndDate   time.Time         `validate:"required"`
	Status    domain.SlotStatus `validate:"required"`
	Note      string            `validate:"max=500"`
}

// AddSlot creates a slot unless it overlaps a slot of a different status.
func (s *AvailabilityService) AddSlot(ctx context.Context, req AddSlotRequest) (*domain.VehicleAvailability, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	now := s.now().UTC()
	slot := &domain.VehicleAvailability{
		ID:        uuid.New().String(),
		VehicleID: req.VehicleID,
		StartDate: domain.DateOf(req.StartDate),
		EndDate:   domain.DateOf(req.EndDate),
		Status:    req.Status,
		Note:      req.Note,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.checkSlot(ctx, slot); err != nil {
		return nil, err
	}

	if err := s.slotRepo.Create(ctx, slot); err != nil {
		return nil, err
	}

	s.logger.Info("slot added",
		zap.String("slot_id", slot.ID),
		zap.String("vehicle_id", slot.VehicleID),
		zap.String("status", string(slot.Status)),
	)

	return slot, nil
}

// UpdateSlotRequest contains the fields of a slot that may change. Nil fields are kept.
type UpdateSlotRequest struct {
	StartDate *time.Time
	EndDate   *time.Time
	Status    *domain.SlotStatus
	Note      *string `validate:"omitempty,max=500"`
}

// UpdateSlot applies a patch, re-validating overlaps when the range or status changes.
func (s *AvailabilityService) UpdateSlot(ctx context.Context, id string, req UpdateSlotRequest) (*domain.VehicleAvailability, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	slot, err := s.slotRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	recheck := false
	if req.StartDate != nil {
		slot.StartDate = domain.DateOf(*req.StartDate)
		recheck = true
	}
	if req.EndDate != nil {
		slot.EndDate = domain.DateOf(*req.EndDate)
		recheck = true
	}
	if req.Status != nil {
		slot.Status = *req.Status
		recheck = true
	}
	if req.Note != nil {
		slot.Note = *req.Note
	}

	if recheck {
		if err := s.checkSlot(ctx, slot); err != nil {
			return nil, err
		}
	}

	slot.UpdatedAt = s.now().UTC()
	if err := s.slotRepo.Update(ctx, slot); err != nil {
		return nil, err
	}

	return slot, nil
}

// RemoveSlot deletes a slot.
func (s *AvailabilityService) RemoveSlot(ctx context.Context, id string) error {
	return s.slotRepo.Delete(ctx, id)
}

// ListSlots returns a vehicle's calendar ordered by start date.
func (s *AvailabilityService) ListSlots(ctx context.Context, vehicleID string) ([]*domain.VehicleAvailability, error) {
	return s.slotRepo.ListByVehicle(ctx, vehicleID)
}

// IsAvailable reports whether no unavailable slot overlaps the range. It takes no lock.
func (s *AvailabilityService) IsAvailable(ctx context.Context, vehicleID string, start, end time.Time) (bool, error) {
	blocking, err := s.unavailableSlots(ctx, vehicleID, domain.DateOf(start), domain.DateOf(end))
	if err != nil {
		return false, err
	}
	return len(blocking) == 0, nil
}

func (s *AvailabilityService) unavailableSlots(ctx context.Context, vehicleID string, start, end time.Time) ([]*domain.VehicleAvailability, error) {
	slots, err := s.slotRepo.ListByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	var blocking []*domain.VehicleAvailability
	for _, slot := range slots {
		if slot.Status == domain.SlotStatusUnavailable && slot.Overlaps(start, end) {
			blocking = append(blocking, slot)
		}
	}
	return blocking, nil
}

// checkSlot validates a slot and rejects it if another slot of a different status overlaps.
func (s *AvailabilityService) checkSlot(ctx context.Context, slot *domain.VehicleAvailability) error {
	if !slot.Status.IsValid() {
		return ErrInvalidSlotStatus
	}
	if slot.EndDate.Before(slot.StartDate) {
		return ErrInvalidWindow
	}

	existing, err := s.slotRepo.ListByVehicle(ctx, slot.VehicleID)
	if err != nil {
		return err
	}

	for _, other := range existing {
		if other.ID == slot.ID || other.Status == slot.Status {
			continue
		}
		if other.Overlaps(slot.StartDate, slot.EndDate) {
			return &OverlapConflictError{Slot: other}
		}
	}

	return nil
}
