package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"go.uber.org/zap"

	"driverbook/internal/domain"
	"driverbook/internal/redis"
	"driverbook/internal/repository"
)

const (
	recalculationLockName = "discount-recalculation"
	lockPollInterval      = 100 * time.Millisecond
	maxRepriceAttempts    = 3
)

// DiscountService manages commission discounts and re-prices the bookings they affect.
type DiscountService struct {
	discountRepo        repository.DiscountRepository
	bookingRepo         repository.BookingRepository
	locker              redis.Locker
	earningsCache       redis.EarningsCache
	notificationService *NotificationService
	validate            *validator.Validate
	logger              *zap.Logger
	lockTTL             time.Duration
	lockWait            time.Duration
	now                 func() time.Time

	// sweepMu serializes sweeps within this process; locker serializes them across instances.
	sweepMu sync.Mutex
}

// NewDiscountService creates a new DiscountService. locker and earningsCache may be nil.
func NewDiscountService(
	discountRepo repository.DiscountRepository,
	bookingRepo repository.BookingRepository,
	locker redis.Locker,
	earningsCache redis.EarningsCache,
	notificationService *NotificationService,
	validate *validator.Validate,
	logger *zap.Logger,
	lockTTL time.Duration,
	lockWait time.Duration,
) *DiscountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DiscountService{
		discountRepo:        discountRepo,
		bookingRepo:         bookingRepo,
		locker:              locker,
		earningsCache:       earningsCache,
		notificationService: notificationService,
		validate:            validate,
		logger:              logger.Named("discount"),
		lockTTL:             lockTTL,
		lockWait:            lockWait,
		now:                 time.Now,
	}
}

// DiscountRequest contains the admin-editable fields of a discount.
type DiscountRequest struct {
	Name            string `validate:"required,max=120"`
	Description     string `validate:"max=1000"`
	DiscountPercent float64
	StartDate       time.Time `validate:"required"`
	EndDate         time.Time `validate:"required"`
	Active          bool
}

// DiscountView is a discount with its status derived at read time.
type DiscountView struct {
	*domain.CommissionDiscount
	Status domain.DiscountStatus
}

// RecalculationResult summarizes a sweep. Failed rows are logged and skipped, never raised.
type RecalculationResult struct {
	Scanned      int
	Recalculated int
	Skipped      int
	Failed       int
}

// DiscountResult is returned by every discount mutation.
type DiscountResult struct {
	Discount      *DiscountView
	Recalculation RecalculationResult
}

// Create stores a new discount and re-prices bookings inside its window.
func (s *DiscountService) Create(ctx context.Context, req DiscountRequest) (*DiscountResult, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	discount := &domain.CommissionDiscount{
		ID:              uuid.New().String(),
		Name:            req.Name,
		Description:     req.Description,
		DiscountPercent: req.DiscountPercent,
		StartDate:       domain.DateOf(req.StartDate),
		EndDate:         domain.DateOf(req.EndDate),
		Active:          req.Active,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.discountRepo.Create(ctx, discount); err != nil {
		return nil, err
	}

	s.logger.Info("discount created",
		zap.String("discount_id", discount.ID),
		zap.Float64("discount_percent", discount.DiscountPercent),
		zap.Bool("active", discount.Active),
	)

	return s.afterMutation(ctx, discount, discount.Window())
}

// Update replaces a discount's fields and re-prices bookings inside the span of its old and new windows.
func (s *DiscountService) Update(ctx context.Context, id string, req DiscountRequest) (*DiscountResult, error) {
	if id == "" {
		return nil, ErrInvalidDiscountID
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	discount, err := s.discountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldWindow := discount.Window()

	discount.Name = req.Name
	discount.Description = req.Description
	discount.DiscountPercent = req.DiscountPercent
	discount.StartDate = domain.DateOf(req.StartDate)
	discount.EndDate = domain.DateOf(req.EndDate)
	discount.Active = req.Active
	discount.UpdatedAt = s.now().UTC()

	if err := s.discountRepo.Update(ctx, discount); err != nil {
		return nil, err
	}

	s.logger.Info("discount updated",
		zap.String("discount_id", discount.ID),
		zap.Float64("discount_percent", discount.DiscountPercent),
		zap.Bool("active", discount.Active),
	)

	return s.afterMutation(ctx, discount, oldWindow.Span(discount.Window()))
}

// SetActive toggles a discount on or off.
func (s *DiscountService) SetActive(ctx context.Context, id string, active bool) (*DiscountResult, error) {
	discount, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.Update(ctx, id, DiscountRequest{
		Name:            discount.Name,
		Description:     discount.Description,
		DiscountPercent: discount.DiscountPercent,
		StartDate:       discount.StartDate,
		EndDate:         discount.EndDate,
		Active:          active,
	})
}

// Delete hard-deletes a discount and re-prices bookings that may have used it.
func (s *DiscountService) Delete(ctx context.Context, id string) (*DiscountResult, error) {
	if id == "" {
		return nil, ErrInvalidDiscountID
	}

	discount, err := s.discountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.discountRepo.Delete(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Info("discount deleted", zap.String("discount_id", id))

	return s.afterMutation(ctx, discount, discount.Window())
}

// Get retrieves a discount with its derived status.
func (s *DiscountService) Get(ctx context.Context, id string) (*DiscountView, error) {
	if id == "" {
		return nil, ErrInvalidDiscountID
	}

	discount, err := s.discountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(discount), nil
}

// List retrieves all discounts with their derived status, newest first.
func (s *DiscountService) List(ctx context.Context) ([]*DiscountView, error) {
	discounts, err := s.discountRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]*DiscountView, 0, len(discounts))
	for _, d := range discounts {
		views = append(views, s.view(d))
	}
	return views, nil
}

// RecalculateAll re-prices every booking that has not completed yet.
func (s *DiscountService) RecalculateAll(ctx context.Context) (RecalculationResult, error) {
	today := domain.DateOf(s.now())
	return s.Recalculate(ctx, domain.DateWindow{Start: today, End: today.AddDate(100, 0, 0)})
}

// Recalculate re-prices pending and confirmed bookings that intersect window and have not
// completed. Bookings whose rate and source discount are unchanged are not written. A
// booking cancelled or rejected mid-sweep is skipped. Only changed rates are counted.
func (s *DiscountService) Recalculate(ctx context.Context, window domain.DateWindow) (RecalculationResult, error) {
	defer newrelic.FromContext(ctx).StartSegment("DiscountService/Recalculate").End()

	var result RecalculationResult

	release, err := s.lockSweep(ctx)
	if err != nil {
		return result, err
	}
	defer release()

	now := s.now().UTC()

	discounts, err := s.discountRepo.List(ctx)
	if err != nil {
		return result, fmt.Errorf("list discounts: %w", err)
	}

	bookings, err := s.bookingRepo.ListRepriceable(ctx, window.Start, window.End, now)
	if err != nil {
		return result, fmt.Errorf("list repriceable bookings: %w", err)
	}

	var touched []string
	for _, booking := range bookings {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.Scanned++
		outcome, err := s.reprice(ctx, booking, discounts, now)
		if err != nil {
			result.Failed++
			s.logger.Error("booking reprice failed",
				zap.String("booking_id", booking.ID),
				zap.Error(err),
			)
			continue
		}

		switch outcome {
		case repriceChanged:
			result.Recalculated++
			touched = append(touched, booking.DriverID)
			_ = s.notificationService.NotifyCommissionRepriced(ctx, booking)
		case repriceRelinked:
			touched = append(touched, booking.DriverID)
		case repriceSkipped:
			result.Skipped++
		}
	}

	if len(touched) > 0 && s.earningsCache != nil {
		if err := s.earningsCache.InvalidateEarningsHistory(ctx, touched...); err != nil {
			s.logger.Warn("earnings cache invalidation failed", zap.Error(err))
		}
	}

	s.logger.Info("recalculation finished",
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
		zap.Int("scanned", result.Scanned),
		zap.Int("recalculated", result.Recalculated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)

	return result, nil
}

type repriceOutcome int

const (
	repriceUnchanged repriceOutcome = iota
	repriceChanged
	repriceRelinked // same rate, different source discount
	repriceSkipped
)

// reprice applies the current discount set to one booking, retrying on version conflicts.
// booking is updated in place with the stored state.
func (s *DiscountService) reprice(ctx context.Context, booking *domain.Booking, discounts []*domain.CommissionDiscount, now time.Time) (repriceOutcome, error) {
	for attempt := 1; ; attempt++ {
		if !booking.Repriceable(now) {
			return repriceSkipped, nil
		}
		if booking.CommissionBaseRateAtBooking < 0 || booking.TotalPrice < 0 {
			return repriceUnchanged, fmt.Errorf("booking %s has corrupt pricing", booking.ID)
		}

		next := *booking
		priceBooking(&next, discounts, now)

		rateChanged := next.EffectiveCommissionRate != booking.EffectiveCommissionRate
		if !rateChanged &&
			next.AppliedDiscountID == booking.AppliedDiscountID &&
			next.CommissionAmount == booking.CommissionAmount {
			return repriceUnchanged, nil
		}

		next.UpdatedAt = now
		err := s.bookingRepo.Update(ctx, &next, booking.Version)
		if err == nil {
			*booking = next
			if rateChanged {
				return repriceChanged, nil
			}
			return repriceRelinked, nil
		}

		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= maxRepriceAttempts {
			return repriceUnchanged, err
		}

		fresh, err := s.bookingRepo.GetByID(ctx, booking.ID)
		if err != nil {
			return repriceUnchanged, err
		}
		*booking = *fresh
	}
}

// lockSweep serializes sweeps. If the distributed lock cannot be taken within lockWait the
// sweep proceeds anyway; per-booking compare-and-set keeps concurrent sweeps safe.
func (s *DiscountService) lockSweep(ctx context.Context) (func(), error) {
	s.sweepMu.Lock()
	if s.locker == nil {
		return s.sweepMu.Unlock, nil
	}

	deadline := time.Now().Add(s.lockWait)
	for {
		token, err := s.locker.Acquire(ctx, recalculationLockName, s.lockTTL)
		if err != nil {
			s.logger.Warn("recalculation lock unavailable, continuing without it", zap.Error(err))
			return s.sweepMu.Unlock, nil
		}
		if token != "" {
			return func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), recalculationLockName, token); err != nil {
					s.logger.Warn("recalculation lock release failed", zap.Error(err))
				}
				s.sweepMu.Unlock()
			}, nil
		}

		if time.Now().After(deadline) {
			s.logger.Warn("recalculation lock wait timed out, continuing without it",
				zap.Duration("lock_wait", s.lockWait))
			return s.sweepMu.Unlock, nil
		}

		select {
		case <-ctx.Done():
			s.sweepMu.Unlock()
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func (s *DiscountService) afterMutation(ctx context.Context, discount *domain.CommissionDiscount, window domain.DateWindow) (*DiscountResult, error) {
	recalc, err := s.Recalculate(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("discount %s saved but recalculation failed: %w", discount.ID, err)
	}

	return &DiscountResult{
		Discount:      s.view(discount),
		Recalculation: recalc,
	}, nil
}

func (s *DiscountService) validateRequest(req DiscountRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return validationError(err)
	}
	if req.DiscountPercent < 0 || req.DiscountPercent > MaxDiscountPercent {
		return ErrInvalidDiscountPercent
	}
	if domain.DateOf(req.EndDate).Before(domain.DateOf(req.StartDate)) {
		return ErrInvalidWindow
	}
	return nil
}

func (s *DiscountService) view(d *domain.CommissionDiscount) *DiscountView {
	return &DiscountView{CommissionDiscount: d, Status: d.StatusAt(s.now())}
}
