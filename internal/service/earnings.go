package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"driverbook/internal/domain"
	"driverbook/internal/redis"
	"driverbook/internal/repository"
)

// DefaultStatementDueDay is the day of the following month a statement is due.
const DefaultStatementDueDay = 5

// ErrSlipStorageUnavailable is returned when no slip storage backend is configured.
var ErrSlipStorageUnavailable = errors.New("payment slip storage is not configured")

// SlipStorage stores uploaded payment slips and returns their URL.
type SlipStorage interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// EarningsService aggregates driver bookings into monthly commission statements.
type EarningsService struct {
	bookingRepo    repository.BookingRepository
	discountRepo   repository.DiscountRepository
	commissionRepo repository.CommissionRepository
	slipStorage    SlipStorage
	cache          redis.EarningsCache
	logger         *zap.Logger
	dueDay         int
	now            func() time.Time
}

// NewEarningsService creates a new EarningsService. slipStorage and cache may be nil.
func NewEarningsService(
	bookingRepo repository.BookingRepository,
	discountRepo repository.DiscountRepository,
	commissionRepo repository.CommissionRepository,
	slipStorage SlipStorage,
	cache redis.EarningsCache,
	logger *zap.Logger,
	dueDay int,
) *EarningsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dueDay < 1 || dueDay > 28 {
		dueDay = DefaultStatementDueDay
	}
	return &EarningsService{
		bookingRepo:    bookingRepo,
		discountRepo:   discountRepo,
		commissionRepo: commissionRepo,
		slipStorage:    slipStorage,
		cache:          cache,
		logger:         logger.Named("earnings"),
		dueDay:         dueDay,
		now:            time.Now,
	}
}

// Summarize computes the statement for one driver and period ("YYYY-MM"). The persisted
// record is created as pending on first access; its status and slip survive recomputation.
func (s *EarningsService) Summarize(ctx context.Context, driverID, period string) (*domain.EarningsStatement, error) {
	if driverID == "" {
		return nil, fmt.Errorf("%w: driver id is required", ErrValidation)
	}

	periodStart, err := time.Parse(domain.PeriodLayout, period)
	if err != nil {
		return nil, ErrInvalidPeriod
	}
	periodStart = periodStart.UTC()
	periodEnd := periodStart.AddDate(0, 1, 0)

	now := s.now().UTC()
	bookings, err := s.bookingRepo.ListCompletedByDriver(ctx, driverID, periodStart, periodEnd, now)
	if err != nil {
		return nil, err
	}

	record, err := s.commissionRepo.GetOrCreate(ctx, driverID, period)
	if err != nil {
		return nil, err
	}

	var gross, commission float64
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		gross += b.TotalPrice
		commission += b.CommissionAmount
		ids = append(ids, b.ID)
	}

	record.TotalGross = domain.RoundMoney(gross)
	record.TotalCommission = domain.RoundMoney(commission)
	record.TotalDriverEarnings = domain.RoundMoney(gross - commission)
	record.BookingIDs = ids
	record.UpdatedAt = now

	if err := s.commissionRepo.UpdateTotals(ctx, record); err != nil {
		return nil, err
	}

	discount, err := s.displayDiscount(ctx, periodStart, periodEnd, now)
	if err != nil {
		return nil, err
	}

	return &domain.EarningsStatement{
		Commission:  record,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		DueDate:     periodEnd.AddDate(0, 0, s.dueDay-1),
		Discount:    discount,
	}, nil
}

// History returns one statement per period with at least one qualifying booking, newest first.
func (s *EarningsService) History(ctx context.Context, driverID string) ([]*domain.EarningsStatement, error) {
	if driverID == "" {
		return nil, fmt.Errorf("%w: driver id is required", ErrValidation)
	}

	if s.cache != nil {
		cached, err := s.cache.GetEarningsHistory(ctx, driverID)
		if err != nil {
			s.logger.Warn("earnings cache read failed", zap.String("driver_id", driverID), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	now := s.now().UTC()
	bookings, err := s.bookingRepo.ListCompletedByDriver(ctx, driverID, time.Unix(0, 0).UTC(), domain.DateOf(now).AddDate(0, 0, 1), now)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var periods []string
	for _, b := range bookings {
		p := b.EndDate.Format(domain.PeriodLayout)
		if !seen[p] {
			seen[p] = true
			periods = append(periods, p)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(periods)))

	history := make([]*domain.EarningsStatement, 0, len(periods))
	for _, p := range periods {
		statement, err := s.Summarize(ctx, driverID, p)
		if err != nil {
			return nil, err
		}
		history = append(history, statement)
	}

	if s.cache != nil {
		if err := s.cache.SetEarningsHistory(ctx, driverID, history); err != nil {
			s.logger.Warn("earnings cache write failed", zap.String("driver_id", driverID), zap.Error(err))
		}
	}

	return history, nil
}

// RecordPaymentSlip attaches an uploaded slip to a statement. The status is not changed.
func (s *EarningsService) RecordPaymentSlip(ctx context.Context, commissionID, slipURL string) (*domain.DriverCommission, error) {
	if commissionID == "" || slipURL == "" {
		return nil, fmt.Errorf("%w: commission id and slip url are required", ErrValidation)
	}

	record, err := s.commissionRepo.GetByID(ctx, commissionID)
	if err != nil {
		return nil, err
	}

	uploadedAt := s.now().UTC()
	if err := s.commissionRepo.UpdateSlip(ctx, commissionID, slipURL, uploadedAt); err != nil {
		return nil, err
	}

	record.PaymentSlipURL = slipURL
	record.PaymentSlipUploadedAt = uploadedAt
	record.UpdatedAt = uploadedAt

	s.logger.Info("payment slip recorded",
		zap.String("commission_id", commissionID),
		zap.String("driver_id", record.DriverID),
		zap.String("period", record.Period),
	)

	s.invalidate(ctx, record.DriverID)
	return record, nil
}

// SlipUpload is a payment slip file received from a driver.
type SlipUpload struct {
	DriverID    string // When set, must own the statement
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadPaymentSlip stores the file and records its URL on the statement.
func (s *EarningsService) UploadPaymentSlip(ctx context.Context, commissionID string, file SlipUpload) (*domain.DriverCommission, error) {
	if s.slipStorage == nil {
		return nil, ErrSlipStorageUnavailable
	}
	if file.Body == nil || file.Size <= 0 {
		return nil, fmt.Errorf("%w: payment slip file is required", ErrValidation)
	}

	record, err := s.commissionRepo.GetByID(ctx, commissionID)
	if err != nil {
		return nil, err
	}
	if file.DriverID != "" && file.DriverID != record.DriverID {
		return nil, ErrDriverNotAssigned
	}

	key := path.Join("payment-slips", record.DriverID, record.Period, uuid.New().String()+strings.ToLower(path.Ext(file.Filename)))
	url, err := s.slipStorage.Upload(ctx, key, file.ContentType, file.Body, file.Size)
	if err != nil {
		return nil, fmt.Errorf("upload payment slip: %w", err)
	}

	return s.RecordPaymentSlip(ctx, commissionID, url)
}

// SetStatus moves a statement between pending, submitted and approved.
func (s *EarningsService) SetStatus(ctx context.Context, commissionID string, status domain.CommissionStatus) (*domain.DriverCommission, error) {
	if !status.IsValid() {
		return nil, ErrInvalidCommissionStatus
	}

	if err := s.commissionRepo.UpdateStatus(ctx, commissionID, status); err != nil {
		return nil, err
	}

	record, err := s.commissionRepo.GetByID(ctx, commissionID)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, record.DriverID)
	return record, nil
}

// displayDiscount picks the narrowest active or expired discount overlapping the period.
func (s *EarningsService) displayDiscount(ctx context.Context, periodStart, periodEnd, now time.Time) (*domain.DiscountSummary, error) {
	discounts, err := s.discountRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	lastDay := periodEnd.AddDate(0, 0, -1)

	var best *domain.CommissionDiscount
	for _, d := range discounts {
		status := d.StatusAt(now)
		if status != domain.DiscountStatusActive && status != domain.DiscountStatusExpired {
			continue
		}
		if !domain.RangesOverlap(d.StartDate, d.EndDate, periodStart, lastDay) {
			continue
		}

		if best == nil {
			best = d
			continue
		}
		width, bestWidth := domain.DaysBetween(d.StartDate, d.EndDate), domain.DaysBetween(best.StartDate, best.EndDate)
		if width < bestWidth || (width == bestWidth && d.DiscountPercent > best.DiscountPercent) {
			best = d
		}
	}

	if best == nil {
		return nil, nil
	}

	return &domain.DiscountSummary{
		ID:              best.ID,
		Name:            best.Name,
		DiscountPercent: best.DiscountPercent,
		StartDate:       best.StartDate,
		EndDate:         best.EndDate,
		Status:          best.StatusAt(now),
	}, nil
}

func (s *EarningsService) invalidate(ctx context.Context, driverID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateEarningsHistory(ctx, driverID); err != nil {
		s.logger.Warn("earnings cache invalidation failed", zap.String("driver_id", driverID), zap.Error(err))
	}
}
