package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"driverbook/internal/domain"
	"driverbook/internal/redis"
	"driverbook/internal/repository"
)

// BookingService owns the booking state machine and prices bookings.
type BookingService struct {
	bookingRepo         repository.BookingRepository
	discountRepo        repository.DiscountRepository
	availabilityService *AvailabilityService
	notificationService *NotificationService
	earningsCache       redis.EarningsCache
	validate            *validator.Validate
	logger              *zap.Logger
	baseRate            float64
	now                 func() time.Time
}

// NewBookingService creates a new BookingService. baseRate is snapshotted onto every new booking.
func NewBookingService(
	bookingRepo repository.BookingRepository,
	discountRepo repository.DiscountRepository,
	availabilityService *AvailabilityService,
	notificationService *NotificationService,
	earningsCache redis.EarningsCache,
	validate *validator.Validate,
	logger *zap.Logger,
	baseRate float64,
) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if baseRate <= 0 {
		baseRate = DefaultBaseCommissionRate
	}
	return &BookingService{
		bookingRepo:         bookingRepo,
		discountRepo:        discountRepo,
		availabilityService: availabilityService,
		notificationService: notificationService,
		earningsCache:       earningsCache,
		validate:            validate,
		logger:              logger.Named("booking"),
		baseRate:            baseRate,
		now:                 time.Now,
	}
}

// OfferTerms are the price terms fixed by an accepted chat offer.
type OfferTerms struct {
	OfferID         string  `validate:"required"`
	TotalPrice      float64 `validate:"gt=0"`
	TotalKms        float64 `validate:"gte=0"`
	PricePerExtraKm float64 `validate:"gte=0"`
}

// CreateBookingRequest contains the parameters for creating a booking.
// Offer is set for bookings that originate from an accepted offer; PricePerDay otherwise.
type CreateBookingRequest struct {
	TravelerID      string    `validate:"required"`
	DriverID        string    `validate:"required"`
	VehicleID       string    `validate:"required"`
	StartDate       time.Time `validate:"required"`
	EndDate         time.Time `validate:"required"`
	PricePerDay     float64   `validate:"gte=0"`
	Offer           *OfferTerms
	ConversationID  string
	PickupPoint     string `validate:"max=255"`
	DropPoint       string `validate:"max=255"`
	FlightInfo      string `validate:"max=255"`
	SpecialRequests string `validate:"max=1000"`
}

// BookingResult is a booking together with non-fatal warnings for the caller.
type BookingResult struct {
	Booking  *domain.Booking
	Warnings []string
}

// Create validates, prices and stores a pending booking.
// Calendar conflicts and overlapping confirmed bookings do not block creation; they are returned as warnings.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*BookingResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	if req.Offer != nil {
		existing, err := s.bookingRepo.GetByOfferID(ctx, req.Offer.OfferID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return replayOffer(existing, req)
		}
	}

	now := s.now().UTC()
	start := domain.DateOf(req.StartDate)
	end := domain.DateOf(req.EndDate)

	if !start.Before(end) {
		return nil, ErrInvalidDateRange
	}

	if start.Before(domain.DateOf(now)) {
		return nil, ErrStartDateInPast
	}

	booking := &domain.Booking{
		ID:                          uuid.New().String(),
		TravelerID:                  req.TravelerID,
		DriverID:                    req.DriverID,
		VehicleID:                   req.VehicleID,
		Status:                      domain.BookingStatusPending,
		StartDate:                   start,
		EndDate:                     end,
		CommissionBaseRateAtBooking: s.baseRate,
		ConversationID:              req.ConversationID,
		PickupPoint:                 req.PickupPoint,
		DropPoint:                   req.DropPoint,
		FlightInfo:                  req.FlightInfo,
		SpecialRequests:             req.SpecialRequests,
		Version:                     1,
		CreatedAt:                   now,
		UpdatedAt:                   now,
	}

	if req.Offer != nil {
		booking.OfferID = req.Offer.OfferID
		booking.TotalPrice = domain.RoundMoney(req.Offer.TotalPrice)
		booking.TotalKms = req.Offer.TotalKms
		booking.PricePerExtraKm = req.Offer.PricePerExtraKm
	} else {
		if req.PricePerDay <= 0 {
			return nil, ErrInvalidPrice
		}
		booking.PricePerDay = req.PricePerDay
		booking.TotalPrice = domain.RoundMoney(req.PricePerDay * float64(booking.Days()))
	}

	discounts, err := s.discountRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	priceBooking(booking, discounts, now)

	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrDuplicate) && booking.FromOffer() {
			existing, getErr := s.bookingRepo.GetByOfferID(ctx, booking.OfferID)
			if getErr == nil && existing != nil {
				return replayOffer(existing, req)
			}
		}
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.String("vehicle_id", booking.VehicleID),
		zap.Float64("total_price", booking.TotalPrice),
		zap.Float64("effective_commission_rate", booking.EffectiveCommissionRate),
		zap.String("applied_discount_id", booking.AppliedDiscountID),
	)

	_ = s.notificationService.NotifyBookingRequested(ctx, booking)

	return &BookingResult{
		Booking:  booking,
		Warnings: s.creationWarnings(ctx, booking),
	}, nil
}

// replayOffer returns the booking already created for an offer when req repeats it.
// Another traveller, or the same offer with different terms, is refused.
func replayOffer(existing *domain.Booking, req CreateBookingRequest) (*BookingResult, error) {
	if existing.TravelerID != req.TravelerID {
		return nil, ErrTravelerMismatch
	}
	if existing.DriverID != req.DriverID ||
		existing.VehicleID != req.VehicleID ||
		!existing.StartDate.Equal(domain.DateOf(req.StartDate)) ||
		!existing.EndDate.Equal(domain.DateOf(req.EndDate)) ||
		existing.TotalPrice != domain.RoundMoney(req.Offer.TotalPrice) {
		return nil, fmt.Errorf("%w: offer %s", ErrOfferTermsMismatch, existing.OfferID)
	}
	return &BookingResult{Booking: existing}, nil
}

// OfferAccepted is the event emitted by the chat subsystem when a traveller accepts an offer.
type OfferAccepted struct {
	OfferID         string  `json:"offerId"`
	ConversationID  string  `json:"conversationId"`
	TravelerID      string  `json:"travelerId"`
	DriverID        string  `json:"driverId"`
	VehicleID       string  `json:"vehicleId"`
	StartDate       string  `json:"startDate"` // YYYY-MM-DD
	EndDate         string  `json:"endDate"`   // YYYY-MM-DD
	TotalPrice      float64 `json:"totalPrice"`
	TotalKms        float64 `json:"totalKms"`
	PricePerExtraKm float64 `json:"pricePerExtraKm"`
}

// CreateFromOffer turns an accepted offer into a pending booking. Repeated events for
// the same offer return the booking created by the first one.
func (s *BookingService) CreateFromOffer(ctx context.Context, offer OfferAccepted) (*BookingResult, error) {
	start, err := domain.ParseDate(offer.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid start date %q", ErrValidation, offer.StartDate)
	}
	end, err := domain.ParseDate(offer.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid end date %q", ErrValidation, offer.EndDate)
	}

	return s.Create(ctx, CreateBookingRequest{
		TravelerID:     offer.TravelerID,
		DriverID:       offer.DriverID,
		VehicleID:      offer.VehicleID,
		StartDate:      start,
		EndDate:        end,
		ConversationID: offer.ConversationID,
		Offer: &OfferTerms{
			OfferID:         offer.OfferID,
			TotalPrice:      offer.TotalPrice,
			TotalKms:        offer.TotalKms,
			PricePerExtraKm: offer.PricePerExtraKm,
		},
	})
}

// DriverAction is a driver's answer to a pending booking.
type DriverAction string

const (
	DriverActionAccept DriverAction = "accept"
	DriverActionReject DriverAction = "reject"
)

// RespondRequest contains the parameters for a driver response.
type RespondRequest struct {
	BookingID string
	DriverID  string
	Action    DriverAction
}

// DriverRespond confirms or rejects a pending booking on behalf of its driver.
// Accepting over another confirmed booking on the same vehicle is allowed and flagged.
func (s *BookingService) DriverRespond(ctx context.Context, req RespondRequest) (*BookingResult, error) {
	if req.BookingID == "" {
		return nil, ErrInvalidBookingID
	}

	var target domain.BookingStatus
	switch req.Action {
	case DriverActionAccept:
		target = domain.BookingStatusConfirmed
	case DriverActionReject:
		target = domain.BookingStatusRejected
	default:
		return nil, ErrInvalidAction
	}

	booking, err := s.bookingRepo.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	if booking.DriverID != req.DriverID {
		return nil, ErrDriverNotAssigned
	}

	if !domain.CanTransition(booking.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, booking.Status, target)
	}

	var warnings []string
	if target == domain.BookingStatusConfirmed {
		warnings = s.overlapWarnings(ctx, booking)
	}

	booking.Status = target
	booking.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.Info("driver responded",
		zap.String("booking_id", booking.ID),
		zap.String("driver_id", booking.DriverID),
		zap.String("status", string(booking.Status)),
		zap.Int("overlap_warnings", len(warnings)),
	)

	s.invalidateEarnings(ctx, booking.DriverID)
	_ = s.notificationService.NotifyBookingResponded(ctx, booking)

	return &BookingResult{Booking: booking, Warnings: warnings}, nil
}

// TravelerUpdateRequest contains the fields a traveller may change. Nil fields are kept.
type TravelerUpdateRequest struct {
	BookingID       string
	TravelerID      string
	StartDate       *time.Time
	EndDate         *time.Time
	PickupPoint     *string `validate:"omitempty,max=255"`
	DropPoint       *string `validate:"omitempty,max=255"`
	FlightInfo      *string `validate:"omitempty,max=255"`
	SpecialRequests *string `validate:"omitempty,max=1000"`
}

// TravelerUpdate edits a booking before the trip starts. Dates of offer bookings are fixed;
// date changes on direct bookings re-run pricing against the booking's base-rate snapshot.
func (s *BookingService) TravelerUpdate(ctx context.Context, req TravelerUpdateRequest) (*domain.Booking, error) {
	if req.BookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	booking, err := s.bookingRepo.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	if booking.TravelerID != req.TravelerID {
		return nil, ErrTravelerMismatch
	}

	now := s.now().UTC()
	if booking.Status.IsTerminal() || booking.HasStarted(now) {
		return nil, ErrBookingNotEditable
	}

	start, end := booking.StartDate, booking.EndDate
	if req.StartDate != nil {
		start = domain.DateOf(*req.StartDate)
	}
	if req.EndDate != nil {
		end = domain.DateOf(*req.EndDate)
	}

	if !start.Equal(booking.StartDate) || !end.Equal(booking.EndDate) {
		if booking.FromOffer() {
			return nil, ErrOfferDatesImmutable
		}
		if !start.Before(end) {
			return nil, ErrInvalidDateRange
		}
		if start.Before(domain.DateOf(now)) {
			return nil, ErrStartDateInPast
		}

		booking.StartDate = start
		booking.EndDate = end
		booking.TotalPrice = domain.RoundMoney(booking.PricePerDay * float64(booking.Days()))

		discounts, err := s.discountRepo.List(ctx)
		if err != nil {
			return nil, err
		}
		priceBooking(booking, discounts, now)
	}

	if req.PickupPoint != nil {
		booking.PickupPoint = *req.PickupPoint
	}
	if req.DropPoint != nil {
		booking.DropPoint = *req.DropPoint
	}
	if req.FlightInfo != nil {
		booking.FlightInfo = *req.FlightInfo
	}
	if req.SpecialRequests != nil {
		booking.SpecialRequests = *req.SpecialRequests
	}

	booking.UpdatedAt = now
	if err := s.save(ctx, booking); err != nil {
		return nil, err
	}

	s.invalidateEarnings(ctx, booking.DriverID)
	_ = s.notificationService.NotifyBookingUpdated(ctx, booking)

	return booking, nil
}

// CancelRequest contains the parameters for a traveller cancellation.
type CancelRequest struct {
	BookingID  string
	TravelerID string
	Reason     string `validate:"max=500"`
}

// TravelerCancel cancels a pending or confirmed booking and records the prorated penalty.
// Commission fields are left as they were.
func (s *BookingService) TravelerCancel(ctx context.Context, req CancelRequest) (*domain.Booking, error) {
	if req.BookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	booking, err := s.bookingRepo.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	if booking.TravelerID != req.TravelerID {
		return nil, ErrTravelerMismatch
	}

	if !domain.CanTransition(booking.Status, domain.BookingStatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, booking.Status, domain.BookingStatusCancelled)
	}

	now := s.now().UTC()
	proration := Prorate(now, booking.StartDate, booking.EndDate, booking.TotalPrice)

	booking.Status = domain.BookingStatusCancelled
	booking.Cancellation = &domain.Cancellation{
		CancelledAt:   now,
		PenaltyAmount: proration.PenaltyAmount,
		RefundAmount:  proration.RefundAmount,
		Reason:        req.Reason,
	}
	booking.UpdatedAt = now

	if err := s.save(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.Info("booking cancelled",
		zap.String("booking_id", booking.ID),
		zap.Float64("penalty_amount", proration.PenaltyAmount),
		zap.Float64("refund_amount", proration.RefundAmount),
	)

	s.invalidateEarnings(ctx, booking.DriverID)
	_ = s.notificationService.NotifyBookingCancelled(ctx, booking)

	return booking, nil
}

// Get retrieves a booking by ID.
func (s *BookingService) Get(ctx context.Context, id string) (*domain.Booking, error) {
	if id == "" {
		return nil, ErrInvalidBookingID
	}
	return s.bookingRepo.GetByID(ctx, id)
}

// List retrieves bookings matching the filter.
func (s *BookingService) List(ctx context.Context, filter domain.BookingFilter) ([]*domain.Booking, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown booking status %q", ErrValidation, filter.Status)
	}
	return s.bookingRepo.List(ctx, filter)
}

// save writes the booking with compare-and-set on its current version.
func (s *BookingService) save(ctx context.Context, booking *domain.Booking) error {
	err := s.bookingRepo.Update(ctx, booking, booking.Version)
	if errors.Is(err, repository.ErrVersionConflict) {
		return ErrConflict
	}
	return err
}

func (s *BookingService) creationWarnings(ctx context.Context, booking *domain.Booking) []string {
	var warnings []string

	if s.availabilityService != nil {
		available, err := s.availabilityService.IsAvailable(ctx, booking.VehicleID, booking.StartDate, booking.EndDate)
		if err != nil {
			s.logger.Warn("availability check failed", zap.String("booking_id", booking.ID), zap.Error(err))
		} else if !available {
			warnings = append(warnings, "vehicle is marked unavailable for part of the requested dates")
		}
	}

	return append(warnings, s.overlapWarnings(ctx, booking)...)
}

func (s *BookingService) overlapWarnings(ctx context.Context, booking *domain.Booking) []string {
	confirmed, err := s.bookingRepo.ListConfirmedByVehicle(ctx, booking.VehicleID, booking.StartDate, booking.EndDate)
	if err != nil {
		s.logger.Warn("overlap check failed", zap.String("booking_id", booking.ID), zap.Error(err))
		return nil
	}

	var warnings []string
	for _, other := range confirmed {
		if other.ID == booking.ID {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("overlaps confirmed booking %s (%s to %s)",
			other.ID, other.StartDate.Format(domain.DateLayout), other.EndDate.Format(domain.DateLayout)))
	}
	return warnings
}

func (s *BookingService) invalidateEarnings(ctx context.Context, driverIDs ...string) {
	if s.earningsCache == nil {
		return
	}
	if err := s.earningsCache.InvalidateEarningsHistory(ctx, driverIDs...); err != nil {
		s.logger.Warn("earnings cache invalidation failed", zap.Strings("driver_ids", driverIDs), zap.Error(err))
	}
}
