package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"driverbook/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationBookingRequested   NotificationType = "BOOKING_REQUESTED"
	NotificationBookingConfirmed   NotificationType = "BOOKING_CONFIRMED"
	NotificationBookingRejected    NotificationType = "BOOKING_REJECTED"
	NotificationBookingUpdated     NotificationType = "BOOKING_UPDATED"
	NotificationBookingCancelled   NotificationType = "BOOKING_CANCELLED"
	NotificationCommissionRepriced NotificationType = "COMMISSION_REPRICED"
)

// Notification represents a notification to be sent.
type Notification struct {
	Type        NotificationType
	RecipientID string // Traveler or driver ID
	Title       string
	Message     string
	Data        map[string]any
	CreatedAt   time.Time
}

// NotificationService handles notification delivery. Delivery channels live
// outside this service; notifications are emitted as structured log entries.
type NotificationService struct {
	logger *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{logger: logger.Named("notification")}
}

// NotifyBookingRequested tells the driver a traveller requested a booking.
func (s *NotificationService) NotifyBookingRequested(ctx context.Context, b *domain.Booking) error {
	return s.send(ctx, Notification{
		Type:        NotificationBookingRequested,
		RecipientID: b.DriverID,
		Title:       "New Booking Request",
		Message: fmt.Sprintf("New booking from %s to %s for %.2f",
			b.StartDate.Format(domain.DateLayout), b.EndDate.Format(domain.DateLayout), b.TotalPrice),
		Data: map[string]any{
			"booking_id":      b.ID,
			"vehicle_id":      b.VehicleID,
			"driver_earnings": b.DriverEarnings,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyBookingResponded tells the traveller whether the driver accepted.
func (s *NotificationService) NotifyBookingResponded(ctx context.Context, b *domain.Booking) error {
	n := Notification{
		Type:        NotificationBookingConfirmed,
		RecipientID: b.TravelerID,
		Title:       "Booking Confirmed",
		Message:     "Your driver confirmed the booking",
		Data:        map[string]any{"booking_id": b.ID},
		CreatedAt:   time.Now(),
	}
	if b.Status == domain.BookingStatusRejected {
		n.Type = NotificationBookingRejected
		n.Title = "Booking Declined"
		n.Message = "Your driver declined the booking"
	}
	return s.send(ctx, n)
}

// NotifyBookingUpdated tells the driver the traveller changed the booking.
func (s *NotificationService) NotifyBookingUpdated(ctx context.Context, b *domain.Booking) error {
	return s.send(ctx, Notification{
		Type:        NotificationBookingUpdated,
		RecipientID: b.DriverID,
		Title:       "Booking Updated",
		Message:     "The traveler updated booking details",
		Data:        map[string]any{"booking_id": b.ID, "total_price": b.TotalPrice},
		CreatedAt:   time.Now(),
	})
}

// NotifyBookingCancelled tells the driver the traveller cancelled.
func (s *NotificationService) NotifyBookingCancelled(ctx context.Context, b *domain.Booking) error {
	data := map[string]any{"booking_id": b.ID}
	if b.Cancellation != nil {
		data["penalty_amount"] = b.Cancellation.PenaltyAmount
		data["reason"] = b.Cancellation.Reason
	}

	return s.send(ctx, Notification{
		Type:        NotificationBookingCancelled,
		RecipientID: b.DriverID,
		Title:       "Booking Cancelled",
		Message:     "The traveler cancelled the booking",
		Data:        data,
		CreatedAt:   time.Now(),
	})
}

// NotifyCommissionRepriced tells the driver a discount change moved their earnings.
func (s *NotificationService) NotifyCommissionRepriced(ctx context.Context, b *domain.Booking) error {
	return s.send(ctx, Notification{
		Type:        NotificationCommissionRepriced,
		RecipientID: b.DriverID,
		Title:       "Commission Updated",
		Message:     fmt.Sprintf("Commission on your booking is now %.2f%%", b.EffectiveCommissionRate*100),
		Data: map[string]any{
			"booking_id":        b.ID,
			"commission_amount": b.CommissionAmount,
			"driver_earnings":   b.DriverEarnings,
		},
		CreatedAt: time.Now(),
	})
}

// send delivers a notification.
func (s *NotificationService) send(ctx context.Context, n Notification) error {
	if s == nil {
		return nil
	}

	s.logger.Info("notification",
		zap.String("type", string(n.Type)),
		zap.String("recipient_id", n.RecipientID),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
		zap.Any("data", n.Data),
	)

	return nil
}
