package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"driverbook/internal/domain"
	"driverbook/internal/middleware"
	"driverbook/internal/service"
)

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	bookingService *service.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService *service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// CreateBookingRequest is the HTTP request body for a direct booking request.
type CreateBookingRequest struct {
	DriverID        string  `json:"driver_id"`
	VehicleID       string  `json:"vehicle_id"`
	StartDate       string  `json:"start_date"` // YYYY-MM-DD
	EndDate         string  `json:"end_date"`   // YYYY-MM-DD
	PricePerDay     float64 `json:"price_per_day"`
	PickupPoint     string  `json:"pickup_point,omitempty"`
	DropPoint       string  `json:"drop_point,omitempty"`
	FlightInfo      string  `json:"flight_info,omitempty"`
	SpecialRequests string  `json:"special_requests,omitempty"`
}

// RespondRequest is the HTTP request body for a driver response.
type RespondRequest struct {
	Action string `json:"action"` // accept or reject
}

// UpdateBookingRequest is the HTTP request body for a traveller edit.
type UpdateBookingRequest struct {
	StartDate       string  `json:"start_date,omitempty"`
	EndDate         string  `json:"end_date,omitempty"`
	PickupPoint     *string `json:"pickup_point,omitempty"`
	DropPoint       *string `json:"drop_point,omitempty"`
	FlightInfo      *string `json:"flight_info,omitempty"`
	SpecialRequests *string `json:"special_requests,omitempty"`
}

// CancelBookingRequest is the HTTP request body for a traveller cancellation.
type CancelBookingRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CancellationResponse is the cancellation record of a booking.
type CancellationResponse struct {
	CancelledAt   string  `json:"cancelled_at"`
	PenaltyAmount float64 `json:"penalty_amount"`
	RefundAmount  float64 `json:"refund_amount"`
	Reason        string  `json:"reason,omitempty"`
}

// BookingResponse is the HTTP representation of a booking.
type BookingResponse struct {
	ID                      string                `json:"id"`
	TravelerID              string                `json:"traveler_id"`
	DriverID                string                `json:"driver_id"`
	VehicleID               string                `json:"vehicle_id"`
	Status                  string                `json:"status"`
	StartDate               string                `json:"start_date"`
	EndDate                 string                `json:"end_date"`
	Days                    int                   `json:"days"`
	PricePerDay             float64               `json:"price_per_day,omitempty"`
	TotalPrice              float64               `json:"total_price"`
	TotalKms                float64               `json:"total_kms,omitempty"`
	PricePerExtraKm         float64               `json:"price_per_extra_km,omitempty"`
	CommissionBaseRate      float64               `json:"commission_base_rate"`
	AppliedDiscountID       string                `json:"applied_discount_id,omitempty"`
	EffectiveCommissionRate float64               `json:"effective_commission_rate"`
	CommissionAmount        float64               `json:"commission_amount"`
	CommissionSaved         float64               `json:"commission_saved"`
	DriverEarnings          float64               `json:"driver_earnings"`
	OfferID                 string                `json:"offer_id,omitempty"`
	ConversationID          string                `json:"conversation_id,omitempty"`
	PickupPoint             string                `json:"pickup_point,omitempty"`
	DropPoint               string                `json:"drop_point,omitempty"`
	FlightInfo              string                `json:"flight_info,omitempty"`
	SpecialRequests         string                `json:"special_requests,omitempty"`
	Cancellation            *CancellationResponse `json:"cancellation,omitempty"`
	Version                 int                   `json:"version"`
	CreatedAt               string                `json:"created_at"`
	UpdatedAt               string                `json:"updated_at"`
	Warnings                []string              `json:"warnings,omitempty"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	resp := BookingResponse{
		ID:                      b.ID,
		TravelerID:              b.TravelerID,
		DriverID:                b.DriverID,
		VehicleID:               b.VehicleID,
		Status:                  string(b.Status),
		StartDate:               formatDate(b.StartDate),
		EndDate:                 formatDate(b.EndDate),
		Days:                    b.Days(),
		PricePerDay:             b.PricePerDay,
		TotalPrice:              b.TotalPrice,
		TotalKms:                b.TotalKms,
		PricePerExtraKm:         b.PricePerExtraKm,
		CommissionBaseRate:      b.CommissionBaseRateAtBooking,
		AppliedDiscountID:       b.AppliedDiscountID,
		EffectiveCommissionRate: b.EffectiveCommissionRate,
		CommissionAmount:        b.CommissionAmount,
		CommissionSaved:         domain.RoundMoney(b.TotalPrice*b.CommissionBaseRateAtBooking - b.CommissionAmount),
		DriverEarnings:          b.DriverEarnings,
		OfferID:                 b.OfferID,
		ConversationID:          b.ConversationID,
		PickupPoint:             b.PickupPoint,
		DropPoint:               b.DropPoint,
		FlightInfo:              b.FlightInfo,
		SpecialRequests:         b.SpecialRequests,
		Version:                 b.Version,
		CreatedAt:               formatTime(b.CreatedAt),
		UpdatedAt:               formatTime(b.UpdatedAt),
	}

	if c := b.Cancellation; c != nil {
		resp.Cancellation = &CancellationResponse{
			CancelledAt:   formatTime(c.CancelledAt),
			PenaltyAmount: c.PenaltyAmount,
			RefundAmount:  c.RefundAmount,
			Reason:        c.Reason,
		}
	}

	return resp
}

// CreateBooking handles POST /v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	start, err := domain.ParseDate(req.StartDate)
	if err != nil {
		badRequest(c, "start_date must be formatted as YYYY-MM-DD")
		return
	}
	end, err := domain.ParseDate(req.EndDate)
	if err != nil {
		badRequest(c, "end_date must be formatted as YYYY-MM-DD")
		return
	}

	result, err := h.bookingService.Create(c.Request.Context(), service.CreateBookingRequest{
		TravelerID:      actorOf(c).ID,
		DriverID:        req.DriverID,
		VehicleID:       req.VehicleID,
		StartDate:       start,
		EndDate:         end,
		PricePerDay:     req.PricePerDay,
		PickupPoint:     req.PickupPoint,
		DropPoint:       req.DropPoint,
		FlightInfo:      req.FlightInfo,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := toBookingResponse(result.Booking)
	resp.Warnings = result.Warnings
	respondJSON(c, http.StatusCreated, resp)
}

// AcceptOffer handles POST /v1/offers/accepted
func (h *BookingHandler) AcceptOffer(c *gin.Context) {
	var offer service.OfferAccepted
	if err := c.ShouldBindJSON(&offer); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if actor := actorOf(c); actor.Role == middleware.RoleTraveler {
		offer.TravelerID = actor.ID
	}

	result, err := h.bookingService.CreateFromOffer(c.Request.Context(), offer)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := toBookingResponse(result.Booking)
	resp.Warnings = result.Warnings
	respondJSON(c, http.StatusCreated, resp)
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if !canView(actorOf(c), booking) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "booking belongs to another user"})
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// ListBookings handles GET /v1/bookings
// Travellers and drivers only see their own bookings.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	filter := domain.BookingFilter{
		TravelerID: c.Query("traveler_id"),
		DriverID:   c.Query("driver_id"),
		VehicleID:  c.Query("vehicle_id"),
		Status:     domain.BookingStatus(c.Query("status")),
	}

	switch actor := actorOf(c); actor.Role {
	case middleware.RoleTraveler:
		filter.TravelerID = actor.ID
	case middleware.RoleDriver:
		filter.DriverID = actor.ID
	}

	bookings, err := h.bookingService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		response = append(response, toBookingResponse(b))
	}

	respondJSON(c, http.StatusOK, response)
}

// RespondToBooking handles POST /v1/bookings/:id/respond
func (h *BookingHandler) RespondToBooking(c *gin.Context) {
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.bookingService.DriverRespond(c.Request.Context(), service.RespondRequest{
		BookingID: c.Param("id"),
		DriverID:  actorOf(c).ID,
		Action:    service.DriverAction(req.Action),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := toBookingResponse(result.Booking)
	resp.Warnings = result.Warnings
	respondJSON(c, http.StatusOK, resp)
}

// UpdateBooking handles PATCH /v1/bookings/:id
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	var req UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	start, err := parseDateParam(req.StartDate)
	if err != nil {
		badRequest(c, "start_date must be formatted as YYYY-MM-DD")
		return
	}
	end, err := parseDateParam(req.EndDate)
	if err != nil {
		badRequest(c, "end_date must be formatted as YYYY-MM-DD")
		return
	}

	booking, err := h.bookingService.TravelerUpdate(c.Request.Context(), service.TravelerUpdateRequest{
		BookingID:       c.Param("id"),
		TravelerID:      actorOf(c).ID,
		StartDate:       start,
		EndDate:         end,
		PickupPoint:     req.PickupPoint,
		DropPoint:       req.DropPoint,
		FlightInfo:      req.FlightInfo,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// CancelBooking handles POST /v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var req CancelBookingRequest
	// Body is optional.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	booking, err := h.bookingService.TravelerCancel(c.Request.Context(), service.CancelRequest{
		BookingID:  c.Param("id"),
		TravelerID: actorOf(c).ID,
		Reason:     req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

func canView(actor middleware.Actor, b *domain.Booking) bool {
	switch actor.Role {
	case middleware.RoleAdmin:
		return true
	case middleware.RoleDriver:
		return b.DriverID == actor.ID
	case middleware.RoleTraveler:
		return b.TravelerID == actor.ID
	}
	return false
}
