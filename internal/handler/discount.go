package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"driverbook/internal/domain"
	"driverbook/internal/service"
)

// DiscountHandler handles HTTP requests for commission discounts.
type DiscountHandler struct {
	discountService *service.DiscountService
}

// NewDiscountHandler creates a new DiscountHandler.
func NewDiscountHandler(discountService *service.DiscountService) *DiscountHandler {
	return &DiscountHandler{discountService: discountService}
}

// DiscountRequest is the HTTP request body for creating or replacing a discount.
type DiscountRequest struct {
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	DiscountPercent float64 `json:"discount_percent"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	Active          *bool   `json:"active,omitempty"` // Defaults to true
}

// DiscountResponse is the HTTP representation of a discount.
type DiscountResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	DiscountPercent float64 `json:"discount_percent"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	Active          bool    `json:"active"`
	Status          string  `json:"status"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// RecalculationResponse summarizes a recalculation sweep.
type RecalculationResponse struct {
	RecalculatedBookings int `json:"recalculated_bookings"`
	ScannedBookings      int `json:"scanned_bookings"`
	SkippedBookings      int `json:"skipped_bookings"`
	FailedBookings       int `json:"failed_bookings"`
}

// DiscountMutationResponse is returned by create, update and delete.
type DiscountMutationResponse struct {
	Discount DiscountResponse `json:"discount"`
	RecalculationResponse
}

func toDiscountResponse(d *service.DiscountView) DiscountResponse {
	return DiscountResponse{
		ID:              d.ID,
		Name:            d.Name,
		Description:     d.Description,
		DiscountPercent: d.DiscountPercent,
		StartDate:       formatDate(d.StartDate),
		EndDate:         formatDate(d.EndDate),
		Active:          d.Active,
		Status:          string(d.Status),
		CreatedAt:       formatTime(d.CreatedAt),
		UpdatedAt:       formatTime(d.UpdatedAt),
	}
}

func toRecalculationResponse(r service.RecalculationResult) RecalculationResponse {
	return RecalculationResponse{
		RecalculatedBookings: r.Recalculated,
		ScannedBookings:      r.Scanned,
		SkippedBookings:      r.Skipped,
		FailedBookings:       r.Failed,
	}
}

func toMutationResponse(r *service.DiscountResult) DiscountMutationResponse {
	return DiscountMutationResponse{
		Discount:              toDiscountResponse(r.Discount),
		RecalculationResponse: toRecalculationResponse(r.Recalculation),
	}
}

// bindDiscount parses the request body into a service request.
func bindDiscount(c *gin.Context) (service.DiscountRequest, bool) {
	var req DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return service.DiscountRequest{}, false
	}

	start, err := domain.ParseDate(req.StartDate)
	if err != nil {
		badRequest(c, "start_date must be formatted as YYYY-MM-DD")
		return service.DiscountRequest{}, false
	}
	end, err := domain.ParseDate(req.EndDate)
	if err != nil {
		badRequest(c, "end_date must be formatted as YYYY-MM-DD")
		return service.DiscountRequest{}, false
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	return service.DiscountRequest{
		Name:            req.Name,
		Description:     req.Description,
		DiscountPercent: req.DiscountPercent,
		StartDate:       start,
		EndDate:         end,
		Active:          active,
	}, true
}

// CreateDiscount handles POST /v1/admin/discounts
func (h *DiscountHandler) CreateDiscount(c *gin.Context) {
	req, ok := bindDiscount(c)
	if !ok {
		return
	}

	result, err := h.discountService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toMutationResponse(result))
}

// UpdateDiscount handles PUT /v1/admin/discounts/:id
func (h *DiscountHandler) UpdateDiscount(c *gin.Context) {
	req, ok := bindDiscount(c)
	if !ok {
		return
	}

	result, err := h.discountService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toMutationResponse(result))
}

// SetActiveRequest is the HTTP request body for toggling a discount.
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

// SetDiscountActive handles PATCH /v1/admin/discounts/:id/active
func (h *DiscountHandler) SetDiscountActive(c *gin.Context) {
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		badRequest(c, "active is required")
		return
	}

	result, err := h.discountService.SetActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toMutationResponse(result))
}

// DeleteDiscount handles DELETE /v1/admin/discounts/:id
func (h *DiscountHandler) DeleteDiscount(c *gin.Context) {
	result, err := h.discountService.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toMutationResponse(result))
}

// GetDiscount handles GET /v1/admin/discounts/:id
func (h *DiscountHandler) GetDiscount(c *gin.Context) {
	discount, err := h.discountService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDiscountResponse(discount))
}

// ListDiscounts handles GET /v1/admin/discounts
func (h *DiscountHandler) ListDiscounts(c *gin.Context) {
	discounts, err := h.discountService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	status := c.Query("status")
	response := make([]DiscountResponse, 0, len(discounts))
	for _, d := range discounts {
		if status != "" && string(d.Status) != status {
			continue
		}
		response = append(response, toDiscountResponse(d))
	}

	respondJSON(c, http.StatusOK, response)
}

// Recalculate handles POST /v1/admin/discounts/recalculate
func (h *DiscountHandler) Recalculate(c *gin.Context) {
	result, err := h.discountService.RecalculateAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRecalculationResponse(result))
}
