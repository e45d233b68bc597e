package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"driverbook/internal/domain"
	"driverbook/internal/service"
)

// AvailabilityHandler handles HTTP requests for vehicle calendars.
type AvailabilityHandler struct {
	availabilityService *service.AvailabilityService
}

// NewAvailabilityHandler creates a new AvailabilityHandler.
func NewAvailabilityHandler(availabilityService *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availabilityService: availabilityService}
}

// SlotRequest is the HTTP request body for adding or patching a slot.
type SlotRequest struct {
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Status    string  `json:"status"`
	Note      *string `json:"note,omitempty"`
}

// SlotResponse is the HTTP representation of a calendar slot.
type SlotResponse struct {
	ID        string `json:"id"`
	VehicleID string `json:"vehicle_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Status    string `json:"status"`
	Note      string `json:"note,omitempty"`
}

// AvailabilityCheckResponse is the result of an availability query.
type AvailabilityCheckResponse struct {
	VehicleID string `json:"vehicle_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Available bool   `json:"available"`
}

func toSlotResponse(s *domain.VehicleAvailability) SlotResponse {
	return SlotResponse{
		ID:        s.ID,
		VehicleID: s.VehicleID,
		StartDate: formatDate(s.StartDate),
		EndDate:   formatDate(s.EndDate),
		Status:    string(s.Status),
		Note:      s.Note,
	}
}

// AddSlot handles POST /v1/vehicles/:id/availability
func (h *AvailabilityHandler) AddSlot(c *gin.Context) {
	var req SlotRequest
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

	var note string
	if req.Note != nil {
		note = *req.Note
	}

	slot, err := h.availabilityService.AddSlot(c.Request.Context(), service.AddSlotRequest{
		VehicleID: c.Param("id"),
		StartDate: start,
		EndDate:   end,
		Status:    domain.SlotStatus(req.Status),
		Note:      note,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toSlotResponse(slot))
}

// UpdateSlot handles PUT /v1/availability/:id
// Omitted fields keep their current value.
func (h *AvailabilityHandler) UpdateSlot(c *gin.Context) {
	var req SlotRequest
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

	patch := service.UpdateSlotRequest{
		StartDate: start,
		EndDate:   end,
		Note:      req.Note,
	}
	if req.Status != "" {
		status := domain.SlotStatus(req.Status)
		patch.Status = &status
	}

	slot, err := h.availabilityService.UpdateSlot(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toSlotResponse(slot))
}

// RemoveSlot handles DELETE /v1/availability/:id
func (h *AvailabilityHandler) RemoveSlot(c *gin.Context) {
	if err := h.availabilityService.RemoveSlot(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListSlots handles GET /v1/vehicles/:id/availability
func (h *AvailabilityHandler) ListSlots(c *gin.Context) {
	slots, err := h.availabilityService.ListSlots(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		response = append(response, toSlotResponse(s))
	}

	respondJSON(c, http.StatusOK, response)
}

// CheckAvailability handles GET /v1/vehicles/:id/availability/check?start=&end=
func (h *AvailabilityHandler) CheckAvailability(c *gin.Context) {
	start, err := domain.ParseDate(c.Query("start"))
	if err != nil {
		badRequest(c, "start must be formatted as YYYY-MM-DD")
		return
	}
	end, err := domain.ParseDate(c.Query("end"))
	if err != nil {
		badRequest(c, "end must be formatted as YYYY-MM-DD")
		return
	}

	available, err := h.availabilityService.IsAvailable(c.Request.Context(), c.Param("id"), start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, AvailabilityCheckResponse{
		VehicleID: c.Param("id"),
		StartDate: formatDate(start),
		EndDate:   formatDate(end),
		Available: available,
	})
}
