package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"driverbook/internal/domain"
	"driverbook/internal/middleware"
	"driverbook/internal/repository"
	"driverbook/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ConflictResponse is returned when an availability slot collides with another.
type ConflictResponse struct {
	Error       string        `json:"error"`
	Conflicting *SlotResponse `json:"conflicting_slot"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	var overlap *service.OverlapConflictError
	if errors.As(err, &overlap) {
		slot := toSlotResponse(overlap.Slot)
		c.JSON(http.StatusConflict, ConflictResponse{Error: err.Error(), Conflicting: &slot})
		return
	}

	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(code, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// badRequest reports a malformed request body or query.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrBookingNotEditable),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrOfferTermsMismatch),
		errors.Is(err, service.ErrOverlapConflict),
		errors.Is(err, repository.ErrVersionConflict),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrDriverNotAssigned),
		errors.Is(err, service.ErrTravelerMismatch):
		return http.StatusForbidden

	// Service unavailable
	case errors.Is(err, service.ErrSlipStorageUnavailable):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

// actorOf returns the caller identity. Routes are mounted behind ActorMiddleware.
func actorOf(c *gin.Context) middleware.Actor {
	actor, _ := middleware.ActorFrom(c)
	return actor
}

// parseDateParam parses an optional YYYY-MM-DD value.
func parseDateParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := domain.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
