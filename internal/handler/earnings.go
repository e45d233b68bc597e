package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"driverbook/internal/domain"
	"driverbook/internal/middleware"
	"driverbook/internal/service"
)

// maxSlipSize bounds payment slip uploads.
const maxSlipSize = 10 << 20

// EarningsHandler handles HTTP requests for driver statements.
type EarningsHandler struct {
	earningsService *service.EarningsService
}

// NewEarningsHandler creates a new EarningsHandler.
func NewEarningsHandler(earningsService *service.EarningsService) *EarningsHandler {
	return &EarningsHandler{earningsService: earningsService}
}

// CommissionResponse is the persisted part of a statement.
type CommissionResponse struct {
	ID                    string   `json:"id"`
	DriverID              string   `json:"driver_id"`
	Period                string   `json:"period"`
	TotalGross            float64  `json:"total_gross"`
	TotalCommission       float64  `json:"total_commission"`
	TotalDriverEarnings   float64  `json:"total_driver_earnings"`
	BookingIDs            []string `json:"booking_ids"`
	Status                string   `json:"status"`
	PaymentSlipURL        string   `json:"payment_slip_url,omitempty"`
	PaymentSlipUploadedAt string   `json:"payment_slip_uploaded_at,omitempty"`
}

// DiscountSummaryResponse is the discount shown on a statement.
type DiscountSummaryResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	DiscountPercent float64 `json:"discount_percent"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	Status          string  `json:"status"`
}

// StatementResponse is the HTTP representation of a monthly statement.
type StatementResponse struct {
	CommissionResponse
	PeriodStart string                   `json:"period_start"`
	PeriodEnd   string                   `json:"period_end"`
	DueDate     string                   `json:"due_date"`
	Discount    *DiscountSummaryResponse `json:"discount,omitempty"`
}

// SetCommissionStatusRequest is the HTTP request body for the status setter.
type SetCommissionStatusRequest struct {
	Status string `json:"status"`
}

func toCommissionResponse(c *domain.DriverCommission) CommissionResponse {
	ids := c.BookingIDs
	if ids == nil {
		ids = []string{}
	}
	return CommissionResponse{
		ID:                    c.ID,
		DriverID:              c.DriverID,
		Period:                c.Period,
		TotalGross:            c.TotalGross,
		TotalCommission:       c.TotalCommission,
		TotalDriverEarnings:   c.TotalDriverEarnings,
		BookingIDs:            ids,
		Status:                string(c.Status),
		PaymentSlipURL:        c.PaymentSlipURL,
		PaymentSlipUploadedAt: formatTime(c.PaymentSlipUploadedAt),
	}
}

func toStatementResponse(s *domain.EarningsStatement) StatementResponse {
	resp := StatementResponse{
		CommissionResponse: toCommissionResponse(s.Commission),
		PeriodStart:        formatDate(s.PeriodStart),
		PeriodEnd:          formatDate(s.PeriodEnd),
		DueDate:            formatDate(s.DueDate),
	}
	if d := s.Discount; d != nil {
		resp.Discount = &DiscountSummaryResponse{
			ID:              d.ID,
			Name:            d.Name,
			DiscountPercent: d.DiscountPercent,
			StartDate:       formatDate(d.StartDate),
			EndDate:         formatDate(d.EndDate),
			Status:          string(d.Status),
		}
	}
	return resp
}

// GetSummary handles GET /v1/drivers/:id/earnings?period=YYYY-MM
func (h *EarningsHandler) GetSummary(c *gin.Context) {
	driverID := c.Param("id")
	if !canSeeDriver(actorOf(c), driverID) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "earnings belong to another driver"})
		return
	}

	statement, err := h.earningsService.Summarize(c.Request.Context(), driverID, c.Query("period"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toStatementResponse(statement))
}

// GetHistory handles GET /v1/drivers/:id/earnings/history
func (h *EarningsHandler) GetHistory(c *gin.Context) {
	driverID := c.Param("id")
	if !canSeeDriver(actorOf(c), driverID) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "earnings belong to another driver"})
		return
	}

	history, err := h.earningsService.History(c.Request.Context(), driverID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]StatementResponse, 0, len(history))
	for _, s := range history {
		response = append(response, toStatementResponse(s))
	}

	respondJSON(c, http.StatusOK, response)
}

// UploadSlip handles POST /v1/commissions/:id/slip (multipart field "file")
func (h *EarningsHandler) UploadSlip(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if header.Size > maxSlipSize {
		badRequest(c, "file exceeds 10MB")
		return
	}

	file, err := header.Open()
	if err != nil {
		badRequest(c, "file could not be read")
		return
	}
	defer file.Close()

	record, err := h.earningsService.UploadPaymentSlip(c.Request.Context(), c.Param("id"), service.SlipUpload{
		DriverID:    actorOf(c).ID,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toCommissionResponse(record))
}

// SetStatus handles PUT /v1/admin/commissions/:id/status
func (h *EarningsHandler) SetStatus(c *gin.Context) {
	var req SetCommissionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	record, err := h.earningsService.SetStatus(c.Request.Context(), c.Param("id"), domain.CommissionStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toCommissionResponse(record))
}

func canSeeDriver(actor middleware.Actor, driverID string) bool {
	return actor.Role == middleware.RoleAdmin || (actor.Role == middleware.RoleDriver && actor.ID == driverID)
}
