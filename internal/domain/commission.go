package domain

import "time"

// CommissionStatus tracks the settlement of a monthly statement.
type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusSubmitted CommissionStatus = "submitted"
	CommissionStatusApproved  CommissionStatus = "approved"
)

// IsValid reports whether the commission status is known.
func (s CommissionStatus) IsValid() bool {
	switch s {
	case CommissionStatusPending, CommissionStatusSubmitted, CommissionStatusApproved:
		return true
	}
	return false
}

// DriverCommission is the persisted monthly statement record for one driver and period.
type DriverCommission struct {
	ID                    string
	DriverID              string
	Period                string // YYYY-MM
	TotalGross            float64
	TotalCommission       float64
	TotalDriverEarnings   float64
	BookingIDs            []string
	Status                CommissionStatus
	PaymentSlipURL        string
	PaymentSlipUploadedAt time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// DiscountSummary is the discount shown alongside a statement.
type DiscountSummary struct {
	ID              string
	Name            string
	DiscountPercent float64
	StartDate       time.Time
	EndDate         time.Time
	Status          DiscountStatus
}

// EarningsStatement is the computed view of a driver's month.
type EarningsStatement struct {
	Commission  *DriverCommission
	PeriodStart time.Time
	PeriodEnd   time.Time // Exclusive
	DueDate     time.Time
	Discount    *DiscountSummary
}
