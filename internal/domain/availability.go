package domain

import "time"

// SlotStatus is the availability label of a calendar slot.
type SlotStatus string

const (
	SlotStatusAvailable   SlotStatus = "available"
	SlotStatusUnavailable SlotStatus = "unavailable"
)

// IsValid reports whether the slot status is known.
func (s SlotStatus) IsValid() bool {
	return s == SlotStatusAvailable || s == SlotStatusUnavailable
}

// VehicleAvailability is a labelled date range on a vehicle's calendar.
type VehicleAvailability struct {
	ID        string
	VehicleID string
	StartDate time.Time
	EndDate   time.Time
	Status    SlotStatus
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Overlaps reports whether the slot intersects the given inclusive range.
func (v *VehicleAvailability) Overlaps(start, end time.Time) bool {
	return RangesOverlap(v.StartDate, v.EndDate, start, end)
}
