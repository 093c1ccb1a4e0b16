package model

import "time"

// CraneType distinguishes crawler cranes from wheeled cranes.
type CraneType string

const (
	CraneTypeTracked CraneType = "tracked"
	CraneTypeWheeled CraneType = "wheeled"
)

// DefaultInitialHours is the hour offset a crane starts with when none is given.
const DefaultInitialHours = 100

// Crane represents a machine in the fleet.
type Crane struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Number       string    `gorm:"column:crane_number;uniqueIndex;size:50;not null" json:"crane_number"`
	Type         CraneType `gorm:"column:crane_type;size:16;not null" json:"crane_type"`
	InitialHours int64     `gorm:"not null" json:"initial_hours"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Associations
	RunningHours *RunningHours `gorm:"foreignKey:CraneID;constraint:OnDelete:CASCADE" json:"-"`
}

// AlertThreshold returns the running-hours level above which the crane is flagged.
func (c Crane) AlertThreshold() float64 {
	if c.Type == CraneTypeTracked {
		return 450
	}
	return 950
}
