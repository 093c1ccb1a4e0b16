package model

import "time"

// MaintenanceRecord is a service entry logged against a crane at a given hour reading.
// Parts and Consumables hold codes, never display labels.
type MaintenanceRecord struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	CraneID          int64     `gorm:"not null;index:idx_maintenance_crane_hours,priority:1" json:"crane_id"`
	RecordDate       time.Time `gorm:"type:date;not null" json:"record_date"`
	MaintenanceHours int64     `gorm:"not null;index:idx_maintenance_crane_hours,priority:2" json:"maintenance_hours"`
	Parts            []string  `gorm:"serializer:json;type:text" json:"parts"`
	Consumables      []string  `gorm:"serializer:json;type:text" json:"consumables"`
	Note             string    `gorm:"type:text" json:"note"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Associations
	Crane Crane `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
