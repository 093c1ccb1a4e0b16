package model

import (
	"time"

	"gorm.io/gorm"
)

// DailyTask is one day's work log for a crane. WorkTime feeds the running-hours total.
type DailyTask struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	CraneID   int64          `gorm:"index;not null" json:"crane_id"`
	TaskDate  time.Time      `gorm:"type:date;not null" json:"task_date"`
	Vendor    string         `gorm:"size:100" json:"vendor"`
	WorkTime  float64        `gorm:"not null" json:"work_time"`
	Note      string         `gorm:"type:text" json:"note"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Associations
	Crane Crane `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
