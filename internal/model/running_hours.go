package model

import "time"

// RunningHours caches a crane's cumulative operating hours.
// It is always rebuilt from the task-log aggregate, never incremented.
type RunningHours struct {
	CraneID        int64     `gorm:"primaryKey;autoIncrement:false" json:"crane_id"`
	TotalHours     float64   `gorm:"not null" json:"total_hours"`
	RecalculatedAt time.Time `gorm:"not null" json:"recalculated_at"`
}
