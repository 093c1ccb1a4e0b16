package model

import (
	"time"

	"gorm.io/gorm"
)

// Truck is a service truck that carries oil drums out to the cranes and has
// its own fuel tank.
type Truck struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Number    string    `gorm:"column:truck_number;uniqueIndex;size:50;not null" json:"truck_number"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DrumIO is the direction of an oil drum movement.
type DrumIO string

const (
	// DrumIn refills the drum from a supplier and carries a unit price.
	DrumIn DrumIO = "IN"
	// DrumOut dispenses oil from the drum into a crane.
	DrumOut DrumIO = "OUT"
)

// OilDrumRecord is one refill or dispense of a truck's oil drum, in litres.
type OilDrumRecord struct {
	ID         int64          `gorm:"primaryKey" json:"id"`
	TruckID    int64          `gorm:"index;not null" json:"truck_id"`
	CraneID    *int64         `gorm:"index" json:"crane_id"`
	RecordDate time.Time      `gorm:"type:date;not null" json:"record_date"`
	IOType     DrumIO         `gorm:"column:io_type;size:3;not null" json:"io_type"`
	Quantity   float64        `gorm:"not null" json:"quantity"`
	UnitPrice  *float64       `json:"unit_price"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	// Associations
	Truck Truck  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Crane *Crane `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}

// TruckFuelRecord is a refuelling of the truck's own tank, in litres.
type TruckFuelRecord struct {
	ID         int64          `gorm:"primaryKey" json:"id"`
	TruckID    int64          `gorm:"index;not null" json:"truck_id"`
	RecordDate time.Time      `gorm:"type:date;not null" json:"record_date"`
	Quantity   float64        `gorm:"not null" json:"quantity"`
	UnitPrice  float64        `gorm:"not null" json:"unit_price"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	// Associations
	Truck Truck `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
