package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TruckStatus is the operational status of a haul truck.
type TruckStatus string

const (
	TruckIdle         TruckStatus = "IDLE"
	TruckStandby      TruckStatus = "STANDBY"
	TruckLoading      TruckStatus = "LOADING"
	TruckHauling      TruckStatus = "HAULING"
	TruckDumping      TruckStatus = "DUMPING"
	TruckInQueue      TruckStatus = "IN_QUEUE"
	TruckMaintenance  TruckStatus = "MAINTENANCE"
	TruckBreakdown    TruckStatus = "BREAKDOWN"
	TruckRefueling    TruckStatus = "REFUELING"
	TruckOutOfService TruckStatus = "OUT_OF_SERVICE"
)

// Truck represents a haul truck in the fleet.
type Truck struct {
	ID              string      `gorm:"primaryKey;size:36" json:"id"`
	Code            string      `gorm:"uniqueIndex;size:32;not null" json:"code"`
	Name            string      `gorm:"size:128;not null" json:"name"`
	Brand           string      `gorm:"size:64" json:"brand"`
	Model           string      `gorm:"size:64" json:"model"`
	YearManufacture int         `json:"yearManufacture"`
	Capacity        float64     `json:"capacity"`
	FuelCapacity    float64     `json:"fuelCapacity"`
	Status          TruckStatus `gorm:"size:32;not null;default:IDLE;index" json:"status"`
	CurrentLocation string      `gorm:"size:128" json:"currentLocation"`
	TotalHours      float64     `json:"totalHours"`
	TotalDistance   float64     `json:"totalDistance"`
	IsActive        bool        `gorm:"not null;default:true" json:"isActive"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

func (t *Truck) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Available reports whether the truck can be bound to a new haul trip.
func (t *Truck) Available() bool {
	return t.IsActive && (t.Status == TruckIdle || t.Status == TruckStandby)
}
