package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExcavatorStatus is the operational status of an excavator.
type ExcavatorStatus string

const (
	ExcavatorActive       ExcavatorStatus = "ACTIVE"
	ExcavatorIdle         ExcavatorStatus = "IDLE"
	ExcavatorStandby      ExcavatorStatus = "STANDBY"
	ExcavatorMaintenance  ExcavatorStatus = "MAINTENANCE"
	ExcavatorBreakdown    ExcavatorStatus = "BREAKDOWN"
	ExcavatorOutOfService ExcavatorStatus = "OUT_OF_SERVICE"
)

// Excavator represents a loading excavator.
type Excavator struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	Code            string          `gorm:"uniqueIndex;size:32;not null" json:"code"`
	Name            string          `gorm:"size:128;not null" json:"name"`
	Brand           string          `gorm:"size:64" json:"brand"`
	Model           string          `gorm:"size:64" json:"model"`
	Capacity        float64         `json:"capacity"`
	Status          ExcavatorStatus `gorm:"size:32;not null;default:IDLE;index" json:"status"`
	CurrentLocation string          `gorm:"size:128" json:"currentLocation"`
	TotalHours      float64         `json:"totalHours"`
	IsActive        bool            `gorm:"not null;default:true" json:"isActive"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (e *Excavator) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
