package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OperatorStatus is the duty status of an equipment operator.
type OperatorStatus string

const (
	OperatorActive    OperatorStatus = "ACTIVE"
	OperatorOffDuty   OperatorStatus = "OFF_DUTY"
	OperatorOnLeave   OperatorStatus = "ON_LEAVE"
	OperatorSuspended OperatorStatus = "SUSPENDED"
)

// Shift identifies one of the three daily work shifts.
type Shift string

const (
	Shift1 Shift = "SHIFT_1"
	Shift2 Shift = "SHIFT_2"
	Shift3 Shift = "SHIFT_3"
)

// Operator represents a licensed truck operator.
type Operator struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	EmployeeNumber string         `gorm:"uniqueIndex;size:32;not null" json:"employeeNumber"`
	FullName       string         `gorm:"size:128;not null" json:"fullName"`
	Status         OperatorStatus `gorm:"size:32;not null;default:ACTIVE;index" json:"status"`
	Shift          Shift          `gorm:"size:16" json:"shift"`
	LicenseNumber  string         `gorm:"size:64" json:"licenseNumber"`
	Rating         float64        `json:"rating"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func (o *Operator) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
