package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EquipmentStatusLog is an append-only audit entry written on every equipment
// status change. Exactly one of TruckID or ExcavatorID is set.
type EquipmentStatusLog struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	TruckID        *string   `gorm:"size:36;index" json:"truckId,omitempty"`
	ExcavatorID    *string   `gorm:"size:36;index" json:"excavatorId,omitempty"`
	PreviousStatus string    `gorm:"size:32;not null" json:"previousStatus"`
	CurrentStatus  string    `gorm:"size:32;not null" json:"currentStatus"`
	StatusReason   string    `gorm:"size:256" json:"statusReason"`
	Location       string    `gorm:"size:128" json:"location"`
	CreatedAt      time.Time `gorm:"index" json:"createdAt"`
}

func (l *EquipmentStatusLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
