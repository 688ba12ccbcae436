package model

import "time"

// DispatchSubscription holds a dispatcher browser's push subscription. The
// associated trucks are the ones the dispatcher wants availability alerts for.
type DispatchSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Trucks []*Truck `gorm:"many2many:subscription_truck_mapping;"`
}
