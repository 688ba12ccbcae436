package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoadingPoint is a fixed site where trucks are loaded.
type LoadingPoint struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Code      string    `gorm:"uniqueIndex;size:32;not null" json:"code"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Elevation float64   `json:"elevation"`
	IsActive  bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *LoadingPoint) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// DumpingPoint is a fixed site where trucks dump their load.
type DumpingPoint struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Code         string    `gorm:"uniqueIndex;size:32;not null" json:"code"`
	Name         string    `gorm:"size:128;not null" json:"name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	CapacityM3   float64   `json:"capacityM3"`
	MaterialType string    `gorm:"size:64" json:"materialType"`
	IsActive     bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (p *DumpingPoint) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// RoadSegment is a stretch of haul road between two sites.
type RoadSegment struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Code       string    `gorm:"uniqueIndex;size:32;not null" json:"code"`
	Name       string    `gorm:"size:128;not null" json:"name"`
	DistanceKm float64   `json:"distanceKm"`
	Condition  string    `gorm:"size:32" json:"condition"`
	IsActive   bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (r *RoadSegment) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// DelayReason is a catalogued cause for a haul trip delay.
type DelayReason struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	Code     string `gorm:"uniqueIndex;size:32;not null" json:"code"`
	Name     string `gorm:"size:128;not null" json:"name"`
	Category string `gorm:"size:64" json:"category"`
}

func (d *DelayReason) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
