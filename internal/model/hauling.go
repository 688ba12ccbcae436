package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HaulingStatus is the lifecycle state of a haul trip.
type HaulingStatus string

const (
	HaulingPlanned   HaulingStatus = "PLANNED"
	HaulingInQueue   HaulingStatus = "IN_QUEUE"
	HaulingLoading   HaulingStatus = "LOADING"
	HaulingHauling   HaulingStatus = "HAULING"
	HaulingDumping   HaulingStatus = "DUMPING"
	HaulingReturning HaulingStatus = "RETURNING"
	HaulingCompleted HaulingStatus = "COMPLETED"
	HaulingDelayed   HaulingStatus = "DELAYED"
	HaulingCancelled HaulingStatus = "CANCELLED"
	HaulingIncident  HaulingStatus = "INCIDENT"
)

// Terminal reports whether the status permanently releases the bound equipment.
func (s HaulingStatus) Terminal() bool {
	return s == HaulingCompleted || s == HaulingCancelled || s == HaulingIncident
}

// HaulingActivity is one haul cycle: load, transport, dump, return.
// Timestamps are pointers because each one is unset until its stage is reached;
// once set they are non-decreasing in cycle order.
type HaulingActivity struct {
	ID             string        `gorm:"primaryKey;size:36" json:"id"`
	ActivityNumber string        `gorm:"uniqueIndex;size:32;not null" json:"activityNumber"`
	TruckID        string        `gorm:"size:36;not null;index" json:"truckId"`
	ExcavatorID    string        `gorm:"size:36;not null;index" json:"excavatorId"`
	OperatorID     string        `gorm:"size:36;not null" json:"operatorId"`
	LoadingPointID string        `gorm:"size:36;not null" json:"loadingPointId"`
	DumpingPointID string        `gorm:"size:36;not null" json:"dumpingPointId"`
	RoadSegmentID  *string       `gorm:"size:36" json:"roadSegmentId"`
	DispatcherID   string        `gorm:"size:36" json:"dispatcherId"`
	Shift          Shift         `gorm:"size:16;not null" json:"shift"`
	Status         HaulingStatus `gorm:"size:16;not null;index" json:"status"`

	LoadingStartTime *time.Time `gorm:"index" json:"loadingStartTime"`
	LoadingEndTime   *time.Time `json:"loadingEndTime"`
	DepartureTime    *time.Time `json:"departureTime"`
	ArrivalTime      *time.Time `json:"arrivalTime"`
	DumpingStartTime *time.Time `json:"dumpingStartTime"`
	DumpingEndTime   *time.Time `json:"dumpingEndTime"`
	ReturnTime       *time.Time `json:"returnTime"`

	TargetWeight   float64 `gorm:"not null" json:"targetWeight"`
	LoadWeight     float64 `json:"loadWeight"`
	LoadEfficiency float64 `json:"loadEfficiency"`
	Distance       float64 `json:"distance"`
	FuelConsumed   float64 `json:"fuelConsumed"`

	// Durations are whole minutes derived from the timestamps above.
	LoadingDuration int `json:"loadingDuration"`
	HaulingDuration int `json:"haulingDuration"`
	DumpingDuration int `json:"dumpingDuration"`
	ReturnDuration  int `json:"returnDuration"`
	TotalCycleTime  int `json:"totalCycleTime"`

	IsDelayed         bool    `gorm:"not null;default:false" json:"isDelayed"`
	DelayMinutes      int     `json:"delayMinutes"`
	DelayReasonID     *string `gorm:"size:36" json:"delayReasonId"`
	DelayReasonDetail string  `gorm:"size:512" json:"delayReasonDetail"`

	// TimingEstimated marks cycles whose dumping start or arrival had to be
	// back-filled because the caller never reported them; derived hauling and
	// dumping durations are unreliable on such rows.
	TimingEstimated bool `gorm:"not null;default:false" json:"timingEstimated"`

	Remarks   string    `gorm:"size:512" json:"remarks"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Truck        *Truck        `gorm:"foreignKey:TruckID" json:"truck,omitempty"`
	Excavator    *Excavator    `gorm:"foreignKey:ExcavatorID" json:"excavator,omitempty"`
	Operator     *Operator     `gorm:"foreignKey:OperatorID" json:"operator,omitempty"`
	LoadingPoint *LoadingPoint `gorm:"foreignKey:LoadingPointID" json:"loadingPoint,omitempty"`
	DumpingPoint *DumpingPoint `gorm:"foreignKey:DumpingPointID" json:"dumpingPoint,omitempty"`
	RoadSegment  *RoadSegment  `gorm:"foreignKey:RoadSegmentID" json:"roadSegment,omitempty"`
	DelayReason  *DelayReason  `gorm:"foreignKey:DelayReasonID" json:"delayReason,omitempty"`
}

func (a *HaulingActivity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// ActivityCounter is the per-day trip sequence, bumped with a single atomic
// read-modify-write inside the transaction that creates the activity.
type ActivityCounter struct {
	Day string `gorm:"primaryKey;size:8"`
	Seq int    `gorm:"not null"`
}
