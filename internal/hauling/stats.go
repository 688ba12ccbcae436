package hauling

import (
	"context"
	"time"

	"haul-fleet-backend/internal/apperr"
	"haul-fleet-backend/internal/model"
	"haul-fleet-backend/internal/registry"

	"gorm.io/gorm"
)

// StatsFilter narrows Statistics to a date range and shift.
type StatsFilter struct {
	Shift     model.Shift
	StartDate *time.Time
	EndDate   *time.Time
}

// Statistics is the read-only rollup over historical trips.
type Statistics struct {
	TotalActivities     int64   `json:"totalActivities"`
	CompletedActivities int64   `json:"completedActivities"`
	DelayedActivities   int64   `json:"delayedActivities"`
	DelayRate           float64 `json:"delayRate"`
	CompletionRate      float64 `json:"completionRate"`
	AvgCycleTime        float64 `json:"avgCycleTime"`
	AvgLoadWeight       float64 `json:"avgLoadWeight"`
	AvgLoadEfficiency   float64 `json:"avgLoadEfficiency"`
	AvgDelayMinutes     float64 `json:"avgDelayMinutes"`
	TotalLoadWeight     float64 `json:"totalLoadWeight"`
	TotalDistance       float64 `json:"totalDistance"`
	TotalFuelConsumed   float64 `json:"totalFuelConsumed"`
}

func (f StatsFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Shift != "" {
		q = q.Where("shift = ?", f.Shift)
	}
	if f.StartDate != nil {
		q = q.Where("loading_start_time >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("loading_start_time <= ?", *f.EndDate)
	}
	return q
}

type aggRow struct {
	AvgCycleTime      float64
	AvgLoadWeight     float64
	AvgLoadEfficiency float64
	AvgDelayMinutes   float64
	TotalLoadWeight   float64
	TotalDistance     float64
	TotalFuelConsumed float64
}

const aggSelect = "COALESCE(AVG(total_cycle_time), 0) AS avg_cycle_time, " +
	"COALESCE(AVG(load_weight), 0) AS avg_load_weight, " +
	"COALESCE(AVG(load_efficiency), 0) AS avg_load_efficiency, " +
	"COALESCE(AVG(delay_minutes), 0) AS avg_delay_minutes, " +
	"COALESCE(SUM(load_weight), 0) AS total_load_weight, " +
	"COALESCE(SUM(distance), 0) AS total_distance, " +
	"COALESCE(SUM(fuel_consumed), 0) AS total_fuel_consumed"

// Statistics aggregates counts, rates, averages and sums over the filtered
// trips. Averages and sums are taken over completed trips only; counts and
// rates cover everything the filter matches. Reads committed rows only and
// never touches the state machine.
func (c *Coordinator) Statistics(ctx context.Context, filter StatsFilter) (*Statistics, error) {
	db := c.db.WithContext(ctx)

	var total, completed, delayed int64
	if err := filter.apply(db.Model(&model.HaulingActivity{})).Count(&total).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if err := filter.apply(db.Model(&model.HaulingActivity{})).
		Where("status = ?", model.HaulingCompleted).Count(&completed).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if err := filter.apply(db.Model(&model.HaulingActivity{})).
		Where("is_delayed = ?", true).Count(&delayed).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	var agg aggRow
	if err := filter.apply(db.Model(&model.HaulingActivity{})).
		Where("status = ?", model.HaulingCompleted).
		Select(aggSelect).
		Scan(&agg).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	stats := &Statistics{
		TotalActivities:     total,
		CompletedActivities: completed,
		DelayedActivities:   delayed,
		AvgCycleTime:        agg.AvgCycleTime,
		AvgLoadWeight:       agg.AvgLoadWeight,
		AvgLoadEfficiency:   agg.AvgLoadEfficiency,
		AvgDelayMinutes:     agg.AvgDelayMinutes,
		TotalLoadWeight:     agg.TotalLoadWeight,
		TotalDistance:       agg.TotalDistance,
		TotalFuelConsumed:   agg.TotalFuelConsumed,
	}
	if total > 0 {
		stats.DelayRate = Round2(float64(delayed) / float64(total) * 100)
		stats.CompletionRate = Round2(float64(completed) / float64(total) * 100)
	}
	return stats, nil
}

// TruckSummary is the equipment header on a performance report.
type TruckSummary struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// TruckPerformance is a per-truck rollup of its completed trips.
type TruckPerformance struct {
	Truck             TruckSummary `json:"truck"`
	TotalTrips        int64        `json:"totalTrips"`
	DelayedTrips      int64        `json:"delayedTrips"`
	DelayRate         float64      `json:"delayRate"`
	AvgCycleTime      float64      `json:"avgCycleTime"`
	AvgLoadWeight     float64      `json:"avgLoadWeight"`
	AvgLoadEfficiency float64      `json:"avgLoadEfficiency"`
	TotalLoadWeight   float64      `json:"totalLoadWeight"`
	TotalDistance     float64      `json:"totalDistance"`
	TotalFuelConsumed float64      `json:"totalFuelConsumed"`
}

// Performance rolls up one truck's completed trips in the given range.
func (c *Coordinator) Performance(ctx context.Context, truckID string, startDate, endDate *time.Time) (*TruckPerformance, error) {
	db := c.db.WithContext(ctx)

	truck, err := registry.TruckByID(db, truckID)
	if err != nil {
		return nil, err
	}

	base := func() *gorm.DB {
		q := db.Model(&model.HaulingActivity{}).
			Where("truck_id = ? AND status = ?", truckID, model.HaulingCompleted)
		if startDate != nil {
			q = q.Where("loading_start_time >= ?", *startDate)
		}
		if endDate != nil {
			q = q.Where("loading_start_time <= ?", *endDate)
		}
		return q
	}

	var total, delayed int64
	if err := base().Count(&total).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if err := base().Where("is_delayed = ?", true).Count(&delayed).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	var agg aggRow
	if err := base().Select(aggSelect).Scan(&agg).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	perf := &TruckPerformance{
		Truck:             TruckSummary{ID: truck.ID, Code: truck.Code, Name: truck.Name},
		TotalTrips:        total,
		DelayedTrips:      delayed,
		AvgCycleTime:      agg.AvgCycleTime,
		AvgLoadWeight:     agg.AvgLoadWeight,
		AvgLoadEfficiency: agg.AvgLoadEfficiency,
		TotalLoadWeight:   agg.TotalLoadWeight,
		TotalDistance:     agg.TotalDistance,
		TotalFuelConsumed: agg.TotalFuelConsumed,
	}
	if total > 0 {
		perf.DelayRate = Round2(float64(delayed) / float64(total) * 100)
	}
	return perf, nil
}
