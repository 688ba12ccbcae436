package hauling

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haul-fleet-backend/internal/apperr"
	"haul-fleet-backend/internal/model"
)

// seedTrip inserts a trip row directly, bypassing the state machine, so rollup
// queries can be exercised against known numbers.
func (f *fixture) seedTrip(t *testing.T, n int, a model.HaulingActivity) model.HaulingActivity {
	t.Helper()
	a.ActivityNumber = fmt.Sprintf("HA-SEED-%03d", n)
	if a.TruckID == "" {
		a.TruckID = f.truck.ID
	}
	a.ExcavatorID = f.excavator.ID
	a.OperatorID = f.operator.ID
	a.LoadingPointID = f.loadingPoint.ID
	a.DumpingPointID = f.dumpingPoint.ID
	if a.Shift == "" {
		a.Shift = model.Shift1
	}
	a.TargetWeight = 91
	require.NoError(t, f.db.Create(&a).Error)
	return a
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2025, 3, 14, 6, 0, 0, 0, time.UTC)

	f.seedTrip(t, 1, model.HaulingActivity{
		Status:           model.HaulingCompleted,
		LoadingStartTime: &day,
		LoadWeight:       85,
		LoadEfficiency:   93.41,
		TotalCycleTime:   60,
		Distance:         4.5,
		FuelConsumed:     30,
	})
	later := day.Add(2 * time.Hour)
	f.seedTrip(t, 2, model.HaulingActivity{
		Status:           model.HaulingCompleted,
		LoadingStartTime: &later,
		LoadWeight:       91,
		LoadEfficiency:   100,
		TotalCycleTime:   90,
		Distance:         4.5,
		FuelConsumed:     40,
		IsDelayed:        true,
		DelayMinutes:     20,
	})
	inFlight := day.Add(3 * time.Hour)
	f.seedTrip(t, 3, model.HaulingActivity{
		Status:           model.HaulingLoading,
		LoadingStartTime: &inFlight,
	})

	stats, err := f.coord.Statistics(context.Background(), StatsFilter{})
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TotalActivities)
	assert.Equal(t, int64(2), stats.CompletedActivities)
	assert.Equal(t, int64(1), stats.DelayedActivities)
	assert.Equal(t, 33.33, stats.DelayRate)
	assert.Equal(t, 66.67, stats.CompletionRate)

	// Averages and sums cover completed trips only; the in-flight trip with
	// its zero load must not drag them down.
	assert.Equal(t, 75.0, stats.AvgCycleTime)
	assert.Equal(t, 88.0, stats.AvgLoadWeight)
	assert.InDelta(t, 96.705, stats.AvgLoadEfficiency, 0.001)
	assert.Equal(t, 10.0, stats.AvgDelayMinutes)
	assert.Equal(t, 176.0, stats.TotalLoadWeight)
	assert.Equal(t, 9.0, stats.TotalDistance)
	assert.Equal(t, 70.0, stats.TotalFuelConsumed)
}

func TestStatisticsEmpty(t *testing.T) {
	f := newFixture(t)

	stats, err := f.coord.Statistics(context.Background(), StatsFilter{})
	require.NoError(t, err)

	assert.Equal(t, int64(0), stats.TotalActivities)
	assert.Equal(t, 0.0, stats.DelayRate)
	assert.Equal(t, 0.0, stats.CompletionRate)
	assert.Equal(t, 0.0, stats.AvgCycleTime)
}

func TestStatisticsFilters(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2025, 3, 14, 6, 0, 0, 0, time.UTC)
	nextDay := day.Add(24 * time.Hour)

	f.seedTrip(t, 1, model.HaulingActivity{
		Status: model.HaulingCompleted, LoadingStartTime: &day, Shift: model.Shift1, TotalCycleTime: 60,
	})
	f.seedTrip(t, 2, model.HaulingActivity{
		Status: model.HaulingCompleted, LoadingStartTime: &nextDay, Shift: model.Shift2, TotalCycleTime: 120,
	})

	stats, err := f.coord.Statistics(context.Background(), StatsFilter{Shift: model.Shift2})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalActivities)
	assert.Equal(t, 120.0, stats.AvgCycleTime)

	end := day.Add(time.Hour)
	stats, err = f.coord.Statistics(context.Background(), StatsFilter{StartDate: &day, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalActivities)
	assert.Equal(t, 60.0, stats.AvgCycleTime)
}

func TestPerformance(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2025, 3, 14, 6, 0, 0, 0, time.UTC)

	other := model.Truck{Code: "TRK-002", Name: "Hauler 002", Status: model.TruckIdle, IsActive: true}
	require.NoError(t, f.db.Create(&other).Error)

	f.seedTrip(t, 1, model.HaulingActivity{
		Status: model.HaulingCompleted, LoadingStartTime: &day,
		LoadWeight: 85, TotalCycleTime: 60, Distance: 4.5,
	})
	f.seedTrip(t, 2, model.HaulingActivity{
		Status: model.HaulingCompleted, LoadingStartTime: &day,
		LoadWeight: 91, TotalCycleTime: 90, Distance: 4.5,
		IsDelayed: true, DelayMinutes: 15,
	})
	// Another truck's trip must not bleed into the rollup.
	f.seedTrip(t, 3, model.HaulingActivity{
		TruckID: other.ID, Status: model.HaulingCompleted, LoadingStartTime: &day,
		LoadWeight: 50, TotalCycleTime: 300, Distance: 12,
	})

	perf, err := f.coord.Performance(context.Background(), f.truck.ID, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "TRK-001", perf.Truck.Code)
	assert.Equal(t, int64(2), perf.TotalTrips)
	assert.Equal(t, int64(1), perf.DelayedTrips)
	assert.Equal(t, 50.0, perf.DelayRate)
	assert.Equal(t, 75.0, perf.AvgCycleTime)
	assert.Equal(t, 88.0, perf.AvgLoadWeight)
	assert.Equal(t, 9.0, perf.TotalDistance)
}

func TestPerformanceUnknownTruck(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Performance(context.Background(), "nope", nil, nil)
	assertKind(t, err, apperr.KindNotFound)
}
