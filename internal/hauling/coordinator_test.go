package hauling

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"haul-fleet-backend/internal/apperr"
	"haul-fleet-backend/internal/db"
	"haul-fleet-backend/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// fixture seeds one of everything a trip needs and wires a coordinator with a
// controllable clock.
type fixture struct {
	db           *gorm.DB
	coord        *Coordinator
	clock        time.Time
	truck        model.Truck
	excavator    model.Excavator
	operator     model.Operator
	loadingPoint model.LoadingPoint
	dumpingPoint model.DumpingPoint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := newTestDB(t)

	f := &fixture{
		db:           gdb,
		clock:        time.Date(2025, 3, 14, 7, 0, 0, 0, time.UTC),
		truck:        model.Truck{Code: "TRK-001", Name: "Hauler 001", Capacity: 91, Status: model.TruckIdle, IsActive: true},
		excavator:    model.Excavator{Code: "EXC-001", Name: "Digger 001", Status: model.ExcavatorActive, IsActive: true},
		operator:     model.Operator{EmployeeNumber: "EMP-001", FullName: "Test Operator", Status: model.OperatorActive, Shift: model.Shift1},
		loadingPoint: model.LoadingPoint{Code: "LP-001", Name: "Pit North", IsActive: true},
		dumpingPoint: model.DumpingPoint{Code: "DP-001", Name: "Waste Dump", IsActive: true},
	}
	require.NoError(t, gdb.Create(&f.truck).Error)
	require.NoError(t, gdb.Create(&f.excavator).Error)
	require.NoError(t, gdb.Create(&f.operator).Error)
	require.NoError(t, gdb.Create(&f.loadingPoint).Error)
	require.NoError(t, gdb.Create(&f.dumpingPoint).Error)

	f.coord = NewCoordinator(gdb)
	f.coord.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) createInput() CreateInput {
	return CreateInput{
		TruckID:        f.truck.ID,
		ExcavatorID:    f.excavator.ID,
		OperatorID:     f.operator.ID,
		LoadingPointID: f.loadingPoint.ID,
		DumpingPointID: f.dumpingPoint.ID,
		Shift:          model.Shift1,
		TargetWeight:   91,
		Distance:       4.5,
	}
}

func (f *fixture) reloadTruck(t *testing.T) model.Truck {
	t.Helper()
	var truck model.Truck
	require.NoError(t, f.db.First(&truck, "id = ?", f.truck.ID).Error)
	return truck
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err))
}

func TestCreateOpensTripAndClaimsTruck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activity, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)

	assert.Equal(t, model.HaulingLoading, activity.Status)
	assert.Equal(t, "HA-20250314-001", activity.ActivityNumber)
	require.NotNil(t, activity.LoadingStartTime)
	assert.True(t, activity.LoadingStartTime.Equal(f.clock))
	require.NotNil(t, activity.Truck)
	assert.Equal(t, "TRK-001", activity.Truck.Code)

	truck := f.reloadTruck(t)
	assert.Equal(t, model.TruckLoading, truck.Status)
	assert.Equal(t, "Pit North", truck.CurrentLocation)

	var logs []model.EquipmentStatusLog
	require.NoError(t, f.db.Where("truck_id = ?", f.truck.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, string(model.TruckIdle), logs[0].PreviousStatus)
	assert.Equal(t, string(model.TruckLoading), logs[0].CurrentStatus)
}

func TestCreateRejectsTruckInMaintenance(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Model(&model.Truck{}).Where("id = ?", f.truck.ID).
		Update("status", model.TruckMaintenance).Error)

	_, err := f.coord.Create(context.Background(), f.createInput())
	assertKind(t, err, apperr.KindResourceUnavailable)

	truck := f.reloadTruck(t)
	assert.Equal(t, model.TruckMaintenance, truck.Status)
}

func TestCreateRejectsDoubleBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)

	_, err = f.coord.Create(ctx, f.createInput())
	assertKind(t, err, apperr.KindResourceUnavailable)

	var count int64
	require.NoError(t, f.db.Model(&model.HaulingActivity{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreatePreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown truck", func(t *testing.T) {
		f := newFixture(t)
		in := f.createInput()
		in.TruckID = "nope"
		_, err := f.coord.Create(ctx, in)
		assertKind(t, err, apperr.KindNotFound)
	})

	t.Run("inactive excavator", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.db.Model(&model.Excavator{}).Where("id = ?", f.excavator.ID).
			Update("is_active", false).Error)
		_, err := f.coord.Create(ctx, f.createInput())
		assertKind(t, err, apperr.KindResourceUnavailable)
	})

	t.Run("off-duty operator", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.db.Model(&model.Operator{}).Where("id = ?", f.operator.ID).
			Update("status", model.OperatorOffDuty).Error)
		_, err := f.coord.Create(ctx, f.createInput())
		assertKind(t, err, apperr.KindResourceUnavailable)
	})

	t.Run("inactive dumping point", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.db.Model(&model.DumpingPoint{}).Where("id = ?", f.dumpingPoint.ID).
			Update("is_active", false).Error)
		_, err := f.coord.Create(ctx, f.createInput())
		assertKind(t, err, apperr.KindResourceUnavailable)
	})

	t.Run("zero target weight", func(t *testing.T) {
		f := newFixture(t)
		in := f.createInput()
		in.TargetWeight = 0
		_, err := f.coord.Create(ctx, in)
		assertKind(t, err, apperr.KindInvalidInput)
	})
}

func TestCompleteLoading(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activity, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)

	f.clock = f.clock.Add(12 * time.Minute)
	activity, err = f.coord.CompleteLoading(ctx, activity.ID, 85, nil)
	require.NoError(t, err)

	assert.Equal(t, model.HaulingHauling, activity.Status)
	assert.Equal(t, 93.41, activity.LoadEfficiency)
	assert.Equal(t, 85.0, activity.LoadWeight)
	assert.Equal(t, 12, activity.LoadingDuration)
	require.NotNil(t, activity.LoadingEndTime)
	require.NotNil(t, activity.DepartureTime)
	assert.True(t, activity.DepartureTime.Equal(*activity.LoadingEndTime))

	truck := f.reloadTruck(t)
	assert.Equal(t, model.TruckHauling, truck.Status)
}

func TestCompleteLoadingRejectsWrongState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activity, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)

	_, err = f.coord.CompleteLoading(ctx, activity.ID, 85, nil)
	require.NoError(t, err)

	_, err = f.coord.CompleteLoading(ctx, activity.ID, 85, nil)
	assertKind(t, err, apperr.KindInvalidState)
}

func TestCompleteLoadingZeroTargetWeight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activity, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)

	// A zero target can only arrive through older data; the efficiency
	// derivation must refuse to divide by it.
	require.NoError(t, f.db.Model(&model.HaulingActivity{}).Where("id = ?", activity.ID).
		Update("target_weight", 0).Error)

	_, err = f.coord.CompleteLoading(ctx, activity.ID, 85, nil)
	assertKind(t, err, apperr.KindInvalidInput)
}

func TestCompleteDumpingBackfillsAndFlags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activity, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)
	f.clock = f.clock.Add(10 * time.Minute)
	_, err = f.coord.CompleteLoading(ctx, activity.ID, 85, nil)
	require.NoError(t, err)

	f.clock = f.clock.Add(35 * time.Minute)
	activity, err = f.coord.CompleteDumping(ctx, activity.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, model.HaulingReturning, activity.Status)
	require.NotNil(t, activity.DumpingStartTime)
	require.NotNil(t, activity.ArrivalTime)
	require.NotNil(t, activity.DumpingEndTime)
	// Arrival and dumping start were never reported, so both were
	// back-filled and the row is flagged.
	assert.True(t, activity.TimingEstimated)
	assert.Equal(t, 0, activity.DumpingDuration)
	assert.Equal(t, 35, activity.HaulingDuration)

	truck := f.reloadTruck(t)
	assert.Equal(t, model.TruckHauling, truck.Status)
	assert.Equal(t, "Returning", truck.CurrentLocation)
}

func TestCompleteDumpingRejectsWrongState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activity, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)

	_, err = f.coord.CompleteDumping(ctx, activity.ID, nil)
	assertKind(t, err, apperr.KindInvalidState)
}

func TestFullCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := f.clock

	activity, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)

	f.clock = start.Add(10 * time.Minute)
	_, err = f.coord.CompleteLoading(ctx, activity.ID, 85, nil)
	require.NoError(t, err)

	f.clock = start.Add(60 * time.Minute)
	_, err = f.coord.CompleteDumping(ctx, activity.ID, nil)
	require.NoError(t, err)

	returnTime := start.Add(90 * time.Minute)
	activity, err = f.coord.Complete(ctx, activity.ID, &returnTime)
	require.NoError(t, err)

	assert.Equal(t, model.HaulingCompleted, activity.Status)
	assert.Equal(t, 90, activity.TotalCycleTime)
	assert.Equal(t, 30, activity.ReturnDuration)

	// Timestamps are non-decreasing in cycle order.
	stamps := []*time.Time{
		activity.LoadingStartTime, activity.LoadingEndTime, activity.DepartureTime,
		activity.ArrivalTime, activity.DumpingStartTime, activity.DumpingEndTime,
		activity.ReturnTime,
	}
	for i := 1; i < len(stamps); i++ {
		require.NotNil(t, stamps[i])
		assert.False(t, stamps[i].Before(*stamps[i-1]), "timestamp %d precedes %d", i, i-1)
	}

	truck := f.reloadTruck(t)
	assert.Equal(t, model.TruckIdle, truck.Status)
	// 90 minutes rounds to 2 cycle hours.
	assert.Equal(t, 2.0, truck.TotalHours)
	assert.Equal(t, 4.5, truck.TotalDistance)

	var excavator model.Excavator
	require.NoError(t, f.db.First(&excavator, "id = ?", f.excavator.ID).Error)
	assert.Equal(t, 0.0, excavator.TotalHours) // 10 loading minutes rounds to 0 hours
}

func TestCompleteIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activity, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)

	returnTime := f.clock.Add(45 * time.Minute)
	first, err := f.coord.Complete(ctx, activity.ID, &returnTime)
	require.NoError(t, err)

	_, err = f.coord.Complete(ctx, activity.ID, nil)
	assertKind(t, err, apperr.KindInvalidState)

	after, err := f.coord.ByID(ctx, activity.ID)
	require.NoError(t, err)
	assert.Equal(t, first.TotalCycleTime, after.TotalCycleTime)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activity, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)

	activity, err = f.coord.Cancel(ctx, activity.ID, "tire failure at pit exit")
	require.NoError(t, err)

	assert.Equal(t, model.HaulingCancelled, activity.Status)
	assert.Equal(t, "tire failure at pit exit", activity.Remarks)

	truck := f.reloadTruck(t)
	assert.Equal(t, model.TruckIdle, truck.Status)
}

func TestCancelCompletedRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activity, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)
	_, err = f.coord.Complete(ctx, activity.ID, nil)
	require.NoError(t, err)

	_, err = f.coord.Cancel(ctx, activity.ID, "too late")
	assertKind(t, err, apperr.KindInvalidState)

	truck := f.reloadTruck(t)
	assert.Equal(t, model.TruckIdle, truck.Status)
}

func TestAddDelayAccumulates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activity, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)

	_, err = f.coord.AddDelay(ctx, activity.ID, 15, nil, "queue at loading point")
	require.NoError(t, err)
	activity, err = f.coord.AddDelay(ctx, activity.ID, 10, nil, "")
	require.NoError(t, err)

	assert.Equal(t, model.HaulingDelayed, activity.Status)
	assert.True(t, activity.IsDelayed)
	assert.Equal(t, 25, activity.DelayMinutes)
	assert.Equal(t, "queue at loading point", activity.DelayReasonDetail)

	// The truck is still physically loading; delay never touches it.
	truck := f.reloadTruck(t)
	assert.Equal(t, model.TruckLoading, truck.Status)
}

func TestAddDelayRejectsNonPositiveMinutes(t *testing.T) {
	f := newFixture(t)

	activity, err := f.coord.Create(context.Background(), f.createInput())
	require.NoError(t, err)

	_, err = f.coord.AddDelay(context.Background(), activity.ID, 0, nil, "")
	assertKind(t, err, apperr.KindInvalidInput)
}

func TestUpdateCompletedOnlyStatusOrRemarks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activity, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)
	_, err = f.coord.Complete(ctx, activity.ID, nil)
	require.NoError(t, err)

	weight := 80.0
	_, err = f.coord.Update(ctx, activity.ID, UpdatePatch{LoadWeight: &weight})
	assertKind(t, err, apperr.KindInvalidState)

	remarks := "double-checked by shift lead"
	updated, err := f.coord.Update(ctx, activity.ID, UpdatePatch{Remarks: &remarks})
	require.NoError(t, err)
	assert.Equal(t, remarks, updated.Remarks)
}

func TestUpdateStatusSyncsTruck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activity, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)

	status := model.HaulingHauling
	_, err = f.coord.Update(ctx, activity.ID, UpdatePatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, model.TruckHauling, f.reloadTruck(t).Status)

	status = model.HaulingCompleted
	returnTime := f.clock.Add(75 * time.Minute)
	updated, err := f.coord.Update(ctx, activity.ID, UpdatePatch{Status: &status, ReturnTime: &returnTime})
	require.NoError(t, err)

	assert.Equal(t, model.HaulingCompleted, updated.Status)
	assert.Equal(t, 75, updated.TotalCycleTime)
	assert.False(t, updated.IsDelayed)
	assert.Equal(t, model.TruckIdle, f.reloadTruck(t).Status)
}

func TestUpdateRecomputesEfficiency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activity, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)

	load, target := 91.0, 100.0
	updated, err := f.coord.Update(ctx, activity.ID, UpdatePatch{LoadWeight: &load, TargetWeight: &target})
	require.NoError(t, err)
	assert.Equal(t, 91.00, updated.LoadEfficiency)
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)

	activity, err := f.coord.Create(context.Background(), f.createInput())
	require.NoError(t, err)

	bogus := model.HaulingStatus("TELEPORTING")
	_, err = f.coord.Update(context.Background(), activity.ID, UpdatePatch{Status: &bogus})
	assertKind(t, err, apperr.KindInvalidInput)
}

func TestUpdateRevalidatesRebindings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activity, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)

	other := model.Truck{Code: "TRK-002", Name: "Hauler 002", Status: model.TruckMaintenance, IsActive: true}
	require.NoError(t, f.db.Create(&other).Error)

	_, err = f.coord.Update(ctx, activity.ID, UpdatePatch{TruckID: &other.ID})
	assertKind(t, err, apperr.KindResourceUnavailable)
}

func TestActivityNumberSequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)
	assert.Equal(t, "HA-20250314-001", first.ActivityNumber)

	second := model.Truck{Code: "TRK-002", Name: "Hauler 002", Status: model.TruckStandby, IsActive: true}
	require.NoError(t, f.db.Create(&second).Error)
	in := f.createInput()
	in.TruckID = second.ID

	activity, err := f.coord.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "HA-20250314-002", activity.ActivityNumber)

	// A new day starts its own sequence.
	f.clock = f.clock.Add(24 * time.Hour)
	third := model.Truck{Code: "TRK-003", Name: "Hauler 003", Status: model.TruckIdle, IsActive: true}
	require.NoError(t, f.db.Create(&third).Error)
	in.TruckID = third.ID

	activity, err = f.coord.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "HA-20250315-001", activity.ActivityNumber)
}

func TestListAndActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activity, err := f.coord.Create(ctx, f.createInput())
	require.NoError(t, err)

	active, err := f.coord.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, activity.ID, active[0].ID)

	_, err = f.coord.Complete(ctx, activity.ID, nil)
	require.NoError(t, err)

	active, err = f.coord.Active(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	completed := model.HaulingCompleted
	listed, total, err := f.coord.List(ctx, ListFilter{Status: completed})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].Truck)
}
