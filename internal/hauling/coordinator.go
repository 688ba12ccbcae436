// Package hauling contains the hauling cycle coordinator: the state machine
// that drives a haul trip from loading to return while keeping the bound
// truck's and excavator's status consistent with the trip. Every mutating
// operation runs as one database transaction covering the precondition check,
// the activity write, the equipment status writes, and the audit log rows.
package hauling

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"haul-fleet-backend/internal/apperr"
	"haul-fleet-backend/internal/model"
	"haul-fleet-backend/internal/registry"
)

// Coordinator orchestrates haul trip transitions. No lock is held between
// operations; only the transition at each stage boundary is synchronized.
type Coordinator struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCoordinator creates a coordinator on the given database handle.
func NewCoordinator(db *gorm.DB) *Coordinator {
	return &Coordinator{db: db, now: time.Now}
}

// CreateInput carries everything needed to open a new haul trip.
type CreateInput struct {
	TruckID        string
	ExcavatorID    string
	OperatorID     string
	LoadingPointID string
	DumpingPointID string
	RoadSegmentID  *string
	DispatcherID   string
	Shift          model.Shift
	TargetWeight   float64
	Distance       float64
}

// Create opens a new trip in LOADING and claims the truck. The truck claim is
// a guarded update re-checking IDLE/STANDBY inside the transaction, so two
// dispatchers racing for the same truck cannot both succeed.
func (c *Coordinator) Create(ctx context.Context, in CreateInput) (*model.HaulingActivity, error) {
	if in.TargetWeight <= 0 {
		return nil, apperr.InvalidInput("target weight must be greater than zero")
	}
	if in.Distance < 0 {
		return nil, apperr.InvalidInput("distance must not be negative")
	}

	var created *model.HaulingActivity
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		truck, err := registry.TruckByID(tx, in.TruckID)
		if err != nil {
			return err
		}
		if !truck.IsActive {
			return apperr.Unavailable("truck", truck.ID, "truck is inactive")
		}
		if !truck.Available() {
			return apperr.Unavailable("truck", truck.ID, "truck is not available for hauling")
		}

		excavator, err := registry.ExcavatorByID(tx, in.ExcavatorID)
		if err != nil {
			return err
		}
		if !excavator.IsActive {
			return apperr.Unavailable("excavator", excavator.ID, "excavator is inactive")
		}

		operator, err := registry.OperatorByID(tx, in.OperatorID)
		if err != nil {
			return err
		}
		if operator.Status != model.OperatorActive {
			return apperr.Unavailable("operator", operator.ID, "operator is not active")
		}

		loadingPoint, err := registry.LoadingPointByID(tx, in.LoadingPointID)
		if err != nil {
			return err
		}
		if !loadingPoint.IsActive {
			return apperr.Unavailable("loading point", loadingPoint.ID, "loading point is inactive")
		}

		dumpingPoint, err := registry.DumpingPointByID(tx, in.DumpingPointID)
		if err != nil {
			return err
		}
		if !dumpingPoint.IsActive {
			return apperr.Unavailable("dumping point", dumpingPoint.ID, "dumping point is inactive")
		}

		if in.RoadSegmentID != nil {
			if _, err := registry.RoadSegmentByID(tx, *in.RoadSegmentID); err != nil {
				return err
			}
		}

		number, err := nextActivityNumber(tx, c.now())
		if err != nil {
			return err
		}

		now := c.now()
		activity := &model.HaulingActivity{
			ActivityNumber:   number,
			TruckID:          in.TruckID,
			ExcavatorID:      in.ExcavatorID,
			OperatorID:       in.OperatorID,
			LoadingPointID:   in.LoadingPointID,
			DumpingPointID:   in.DumpingPointID,
			RoadSegmentID:    in.RoadSegmentID,
			DispatcherID:     in.DispatcherID,
			Shift:            in.Shift,
			Status:           model.HaulingLoading,
			LoadingStartTime: &now,
			TargetWeight:     in.TargetWeight,
			Distance:         in.Distance,
		}
		if err := tx.Create(activity).Error; err != nil {
			return apperr.Internal(fmt.Errorf("create hauling activity: %w", err))
		}

		// The claim itself: check-and-set on the truck row in one statement.
		res := tx.Model(&model.Truck{}).
			Where("id = ? AND status IN ?", in.TruckID,
				[]model.TruckStatus{model.TruckIdle, model.TruckStandby}).
			Updates(map[string]any{
				"status":           model.TruckLoading,
				"current_location": loadingPoint.Name,
			})
		if res.Error != nil {
			return apperr.Internal(fmt.Errorf("claim truck: %w", res.Error))
		}
		if res.RowsAffected == 0 {
			return apperr.Unavailable("truck", in.TruckID, "truck was claimed by another trip")
		}

		logRow := model.EquipmentStatusLog{
			TruckID:        &truck.ID,
			PreviousStatus: string(truck.Status),
			CurrentStatus:  string(model.TruckLoading),
			StatusReason:   "hauling " + number + " created",
			Location:       loadingPoint.Name,
		}
		if err := tx.Create(&logRow).Error; err != nil {
			return apperr.Internal(fmt.Errorf("append truck status log: %w", err))
		}

		created = activity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.ByID(ctx, created.ID)
}

// CompleteLoading closes the loading stage: records the load weight, derives
// loading duration and load efficiency, and moves trip and truck to HAULING.
func (c *Coordinator) CompleteLoading(ctx context.Context, id string, loadWeight float64, loadingDuration *int) (*model.HaulingActivity, error) {
	if loadWeight < 0 {
		return nil, apperr.InvalidInput("load weight must not be negative")
	}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := c.activity(tx, id)
		if err != nil {
			return err
		}
		next, ok := nextStatus(opCompleteLoading, activity.Status)
		if !ok {
			return apperr.InvalidState("hauling activity", id, "activity is not in loading status")
		}

		efficiency, err := Efficiency(loadWeight, activity.TargetWeight)
		if err != nil {
			return err
		}

		now := c.now()
		duration := DurationMinutes(activity.LoadingStartTime, &now)
		if loadingDuration != nil {
			duration = *loadingDuration
		}

		if err := c.applyTransition(tx, activity, map[string]any{
			"loading_end_time": now,
			"departure_time":   now,
			"load_weight":      loadWeight,
			"loading_duration": duration,
			"load_efficiency":  efficiency,
			"status":           next,
		}); err != nil {
			return err
		}

		return registry.SetTruckStatus(tx, activity.TruckID, model.TruckHauling, "",
			"departed on "+activity.ActivityNumber)
	})
	if err != nil {
		return nil, err
	}
	return c.ByID(ctx, id)
}

// CompleteDumping closes the dumping stage and moves the trip to RETURNING.
// Arrival and dumping start are back-filled from now when the caller never
// reported them; such rows are flagged TimingEstimated because the derived
// hauling duration is then unreliable.
func (c *Coordinator) CompleteDumping(ctx context.Context, id string, dumpingDuration *int) (*model.HaulingActivity, error) {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := c.activity(tx, id)
		if err != nil {
			return err
		}
		next, ok := nextStatus(opCompleteDumping, activity.Status)
		if !ok {
			return apperr.InvalidState("hauling activity", id, "activity is not in hauling or dumping status")
		}

		now := c.now()
		estimated := false

		dumpingStart := activity.DumpingStartTime
		if dumpingStart == nil {
			dumpingStart = &now
			estimated = true
		}
		arrival := activity.ArrivalTime
		if arrival == nil {
			arrival = dumpingStart
			estimated = true
		}
		dumpingEnd := now

		duration := DurationMinutes(dumpingStart, &dumpingEnd)
		if dumpingDuration != nil {
			duration = *dumpingDuration
		}
		haulingDuration := DurationMinutes(activity.DepartureTime, arrival)

		if err := c.applyTransition(tx, activity, map[string]any{
			"dumping_start_time": *dumpingStart,
			"dumping_end_time":   dumpingEnd,
			"arrival_time":       *arrival,
			"dumping_duration":   duration,
			"hauling_duration":   haulingDuration,
			"timing_estimated":   activity.TimingEstimated || estimated,
			"status":             next,
		}); err != nil {
			return err
		}

		// The truck is physically on the road back; it stays in a moving
		// status with its location marked.
		return registry.SetTruckStatus(tx, activity.TruckID, model.TruckHauling, "Returning",
			"returning on "+activity.ActivityNumber)
	})
	if err != nil {
		return nil, err
	}
	return c.ByID(ctx, id)
}

// Complete closes the cycle: records the return time, derives return duration
// and total cycle time, parks the truck at IDLE, and credits the truck's and
// excavator's cumulative totals.
func (c *Coordinator) Complete(ctx context.Context, id string, returnTime *time.Time) (*model.HaulingActivity, error) {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := c.activity(tx, id)
		if err != nil {
			return err
		}
		next, ok := nextStatus(opComplete, activity.Status)
		if !ok {
			return apperr.InvalidState("hauling activity", id, "activity already completed")
		}

		finalReturn := c.now()
		if returnTime != nil {
			finalReturn = *returnTime
		}

		returnDuration := DurationMinutes(activity.DumpingEndTime, &finalReturn)
		totalCycle := DurationMinutes(activity.LoadingStartTime, &finalReturn)

		if err := c.applyTransition(tx, activity, map[string]any{
			"return_time":      finalReturn,
			"return_duration":  returnDuration,
			"total_cycle_time": totalCycle,
			"status":           next,
		}); err != nil {
			return err
		}

		if err := registry.SetTruckStatus(tx, activity.TruckID, model.TruckIdle, "",
			"completed "+activity.ActivityNumber); err != nil {
			return err
		}

		cycleHours := math.Round(float64(totalCycle) / 60)
		res := tx.Model(&model.Truck{}).Where("id = ?", activity.TruckID).Updates(map[string]any{
			"total_hours":    gorm.Expr("total_hours + ?", cycleHours),
			"total_distance": gorm.Expr("total_distance + ?", activity.Distance),
		})
		if res.Error != nil {
			return apperr.Internal(fmt.Errorf("credit truck totals: %w", res.Error))
		}

		loadingHours := math.Round(float64(activity.LoadingDuration) / 60)
		res = tx.Model(&model.Excavator{}).Where("id = ?", activity.ExcavatorID).
			Update("total_hours", gorm.Expr("total_hours + ?", loadingHours))
		if res.Error != nil {
			return apperr.Internal(fmt.Errorf("credit excavator totals: %w", res.Error))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.ByID(ctx, id)
}

// Cancel aborts a trip that has not completed, stores the reason in remarks,
// and parks the truck at IDLE. Cancellation is a first-class transition, not a
// forced abort of an in-flight unit of work.
func (c *Coordinator) Cancel(ctx context.Context, id, reason string) (*model.HaulingActivity, error) {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := c.activity(tx, id)
		if err != nil {
			return err
		}
		next, ok := nextStatus(opCancel, activity.Status)
		if !ok {
			return apperr.InvalidState("hauling activity", id, "cannot cancel completed activity")
		}

		if err := c.applyTransition(tx, activity, map[string]any{
			"status":  next,
			"remarks": reason,
		}); err != nil {
			return err
		}

		return registry.SetTruckStatus(tx, activity.TruckID, model.TruckIdle, "",
			"cancelled "+activity.ActivityNumber+": "+reason)
	})
	if err != nil {
		return nil, err
	}
	return c.ByID(ctx, id)
}

// AddDelay records delay minutes against a trip and marks it DELAYED. The
// truck's status is left alone: a delayed trip is still physically at whatever
// stage it was in.
func (c *Coordinator) AddDelay(ctx context.Context, id string, delayMinutes int, reasonID *string, detail string) (*model.HaulingActivity, error) {
	if delayMinutes <= 0 {
		return nil, apperr.InvalidInput("delay minutes must be a positive integer")
	}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := c.activity(tx, id)
		if err != nil {
			return err
		}
		next, ok := nextStatus(opDelay, activity.Status)
		if !ok {
			return apperr.InvalidState("hauling activity", id, "cannot delay activity in its current status")
		}

		updates := map[string]any{
			"is_delayed":    true,
			"delay_minutes": gorm.Expr("delay_minutes + ?", delayMinutes),
			"status":        next,
		}
		if reasonID != nil {
			updates["delay_reason_id"] = *reasonID
		}
		if detail != "" {
			updates["delay_reason_detail"] = detail
		}

		return c.applyTransition(tx, activity, updates)
	})
	if err != nil {
		return nil, err
	}
	return c.ByID(ctx, id)
}

// UpdatePatch is the supervisor correction surface: every field is optional.
type UpdatePatch struct {
	TruckID        *string
	ExcavatorID    *string
	OperatorID     *string
	LoadingPointID *string
	DumpingPointID *string
	RoadSegmentID  *string
	Shift          *model.Shift
	Status         *model.HaulingStatus
	TargetWeight   *float64
	LoadWeight     *float64
	Distance       *float64
	FuelConsumed   *float64
	ReturnTime     *time.Time
	Remarks        *string
}

// onlyStatusOrRemarks reports whether the patch touches nothing beyond the two
// fields a COMPLETED trip still accepts.
func (p UpdatePatch) onlyStatusOrRemarks() bool {
	return p.TruckID == nil && p.ExcavatorID == nil && p.OperatorID == nil &&
		p.LoadingPointID == nil && p.DumpingPointID == nil && p.RoadSegmentID == nil &&
		p.Shift == nil && p.TargetWeight == nil && p.LoadWeight == nil &&
		p.Distance == nil && p.FuelConsumed == nil && p.ReturnTime == nil
}

// Update applies a generic field patch. Cross-referenced ids are re-validated
// with the same preconditions as Create, and a status change funnels through
// the same truck synchronization as the dedicated operations.
func (c *Coordinator) Update(ctx context.Context, id string, patch UpdatePatch) (*model.HaulingActivity, error) {
	if patch.Status != nil && !validStatuses[*patch.Status] {
		return nil, apperr.InvalidInput("invalid hauling status " + string(*patch.Status))
	}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := c.activity(tx, id)
		if err != nil {
			return err
		}

		if activity.Status == model.HaulingCompleted && !patch.onlyStatusOrRemarks() {
			return apperr.InvalidState("hauling activity", id,
				"cannot update completed activity; only status and remarks can change")
		}

		if err := c.validatePatchRefs(tx, activity, patch); err != nil {
			return err
		}

		updates := map[string]any{}
		setIf := func(column string, v any, present bool) {
			if present {
				updates[column] = v
			}
		}
		setIf("truck_id", deref(patch.TruckID), patch.TruckID != nil)
		setIf("excavator_id", deref(patch.ExcavatorID), patch.ExcavatorID != nil)
		setIf("operator_id", deref(patch.OperatorID), patch.OperatorID != nil)
		setIf("loading_point_id", deref(patch.LoadingPointID), patch.LoadingPointID != nil)
		setIf("dumping_point_id", deref(patch.DumpingPointID), patch.DumpingPointID != nil)
		setIf("road_segment_id", deref(patch.RoadSegmentID), patch.RoadSegmentID != nil)
		setIf("remarks", deref(patch.Remarks), patch.Remarks != nil)
		if patch.Shift != nil {
			updates["shift"] = *patch.Shift
		}
		if patch.TargetWeight != nil {
			updates["target_weight"] = *patch.TargetWeight
		}
		if patch.LoadWeight != nil {
			updates["load_weight"] = *patch.LoadWeight
		}
		if patch.Distance != nil {
			updates["distance"] = *patch.Distance
		}
		if patch.FuelConsumed != nil {
			updates["fuel_consumed"] = *patch.FuelConsumed
		}

		// Same derivation rule as CompleteLoading when both weights land in
		// one patch.
		if patch.LoadWeight != nil && patch.TargetWeight != nil {
			efficiency, err := Efficiency(*patch.LoadWeight, *patch.TargetWeight)
			if err != nil {
				return err
			}
			updates["load_efficiency"] = efficiency
		}

		statusChanged := patch.Status != nil && *patch.Status != activity.Status
		if statusChanged {
			updates["status"] = *patch.Status

			if *patch.Status == model.HaulingCompleted {
				finalReturn := c.now()
				if patch.ReturnTime != nil {
					finalReturn = *patch.ReturnTime
				}
				updates["return_time"] = finalReturn
				if activity.DumpingEndTime != nil {
					updates["return_duration"] = DurationMinutes(activity.DumpingEndTime, &finalReturn)
				}
				if activity.LoadingStartTime != nil {
					updates["total_cycle_time"] = DurationMinutes(activity.LoadingStartTime, &finalReturn)
				}
				updates["is_delayed"] = false
			}
		}

		if len(updates) == 0 {
			return nil
		}

		if err := c.applyTransition(tx, activity, updates); err != nil {
			return err
		}

		if statusChanged {
			if truckStatus, ok := truckStatusFor(*patch.Status); ok {
				return registry.SetTruckStatus(tx, activity.TruckID, truckStatus, "",
					"supervisor set "+activity.ActivityNumber+" to "+string(*patch.Status))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.ByID(ctx, id)
}

// validatePatchRefs re-checks any rebound reference with the Create
// preconditions.
func (c *Coordinator) validatePatchRefs(tx *gorm.DB, activity *model.HaulingActivity, patch UpdatePatch) error {
	if patch.TruckID != nil && *patch.TruckID != activity.TruckID {
		truck, err := registry.TruckByID(tx, *patch.TruckID)
		if err != nil {
			return err
		}
		if !truck.IsActive {
			return apperr.Unavailable("truck", truck.ID, "truck is inactive")
		}
		if !truck.Available() {
			return apperr.Unavailable("truck", truck.ID, "truck is not available for hauling")
		}
	}
	if patch.ExcavatorID != nil && *patch.ExcavatorID != activity.ExcavatorID {
		excavator, err := registry.ExcavatorByID(tx, *patch.ExcavatorID)
		if err != nil {
			return err
		}
		if !excavator.IsActive {
			return apperr.Unavailable("excavator", excavator.ID, "excavator is inactive")
		}
	}
	if patch.OperatorID != nil && *patch.OperatorID != activity.OperatorID {
		operator, err := registry.OperatorByID(tx, *patch.OperatorID)
		if err != nil {
			return err
		}
		if operator.Status != model.OperatorActive {
			return apperr.Unavailable("operator", operator.ID, "operator is not active")
		}
	}
	if patch.LoadingPointID != nil && *patch.LoadingPointID != activity.LoadingPointID {
		point, err := registry.LoadingPointByID(tx, *patch.LoadingPointID)
		if err != nil {
			return err
		}
		if !point.IsActive {
			return apperr.Unavailable("loading point", point.ID, "loading point is inactive")
		}
	}
	if patch.DumpingPointID != nil && *patch.DumpingPointID != activity.DumpingPointID {
		point, err := registry.DumpingPointByID(tx, *patch.DumpingPointID)
		if err != nil {
			return err
		}
		if !point.IsActive {
			return apperr.Unavailable("dumping point", point.ID, "dumping point is inactive")
		}
	}
	return nil
}

// activity loads the trip row inside the current transaction.
func (c *Coordinator) activity(tx *gorm.DB, id string) (*model.HaulingActivity, error) {
	var a model.HaulingActivity
	if err := tx.First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("hauling activity", id)
		}
		return nil, apperr.Internal(err)
	}
	return &a, nil
}

// applyTransition writes the activity updates guarded by the status the
// precondition was checked against. Zero rows affected means another
// transition won the race since our read.
func (c *Coordinator) applyTransition(tx *gorm.DB, activity *model.HaulingActivity, updates map[string]any) error {
	res := tx.Model(&model.HaulingActivity{}).
		Where("id = ? AND status = ?", activity.ID, activity.Status).
		Updates(updates)
	if res.Error != nil {
		return apperr.Internal(fmt.Errorf("update hauling activity: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.InvalidState("hauling activity", activity.ID,
			"activity state changed concurrently")
	}
	return nil
}

// preloads attaches the bound equipment summaries used by every read.
func preloads(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Truck").
		Preload("Excavator").
		Preload("Operator").
		Preload("LoadingPoint").
		Preload("DumpingPoint").
		Preload("RoadSegment").
		Preload("DelayReason")
}

// ByID returns one trip with its bound equipment.
func (c *Coordinator) ByID(ctx context.Context, id string) (*model.HaulingActivity, error) {
	var a model.HaulingActivity
	if err := preloads(c.db.WithContext(ctx)).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("hauling activity", id)
		}
		return nil, apperr.Internal(err)
	}
	return &a, nil
}

// ListFilter narrows List.
type ListFilter struct {
	Status      model.HaulingStatus
	Shift       model.Shift
	TruckID     string
	ExcavatorID string
	IsDelayed   *bool
	StartDate   *time.Time
	EndDate     *time.Time
	Limit       int
	Offset      int
}

// List returns trips matching the filter, newest loading start first.
func (c *Coordinator) List(ctx context.Context, filter ListFilter) ([]model.HaulingActivity, int64, error) {
	q := c.db.WithContext(ctx).Model(&model.HaulingActivity{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Shift != "" {
		q = q.Where("shift = ?", filter.Shift)
	}
	if filter.TruckID != "" {
		q = q.Where("truck_id = ?", filter.TruckID)
	}
	if filter.ExcavatorID != "" {
		q = q.Where("excavator_id = ?", filter.ExcavatorID)
	}
	if filter.IsDelayed != nil {
		q = q.Where("is_delayed = ?", *filter.IsDelayed)
	}
	if filter.StartDate != nil {
		q = q.Where("loading_start_time >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		q = q.Where("loading_start_time <= ?", *filter.EndDate)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.Internal(err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var activities []model.HaulingActivity
	err := preloads(q.Session(&gorm.Session{})).
		Order("loading_start_time desc").
		Limit(limit).Offset(filter.Offset).
		Find(&activities).Error
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return activities, total, nil
}

// Active returns trips whose truck is still committed, newest first.
func (c *Coordinator) Active(ctx context.Context) ([]model.HaulingActivity, error) {
	var activities []model.HaulingActivity
	err := preloads(c.db.WithContext(ctx)).
		Where("status NOT IN ?", []model.HaulingStatus{model.HaulingCompleted, model.HaulingCancelled}).
		Order("loading_start_time desc").
		Find(&activities).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return activities, nil
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
