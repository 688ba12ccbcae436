// Package registry holds the equipment and location registries: lookups,
// guarded status updates, and the CRUD operations the API layer needs.
//
// Mutating functions take a *gorm.DB so they compose with a caller's open
// transaction; the hauling coordinator passes its transaction handle to keep
// equipment writes inside the same atomic unit as the activity write.
package registry

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"haul-fleet-backend/internal/apperr"
	"haul-fleet-backend/internal/model"
)

// TruckByID fetches a truck or reports NotFound.
func TruckByID(db *gorm.DB, id string) (*model.Truck, error) {
	var t model.Truck
	if err := db.First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("truck", id)
		}
		return nil, apperr.Internal(err)
	}
	return &t, nil
}

// ExcavatorByID fetches an excavator or reports NotFound.
func ExcavatorByID(db *gorm.DB, id string) (*model.Excavator, error) {
	var e model.Excavator
	if err := db.First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("excavator", id)
		}
		return nil, apperr.Internal(err)
	}
	return &e, nil
}

// OperatorByID fetches an operator or reports NotFound.
func OperatorByID(db *gorm.DB, id string) (*model.Operator, error) {
	var o model.Operator
	if err := db.First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("operator", id)
		}
		return nil, apperr.Internal(err)
	}
	return &o, nil
}

// SetTruckStatus updates a truck's status (and location, when given) and
// appends the audit log row as one unit. Pass an open transaction to make the
// change part of a larger atomic unit.
func SetTruckStatus(tx *gorm.DB, id string, status model.TruckStatus, location, reason string) error {
	truck, err := TruckByID(tx, id)
	if err != nil {
		return err
	}

	updates := map[string]any{"status": status}
	if location != "" {
		updates["current_location"] = location
	}
	if err := tx.Model(&model.Truck{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return apperr.Internal(fmt.Errorf("update truck status: %w", err))
	}

	logRow := model.EquipmentStatusLog{
		TruckID:        &truck.ID,
		PreviousStatus: string(truck.Status),
		CurrentStatus:  string(status),
		StatusReason:   reason,
		Location:       location,
	}
	if err := tx.Create(&logRow).Error; err != nil {
		return apperr.Internal(fmt.Errorf("append truck status log: %w", err))
	}
	return nil
}

// SetExcavatorStatus updates an excavator's status and appends the audit log
// row as one unit.
func SetExcavatorStatus(tx *gorm.DB, id string, status model.ExcavatorStatus, location, reason string) error {
	excavator, err := ExcavatorByID(tx, id)
	if err != nil {
		return err
	}

	updates := map[string]any{"status": status}
	if location != "" {
		updates["current_location"] = location
	}
	if err := tx.Model(&model.Excavator{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return apperr.Internal(fmt.Errorf("update excavator status: %w", err))
	}

	logRow := model.EquipmentStatusLog{
		ExcavatorID:    &excavator.ID,
		PreviousStatus: string(excavator.Status),
		CurrentStatus:  string(status),
		StatusReason:   reason,
		Location:       location,
	}
	if err := tx.Create(&logRow).Error; err != nil {
		return apperr.Internal(fmt.Errorf("append excavator status log: %w", err))
	}
	return nil
}

// CreateTruck registers a new truck, refusing duplicate codes.
func CreateTruck(db *gorm.DB, truck *model.Truck) error {
	var count int64
	if err := db.Model(&model.Truck{}).Where("code = ?", truck.Code).Count(&count).Error; err != nil {
		return apperr.Internal(err)
	}
	if count > 0 {
		return apperr.Conflict("truck", "", "truck code already exists")
	}
	if truck.Status == "" {
		truck.Status = model.TruckIdle
	}
	if err := db.Create(truck).Error; err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// CreateExcavator registers a new excavator, refusing duplicate codes.
func CreateExcavator(db *gorm.DB, excavator *model.Excavator) error {
	var count int64
	if err := db.Model(&model.Excavator{}).Where("code = ?", excavator.Code).Count(&count).Error; err != nil {
		return apperr.Internal(err)
	}
	if count > 0 {
		return apperr.Conflict("excavator", "", "excavator code already exists")
	}
	if excavator.Status == "" {
		excavator.Status = model.ExcavatorIdle
	}
	if err := db.Create(excavator).Error; err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// TruckPatch is the set of mutable truck attributes. Status is excluded:
// status changes go through SetTruckStatus so the audit log stays complete.
type TruckPatch struct {
	Name            *string
	Brand           *string
	Model           *string
	YearManufacture *int
	Capacity        *float64
	FuelCapacity    *float64
	CurrentLocation *string
	IsActive        *bool
}

// UpdateTruck applies a field patch and returns the updated truck.
func UpdateTruck(db *gorm.DB, id string, patch TruckPatch) (*model.Truck, error) {
	if _, err := TruckByID(db, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Brand != nil {
		updates["brand"] = *patch.Brand
	}
	if patch.Model != nil {
		updates["model"] = *patch.Model
	}
	if patch.YearManufacture != nil {
		updates["year_manufacture"] = *patch.YearManufacture
	}
	if patch.Capacity != nil {
		updates["capacity"] = *patch.Capacity
	}
	if patch.FuelCapacity != nil {
		updates["fuel_capacity"] = *patch.FuelCapacity
	}
	if patch.CurrentLocation != nil {
		updates["current_location"] = *patch.CurrentLocation
	}
	if patch.IsActive != nil {
		updates["is_active"] = *patch.IsActive
	}

	if len(updates) > 0 {
		if err := db.Model(&model.Truck{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, apperr.Internal(fmt.Errorf("update truck: %w", err))
		}
	}
	return TruckByID(db, id)
}

// ExcavatorPatch is the set of mutable excavator attributes.
type ExcavatorPatch struct {
	Name            *string
	Brand           *string
	Model           *string
	Capacity        *float64
	CurrentLocation *string
	IsActive        *bool
}

// UpdateExcavator applies a field patch and returns the updated excavator.
func UpdateExcavator(db *gorm.DB, id string, patch ExcavatorPatch) (*model.Excavator, error) {
	if _, err := ExcavatorByID(db, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Brand != nil {
		updates["brand"] = *patch.Brand
	}
	if patch.Model != nil {
		updates["model"] = *patch.Model
	}
	if patch.Capacity != nil {
		updates["capacity"] = *patch.Capacity
	}
	if patch.CurrentLocation != nil {
		updates["current_location"] = *patch.CurrentLocation
	}
	if patch.IsActive != nil {
		updates["is_active"] = *patch.IsActive
	}

	if len(updates) > 0 {
		if err := db.Model(&model.Excavator{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, apperr.Internal(fmt.Errorf("update excavator: %w", err))
		}
	}
	return ExcavatorByID(db, id)
}

// DeleteTruck removes a truck. Trucks referenced by a haul trip that has not
// reached COMPLETED or CANCELLED cannot be deleted.
func DeleteTruck(db *gorm.DB, id string) error {
	if _, err := TruckByID(db, id); err != nil {
		return err
	}

	var active int64
	err := db.Model(&model.HaulingActivity{}).
		Where("truck_id = ? AND status NOT IN ?", id,
			[]model.HaulingStatus{model.HaulingCompleted, model.HaulingCancelled}).
		Count(&active).Error
	if err != nil {
		return apperr.Internal(err)
	}
	if active > 0 {
		return apperr.Conflict("truck", id, "truck has active hauling activities")
	}

	if err := db.Delete(&model.Truck{}, "id = ?", id).Error; err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// DeleteExcavator removes an excavator under the same active-reference rule
// as DeleteTruck.
func DeleteExcavator(db *gorm.DB, id string) error {
	if _, err := ExcavatorByID(db, id); err != nil {
		return err
	}

	var active int64
	err := db.Model(&model.HaulingActivity{}).
		Where("excavator_id = ? AND status NOT IN ?", id,
			[]model.HaulingStatus{model.HaulingCompleted, model.HaulingCancelled}).
		Count(&active).Error
	if err != nil {
		return apperr.Internal(err)
	}
	if active > 0 {
		return apperr.Conflict("excavator", id, "excavator has active hauling activities")
	}

	if err := db.Delete(&model.Excavator{}, "id = ?", id).Error; err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// TruckFilter narrows ListTrucks.
type TruckFilter struct {
	Status   model.TruckStatus
	IsActive *bool
}

// ListTrucks returns trucks matching the filter, ordered by code.
func ListTrucks(db *gorm.DB, filter TruckFilter) ([]model.Truck, error) {
	q := db.Model(&model.Truck{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}

	var trucks []model.Truck
	if err := q.Order("code asc").Find(&trucks).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return trucks, nil
}

// ListExcavators returns excavators, optionally filtered by status.
func ListExcavators(db *gorm.DB, status model.ExcavatorStatus) ([]model.Excavator, error) {
	q := db.Model(&model.Excavator{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var excavators []model.Excavator
	if err := q.Order("code asc").Find(&excavators).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return excavators, nil
}

// ListOperators returns operators, optionally filtered by status.
func ListOperators(db *gorm.DB, status model.OperatorStatus) ([]model.Operator, error) {
	q := db.Model(&model.Operator{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var operators []model.Operator
	if err := q.Order("employee_number asc").Find(&operators).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return operators, nil
}

// StatusLog returns the audit trail for one piece of equipment, newest first.
func StatusLog(db *gorm.DB, truckID, excavatorID string, limit int) ([]model.EquipmentStatusLog, error) {
	if limit <= 0 {
		limit = 50
	}
	q := db.Model(&model.EquipmentStatusLog{})
	if truckID != "" {
		q = q.Where("truck_id = ?", truckID)
	}
	if excavatorID != "" {
		q = q.Where("excavator_id = ?", excavatorID)
	}

	var logs []model.EquipmentStatusLog
	if err := q.Order("created_at desc").Limit(limit).Find(&logs).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return logs, nil
}
