package registry

import (
	"errors"

	"gorm.io/gorm"

	"haul-fleet-backend/internal/apperr"
	"haul-fleet-backend/internal/model"
)

// LoadingPointByID fetches a loading point or reports NotFound.
func LoadingPointByID(db *gorm.DB, id string) (*model.LoadingPoint, error) {
	var p model.LoadingPoint
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("loading point", id)
		}
		return nil, apperr.Internal(err)
	}
	return &p, nil
}

// DumpingPointByID fetches a dumping point or reports NotFound.
func DumpingPointByID(db *gorm.DB, id string) (*model.DumpingPoint, error) {
	var p model.DumpingPoint
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("dumping point", id)
		}
		return nil, apperr.Internal(err)
	}
	return &p, nil
}

// RoadSegmentByID fetches a road segment or reports NotFound.
func RoadSegmentByID(db *gorm.DB, id string) (*model.RoadSegment, error) {
	var r model.RoadSegment
	if err := db.First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("road segment", id)
		}
		return nil, apperr.Internal(err)
	}
	return &r, nil
}

// ListLoadingPoints returns loading points, optionally only active ones.
func ListLoadingPoints(db *gorm.DB, activeOnly bool) ([]model.LoadingPoint, error) {
	q := db.Model(&model.LoadingPoint{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}

	var points []model.LoadingPoint
	if err := q.Order("code asc").Find(&points).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return points, nil
}

// ListDumpingPoints returns dumping points, optionally only active ones.
func ListDumpingPoints(db *gorm.DB, activeOnly bool) ([]model.DumpingPoint, error) {
	q := db.Model(&model.DumpingPoint{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}

	var points []model.DumpingPoint
	if err := q.Order("code asc").Find(&points).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return points, nil
}
