package hauling

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"haul-fleet-backend/internal/apperr"
	"haul-fleet-backend/internal/model"
)

// nextActivityNumber allocates the next HA-YYYYMMDD-NNN trip number. The
// per-day counter row is bumped with a single upsert so two trips created in
// the same instant cannot draw the same sequence; the unique index on
// activity_number backstops it. Must run inside the transaction that creates
// the activity.
func nextActivityNumber(tx *gorm.DB, day time.Time) (string, error) {
	d := day.Format("20060102")

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day"}},
		DoUpdates: clause.Assignments(map[string]any{"seq": gorm.Expr("seq + 1")}),
	}).Create(&model.ActivityCounter{Day: d, Seq: 1}).Error
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("bump activity counter: %w", err))
	}

	var counter model.ActivityCounter
	if err := tx.First(&counter, "day = ?", d).Error; err != nil {
		return "", apperr.Internal(fmt.Errorf("read activity counter: %w", err))
	}

	return fmt.Sprintf("HA-%s-%03d", d, counter.Seq), nil
}
