package hauling

import (
	"math"
	"time"

	"haul-fleet-backend/internal/apperr"
)

// DurationMinutes is the difference between two timestamps in whole minutes,
// rounded. It fails closed to 0 when either timestamp is unset.
func DurationMinutes(from, to *time.Time) int {
	if from == nil || to == nil {
		return 0
	}
	return int(math.Round(to.Sub(*from).Minutes()))
}

// Efficiency is the load weight as a percentage of the target weight, rounded
// to two decimals. A non-positive target weight is an input error.
func Efficiency(loadWeight, targetWeight float64) (float64, error) {
	if targetWeight <= 0 {
		return 0, apperr.InvalidInput("target weight must be greater than zero")
	}
	return Round2(loadWeight / targetWeight * 100), nil
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
