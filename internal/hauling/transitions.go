package hauling

import "haul-fleet-backend/internal/model"

// operation names a coordinator state transition.
type operation string

const (
	opCompleteLoading operation = "complete loading"
	opCompleteDumping operation = "complete dumping"
	opComplete        operation = "complete"
	opCancel          operation = "cancel"
	opDelay           operation = "add delay"
)

// transitions is the table of legal (operation, current status) pairs and the
// status each pair advances to. Anything not in the table is rejected with
// InvalidState; no operation ever leaves COMPLETED.
var transitions = map[operation]map[model.HaulingStatus]model.HaulingStatus{
	opCompleteLoading: {
		model.HaulingLoading: model.HaulingHauling,
	},
	opCompleteDumping: {
		model.HaulingHauling: model.HaulingReturning,
		model.HaulingDumping: model.HaulingReturning,
	},
	opComplete: {
		model.HaulingPlanned:   model.HaulingCompleted,
		model.HaulingInQueue:   model.HaulingCompleted,
		model.HaulingLoading:   model.HaulingCompleted,
		model.HaulingHauling:   model.HaulingCompleted,
		model.HaulingDumping:   model.HaulingCompleted,
		model.HaulingReturning: model.HaulingCompleted,
		model.HaulingDelayed:   model.HaulingCompleted,
		model.HaulingCancelled: model.HaulingCompleted,
		model.HaulingIncident:  model.HaulingCompleted,
	},
	opCancel: {
		model.HaulingPlanned:   model.HaulingCancelled,
		model.HaulingInQueue:   model.HaulingCancelled,
		model.HaulingLoading:   model.HaulingCancelled,
		model.HaulingHauling:   model.HaulingCancelled,
		model.HaulingDumping:   model.HaulingCancelled,
		model.HaulingReturning: model.HaulingCancelled,
		model.HaulingDelayed:   model.HaulingCancelled,
		model.HaulingCancelled: model.HaulingCancelled,
		model.HaulingIncident:  model.HaulingCancelled,
	},
	opDelay: {
		model.HaulingPlanned:   model.HaulingDelayed,
		model.HaulingInQueue:   model.HaulingDelayed,
		model.HaulingLoading:   model.HaulingDelayed,
		model.HaulingHauling:   model.HaulingDelayed,
		model.HaulingDumping:   model.HaulingDelayed,
		model.HaulingReturning: model.HaulingDelayed,
		model.HaulingDelayed:   model.HaulingDelayed,
		model.HaulingIncident:  model.HaulingDelayed,
	},
}

// nextStatus resolves the transition table for one operation.
func nextStatus(op operation, current model.HaulingStatus) (model.HaulingStatus, bool) {
	next, ok := transitions[op][current]
	return next, ok
}

// truckStatusFor maps a trip status set through the generic update path to the
// truck status that must accompany it. Statuses outside the mapping leave the
// truck untouched.
func truckStatusFor(status model.HaulingStatus) (model.TruckStatus, bool) {
	switch status {
	case model.HaulingCompleted:
		return model.TruckIdle, true
	case model.HaulingLoading:
		return model.TruckLoading, true
	case model.HaulingHauling:
		return model.TruckHauling, true
	}
	return "", false
}

// validStatuses is used by the generic update path to reject unknown values.
var validStatuses = map[model.HaulingStatus]bool{
	model.HaulingPlanned:   true,
	model.HaulingInQueue:   true,
	model.HaulingLoading:   true,
	model.HaulingHauling:   true,
	model.HaulingDumping:   true,
	model.HaulingReturning: true,
	model.HaulingCompleted: true,
	model.HaulingDelayed:   true,
	model.HaulingCancelled: true,
	model.HaulingIncident:  true,
}
