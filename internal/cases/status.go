package cases

import "fmt"

// Case lifecycle statuses. On_Hold is a side-state reachable from In_Review
// and Scheduled; resuming always returns the case to In_Review so scheduling
// starts over.
const (
	StatusNew       = "New"
	StatusInReview  = "In_Review"
	StatusScheduled = "Scheduled"
	StatusOnHold    = "On_Hold"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
)

// Triage task statuses, inspectable on the case record.
const (
	TriagePending   = "pending"
	TriageRunning   = "running"
	TriageCompleted = "completed"
	TriageFailed    = "failed"
)

// transitions lists the allowed forward moves. Entering On_Hold is guarded
// separately by CanHold.
var transitions = map[string][]string{
	StatusNew:       {StatusInReview, StatusCancelled},
	StatusInReview:  {StatusScheduled, StatusCancelled},
	StatusScheduled: {StatusCompleted, StatusCancelled},
	StatusOnHold:    {StatusInReview, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// IsTerminal reports whether a status permits no further changes.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

// CanHold reports whether a case in the given status may be placed on hold.
// New cases are still in triage and cannot be held.
func CanHold(status string) bool {
	switch status {
	case StatusInReview, StatusScheduled:
		return true
	}
	return false
}

// ValidateTransition checks a status move against the lifecycle rules.
func ValidateTransition(from, to string) error {
	if from == to {
		return fmt.Errorf("case is already %s", from)
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("cannot move case from %s to %s", from, to)
}
