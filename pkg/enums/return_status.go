package enums

import "fmt"

// ReturnStatus tracks the reverse-trip lifecycle of a return assignment.
type ReturnStatus string

const (
	ReturnStatusRequested          ReturnStatus = "requested"
	ReturnStatusApproved           ReturnStatus = "approved"
	ReturnStatusAssigned           ReturnStatus = "assigned"
	ReturnStatusAccepted           ReturnStatus = "accepted"
	ReturnStatusAgentReachedBuyer  ReturnStatus = "agent_reached_buyer"
	ReturnStatusPickedUp           ReturnStatus = "picked_up"
	ReturnStatusAgentReachedSeller ReturnStatus = "agent_reached_seller"
	ReturnStatusReturnedToSeller   ReturnStatus = "returned_to_seller"
	ReturnStatusCompleted          ReturnStatus = "completed"
	ReturnStatusPickupFailed       ReturnStatus = "pickup_failed"
	ReturnStatusRejected           ReturnStatus = "rejected"
)

var validReturnStatuses = []ReturnStatus{
	ReturnStatusRequested,
	ReturnStatusApproved,
	ReturnStatusAssigned,
	ReturnStatusAccepted,
	ReturnStatusAgentReachedBuyer,
	ReturnStatusPickedUp,
	ReturnStatusAgentReachedSeller,
	ReturnStatusReturnedToSeller,
	ReturnStatusCompleted,
	ReturnStatusPickupFailed,
	ReturnStatusRejected,
}

// String implements fmt.Stringer.
func (r ReturnStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReturnStatus.
func (r ReturnStatus) IsValid() bool {
	for _, candidate := range validReturnStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the assignment accepts no further transitions.
func (r ReturnStatus) IsTerminal() bool {
	return r == ReturnStatusCompleted || r == ReturnStatusPickupFailed || r == ReturnStatusRejected
}

// ParseReturnStatus converts raw input into a ReturnStatus.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	for _, candidate := range validReturnStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return status %q", value)
}
