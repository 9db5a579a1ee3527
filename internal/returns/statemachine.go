package returns

import "github.com/arjunkapur/swiftkart-backend/pkg/enums"

// transitions is the closed edge table for the reverse trip. Anything not
// listed here is rejected.
var transitions = map[enums.ReturnStatus][]enums.ReturnStatus{
	enums.ReturnStatusRequested: {
		enums.ReturnStatusApproved,
		enums.ReturnStatusRejected,
	},
	enums.ReturnStatusApproved: {
		enums.ReturnStatusAssigned,
	},
	enums.ReturnStatusAssigned: {
		enums.ReturnStatusAccepted,
		enums.ReturnStatusPickupFailed,
	},
	enums.ReturnStatusAccepted: {
		enums.ReturnStatusAgentReachedBuyer,
		enums.ReturnStatusPickupFailed,
	},
	enums.ReturnStatusAgentReachedBuyer: {
		enums.ReturnStatusPickedUp,
		enums.ReturnStatusPickupFailed,
	},
	enums.ReturnStatusPickedUp: {
		enums.ReturnStatusAgentReachedSeller,
	},
	enums.ReturnStatusAgentReachedSeller: {
		enums.ReturnStatusReturnedToSeller,
	},
	enums.ReturnStatusReturnedToSeller: {
		enums.ReturnStatusCompleted,
	},
}

// CanTransition reports whether the edge from -> to is allowed.
func CanTransition(from, to enums.ReturnStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// agentActiveStatuses are the states in which the trip can fail at pickup.
var agentActiveStatuses = []enums.ReturnStatus{
	enums.ReturnStatusAssigned,
	enums.ReturnStatusAccepted,
	enums.ReturnStatusAgentReachedBuyer,
}

// IsAgentActive reports whether an agent currently holds the trip.
func IsAgentActive(status enums.ReturnStatus) bool {
	for _, candidate := range agentActiveStatuses {
		if candidate == status {
			return true
		}
	}
	return false
}
