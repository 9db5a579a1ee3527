package returns

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
)

func TestCanTransitionHappyChain(t *testing.T) {
	assert.True(t, CanTransition(enums.ReturnStatusRequested, enums.ReturnStatusApproved))
	assert.True(t, CanTransition(enums.ReturnStatusApproved, enums.ReturnStatusAssigned))
	assert.True(t, CanTransition(enums.ReturnStatusAssigned, enums.ReturnStatusAccepted))
	assert.True(t, CanTransition(enums.ReturnStatusAccepted, enums.ReturnStatusAgentReachedBuyer))
	assert.True(t, CanTransition(enums.ReturnStatusAgentReachedBuyer, enums.ReturnStatusPickedUp))
	assert.True(t, CanTransition(enums.ReturnStatusPickedUp, enums.ReturnStatusAgentReachedSeller))
	assert.True(t, CanTransition(enums.ReturnStatusAgentReachedSeller, enums.ReturnStatusReturnedToSeller))
	assert.True(t, CanTransition(enums.ReturnStatusReturnedToSeller, enums.ReturnStatusCompleted))
}

func TestCanTransitionRejection(t *testing.T) {
	assert.True(t, CanTransition(enums.ReturnStatusRequested, enums.ReturnStatusRejected))
	assert.False(t, CanTransition(enums.ReturnStatusRejected, enums.ReturnStatusApproved))
}

func TestCanTransitionRejectsSkips(t *testing.T) {
	assert.False(t, CanTransition(enums.ReturnStatusRequested, enums.ReturnStatusAssigned))
	assert.False(t, CanTransition(enums.ReturnStatusAccepted, enums.ReturnStatusAgentReachedSeller))
	assert.False(t, CanTransition(enums.ReturnStatusPickedUp, enums.ReturnStatusCompleted))
}

func TestCanTransitionPickupFailures(t *testing.T) {
	assert.True(t, CanTransition(enums.ReturnStatusAssigned, enums.ReturnStatusPickupFailed))
	assert.True(t, CanTransition(enums.ReturnStatusAccepted, enums.ReturnStatusPickupFailed))
	assert.True(t, CanTransition(enums.ReturnStatusAgentReachedBuyer, enums.ReturnStatusPickupFailed))
	// Once the parcel is in hand a failed pickup no longer applies.
	assert.False(t, CanTransition(enums.ReturnStatusPickedUp, enums.ReturnStatusPickupFailed))
}

func TestTerminalStatesHaveNoEdges(t *testing.T) {
	for _, status := range []enums.ReturnStatus{
		enums.ReturnStatusCompleted,
		enums.ReturnStatusRejected,
		enums.ReturnStatusPickupFailed,
	} {
		assert.Empty(t, transitions[status], "terminal status %s must have no outgoing edges", status)
		assert.True(t, status.IsTerminal())
	}
}

func TestIsAgentActive(t *testing.T) {
	assert.True(t, IsAgentActive(enums.ReturnStatusAssigned))
	assert.True(t, IsAgentActive(enums.ReturnStatusAccepted))
	assert.True(t, IsAgentActive(enums.ReturnStatusAgentReachedBuyer))
	assert.False(t, IsAgentActive(enums.ReturnStatusPickedUp))
	assert.False(t, IsAgentActive(enums.ReturnStatusRequested))
	assert.False(t, IsAgentActive(enums.ReturnStatusCompleted))
}
