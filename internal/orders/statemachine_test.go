package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
)

func TestCanTransitionHappyPath(t *testing.T) {
	assert.True(t, CanTransition(enums.OrderStatusPending, enums.OrderStatusProcessing))
	assert.True(t, CanTransition(enums.OrderStatusProcessing, enums.OrderStatusPickupReady))
	assert.True(t, CanTransition(enums.OrderStatusPickupReady, enums.OrderStatusOutForDelivery))
	assert.True(t, CanTransition(enums.OrderStatusOutForDelivery, enums.OrderStatusDelivered))
}

func TestCanTransitionRejectsSkips(t *testing.T) {
	assert.False(t, CanTransition(enums.OrderStatusPending, enums.OrderStatusPickupReady))
	assert.False(t, CanTransition(enums.OrderStatusPending, enums.OrderStatusDelivered))
	assert.False(t, CanTransition(enums.OrderStatusProcessing, enums.OrderStatusOutForDelivery))
	assert.False(t, CanTransition(enums.OrderStatusPickupReady, enums.OrderStatusDelivered))
}

func TestCanTransitionRejectsBackwards(t *testing.T) {
	assert.False(t, CanTransition(enums.OrderStatusProcessing, enums.OrderStatusPending))
	assert.False(t, CanTransition(enums.OrderStatusDelivered, enums.OrderStatusOutForDelivery))
}

func TestTerminalStatesHaveNoEdges(t *testing.T) {
	for _, to := range []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusProcessing,
		enums.OrderStatusPickupReady,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	} {
		assert.False(t, CanTransition(enums.OrderStatusDelivered, to))
		assert.False(t, CanTransition(enums.OrderStatusCancelled, to))
	}
}

func TestCanCancelWindows(t *testing.T) {
	assert.True(t, CanCancel(enums.ActorRoleBuyer, enums.OrderStatusPending))
	assert.True(t, CanCancel(enums.ActorRoleBuyer, enums.OrderStatusProcessing))
	assert.False(t, CanCancel(enums.ActorRoleBuyer, enums.OrderStatusPickupReady))
	assert.False(t, CanCancel(enums.ActorRoleBuyer, enums.OrderStatusOutForDelivery))

	assert.True(t, CanCancel(enums.ActorRoleSeller, enums.OrderStatusPickupReady))
	assert.False(t, CanCancel(enums.ActorRoleSeller, enums.OrderStatusOutForDelivery))

	assert.True(t, CanCancel(enums.ActorRoleAdmin, enums.OrderStatusOutForDelivery))
	assert.True(t, CanCancel(enums.ActorRoleSystem, enums.OrderStatusPending))

	assert.False(t, CanCancel(enums.ActorRoleAdmin, enums.OrderStatusDelivered))
	assert.False(t, CanCancel(enums.ActorRoleAdmin, enums.OrderStatusCancelled))
}
