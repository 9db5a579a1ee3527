package orders

import "github.com/arjunkapur/swiftkart-backend/pkg/enums"

// transitions is the forward edge set of the order lifecycle. Cancellation is
// handled separately because its legality depends on who is asking.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:        {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing:     {enums.OrderStatusPickupReady, enums.OrderStatusCancelled},
	enums.OrderStatusPickupReady:    {enums.OrderStatusOutForDelivery, enums.OrderStatusCancelled},
	enums.OrderStatusOutForDelivery: {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
	enums.OrderStatusDelivered:      {},
	enums.OrderStatusCancelled:      {},
}

// CanTransition reports whether the order lifecycle allows moving from one
// status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// cancelWindows restricts which states each actor may cancel from. Admin and
// system actors may cancel any non-terminal order.
var cancelWindows = map[enums.ActorRole][]enums.OrderStatus{
	enums.ActorRoleBuyer: {
		enums.OrderStatusPending,
		enums.OrderStatusProcessing,
	},
	enums.ActorRoleSeller: {
		enums.OrderStatusPending,
		enums.OrderStatusProcessing,
		enums.OrderStatusPickupReady,
	},
}

// CanCancel reports whether the actor may cancel an order in the given state.
func CanCancel(role enums.ActorRole, current enums.OrderStatus) bool {
	if current.IsTerminal() {
		return false
	}
	if role == enums.ActorRoleAdmin || role == enums.ActorRoleSystem {
		return true
	}
	for _, allowed := range cancelWindows[role] {
		if allowed == current {
			return true
		}
	}
	return false
}
