package enums

// AgentStatus is the agent-facing projection of a delivery assignment. It is
// always derived from the assignment's checkpoint timestamps, never stored.
type AgentStatus string

const (
	AgentStatusAssigned          AgentStatus = "assigned"
	AgentStatusPickupCompleted   AgentStatus = "pickup_completed"
	AgentStatusLocationReached   AgentStatus = "location_reached"
	AgentStatusDeliveryCompleted AgentStatus = "delivery_completed"
)

// String implements fmt.Stringer.
func (a AgentStatus) String() string {
	return string(a)
}
