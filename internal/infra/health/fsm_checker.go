package health

import (
	"context"
)

// FSMStatus is the minimal view of a cabin's FSM the health checker needs,
// decoupled from internal/domain so health stays a dependency-light leaf
// package.
type FSMStatus struct {
	Behaviour string
	Floor     int
}

// NewFSMHealthChecker reports on the local cabin's Behaviour, mirroring
// the teacher's component-checker pattern (NewComponentHealthChecker)
// but sourced from the FSM snapshot instead of a manager's elevator map.
func NewFSMHealthChecker(snapshot func() FSMStatus) *ComponentHealthChecker {
	return NewComponentHealthChecker("fsm", func(ctx context.Context) (bool, string, map[string]interface{}) {
		status := snapshot()
		details := map[string]interface{}{
			"behaviour": status.Behaviour,
			"floor":     status.Floor,
		}
		if status.Behaviour == "error" {
			return false, "cabin is in the Error behaviour", details
		}
		return true, "cabin is operating normally", details
	})
}

// NewPeerCountHealthChecker reports unhealthy when other cabins are known
// but none of them is healthy, which still lets this node serve its own
// hall calls (spec.md §4.2.2 step 3) but loses the fault-tolerance the
// cluster otherwise provides. A node that knows no other cabin reports
// healthy as the sole cabin. peerCount's counts exclude this node.
func NewPeerCountHealthChecker(peerCount func() (healthy, total int)) *ComponentHealthChecker {
	return NewComponentHealthChecker("peers", func(ctx context.Context) (bool, string, map[string]interface{}) {
		healthy, total := peerCount()
		details := map[string]interface{}{
			"healthy_peers": healthy,
			"total_peers":   total,
		}
		if total == 0 {
			return true, "operating as the sole cabin", details
		}
		if healthy == 0 {
			return false, "no healthy peer cabins besides self", details
		}
		return true, "cluster has healthy peers", details
	})
}

// NewAssignerHealthChecker reports on the hall-request-assigner circuit
// breaker state. An Open breaker means the next reassignment round (any
// round with at least one healthy cabin, this one included) will fail and bring
// the node down, since assigner failure is fatal; surfacing it here lets
// a readiness probe catch the condition before that happens.
func NewAssignerHealthChecker(breakerState func() string) *ComponentHealthChecker {
	return NewComponentHealthChecker("assigner", func(ctx context.Context) (bool, string, map[string]interface{}) {
		state := breakerState()
		details := map[string]interface{}{"circuit_breaker_state": state}
		if state == "open" {
			return false, "hall-request assigner circuit breaker is open", details
		}
		return true, "hall-request assigner is reachable", details
	})
}
