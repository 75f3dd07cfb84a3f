package domain

// ElevatorData is the replicated cluster snapshot exchanged between peers
// (spec.md §3, wire format §6.3). Version is bumped only by the
// originating node on a local change it wants propagated.
type ElevatorData struct {
	Version      uint64                   `json:"version"`
	HallRequests HallRequests             `json:"hallRequests"`
	States       map[string]ElevatorState `json:"states"`
}

// NewElevatorData creates the initial snapshot for a freshly started node:
// a single states entry for selfID, hall_requests all false, version 0.
func NewElevatorData(selfID string, floorCount int) *ElevatorData {
	return &ElevatorData{
		Version:      0,
		HallRequests: NewHallRequests(floorCount),
		States: map[string]ElevatorState{
			selfID: NewElevatorState(floorCount),
		},
	}
}

// Clone returns a deep copy so the Coordinator can hand a snapshot to the
// assigner or the network layer without aliasing its own mutable copy.
func (d *ElevatorData) Clone() *ElevatorData {
	states := make(map[string]ElevatorState, len(d.States))
	for id, s := range d.States {
		states[id] = s.Clone()
	}
	return &ElevatorData{
		Version:      d.Version,
		HallRequests: d.HallRequests.Clone(),
		States:       states,
	}
}

// WithoutVersion returns a shallow copy with Version zeroed, used before
// serializing for the assigner subprocess (spec.md §6.4: "with the version
// field removed").
func (d *ElevatorData) WithoutVersion() *ElevatorData {
	return &ElevatorData{
		Version:      0,
		HallRequests: d.HallRequests,
		States:       d.States,
	}
}

// HealthyStates returns the subset of States whose Behaviour is not Error
// (spec.md §4.2.2 step 2).
func (d *ElevatorData) HealthyStates() map[string]ElevatorState {
	out := make(map[string]ElevatorState, len(d.States))
	for id, s := range d.States {
		if s.Behaviour.IsHealthy() {
			out[id] = s
		}
	}
	return out
}

// KnownPeerIDs returns the set of ids currently present in States.
func (d *ElevatorData) KnownPeerIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(d.States))
	for id := range d.States {
		out[id] = struct{}{}
	}
	return out
}

// HasUnknownPeer reports whether incoming contains an id absent from d's
// States, the trigger for Merge classification (spec.md §4.2.1).
func (d *ElevatorData) HasUnknownPeer(incoming *ElevatorData) bool {
	for id := range incoming.States {
		if _, ok := d.States[id]; !ok {
			return true
		}
	}
	return false
}
