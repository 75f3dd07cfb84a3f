package domain

// ElevatorState is the per-cabin state mirrored by the FSM and replicated
// by the Coordinator inside ElevatorData.states (spec.md §3).
type ElevatorState struct {
	Behaviour   Behaviour `json:"behaviour"`
	Floor       int       `json:"floor"`
	Direction   Direction `json:"direction"`
	CabRequests []bool    `json:"cabRequests"`
}

// NewElevatorState returns the default state for a newly-seen peer or a
// freshly started node: Idle, floor 0, Stop, all cab requests false.
func NewElevatorState(floorCount int) ElevatorState {
	return ElevatorState{
		Behaviour:   BehaviourIdle,
		Floor:       0,
		Direction:   DirectionStop,
		CabRequests: make([]bool, floorCount),
	}
}

// Clone returns a deep copy so callers can mutate without aliasing the
// original's CabRequests slice.
func (s ElevatorState) Clone() ElevatorState {
	cab := make([]bool, len(s.CabRequests))
	copy(cab, s.CabRequests)
	return ElevatorState{
		Behaviour:   s.Behaviour,
		Floor:       s.Floor,
		Direction:   s.Direction,
		CabRequests: cab,
	}
}

// Validate checks the invariant cab_requests.length == floorCount and
// floor ∈ [0, floorCount-1] (spec.md §3).
func (s ElevatorState) Validate(floorCount int) error {
	if len(s.CabRequests) != floorCount {
		return ErrCabRequestsLength.WithContext("expected", floorCount).WithContext("actual", len(s.CabRequests))
	}
	if s.Floor < 0 || s.Floor >= floorCount {
		return ErrFloorOutOfRange.WithContext("floor", s.Floor).WithContext("floor_count", floorCount)
	}
	return nil
}

// HasOrderAt reports whether a cab call is pending at floor f.
func (s ElevatorState) HasOrderAt(f int) bool {
	return f >= 0 && f < len(s.CabRequests) && s.CabRequests[f]
}
