package assign

import (
	"context"

	"github.com/fjellheim/elevator-fleet/internal/domain"
)

// Stub is a deterministic in-process Assigner for Coordinator and
// integration tests, avoiding a real subprocess dependency.
type Stub struct {
	// Fn computes the assignment. When nil, Assign returns ErrStub.
	Fn func(data *domain.ElevatorData) (map[string]domain.HallRequests, error)
	// Calls records every request passed to Assign, in order.
	Calls []*domain.ElevatorData
}

// ErrStub is returned by Assign when no Fn has been configured.
var ErrStub = domain.NewInternalError("assign.Stub: no Fn configured", nil)

func (s *Stub) Assign(_ context.Context, data *domain.ElevatorData) (map[string]domain.HallRequests, error) {
	s.Calls = append(s.Calls, data)
	if s.Fn == nil {
		return nil, ErrStub
	}
	return s.Fn(data)
}

// AssignAllToSelf returns a Stub that routes every hall request in data
// to the given id, unchanged — useful for single-cabin scenario tests.
func AssignAllToSelf(id string) *Stub {
	return &Stub{
		Fn: func(data *domain.ElevatorData) (map[string]domain.HallRequests, error) {
			return map[string]domain.HallRequests{id: data.HallRequests.Clone()}, nil
		},
	}
}
