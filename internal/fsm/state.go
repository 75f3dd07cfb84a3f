package fsm

import (
	"sync"

	"github.com/fjellheim/elevator-fleet/internal/domain"
)

// snapshot is a mutex-guarded holder for the FSM's last published state,
// read by the Status API from a different goroutine. Grounded on the
// teacher's internal/elevator/state.go getter/setter shape, reduced to a
// single read/write pair since the FSM's own control loop never reads
// back through this lock — it keeps its own unguarded copy internally.
type snapshot struct {
	mu    sync.RWMutex
	state domain.ElevatorState
}

func (s *snapshot) set(state domain.ElevatorState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.Clone()
}

// Get returns a deep copy of the last published state.
func (s *snapshot) Get() domain.ElevatorState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}
