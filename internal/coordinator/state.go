package coordinator

import (
	"sync"

	"github.com/fjellheim/elevator-fleet/internal/domain"
)

// snapshot is a mutex-guarded holder for the Coordinator's replicated
// ElevatorData, read by the Status API from a different goroutine.
// Grounded on the same getter/setter shape as internal/fsm/state.go and
// the teacher's internal/elevator/state.go.
type snapshot struct {
	mu   sync.RWMutex
	data *domain.ElevatorData
}

func (s *snapshot) set(data *domain.ElevatorData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data.Clone()
}

// Get returns a deep copy of the last published ElevatorData.
func (s *snapshot) Get() *domain.ElevatorData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}
