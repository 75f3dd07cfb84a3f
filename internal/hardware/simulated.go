package hardware

import (
	"context"
	"sync"
	"time"

	"github.com/fjellheim/elevator-fleet/internal/domain"
)

// buttonKey addresses a single call button's physical state.
type buttonKey struct {
	floor int
	kind  domain.CallKind
}

// Simulated is an in-process Driver that fabricates floor-sensor edges
// from a commanded motor direction and a configurable per-floor travel
// duration, in the spirit of the teacher's Elevator.Run travel-time
// simulation (time.After(eachFloorDuration) between floor transitions).
// It is used by tests and whenever hardware.driver is "simulated".
type Simulated struct {
	mu                sync.Mutex
	floorCount        int
	eachFloorDuration time.Duration

	floor       int
	motorDir    domain.Direction
	pendingEdge bool
	timer       *time.Timer

	lights      map[buttonKey]bool
	buttons     map[buttonKey]bool
	doorLight   bool
	obstructed  bool
	stopPressed bool
}

// NewSimulated creates a simulated cabin starting at startFloor.
func NewSimulated(floorCount int, eachFloorDuration time.Duration, startFloor int) *Simulated {
	return &Simulated{
		floorCount:        floorCount,
		eachFloorDuration: eachFloorDuration,
		floor:             startFloor,
		motorDir:          domain.DirectionStop,
		lights:            make(map[buttonKey]bool),
		buttons:           make(map[buttonKey]bool),
	}
}

func (s *Simulated) MotorDirection(_ context.Context, dir domain.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.motorDir = dir
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if dir == domain.DirectionStop {
		return nil
	}
	s.timer = time.AfterFunc(s.eachFloorDuration, s.advance)
	return nil
}

func (s *Simulated) advance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved := false
	switch s.motorDir {
	case domain.DirectionUp:
		if s.floor < s.floorCount-1 {
			s.floor++
			moved = true
		}
	case domain.DirectionDown:
		if s.floor > 0 {
			s.floor--
			moved = true
		}
	default:
		return
	}
	if moved {
		s.pendingEdge = true
	}
	s.timer = time.AfterFunc(s.eachFloorDuration, s.advance)
}

func (s *Simulated) FloorSensor(_ context.Context) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pendingEdge {
		return 0, false, nil
	}
	s.pendingEdge = false
	return s.floor, true, nil
}

func (s *Simulated) CallButton(_ context.Context, floor int, kind domain.CallKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buttons[buttonKey{floor, kind}], nil
}

func (s *Simulated) CallButtonLight(_ context.Context, floor int, kind domain.CallKind, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights[buttonKey{floor, kind}] = on
	return nil
}

func (s *Simulated) DoorLight(_ context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doorLight = on
	return nil
}

func (s *Simulated) Obstruction(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.obstructed, nil
}

func (s *Simulated) StopButton(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopPressed, nil
}

func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	return nil
}

// PressButton simulates a momentary physical press: the button reads
// true for one debounce window, then auto-releases, producing a natural
// 0->1->0 edge for the Hardware poll loop to observe.
func (s *Simulated) PressButton(floor int, kind domain.CallKind) {
	key := buttonKey{floor, kind}
	s.mu.Lock()
	s.buttons[key] = true
	s.mu.Unlock()

	time.AfterFunc(s.eachFloorDuration/4, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.buttons[key] = false
	})
}

// SetObstructed sets the obstruction sensor level for tests.
func (s *Simulated) SetObstructed(obstructed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obstructed = obstructed
}

// PressStop sets the stop button level for tests.
func (s *Simulated) PressStop(pressed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopPressed = pressed
}

// LightState reports whether the call lamp at (floor, kind) is lit, for
// test assertions.
func (s *Simulated) LightState(floor int, kind domain.CallKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lights[buttonKey{floor, kind}]
}

// DoorLightState reports the door lamp state for test assertions.
func (s *Simulated) DoorLightState() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doorLight
}
