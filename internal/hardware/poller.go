package hardware

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjellheim/elevator-fleet/internal/constants"
	"github.com/fjellheim/elevator-fleet/internal/domain"
	"github.com/fjellheim/elevator-fleet/internal/events"
)

// Thread is the Hardware component of spec.md §4.4: a single-threaded
// polling loop that debounces sensor edges out to the FSM and Coordinator,
// and serializes motor/door/lamp commands back onto the Driver. Grounded
// on the teacher's switchOn/Run select-loop shape (internal/elevator's
// ctx-aware event loop), generalized from one channel to the full set
// spec.md §5 names for this thread.
type Thread struct {
	driver       Driver
	floorCount   int
	pollInterval time.Duration
	logger       *slog.Logger

	MotorCh chan events.MotorDirective
	DoorCh  chan events.DoorDirective
	LampCh  chan events.LampDirective

	motionOut chan<- events.MotionEvent
	driverOut chan<- events.DriverEvent

	pendingButtons map[buttonKey]bool
	stopPending    bool
	lastObstructed bool
}

// NewThread wires a Driver to the rest of the node. motionOut carries
// floor-sensor/obstruction edges to the FSM; driverOut carries button and
// stop edges to the Coordinator.
func NewThread(driver Driver, floorCount int, pollInterval time.Duration, motionOut chan<- events.MotionEvent, driverOut chan<- events.DriverEvent) *Thread {
	return &Thread{
		driver:         driver,
		floorCount:     floorCount,
		pollInterval:   pollInterval,
		logger:         slog.With(slog.String("component", constants.ComponentHardware)),
		MotorCh:        make(chan events.MotorDirective, 4),
		DoorCh:         make(chan events.DoorDirective, 4),
		LampCh:         make(chan events.LampDirective, 16),
		motionOut:      motionOut,
		driverOut:      driverOut,
		pendingButtons: make(map[buttonKey]bool),
	}
}

// Run blocks until ctx is cancelled or a transport error occurs. A
// returned error is the fatal "hardware-channel disconnect" of spec.md
// §4.1 Failure semantics; the caller is expected to exit the process.
func (t *Thread) Run(ctx context.Context) error {
	if err := t.extinguishAllLamps(ctx); err != nil {
		return err
	}
	obstructed, err := t.driver.Obstruction(ctx)
	if err != nil {
		return err
	}
	t.lastObstructed = obstructed

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-t.MotorCh:
			if err := t.driver.MotorDirection(ctx, m.Direction); err != nil {
				return err
			}
		case d := <-t.DoorCh:
			if err := t.driver.DoorLight(ctx, d.Open); err != nil {
				return err
			}
		case l := <-t.LampCh:
			if err := t.driver.CallButtonLight(ctx, l.Floor, l.CallKind, l.On); err != nil {
				return err
			}
			if !l.On {
				delete(t.pendingButtons, buttonKey{l.Floor, l.CallKind})
			}
		case <-ticker.C:
			if err := t.poll(ctx); err != nil {
				return err
			}
		}
	}
}

func (t *Thread) extinguishAllLamps(ctx context.Context) error {
	for f := 0; f < t.floorCount; f++ {
		for _, k := range validKinds(f, t.floorCount) {
			if err := t.driver.CallButtonLight(ctx, f, k, false); err != nil {
				return err
			}
		}
	}
	return t.driver.DoorLight(ctx, false)
}

func (t *Thread) poll(ctx context.Context) error {
	floor, ok, err := t.driver.FloorSensor(ctx)
	if err != nil {
		return err
	}
	if ok {
		t.motionOut <- events.NewFloorSensorEvent(floor)
	}

	obstructed, err := t.driver.Obstruction(ctx)
	if err != nil {
		return err
	}
	if obstructed != t.lastObstructed {
		t.lastObstructed = obstructed
		t.motionOut <- events.NewObstructionEvent(obstructed)
	}

	for f := 0; f < t.floorCount; f++ {
		for _, k := range validKinds(f, t.floorCount) {
			pressed, err := t.driver.CallButton(ctx, f, k)
			if err != nil {
				return err
			}
			key := buttonKey{f, k}
			if pressed && !t.pendingButtons[key] {
				t.pendingButtons[key] = true
				t.driverOut <- events.NewButtonEvent(f, k)
			}
		}
	}

	stopped, err := t.driver.StopButton(ctx)
	if err != nil {
		return err
	}
	if stopped && !t.stopPending {
		t.stopPending = true
		t.driverOut <- events.NewStopEvent()
	} else if !stopped {
		t.stopPending = false
	}
	return nil
}

// validKinds lists the call kinds that legally exist at floor, honoring
// the top/bottom invariants of spec.md §3 (no HALL_UP at the top floor,
// no HALL_DOWN at the bottom floor).
func validKinds(floor, floorCount int) []domain.CallKind {
	kinds := make([]domain.CallKind, 0, 3)
	if floor < floorCount-1 {
		kinds = append(kinds, domain.CallHallUp)
	}
	if floor > 0 {
		kinds = append(kinds, domain.CallHallDown)
	}
	kinds = append(kinds, domain.CallCab)
	return kinds
}
