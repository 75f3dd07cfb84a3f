// Package fsm implements the per-cabin motion/door/order-completion
// controller of spec.md §4.1: direction choice, stop decisions, door
// timing, obstruction handling, and motor-loss detection. Grounded on
// the teacher's internal/elevator package: the ctx-aware event loop and
// channel-driven wake-up idiom of elevator.go's switchOn/Run, and the
// mutex-guarded external-read pattern of state.go. The teacher's
// SCAN/LOOK multi-request algorithm is replaced outright by the simpler
// single-direction-then-opposite rule of spec.md §4.1.3, since this
// cabin serves one assigned matrix at a time rather than an internal
// queue of from/to requests.
package fsm

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjellheim/elevator-fleet/internal/constants"
	"github.com/fjellheim/elevator-fleet/internal/domain"
	"github.com/fjellheim/elevator-fleet/internal/events"
	"github.com/fjellheim/elevator-fleet/internal/persist"
)

// errorCause distinguishes why the FSM is in Behaviour Error: the two
// causes clear differently (spec.md §4.1 Error transitions).
type errorCause int

const (
	errorCauseNone errorCause = iota
	errorCauseMotor
	errorCauseObstruction
)

// FSM is the per-cabin controller. It owns exactly one goroutine (Run)
// and is not otherwise safe for concurrent use; Snapshot is the one
// exception, backed by its own lock.
type FSM struct {
	floorCount   int
	doorOpenTime time.Duration
	motorTimeout time.Duration
	// doorTimeout is the total elapsed door-open duration (under
	// continued obstruction) beyond which the cabin enters Error —
	// spec.md §4.1's "obstruction-timeout beyond" the normal door cycle.
	doorTimeout time.Duration

	logger   *slog.Logger
	cabCalls *persist.CabCalls

	motionIn      <-chan events.MotionEvent
	coordinatorIn <-chan events.CoordinatorEvent

	motorOut chan<- events.MotorDirective
	doorOut  chan<- events.DoorDirective
	fsmOut   chan<- events.FSMEvent

	snap *snapshot

	state        domain.ElevatorState
	hallRequests domain.HallRequests
	floorKnown   bool
	obstructed   bool
	cause        errorCause
	doorOpenedAt time.Time
}

// New constructs an FSM seeded from persisted cab calls (spec.md §6.5).
func New(
	floorCount int,
	doorOpenTime, motorTimeout, doorTimeout time.Duration,
	cabCalls *persist.CabCalls,
	motionIn <-chan events.MotionEvent,
	coordinatorIn <-chan events.CoordinatorEvent,
	motorOut chan<- events.MotorDirective,
	doorOut chan<- events.DoorDirective,
	fsmOut chan<- events.FSMEvent,
) (*FSM, error) {
	cab, err := cabCalls.Load(floorCount)
	if err != nil {
		return nil, err
	}

	return &FSM{
		floorCount:    floorCount,
		doorOpenTime:  doorOpenTime,
		motorTimeout:  motorTimeout,
		doorTimeout:   doorTimeout,
		logger:        slog.With(slog.String("component", constants.ComponentFSM)),
		cabCalls:      cabCalls,
		motionIn:      motionIn,
		coordinatorIn: coordinatorIn,
		motorOut:      motorOut,
		doorOut:       doorOut,
		fsmOut:        fsmOut,
		snap:          &snapshot{},
		state: domain.ElevatorState{
			Behaviour:   domain.BehaviourMoving,
			Floor:       0,
			Direction:   domain.DirectionDown,
			CabRequests: cab,
		},
		hallRequests: domain.NewHallRequests(floorCount),
	}, nil
}

// Snapshot returns the last published ElevatorState.
func (f *FSM) Snapshot() domain.ElevatorState {
	return f.snap.Get()
}

// Run blocks until ctx is cancelled. On start it publishes the initial
// state and commands the motor down to discover the current floor
// (spec.md §4.1 "Initial behavior").
func (f *FSM) Run(ctx context.Context) error {
	f.publish()
	f.motorOut <- events.MotorDirective{Direction: domain.DirectionDown}

	var motorTimerC, doorTimerC <-chan time.Time
	f.armMotorTimer(&motorTimerC)

	ticker := time.NewTicker(constants.FSMTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-f.motionIn:
			switch ev.Kind {
			case events.MotionEventFloorSensor:
				if !f.floorKnown {
					f.resolveInitialFloor(ev.Floor, &motorTimerC)
					continue
				}
				f.handleFloorHit(ev.Floor, &motorTimerC, &doorTimerC)
			case events.MotionEventObstruction:
				f.handleObstruction(ev.Obstructed, &doorTimerC)
			}

		case ev := <-f.coordinatorIn:
			switch ev.Kind {
			case events.CoordinatorEventHallAssignment:
				f.hallRequests = ev.HallRequests
			case events.CoordinatorEventCabRequest:
				f.recordCabRequest(ev.Floor)
			}
			f.tick(&motorTimerC, &doorTimerC)

		case <-motorTimerC:
			f.handleMotorTimeout(&motorTimerC)

		case <-doorTimerC:
			f.handleDoorTimeout(&motorTimerC, &doorTimerC)

		case <-ticker.C:
			f.tick(&motorTimerC, &doorTimerC)
		}
	}
}

func (f *FSM) recordCabRequest(floor int) {
	if floor < 0 || floor >= len(f.state.CabRequests) {
		return
	}
	f.state.CabRequests[floor] = true
	if err := f.cabCalls.Save(f.state.CabRequests); err != nil {
		f.logger.Error("failed to persist cab calls", slog.String("error", err.Error()))
	}
}

// resolveInitialFloor handles the special first floor-sensor edge that
// resolves the unknown starting floor and transitions to Idle, distinct
// from the ordinary floor-hit policy of §4.1.1.
func (f *FSM) resolveInitialFloor(floor int, motorTimerC *<-chan time.Time) {
	f.state.Floor = floor
	f.floorKnown = true
	f.disarmTimer(motorTimerC)
	f.state.Behaviour = domain.BehaviourIdle
	f.motorOut <- events.MotorDirective{Direction: domain.DirectionStop}
	f.publish()
}

// handleFloorHit implements §4.1.1. A floor-sensor edge is only
// meaningful while Moving (normal travel) or Error (motor restored).
func (f *FSM) handleFloorHit(floor int, motorTimerC, doorTimerC *<-chan time.Time) {
	if f.state.Behaviour != domain.BehaviourMoving && f.state.Behaviour != domain.BehaviourError {
		return
	}

	f.state.Floor = floor
	f.disarmTimer(motorTimerC)
	f.cause = errorCauseNone

	if f.completeOrders() {
		f.state.Behaviour = domain.BehaviourDoorOpen
		f.motorOut <- events.MotorDirective{Direction: domain.DirectionStop}
		f.openDoor(doorTimerC)
		f.publish()
		return
	}

	f.chooseAndMove(motorTimerC)
	f.publish()
}

// chooseAndMove runs §4.1.3's direction choice and issues the resulting
// motor command, updating Behaviour to Idle or Moving accordingly.
func (f *FSM) chooseAndMove(motorTimerC *<-chan time.Time) {
	dir := f.chooseDirection()
	f.state.Direction = dir
	if dir == domain.DirectionStop {
		f.state.Behaviour = domain.BehaviourIdle
		f.motorOut <- events.MotorDirective{Direction: domain.DirectionStop}
		return
	}
	f.state.Behaviour = domain.BehaviourMoving
	f.motorOut <- events.MotorDirective{Direction: dir}
	f.armMotorTimer(motorTimerC)
}

func (f *FSM) openDoor(doorTimerC *<-chan time.Time) {
	f.doorOut <- events.DoorDirective{Open: true}
	f.doorOpenedAt = time.Now()
	f.armDoorTimer(doorTimerC, f.doorOpenTime)
}

// tick drives the Idle-only checks of §4.1's control tick: orders
// waiting at the current floor, or a direction to set off in. It runs
// on every periodic wake-up and after any event that could make Idle
// newly eligible to act (a hall assignment or a cab request).
func (f *FSM) tick(motorTimerC, doorTimerC *<-chan time.Time) {
	if !f.floorKnown || f.state.Behaviour != domain.BehaviourIdle {
		return
	}

	if f.ordersAt(f.state.Floor) && f.completeOrders() {
		f.state.Behaviour = domain.BehaviourDoorOpen
		f.motorOut <- events.MotorDirective{Direction: domain.DirectionStop}
		f.openDoor(doorTimerC)
		f.publish()
		return
	}

	before := f.state.Behaviour
	f.chooseAndMove(motorTimerC)
	if f.state.Behaviour != before {
		f.publish()
	}
}

// handleMotorTimeout implements the Moving->Error transition of §4.1:
// the motor is retried and the timer re-armed on every expiry, so a
// cabin whose motor never recovers keeps publishing Error indefinitely
// rather than wedging.
func (f *FSM) handleMotorTimeout(motorTimerC *<-chan time.Time) {
	if f.state.Behaviour != domain.BehaviourMoving && f.cause != errorCauseMotor {
		return
	}
	f.state.Behaviour = domain.BehaviourError
	f.cause = errorCauseMotor
	f.logger.Warn("motor timeout: no floor-sensor edge",
		slog.Duration("timeout", f.motorTimeout),
		slog.String("direction", f.state.Direction.String()))
	f.publish()

	f.motorOut <- events.MotorDirective{Direction: f.state.Direction}
	f.armMotorTimer(motorTimerC)
}

// handleDoorTimeout implements the DoorOpen obstruction/close logic of
// §4.1: obstruction re-arms the door timer until doorTimeout total
// elapsed, beyond which the cabin enters Error; otherwise it closes the
// door, re-checks orders, and chooses its next direction.
func (f *FSM) handleDoorTimeout(motorTimerC, doorTimerC *<-chan time.Time) {
	if f.state.Behaviour != domain.BehaviourDoorOpen {
		return
	}

	if f.obstructed {
		if time.Since(f.doorOpenedAt) >= f.doorTimeout {
			f.state.Behaviour = domain.BehaviourError
			f.cause = errorCauseObstruction
			f.logger.Warn("door obstruction exceeded timeout, forcing reassignment",
				slog.Duration("timeout", f.doorTimeout))
			f.publish()
			return
		}
		f.armDoorTimer(doorTimerC, f.doorOpenTime)
		return
	}

	f.doorOut <- events.DoorDirective{Open: false}
	f.completeOrders()
	f.cause = errorCauseNone
	f.chooseAndMove(motorTimerC)
	f.publish()
}

// handleObstruction tracks the obstruction flag and handles the
// Error->DoorOpen recovery of §4.1: once an obstruction-caused Error
// clears, the door reopens briefly to hand back eligibility.
func (f *FSM) handleObstruction(obstructed bool, doorTimerC *<-chan time.Time) {
	f.obstructed = obstructed

	if f.state.Behaviour == domain.BehaviourError && f.cause == errorCauseObstruction && !obstructed {
		f.state.Behaviour = domain.BehaviourDoorOpen
		f.cause = errorCauseNone
		f.openDoor(doorTimerC)
		f.publish()
	}
}

// completeOrders implements §4.1.2. It mutates cab_requests and
// hall_requests in place and reports whether any order was completed.
func (f *FSM) completeOrders() bool {
	floor := f.state.Floor
	completed := false

	if f.state.CabRequests[floor] {
		f.state.CabRequests[floor] = false
		completed = true
		f.fsmOut <- events.NewOrderCompletedEvent(floor, domain.CallCab)
		if err := f.cabCalls.Save(f.state.CabRequests); err != nil {
			f.logger.Error("failed to persist cab calls", slog.String("error", err.Error()))
		}
	}

	atBottom := floor == 0
	atTop := floor == f.floorCount-1
	idle := f.state.Behaviour == domain.BehaviourIdle

	if f.hallRequests.Get(floor, domain.CallHallUp) &&
		(f.state.Direction == domain.DirectionUp || idle || atBottom) {
		f.hallRequests.Clear(floor, domain.CallHallUp)
		completed = true
		f.fsmOut <- events.NewOrderCompletedEvent(floor, domain.CallHallUp)
	}

	if f.hallRequests.Get(floor, domain.CallHallDown) &&
		(f.state.Direction == domain.DirectionDown || idle || atTop) {
		f.hallRequests.Clear(floor, domain.CallHallDown)
		completed = true
		f.fsmOut <- events.NewOrderCompletedEvent(floor, domain.CallHallDown)
	}

	return completed
}

// ordersAt reports whether any order — cab, hall-up, or hall-down — is
// pending at floor f.
func (f *FSM) ordersAt(floor int) bool {
	return f.state.CabRequests[floor] ||
		f.hallRequests.Get(floor, domain.CallHallUp) ||
		f.hallRequests.Get(floor, domain.CallHallDown)
}

func (f *FSM) hasOrdersAbove(floor int) bool {
	for fl := floor + 1; fl < f.floorCount; fl++ {
		if f.ordersAt(fl) {
			return true
		}
	}
	return false
}

func (f *FSM) hasOrdersBelow(floor int) bool {
	for fl := floor - 1; fl >= 0; fl-- {
		if f.ordersAt(fl) {
			return true
		}
	}
	return false
}

// chooseDirection implements §4.1.3.
func (f *FSM) chooseDirection() domain.Direction {
	floor := f.state.Floor

	switch f.state.Direction {
	case domain.DirectionUp:
		if f.hasOrdersAbove(floor) {
			return domain.DirectionUp
		}
		if f.hasOrdersBelow(floor) {
			return domain.DirectionDown
		}
	case domain.DirectionDown:
		if f.hasOrdersBelow(floor) {
			return domain.DirectionDown
		}
		if f.hasOrdersAbove(floor) {
			return domain.DirectionUp
		}
	case domain.DirectionStop:
		if f.hasOrdersAbove(floor) {
			return domain.DirectionUp
		}
		if f.hasOrdersBelow(floor) {
			return domain.DirectionDown
		}
	}
	return domain.DirectionStop
}

func (f *FSM) armMotorTimer(c *<-chan time.Time) {
	*c = time.After(f.motorTimeout)
}

func (f *FSM) armDoorTimer(c *<-chan time.Time, d time.Duration) {
	*c = time.After(d)
}

func (f *FSM) disarmTimer(c *<-chan time.Time) {
	*c = nil
}

func (f *FSM) publish() {
	f.snap.set(f.state)
	f.fsmOut <- events.NewStatePublishedEvent(f.state.Clone())
}
