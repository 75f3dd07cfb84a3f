// Package events defines the tagged-union event structs exchanged between
// the long-lived goroutines of a node (Hardware, FSM, Coordinator,
// Network). Each type carries a Kind discriminant plus one payload field
// per variant, following spec.md §9 "Enum-with-payload events": Go has no
// native sum type, so a struct-with-discriminant stands in for one.
package events

import "github.com/fjellheim/elevator-fleet/internal/domain"

// DriverEventKind discriminates Hardware->Coordinator events: button
// presses and the stop button, both of which the Coordinator (not the
// FSM) reacts to.
type DriverEventKind int

const (
	DriverEventButton DriverEventKind = iota
	DriverEventStop
)

type DriverEvent struct {
	Kind     DriverEventKind
	Floor    int             // valid when Kind == DriverEventButton
	CallKind domain.CallKind // valid when Kind == DriverEventButton
}

func NewButtonEvent(floor int, kind domain.CallKind) DriverEvent {
	return DriverEvent{Kind: DriverEventButton, Floor: floor, CallKind: kind}
}

func NewStopEvent() DriverEvent {
	return DriverEvent{Kind: DriverEventStop}
}

// MotionEventKind discriminates Hardware->FSM events: floor-sensor edges
// and obstruction-level changes, the two inputs that drive motion state
// directly rather than going through the Coordinator.
type MotionEventKind int

const (
	MotionEventFloorSensor MotionEventKind = iota
	MotionEventObstruction
)

type MotionEvent struct {
	Kind       MotionEventKind
	Floor      int  // valid when Kind == MotionEventFloorSensor
	Obstructed bool // valid when Kind == MotionEventObstruction
}

func NewFloorSensorEvent(floor int) MotionEvent {
	return MotionEvent{Kind: MotionEventFloorSensor, Floor: floor}
}

func NewObstructionEvent(obstructed bool) MotionEvent {
	return MotionEvent{Kind: MotionEventObstruction, Obstructed: obstructed}
}

// MotorDirective is an FSM->Hardware motor command.
type MotorDirective struct {
	Direction domain.Direction
}

// DoorDirective is an FSM->Hardware door command.
type DoorDirective struct {
	Open bool
}

// LampDirective is a Coordinator->Hardware call-button lamp command.
type LampDirective struct {
	Floor    int
	CallKind domain.CallKind
	On       bool
}

// FSMEventKind discriminates FSM->Coordinator events.
type FSMEventKind int

const (
	FSMEventStatePublished FSMEventKind = iota
	FSMEventOrderCompleted
)

type FSMEvent struct {
	Kind     FSMEventKind
	State    domain.ElevatorState // valid when Kind == FSMEventStatePublished
	Floor    int                  // valid when Kind == FSMEventOrderCompleted
	CallKind domain.CallKind      // valid when Kind == FSMEventOrderCompleted
}

func NewStatePublishedEvent(state domain.ElevatorState) FSMEvent {
	return FSMEvent{Kind: FSMEventStatePublished, State: state}
}

func NewOrderCompletedEvent(floor int, kind domain.CallKind) FSMEvent {
	return FSMEvent{Kind: FSMEventOrderCompleted, Floor: floor, CallKind: kind}
}

// CoordinatorEventKind discriminates Coordinator->FSM events.
type CoordinatorEventKind int

const (
	CoordinatorEventHallAssignment CoordinatorEventKind = iota
	CoordinatorEventCabRequest
)

type CoordinatorEvent struct {
	Kind         CoordinatorEventKind
	HallRequests domain.HallRequests // valid when Kind == CoordinatorEventHallAssignment
	Floor        int                 // valid when Kind == CoordinatorEventCabRequest
}

func NewHallAssignmentEvent(h domain.HallRequests) CoordinatorEvent {
	return CoordinatorEvent{Kind: CoordinatorEventHallAssignment, HallRequests: h}
}

func NewCabRequestEvent(floor int) CoordinatorEvent {
	return CoordinatorEvent{Kind: CoordinatorEventCabRequest, Floor: floor}
}

// NetworkEventKind discriminates Network->Coordinator events.
type NetworkEventKind int

const (
	NetworkEventSnapshot NetworkEventKind = iota
	NetworkEventPeerUpdate
)

type NetworkEvent struct {
	Kind     NetworkEventKind
	Snapshot *domain.ElevatorData // valid when Kind == NetworkEventSnapshot
	New      []string             // valid when Kind == NetworkEventPeerUpdate
	Lost     []string             // valid when Kind == NetworkEventPeerUpdate
}

func NewSnapshotEvent(data *domain.ElevatorData) NetworkEvent {
	return NetworkEvent{Kind: NetworkEventSnapshot, Snapshot: data}
}

func NewPeerUpdateEvent(newPeers, lostPeers []string) NetworkEvent {
	return NetworkEvent{Kind: NetworkEventPeerUpdate, New: newPeers, Lost: lostPeers}
}
