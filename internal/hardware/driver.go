// Package hardware implements the Driver facade of spec.md §4.4/§6.6: the
// single point of contact between the FSM/Coordinator and the physical (or
// simulated) cabin. Two implementations are provided — Simulated for tests
// and demos, TCPPanel for a real or stubbed hardware process.
package hardware

import (
	"context"

	"github.com/fjellheim/elevator-fleet/internal/domain"
)

// Driver is the hardware facade named in spec.md §6.6. FloorSensor returns
// (floor, ok) where ok is false when the cabin is between floors (the
// `Option<u8>` of the spec rendered as a zero value plus a presence flag,
// matching Go convention instead of a pointer).
type Driver interface {
	MotorDirection(ctx context.Context, dir domain.Direction) error
	FloorSensor(ctx context.Context) (floor int, ok bool, err error)
	CallButton(ctx context.Context, floor int, kind domain.CallKind) (pressed bool, err error)
	CallButtonLight(ctx context.Context, floor int, kind domain.CallKind, on bool) error
	DoorLight(ctx context.Context, on bool) error
	Obstruction(ctx context.Context) (bool, error)
	StopButton(ctx context.Context) (bool, error)
	// Close releases any underlying connection or resources.
	Close() error
}
