package hardware

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/fjellheim/elevator-fleet/internal/domain"
)

// Wire-level motor direction codes for the TCP panel protocol
// (SPEC_FULL.md §6.6); distinct from domain.Direction's string encoding
// used everywhere else in the process.
const (
	wireDirStop = 0
	wireDirUp   = 1
	wireDirDown = 2
)

func directionToWire(dir domain.Direction) int {
	switch dir {
	case domain.DirectionUp:
		return wireDirUp
	case domain.DirectionDown:
		return wireDirDown
	default:
		return wireDirStop
	}
}

type panelRequest struct {
	Op    string `json:"op"`
	Dir   int    `json:"dir"`
	Floor int    `json:"floor"`
	Kind  int    `json:"kind"`
	On    bool   `json:"on"`
}

type panelResponse struct {
	Floor      *int `json:"floor"`
	Pressed    bool `json:"pressed"`
	Obstructed bool `json:"obstructed"`
}

// TCPPanel is a Driver that speaks the newline-delimited JSON protocol of
// SPEC_FULL.md §6.6 to an out-of-process hardware panel or simulator
// server, addressed by hardware.driver_address/driver_port.
type TCPPanel struct {
	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

// DialTCPPanel connects to the panel server. A transport error here, and
// any later on the connection, is the fatal "hardware-channel disconnect"
// of spec.md §4.1 Failure semantics.
func DialTCPPanel(ctx context.Context, address string, timeout time.Duration) (*TCPPanel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, domain.NewHardwareError("failed to connect to hardware panel", err).
			WithContext("address", address)
	}
	return &TCPPanel{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		timeout: timeout,
	}, nil
}

func (p *TCPPanel) roundTrip(req panelRequest) (panelResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timeout > 0 {
		_ = p.conn.SetDeadline(time.Now().Add(p.timeout))
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return panelResponse{}, domain.NewHardwareError("failed to encode panel request", err)
	}
	if _, err := p.conn.Write(append(payload, '\n')); err != nil {
		return panelResponse{}, domain.NewHardwareError("failed to write to hardware panel", err).
			WithContext("op", req.Op)
	}

	line, err := p.reader.ReadString('\n')
	if err != nil {
		return panelResponse{}, domain.NewHardwareError("failed to read from hardware panel", err).
			WithContext("op", req.Op)
	}

	var resp panelResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return panelResponse{}, domain.NewHardwareError("malformed panel response", err).
			WithContext("op", req.Op).
			WithContext("line", line)
	}
	return resp, nil
}

func (p *TCPPanel) MotorDirection(_ context.Context, dir domain.Direction) error {
	_, err := p.roundTrip(panelRequest{Op: "motor", Dir: directionToWire(dir)})
	return err
}

func (p *TCPPanel) FloorSensor(_ context.Context) (int, bool, error) {
	resp, err := p.roundTrip(panelRequest{Op: "floor"})
	if err != nil {
		return 0, false, err
	}
	if resp.Floor == nil {
		return 0, false, nil
	}
	return *resp.Floor, true, nil
}

func (p *TCPPanel) CallButton(_ context.Context, floor int, kind domain.CallKind) (bool, error) {
	resp, err := p.roundTrip(panelRequest{Op: "button", Floor: floor, Kind: int(kind)})
	if err != nil {
		return false, err
	}
	return resp.Pressed, nil
}

func (p *TCPPanel) CallButtonLight(_ context.Context, floor int, kind domain.CallKind, on bool) error {
	_, err := p.roundTrip(panelRequest{Op: "light", Floor: floor, Kind: int(kind), On: on})
	return err
}

func (p *TCPPanel) DoorLight(_ context.Context, on bool) error {
	_, err := p.roundTrip(panelRequest{Op: "doorLight", On: on})
	return err
}

func (p *TCPPanel) Obstruction(_ context.Context) (bool, error) {
	resp, err := p.roundTrip(panelRequest{Op: "obstruction"})
	if err != nil {
		return false, err
	}
	return resp.Obstructed, nil
}

func (p *TCPPanel) StopButton(_ context.Context) (bool, error) {
	resp, err := p.roundTrip(panelRequest{Op: "stop"})
	if err != nil {
		return false, err
	}
	return resp.Pressed, nil
}

func (p *TCPPanel) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	if err != nil {
		return fmt.Errorf("closing hardware panel connection: %w", err)
	}
	return nil
}
