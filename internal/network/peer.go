package network

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/fjellheim/elevator-fleet/internal/constants"
	"github.com/fjellheim/elevator-fleet/internal/events"
)

// peerTable tracks the last time a broadcast was seen from each peer id,
// guarded by its own mutex since peer-RX writes it and the peer-silence
// sweep reads it from a different goroutine (spec.md §4.3 Peer-RX).
type peerTable struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func newPeerTable() *peerTable {
	return &peerTable{lastSeen: make(map[string]time.Time)}
}

// touch records a sighting of id and returns true if id was not already
// known (a "new" peer per spec.md §4.3 Peer-RX).
func (t *peerTable) touch(id string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, known := t.lastSeen[id]
	t.lastSeen[id] = now
	return !known
}

// sweep removes every id whose last sighting is older than timeout and
// returns the ids removed (the "lost" set).
func (t *peerTable) sweep(timeout time.Duration, now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var lost []string
	for id, seen := range t.lastSeen {
		if now.Sub(seen) > timeout {
			delete(t.lastSeen, id)
			lost = append(lost, id)
		}
	}
	return lost
}

// peerTX periodically broadcasts selfID on peerPort (spec.md §4.3
// Peer-TX). It can be silenced at runtime via SetEnabled, to
// simulate a node's departure from the cluster without killing the
// process (spec.md §4.3 "may be disabled at runtime to simulate
// departure").
type peerTX struct {
	selfID   string
	peerPort int
	interval time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	enabled bool
}

func newPeerTX(selfID string, peerPort int, interval time.Duration) *peerTX {
	return &peerTX{
		selfID:   selfID,
		peerPort: peerPort,
		interval: interval,
		logger:   slog.With(slog.String("component", constants.ComponentNetwork), slog.String("subcomponent", "peer-tx")),
		enabled:  true,
	}
}

// SetEnabled toggles broadcasting on or off.
func (tx *peerTX) SetEnabled(enabled bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.enabled = enabled
}

func (tx *peerTX) isEnabled() bool {
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	return tx.enabled
}

// run sends selfID to the IPv4 limited-broadcast address on peerPort.
// Sending to 255.255.255.255 needs SO_BROADCAST on the socket, which Go's
// net package sets automatically the first time WriteTo targets a
// broadcast address on most platforms; deployments on a platform that
// rejects it should run each node with an explicit peer list instead
// (left for cmd/server to wire, not modeled here).
func (tx *peerTX) run(ctx context.Context) error {
	broadcastAddr := &net.UDPAddr{IP: net.IPv4bcast, Port: tx.peerPort}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(tx.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !tx.isEnabled() {
				continue
			}
			if _, err := conn.WriteTo([]byte(tx.selfID), broadcastAddr); err != nil {
				tx.logger.Warn("peer broadcast failed", "error", err)
			}
		}
	}
}

// peerRX listens for peer broadcasts, computes {new, lost} deltas against
// its last-seen table, and publishes PeerUpdate events (spec.md §4.3
// Peer-RX).
type peerRX struct {
	selfID   string
	peerPort int
	timeout  time.Duration
	logger   *slog.Logger
	table    *peerTable
	out      chan<- events.NetworkEvent
}

func newPeerRX(selfID string, peerPort int, timeout time.Duration, out chan<- events.NetworkEvent) *peerRX {
	return &peerRX{
		selfID:   selfID,
		peerPort: peerPort,
		timeout:  timeout,
		logger:   slog.With(slog.String("component", constants.ComponentNetwork), slog.String("subcomponent", "peer-rx")),
		table:    newPeerTable(),
		out:      out,
	}
}

func (rx *peerRX) run(ctx context.Context) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: rx.peerPort})
	if err != nil {
		return err
	}
	defer conn.Close()

	go rx.sweepLoop(ctx)

	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
			return err
		}
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			default:
				rx.logger.Warn("peer-rx read failed", "error", err)
				continue
			}
		}

		id := string(buf[:n])
		if id == rx.selfID {
			continue
		}
		if rx.table.touch(id, time.Now()) {
			rx.out <- events.NewPeerUpdateEvent([]string{id}, nil)
		}
	}
}

func (rx *peerRX) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(rx.timeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lost := rx.table.sweep(rx.timeout, time.Now())
			if len(lost) > 0 {
				rx.out <- events.NewPeerUpdateEvent(nil, lost)
			}
		}
	}
}
