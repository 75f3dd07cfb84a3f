// Package network implements the four logical channels of spec.md §4.3:
// peer gossip (Peer-TX/Peer-RX) and reliable unicast broadcast-with-ack
// (Data-TX/Data-RX). The teacher has no analogue (its elevators never
// leave one process), so the internal sub-thread layout is grounded on
// the teacher's own "one goroutine per long-lived worker, sync.WaitGroup
// at the top to track them" convention from cmd/server/main.go and
// internal/manager/manager.go, generalized from two workers to four.
package network

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fjellheim/elevator-fleet/internal/constants"
	"github.com/fjellheim/elevator-fleet/internal/domain"
	"github.com/fjellheim/elevator-fleet/internal/events"
)

// Network owns the four sub-threads of spec.md §4.3 and exposes the
// single NetworkEvent stream the Coordinator consumes.
type Network struct {
	selfID string
	logger *slog.Logger

	tx  *peerTX
	rx  *peerRX
	dtx *dataTX
	drx *dataRX

	out chan events.NetworkEvent
}

// Config collects the network.* TOML keys (spec.md §6.1) needed to start
// the four sub-threads.
type Config struct {
	SelfID             string
	MsgPort            int
	PeerPort           int
	MaxRetries         int
	AckTimeout         time.Duration
	PeerGossipInterval time.Duration
	PeerTimeout        time.Duration
}

// New wires the four sub-threads together. dataOut is the channel the
// Coordinator's reassign step writes outbound snapshots onto.
func New(cfg Config, dataOut <-chan *domain.ElevatorData) *Network {
	out := make(chan events.NetworkEvent, 64)
	return &Network{
		selfID: cfg.SelfID,
		logger: slog.With(slog.String("component", constants.ComponentNetwork)),
		tx:     newPeerTX(cfg.SelfID, cfg.PeerPort, cfg.PeerGossipInterval),
		rx:     newPeerRX(cfg.SelfID, cfg.PeerPort, cfg.PeerTimeout, out),
		dtx:    newDataTX(cfg.SelfID, cfg.MaxRetries, cfg.AckTimeout, dataOut),
		drx:    newDataRX(cfg.MsgPort, out),
		out:    out,
	}
}

// Events returns the NetworkEvent stream for the Coordinator to consume.
func (n *Network) Events() <-chan events.NetworkEvent {
	return n.out
}

// SetPeerTXEnabled toggles peer-broadcast on or off, simulating a node's
// departure from the cluster without terminating it (spec.md §4.3
// Peer-TX).
func (n *Network) SetPeerTXEnabled(enabled bool) {
	n.tx.SetEnabled(enabled)
}

// Run starts all four sub-threads and blocks until ctx is cancelled or
// one of them exits with a fatal error (spec.md §7 kind 1, bind failure).
// The first fatal error cancels the others via an internal context.
func (n *Network) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	workers := []struct {
		name string
		run  func(context.Context) error
	}{
		{"peer-tx", n.tx.run},
		{"peer-rx", n.rx.run},
		{"data-tx", n.dtx.run},
		{"data-rx", n.drx.run},
	}

	for _, w := range workers {
		wg.Add(1)
		go func(name string, run func(context.Context) error) {
			defer wg.Done()
			if err := run(runCtx); err != nil {
				n.logger.Error("network sub-thread exited with error", "worker", name, "error", err)
				errCh <- domain.NewHardwareError("network sub-thread "+name+" failed", err)
				cancel()
			}
		}(w.name, w.run)
	}

	wg.Wait()
	close(errCh)

	select {
	case <-ctx.Done():
		return nil
	default:
	}

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}
