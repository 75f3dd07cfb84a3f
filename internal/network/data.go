package network

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"time"

	"github.com/fjellheim/elevator-fleet/internal/constants"
	"github.com/fjellheim/elevator-fleet/internal/domain"
	"github.com/fjellheim/elevator-fleet/internal/events"
	"github.com/fjellheim/elevator-fleet/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/fjellheim/elevator-fleet/internal/network")

const ackPayload = "ACK"

// dataTX performs reliable unicast fan-out with acknowledgement to every
// peer named in an outbound ElevatorData's states map (spec.md §4.3
// Data-TX).
type dataTX struct {
	selfID     string
	maxRetries int
	ackTimeout time.Duration
	logger     *slog.Logger
	in         <-chan *domain.ElevatorData
}

func newDataTX(selfID string, maxRetries int, ackTimeout time.Duration, in <-chan *domain.ElevatorData) *dataTX {
	return &dataTX{
		selfID:     selfID,
		maxRetries: maxRetries,
		ackTimeout: ackTimeout,
		logger:     slog.With(slog.String("component", constants.ComponentNetwork), slog.String("subcomponent", "data-tx")),
		in:         in,
	}
}

func (tx *dataTX) run(ctx context.Context) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-tx.in:
			tx.fanOut(ctx, conn, data)
		}
	}
}

func (tx *dataTX) fanOut(ctx context.Context, conn *net.UDPConn, data *domain.ElevatorData) {
	ctx, span := tracer.Start(ctx, "broadcast_fanout")
	span.SetAttributes(
		attribute.Int("peer_count", len(data.States)),
		attribute.Int64("version", int64(data.Version)),
	)
	defer span.End()

	payload, err := json.Marshal(data)
	if err != nil {
		tx.logger.Error("failed to marshal outbound snapshot", "error", err)
		return
	}

	for id := range data.States {
		if id == tx.selfID {
			continue
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		if tx.sendWithRetry(conn, id, payload) {
			metrics.RecordSnapshotDelivery(id, "acked")
		} else {
			metrics.RecordSnapshotDelivery(id, "timeout")
			tx.logger.Warn("peer did not ack within retry budget, giving up", "peer", id)
		}
	}
}

func (tx *dataTX) sendWithRetry(conn *net.UDPConn, peerID string, payload []byte) bool {
	addr, err := net.ResolveUDPAddr("udp4", peerID)
	if err != nil {
		tx.logger.Warn("peer id is not a resolvable address, skipping", "peer", peerID, "error", err)
		return false
	}

	for attempt := 1; attempt <= tx.maxRetries; attempt++ {
		if _, err := conn.WriteToUDP(payload, addr); err != nil {
			tx.logger.Warn("send failed", "peer", peerID, "attempt", attempt, "error", err)
			continue
		}
		if tx.waitForAck(conn, addr) {
			return true
		}
	}
	return false
}

func (tx *dataTX) waitForAck(conn *net.UDPConn, from *net.UDPAddr) bool {
	if err := conn.SetReadDeadline(time.Now().Add(tx.ackTimeout)); err != nil {
		return false
	}
	buf := make([]byte, 16)
	for {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return false
		}
		if raddr.IP.Equal(from.IP) && raddr.Port == from.Port && string(buf[:n]) == ackPayload {
			return true
		}
		// stray datagram from a different peer's retry race; keep waiting
		// until the deadline since ReadFromUDP doesn't reset it for us
	}
}

// dataRX binds msgPort, acknowledges every well-formed ElevatorData
// datagram, and publishes it to the Coordinator (spec.md §4.3 Data-RX).
type dataRX struct {
	msgPort int
	logger  *slog.Logger
	out     chan<- events.NetworkEvent
}

func newDataRX(msgPort int, out chan<- events.NetworkEvent) *dataRX {
	return &dataRX{
		msgPort: msgPort,
		logger:  slog.With(slog.String("component", constants.ComponentNetwork), slog.String("subcomponent", "data-rx")),
		out:     out,
	}
}

func (rx *dataRX) run(ctx context.Context) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: rx.msgPort})
	if err != nil {
		return err
	}
	defer conn.Close()

	buf := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
			return err
		}
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			default:
				rx.logger.Warn("data-rx read failed", "error", err)
				continue
			}
		}

		var data domain.ElevatorData
		if err := json.Unmarshal(buf[:n], &data); err != nil {
			rx.logger.Warn("dropping malformed inbound datagram", "from", raddr.String(), "error", err)
			continue
		}

		if _, err := conn.WriteToUDP([]byte(ackPayload), raddr); err != nil {
			rx.logger.Warn("failed to send ack", "to", raddr.String(), "error", err)
		}
		rx.out <- events.NewSnapshotEvent(&data)
	}
}
