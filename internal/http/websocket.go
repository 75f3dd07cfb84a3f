package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fjellheim/elevator-fleet/internal/constants"
	"github.com/fjellheim/elevator-fleet/internal/domain"
)

// wsUpgrader mirrors the teacher's permissive CheckOrigin for a status
// dashboard that may be served from a different origin than the API.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// statusHub pushes the Coordinator's snapshot to every connected
// WebSocket client whenever it changes, at most once per interval.
// Grounded on the teacher's internal/http/websocket_server.go connection
// bookkeeping (addConnection/removeConnection/closeAllConnections) and
// ping/pong keep-alive, generalized from a per-elevator status map to
// this node's single ElevatorData view.
type statusHub struct {
	interval    time.Duration
	coordinator CoordinatorView
	logger      *slog.Logger

	mu          sync.Mutex
	connections map[*websocket.Conn]context.CancelFunc

	lastVersion uint64
}

func newStatusHub(interval time.Duration, coord CoordinatorView) *statusHub {
	if interval <= 0 {
		interval = constants.StatusUpdateInterval
	}
	return &statusHub{
		interval:    interval,
		coordinator: coord,
		logger:      slog.With(slog.String("component", constants.ComponentHTTPServer), slog.String("subcomponent", "status-ws")),
		connections: make(map[*websocket.Conn]context.CancelFunc),
	}
}

// run polls the Coordinator snapshot at the configured interval and
// broadcasts it to every connected client whenever the version changes
// (SPEC_FULL.md §4.5), so at most one frame goes out per interval.
func (h *statusHub) run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data := h.coordinator.Snapshot()
			if data.Version == h.lastVersion {
				continue
			}
			h.lastVersion = data.Version
			h.broadcast(data)
		}
	}
}

func (h *statusHub) broadcast(data *domain.ElevatorData) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.connections))
	for c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
			continue
		}
		if err := c.WriteJSON(data); err != nil {
			h.logger.Warn("failed to push status update, dropping connection", "error", err)
			h.remove(c)
		}
	}
}

func (h *statusHub) add(conn *websocket.Conn, cancel context.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn] = cancel
}

func (h *statusHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cancel, ok := h.connections[conn]; ok {
		cancel()
		delete(h.connections, conn)
	}
	_ = conn.Close()
}

func (h *statusHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, cancel := range h.connections {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutdown"),
			time.Now().Add(time.Second))
		cancel()
		_ = conn.Close()
	}
	h.connections = make(map[*websocket.Conn]context.CancelFunc)
}

func (h *statusHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	h.add(conn, cancel)

	data := h.coordinator.Snapshot()
	if err := conn.WriteJSON(data); err != nil {
		h.logger.Warn("failed to send initial status", "error", err)
		h.remove(conn)
		return
	}

	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	<-ctx.Done()
}
