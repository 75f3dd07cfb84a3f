package network

import (
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/fjellheim/elevator-fleet/internal/constants"
)

// OfflineID is the node id used when the TCP probe never succeeds
// (spec.md §4.3 "Id derivation"). An offline node runs as a single-cabin
// system and never appears in a remote peer's states map.
const OfflineID = "Offline Elevator"

// DeriveID opens a TCP probe to rendezvousAddr and reads the local address
// of the connection to discover this host's outbound IP, then combines it
// with msgPort to build this node's id ("<local-ip>:<msg-port>"). It
// retries up to maxAttempts times, sleeping delay between attempts, and
// falls back to OfflineID if every attempt fails.
func DeriveID(rendezvousAddr string, msgPort int, maxAttempts int, delay time.Duration) string {
	logger := slog.With(slog.String("component", constants.ComponentNetwork))

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		conn, err := net.DialTimeout("tcp", rendezvousAddr, 2*time.Second)
		if err == nil {
			localAddr := conn.LocalAddr().(*net.TCPAddr)
			ip := localAddr.IP.String()
			_ = conn.Close()
			return net.JoinHostPort(ip, strconv.Itoa(msgPort))
		}
		logger.Warn("id derivation probe failed", "attempt", attempt, "maxAttempts", maxAttempts, "error", err)
		if attempt < maxAttempts {
			time.Sleep(delay)
		}
	}

	logger.Warn("id derivation exhausted all attempts, entering offline single-cabin mode")
	return OfflineID
}
