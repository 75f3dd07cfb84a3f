// Package assign invokes the external hall-request-assigner binary of
// spec.md §6.4, the one point where this process shells out. The
// subprocess is untrusted: its failure, timeout, or malformed output must
// never wedge the Coordinator's event loop, so every call passes through
// a CircuitBreaker adapted from the teacher's elevator package.
package assign

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"time"

	"github.com/fjellheim/elevator-fleet/internal/constants"
	"github.com/fjellheim/elevator-fleet/internal/domain"
)

// Assigner computes, for each elevator id known in data, which hall
// requests it should service next.
type Assigner interface {
	Assign(ctx context.Context, data *domain.ElevatorData) (map[string]domain.HallRequests, error)
}

// SubprocessAssigner shells out to an external binary per invocation.
type SubprocessAssigner struct {
	command string
	timeout time.Duration
	breaker *CircuitBreaker
	logger  *slog.Logger
}

// NewSubprocessAssigner builds an Assigner that runs command with
// --input <json> and a breaker tripped after failureThreshold consecutive
// failures, reopening after openDuration and requiring halfOpenProbes
// consecutive successes to fully close.
func NewSubprocessAssigner(command string, timeout time.Duration, failureThreshold int, openDuration time.Duration, halfOpenProbes int) *SubprocessAssigner {
	return &SubprocessAssigner{
		command: command,
		timeout: timeout,
		breaker: NewCircuitBreaker(failureThreshold, openDuration, halfOpenProbes),
		logger:  slog.With(slog.String("component", constants.ComponentAssigner)),
	}
}

// assignerOutput is the subprocess's stdout JSON shape: per-id hall
// request matrices, spec.md §6.4.
type assignerOutput map[string][][2]bool

// Assign serializes data (with its version zeroed per spec.md §6.4),
// invokes the subprocess under a bounded timeout and the breaker, and
// parses its stdout. A nonzero exit, a timeout, or invalid JSON is
// treated as a fatal assignment-round failure (spec.md §7 kind 6) and
// never partially applied.
func (a *SubprocessAssigner) Assign(ctx context.Context, data *domain.ElevatorData) (map[string]domain.HallRequests, error) {
	input, err := json.Marshal(data.WithoutVersion())
	if err != nil {
		return nil, domain.NewInternalError("failed to marshal assigner input", err)
	}

	var parsed assignerOutput
	callErr := a.breaker.Execute(ctx, func() error {
		runCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		cmd := exec.CommandContext(runCtx, a.command, "--input", string(input))
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			a.logger.Error("assigner subprocess failed",
				slog.String("error", err.Error()),
				slog.String("stderr", stderr.String()))
			return domain.NewExternalError("assigner subprocess failed", err)
		}

		if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
			a.logger.Error("assigner returned invalid JSON", slog.String("error", err.Error()))
			return domain.NewExternalError("assigner returned invalid JSON", err)
		}
		return nil
	})
	if callErr != nil {
		return nil, callErr
	}

	out := make(map[string]domain.HallRequests, len(parsed))
	for id, matrix := range parsed {
		hr := make(domain.HallRequests, len(matrix))
		copy(hr, matrix)
		out[id] = hr
	}
	return out, nil
}

// State exposes the breaker's current state for the Status API's health
// checks.
func (a *SubprocessAssigner) State() CircuitBreakerState {
	return a.breaker.State()
}
