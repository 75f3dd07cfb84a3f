// Package coordinator implements the per-node state reconciliation and
// assignment engine of spec.md §4.2: it merges remote snapshots with
// local state, drives the external hall-request assigner, and routes
// work to the local FSM. No direct teacher analogue exists — the
// teacher's internal/manager owns a map of per-cabin Elevator handles
// inside one process, never reconciling with a remote peer's view — so
// this package generalizes the teacher's single-threaded-ownership
// convention (one goroutine holds the only mutable reference) onto the
// six event sources of spec.md §4.2.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjellheim/elevator-fleet/internal/assign"
	"github.com/fjellheim/elevator-fleet/internal/constants"
	"github.com/fjellheim/elevator-fleet/internal/domain"
	"github.com/fjellheim/elevator-fleet/internal/events"
	"github.com/fjellheim/elevator-fleet/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/fjellheim/elevator-fleet/internal/coordinator")

// classification is the outcome of §4.2.1's merge classifier.
type classification int

const (
	classifyMerge classification = iota
	classifyAccept
	classifyReject
)

// Coordinator owns the sole mutable ElevatorData instance for this node
// (spec.md §3 Ownership) and runs on exactly one goroutine.
type Coordinator struct {
	selfID     string
	floorCount int

	assigner assign.Assigner
	logger   *slog.Logger

	networkIn <-chan events.NetworkEvent
	driverIn  <-chan events.DriverEvent
	fsmIn     <-chan events.FSMEvent

	lampOut        chan<- events.LampDirective
	coordinatorOut chan<- events.CoordinatorEvent
	networkOut     chan<- *domain.ElevatorData

	data *domain.ElevatorData
	snap *snapshot
}

// New constructs a Coordinator seeded with a fresh ElevatorData for
// selfID (spec.md §3 Lifecycle).
func New(
	selfID string,
	floorCount int,
	assigner assign.Assigner,
	networkIn <-chan events.NetworkEvent,
	driverIn <-chan events.DriverEvent,
	fsmIn <-chan events.FSMEvent,
	lampOut chan<- events.LampDirective,
	coordinatorOut chan<- events.CoordinatorEvent,
	networkOut chan<- *domain.ElevatorData,
) *Coordinator {
	return &Coordinator{
		selfID:         selfID,
		floorCount:     floorCount,
		assigner:       assigner,
		logger:         slog.With(slog.String("component", constants.ComponentCoordinator)),
		networkIn:      networkIn,
		driverIn:       driverIn,
		fsmIn:          fsmIn,
		lampOut:        lampOut,
		coordinatorOut: coordinatorOut,
		networkOut:     networkOut,
		data:           domain.NewElevatorData(selfID, floorCount),
		snap:           &snapshot{},
	}
}

// Snapshot returns a deep copy of the current ElevatorData, safe for
// concurrent reads from the Status API.
func (c *Coordinator) Snapshot() *domain.ElevatorData {
	return c.snap.Get()
}

// PeerCounts reports how many other cabins are currently known and how
// many of those report a non-Error behaviour, for the peer-count health
// checker (internal/infra/health/fsm_checker.go).
func (c *Coordinator) PeerCounts() (healthy, total int) {
	data := c.snap.Get()
	for id, state := range data.States {
		if id == c.selfID {
			continue
		}
		total++
		if state.Behaviour != domain.BehaviourError {
			healthy++
		}
	}
	return healthy, total
}

// Run blocks until ctx is cancelled or an assigner failure occurs
// (spec.md §7 kind 6, fatal). It cooperatively multiplexes the six event
// sources of spec.md §4.2 on a single goroutine.
func (c *Coordinator) Run(ctx context.Context) error {
	c.publish()

	ticker := time.NewTicker(constants.CoordinatorIdleWake)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return nil

		case ev := <-c.networkIn:
			switch ev.Kind {
			case events.NetworkEventSnapshot:
				err = c.handleSnapshot(ctx, ev.Snapshot)
			case events.NetworkEventPeerUpdate:
				err = c.handlePeerUpdate(ctx, ev.New, ev.Lost)
			}

		case ev := <-c.driverIn:
			switch ev.Kind {
			case events.DriverEventButton:
				err = c.handleButtonEdge(ctx, ev.Floor, ev.CallKind)
			case events.DriverEventStop:
				c.logger.Debug("stop button pressed, no safety-stop behavior implemented")
			}

		case ev := <-c.fsmIn:
			switch ev.Kind {
			case events.FSMEventStatePublished:
				err = c.handleFSMPublished(ctx, ev.State)
			case events.FSMEventOrderCompleted:
				err = c.handleOrderCompleted(ctx, ev.Floor, ev.CallKind)
			}

		case <-ticker.C:
			// idle wake-up; all work here is event-driven, nothing to do
		}

		if err != nil {
			return err
		}
		c.publish()
	}
}

func (c *Coordinator) publish() {
	c.snap.set(c.data)
}

// classify implements §4.2.1.
func (c *Coordinator) classify(incoming *domain.ElevatorData) classification {
	if c.data.HasUnknownPeer(incoming) {
		return classifyMerge
	}
	if incoming.Version > c.data.Version {
		return classifyAccept
	}
	return classifyReject
}

// handleSnapshot implements the "Snapshot received" event of §4.2.
func (c *Coordinator) handleSnapshot(ctx context.Context, incoming *domain.ElevatorData) error {
	switch c.classify(incoming) {
	case classifyAccept:
		oldHall := c.data.HallRequests.Clone()
		c.data.Version = incoming.Version
		c.data.HallRequests = incoming.HallRequests.Clone()
		c.data.States = cloneStates(incoming.States)
		c.ensureSelfEntry()
		c.diffLamps(oldHall, c.data.HallRequests)
		return c.reassign(ctx, false)

	case classifyMerge:
		c.data.HallRequests = c.data.HallRequests.OrMerge(incoming.HallRequests)
		for id, s := range incoming.States {
			if id == c.selfID {
				continue
			}
			c.data.States[id] = s.Clone()
		}
		return c.reassign(ctx, false)

	default:
		return nil
	}
}

// handlePeerUpdate implements the "Peer update" event of §4.2.
func (c *Coordinator) handlePeerUpdate(ctx context.Context, newPeers, lostPeers []string) error {
	var anyLost, anyNew bool

	for _, id := range lostPeers {
		if id == c.selfID {
			continue
		}
		if _, ok := c.data.States[id]; ok {
			delete(c.data.States, id)
			anyLost = true
		}
	}

	for _, id := range newPeers {
		if id == c.selfID {
			continue
		}
		if _, ok := c.data.States[id]; !ok {
			c.data.States[id] = domain.NewElevatorState(c.floorCount)
			anyNew = true
		}
	}

	metrics.SetPeerCount(c.selfID, len(c.data.States)-1)

	if anyNew {
		return c.reassign(ctx, true)
	}
	if anyLost {
		return c.reassign(ctx, false)
	}
	return nil
}

// handleButtonEdge implements the "Button edge" event of §4.2.
func (c *Coordinator) handleButtonEdge(ctx context.Context, floor int, kind domain.CallKind) error {
	if kind == domain.CallCab {
		self := c.data.States[c.selfID]
		self.CabRequests[floor] = true
		c.data.States[c.selfID] = self
		c.coordinatorOut <- events.NewCabRequestEvent(floor)
		c.lampOut <- events.LampDirective{Floor: floor, CallKind: domain.CallCab, On: true}
		return nil
	}

	c.data.HallRequests.Set(floor, kind)
	c.lampOut <- events.LampDirective{Floor: floor, CallKind: kind, On: true}
	return c.reassign(ctx, true)
}

// handleFSMPublished implements the "FSM state published" event of §4.2.
func (c *Coordinator) handleFSMPublished(ctx context.Context, state domain.ElevatorState) error {
	self := c.data.States[c.selfID]
	for f := range state.CabRequests {
		if state.CabRequests[f] && (f >= len(self.CabRequests) || !self.CabRequests[f]) {
			c.lampOut <- events.LampDirective{Floor: f, CallKind: domain.CallCab, On: true}
		}
	}
	c.data.States[c.selfID] = state.Clone()
	return c.reassign(ctx, true)
}

// handleOrderCompleted implements the "Order completion" event of §4.2.
func (c *Coordinator) handleOrderCompleted(ctx context.Context, floor int, kind domain.CallKind) error {
	if kind == domain.CallCab {
		self := c.data.States[c.selfID]
		self.CabRequests[floor] = false
		c.data.States[c.selfID] = self
	} else {
		c.data.HallRequests.Clear(floor, kind)
	}
	c.lampOut <- events.LampDirective{Floor: floor, CallKind: kind, On: false}
	return c.reassign(ctx, true)
}

// reassign implements §4.2.2.
func (c *Coordinator) reassign(ctx context.Context, transmit bool) error {
	clone := c.data.Clone()
	healthy := clone.HealthyStates()

	if len(healthy) == 0 {
		c.coordinatorOut <- events.NewHallAssignmentEvent(clone.HallRequests.Clone())
	} else {
		clone.States = healthy
		ctx, span := tracer.Start(ctx, "assignment_round")
		span.SetAttributes(attribute.Int("healthy_peer_count", len(healthy)))
		start := time.Now()
		result, err := c.assigner.Assign(ctx, clone)
		metrics.RecordAssignmentRoundDuration(time.Since(start).Seconds())
		span.End()
		if err != nil {
			return domain.NewExternalError("hall-request assignment failed", err)
		}
		self, ok := result[c.selfID]
		if !ok {
			self = domain.NewHallRequests(c.floorCount)
		}
		c.coordinatorOut <- events.NewHallAssignmentEvent(self)
	}

	if transmit {
		c.data.Version++
		c.networkOut <- c.data.Clone()
	}
	return nil
}

// diffLamps sends a lamp update for every hall-call flag that changed
// between old and new, per §4.2's Accept handling.
func (c *Coordinator) diffLamps(old, updated domain.HallRequests) {
	n := len(updated)
	for f := 0; f < n; f++ {
		for _, k := range [2]domain.CallKind{domain.CallHallUp, domain.CallHallDown} {
			if updated.Get(f, k) != old.Get(f, k) {
				c.lampOut <- events.LampDirective{Floor: f, CallKind: k, On: updated.Get(f, k)}
			}
		}
	}
}

// ensureSelfEntry restores the permanent local entry (spec.md §3
// Lifecycle) if an Accept's wholesale states overwrite dropped it — a
// sender that has never heard from this node omits it from its own view.
func (c *Coordinator) ensureSelfEntry() {
	if _, ok := c.data.States[c.selfID]; !ok {
		c.data.States[c.selfID] = domain.NewElevatorState(c.floorCount)
	}
}

func cloneStates(states map[string]domain.ElevatorState) map[string]domain.ElevatorState {
	out := make(map[string]domain.ElevatorState, len(states))
	for id, s := range states {
		out[id] = s.Clone()
	}
	return out
}
