package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjellheim/elevator-fleet/internal/assign"
	"github.com/fjellheim/elevator-fleet/internal/domain"
	"github.com/fjellheim/elevator-fleet/internal/events"
)

func newTestCoordinator(t *testing.T, stub *assign.Stub) (*Coordinator, chan events.LampDirective, chan events.CoordinatorEvent, chan *domain.ElevatorData) {
	t.Helper()
	lampOut := make(chan events.LampDirective, 32)
	coordinatorOut := make(chan events.CoordinatorEvent, 32)
	networkOut := make(chan *domain.ElevatorData, 32)

	c := New("node-a", 4, stub, nil, nil, nil, lampOut, coordinatorOut, networkOut)
	return c, lampOut, coordinatorOut, networkOut
}

func TestClassify_UnknownPeerIsMerge(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, &assign.Stub{})
	incoming := domain.NewElevatorData("node-a", 4)
	incoming.States["node-b"] = domain.NewElevatorState(4)

	assert.Equal(t, classifyMerge, c.classify(incoming))
}

func TestClassify_HigherVersionKnownPeersIsAccept(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, &assign.Stub{})
	incoming := domain.NewElevatorData("node-a", 4)
	incoming.Version = 5

	assert.Equal(t, classifyAccept, c.classify(incoming))
}

func TestClassify_LowerOrEqualVersionIsReject(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, &assign.Stub{})
	c.data.Version = 3
	incoming := domain.NewElevatorData("node-a", 4)
	incoming.Version = 3

	assert.Equal(t, classifyReject, c.classify(incoming))
}

func TestHandleButtonEdge_CabSetsLocalAndLamp(t *testing.T) {
	c, lampOut, coordinatorOut, _ := newTestCoordinator(t, &assign.Stub{})

	require.NoError(t, c.handleButtonEdge(context.Background(), 2, domain.CallCab))

	assert.True(t, c.data.States["node-a"].CabRequests[2])
	select {
	case ev := <-coordinatorOut:
		require.Equal(t, events.CoordinatorEventCabRequest, ev.Kind)
		assert.Equal(t, 2, ev.Floor)
	default:
		t.Fatal("expected a cab-request event forwarded to the FSM")
	}
	select {
	case l := <-lampOut:
		assert.True(t, l.On)
		assert.Equal(t, domain.CallCab, l.CallKind)
	default:
		t.Fatal("expected a lamp-on directive")
	}
}

func TestHandleButtonEdge_HallRunsAssignerAndTransmits(t *testing.T) {
	stub := assign.AssignAllToSelf("node-a")
	c, lampOut, coordinatorOut, networkOut := newTestCoordinator(t, stub)

	require.NoError(t, c.handleButtonEdge(context.Background(), 1, domain.CallHallUp))

	assert.True(t, c.data.HallRequests.Get(1, domain.CallHallUp))
	require.Len(t, stub.Calls, 1)

	select {
	case ev := <-coordinatorOut:
		require.Equal(t, events.CoordinatorEventHallAssignment, ev.Kind)
		assert.True(t, ev.HallRequests.Get(1, domain.CallHallUp))
	default:
		t.Fatal("expected a hall-assignment event")
	}
	select {
	case l := <-lampOut:
		assert.True(t, l.On)
	default:
		t.Fatal("expected a lamp-on directive")
	}
	select {
	case sent := <-networkOut:
		assert.Equal(t, uint64(1), sent.Version)
	default:
		t.Fatal("expected a transmitted snapshot")
	}
}

func TestHandleOrderCompleted_ClearsAndTransmits(t *testing.T) {
	stub := assign.AssignAllToSelf("node-a")
	c, lampOut, _, networkOut := newTestCoordinator(t, stub)
	c.data.HallRequests.Set(2, domain.CallHallDown)

	require.NoError(t, c.handleOrderCompleted(context.Background(), 2, domain.CallHallDown))

	assert.False(t, c.data.HallRequests.Get(2, domain.CallHallDown))
	select {
	case l := <-lampOut:
		assert.False(t, l.On)
	default:
		t.Fatal("expected a lamp-off directive")
	}
	select {
	case <-networkOut:
	default:
		t.Fatal("expected a transmitted snapshot")
	}
}

func TestHandleSnapshot_AcceptOverwritesAndDiffsLamps(t *testing.T) {
	stub := assign.AssignAllToSelf("node-a")
	c, lampOut, _, _ := newTestCoordinator(t, stub)

	incoming := domain.NewElevatorData("node-a", 4)
	incoming.Version = 9
	incoming.HallRequests.Set(1, domain.CallHallUp)
	incoming.States["node-a"] = domain.NewElevatorState(4)

	require.NoError(t, c.handleSnapshot(context.Background(), incoming))

	assert.Equal(t, uint64(9), c.data.Version)
	assert.True(t, c.data.HallRequests.Get(1, domain.CallHallUp))

	var sawLampOn bool
	for i := 0; i < len(lampOut); i++ {
		l := <-lampOut
		if l.Floor == 1 && l.CallKind == domain.CallHallUp && l.On {
			sawLampOn = true
		}
	}
	assert.True(t, sawLampOn, "expected the newly-set hall call to produce a lamp-on directive")
}

func TestHandleSnapshot_MergeUnionsHallRequestsForUnknownPeer(t *testing.T) {
	stub := assign.AssignAllToSelf("node-a")
	c, _, _, _ := newTestCoordinator(t, stub)
	c.data.HallRequests.Set(1, domain.CallHallUp)

	incoming := domain.NewElevatorData("node-b", 4)
	incoming.HallRequests.Set(3, domain.CallHallDown)

	require.NoError(t, c.handleSnapshot(context.Background(), incoming))

	assert.True(t, c.data.HallRequests.Get(1, domain.CallHallUp))
	assert.True(t, c.data.HallRequests.Get(3, domain.CallHallDown))
	_, ok := c.data.States["node-b"]
	assert.True(t, ok)
}

func TestHandleSnapshot_RejectDropsLowerVersion(t *testing.T) {
	stub := assign.AssignAllToSelf("node-a")
	c, _, _, _ := newTestCoordinator(t, stub)
	c.data.Version = 5

	incoming := domain.NewElevatorData("node-a", 4)
	incoming.Version = 1
	incoming.HallRequests.Set(0, domain.CallHallUp)

	require.NoError(t, c.handleSnapshot(context.Background(), incoming))

	assert.Equal(t, uint64(5), c.data.Version)
	assert.False(t, c.data.HallRequests.Get(0, domain.CallHallUp))
}

func TestHandlePeerUpdate_NewPeerInsertedAndReassigned(t *testing.T) {
	stub := assign.AssignAllToSelf("node-a")
	c, _, coordinatorOut, networkOut := newTestCoordinator(t, stub)

	require.NoError(t, c.handlePeerUpdate(context.Background(), []string{"node-b"}, nil))

	_, ok := c.data.States["node-b"]
	assert.True(t, ok)
	select {
	case <-coordinatorOut:
	default:
		t.Fatal("expected a reassignment after a new peer")
	}
	select {
	case <-networkOut:
	default:
		t.Fatal("expected a transmitted snapshot after a new peer")
	}
}

func TestHandlePeerUpdate_LostPeerRemovedWithoutTransmit(t *testing.T) {
	stub := assign.AssignAllToSelf("node-a")
	c, _, coordinatorOut, networkOut := newTestCoordinator(t, stub)
	c.data.States["node-b"] = domain.NewElevatorState(4)

	require.NoError(t, c.handlePeerUpdate(context.Background(), nil, []string{"node-b"}))

	_, ok := c.data.States["node-b"]
	assert.False(t, ok)
	select {
	case <-coordinatorOut:
	default:
		t.Fatal("expected a reassignment after a lost peer")
	}
	select {
	case <-networkOut:
		t.Fatal("a lost-peer reassignment should not retransmit")
	default:
	}
}

func TestReassign_NoHealthyCabinsForwardsFullMatrix(t *testing.T) {
	c, _, coordinatorOut, _ := newTestCoordinator(t, &assign.Stub{})
	self := c.data.States["node-a"]
	self.Behaviour = domain.BehaviourError
	c.data.States["node-a"] = self
	c.data.HallRequests.Set(1, domain.CallHallUp)

	require.NoError(t, c.reassign(context.Background(), false))

	select {
	case ev := <-coordinatorOut:
		assert.True(t, ev.HallRequests.Get(1, domain.CallHallUp))
	default:
		t.Fatal("expected the full hall-requests matrix forwarded when no cabin is healthy")
	}
}

func TestReassign_AssignerFailureIsFatal(t *testing.T) {
	stub := &assign.Stub{}
	c, _, _, _ := newTestCoordinator(t, stub)

	err := c.reassign(context.Background(), false)
	require.Error(t, err)
	de, ok := err.(*domain.DomainError)
	require.True(t, ok)
	assert.Equal(t, domain.ErrTypeExternal, de.Type)
}
