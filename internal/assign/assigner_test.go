package assign

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjellheim/elevator-fleet/internal/domain"
)

func sampleData() *domain.ElevatorData {
	d := domain.NewElevatorData("node-a", 4)
	d.HallRequests.Set(2, domain.CallHallUp)
	d.Version = 7
	return d
}

func TestSubprocessAssigner_NonJSONOutputIsExternalError(t *testing.T) {
	a := NewSubprocessAssigner("echo", time.Second, 3, 10*time.Second, 1)
	// echo runs successfully but prints its argv, which is not JSON; we
	// only check the breaker lets the call through and surfaces the
	// resulting JSON parse error rather than a breaker rejection.
	_, err := a.Assign(context.Background(), sampleData())
	require.Error(t, err)
	de, ok := err.(*domain.DomainError)
	require.True(t, ok)
	assert.Equal(t, domain.ErrTypeExternal, de.Type)
}

func TestSubprocessAssigner_MissingCommandFails(t *testing.T) {
	a := NewSubprocessAssigner("/nonexistent/hall_request_assigner", time.Second, 3, 10*time.Second, 1)
	_, err := a.Assign(context.Background(), sampleData())
	require.Error(t, err)
}

func TestSubprocessAssigner_BreakerOpensAfterFailures(t *testing.T) {
	a := NewSubprocessAssigner("/nonexistent/hall_request_assigner", time.Second, 2, time.Minute, 1)

	_, err := a.Assign(context.Background(), sampleData())
	require.Error(t, err)
	_, err = a.Assign(context.Background(), sampleData())
	require.Error(t, err)

	assert.Equal(t, StateOpen, a.State())

	_, err = a.Assign(context.Background(), sampleData())
	require.Error(t, err)
	de, ok := err.(*domain.DomainError)
	require.True(t, ok)
	assert.Equal(t, domain.ErrTypeExternal, de.Type)
}

func TestCircuitBreaker_HalfOpenClosesOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond, 1)

	err := cb.Execute(context.Background(), func() error { return assertErr })
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	err = cb.Execute(context.Background(), func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OpenRejectsImmediately(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute, 1)

	_ = cb.Execute(context.Background(), func() error { return assertErr })
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(context.Background(), func() error { called = true; return nil })
	require.Error(t, err)
	assert.False(t, called, "operation must not run while breaker is open")
}

var assertErr = domain.NewExternalError("boom", nil)

func TestStub_RecordsCallsAndDelegates(t *testing.T) {
	s := AssignAllToSelf("node-a")
	data := sampleData()

	result, err := s.Assign(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, s.Calls, 1)
	assert.True(t, result["node-a"].Get(2, domain.CallHallUp))
}

func TestStub_NoFnReturnsErrStub(t *testing.T) {
	s := &Stub{}
	_, err := s.Assign(context.Background(), sampleData())
	assert.ErrorIs(t, err, ErrStub)
}
