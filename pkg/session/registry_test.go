package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"telecoder/pkg/opencode"
)

func TestRegistryOnePerUser(t *testing.T) {
	r := NewRegistry()

	r.Put(1, "ses_a", 100)
	require.Equal(t, 1, r.Count())

	// A second Put for the same user replaces, never accumulates.
	r.Put(1, "ses_b", 100)
	require.Equal(t, 1, r.Count())

	s, err := r.Get(1)
	require.NoError(t, err)
	require.Equal(t, "ses_b", s.SessionID)
	require.Equal(t, DefaultAgent, s.Agent)
}

func TestRegistryGetMissing(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(42)
	require.ErrorIs(t, err, ErrNoActiveSession)
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.Put(1, "ses_a", 100)
	r.Remove(1)
	require.False(t, r.Has(1))
	require.Equal(t, 0, r.Count())
}

func TestBindStreamCancelsPrevious(t *testing.T) {
	r := NewRegistry()
	r.Put(1, "ses_a", 100)

	first := false
	r.BindStream(1, func() { first = true })
	r.BindStream(1, func() {})

	require.True(t, first, "binding a new stream must cancel the previous one")
}

func TestStopStream(t *testing.T) {
	r := NewRegistry()
	r.Put(1, "ses_a", 100)

	cancelled := false
	r.BindStream(1, func() { cancelled = true })
	r.StopStream(1)
	require.True(t, cancelled)

	// Idempotent.
	r.StopStream(1)
}

type fakeLister struct {
	agents []opencode.Agent
	err    error
}

func (f *fakeLister) Agents(ctx context.Context) ([]opencode.Agent, error) {
	return f.agents, f.err
}

func TestCycleAgentWrapsAround(t *testing.T) {
	r := NewRegistry()
	r.Put(1, "ses_a", 100)
	lister := &fakeLister{agents: []opencode.Agent{
		{Name: "build"}, {Name: "plan"}, {Name: "review"},
	}}

	next, ok := r.CycleAgent(context.Background(), 1, lister)
	require.True(t, ok)
	require.Equal(t, "plan", next)

	next, ok = r.CycleAgent(context.Background(), 1, lister)
	require.True(t, ok)
	require.Equal(t, "review", next)

	next, ok = r.CycleAgent(context.Background(), 1, lister)
	require.True(t, ok)
	require.Equal(t, "build", next, "cycling past the last agent wraps to the first")
}

func TestCycleAgentStaleCurrentSelectsFirst(t *testing.T) {
	r := NewRegistry()
	r.Put(1, "ses_a", 100)
	r.SetAgent(1, "retired-agent")
	lister := &fakeLister{agents: []opencode.Agent{{Name: "build"}, {Name: "plan"}}}

	next, ok := r.CycleAgent(context.Background(), 1, lister)
	require.True(t, ok)
	require.Equal(t, "build", next)
}

func TestCycleAgentFailsSoft(t *testing.T) {
	r := NewRegistry()

	// No session.
	_, ok := r.CycleAgent(context.Background(), 1, &fakeLister{})
	require.False(t, ok)

	// Lister error keeps the current agent.
	r.Put(1, "ses_a", 100)
	_, ok = r.CycleAgent(context.Background(), 1, &fakeLister{err: errors.New("boom")})
	require.False(t, ok)
	s, err := r.Get(1)
	require.NoError(t, err)
	require.Equal(t, DefaultAgent, s.Agent)

	// Empty agent list.
	_, ok = r.CycleAgent(context.Background(), 1, &fakeLister{})
	require.False(t, ok)
}
