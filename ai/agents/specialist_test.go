package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/lexisense/ai/legal"
	"github.com/hrygo/lexisense/ai/session"
)

func newTestRegistry(t *testing.T) *AgentRegistry {
	t.Helper()
	critic, _ := verdictSequence(t, acceptVerdict)
	ctrl, _ := newController(t, critic, "")
	return NewAgentRegistry(NewPlanner(), ctrl, nil)
}

func TestResolveConstructsOncePerKey(t *testing.T) {
	registry := newTestRegistry(t)
	manager := session.NewManager(nil)
	defer manager.Shutdown(context.Background())

	state := manager.GetOrCreate(context.Background(), "sess-pool")
	state.Lock()
	defer state.Unlock()

	key := legal.AgentKey{Domain: legal.DomainLabor, Intent: legal.IntentCalculation}
	first, err := registry.Resolve(state, key)
	require.NoError(t, err)
	second, err := registry.Resolve(state, key)
	require.NoError(t, err)
	assert.Same(t, first, second, "same key resolves to the pooled instance")
	assert.Equal(t, 1, state.AgentCount())

	other := legal.AgentKey{Domain: legal.DomainFamily, Intent: legal.IntentCaseAnalysis}
	third, err := registry.Resolve(state, other)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, state.AgentCount())
}

func TestResolvePoolsPerSession(t *testing.T) {
	registry := newTestRegistry(t)
	manager := session.NewManager(nil)
	defer manager.Shutdown(context.Background())

	key := legal.AgentKey{Domain: legal.DomainLabor, Intent: legal.IntentQARetrieval}

	a := manager.GetOrCreate(context.Background(), "sess-a")
	a.Lock()
	agentA, err := registry.Resolve(a, key)
	a.Unlock()
	require.NoError(t, err)

	b := manager.GetOrCreate(context.Background(), "sess-b")
	b.Lock()
	agentB, err := registry.Resolve(b, key)
	b.Unlock()
	require.NoError(t, err)

	assert.NotSame(t, agentA, agentB, "agent pools are session-scoped")
}

func TestResolveUnknownIntentFails(t *testing.T) {
	registry := newTestRegistry(t)
	manager := session.NewManager(nil)
	defer manager.Shutdown(context.Background())

	state := manager.GetOrCreate(context.Background(), "sess-bad")
	state.Lock()
	defer state.Unlock()

	_, err := registry.Resolve(state, legal.AgentKey{Domain: legal.DomainLabor, Intent: legal.Intent("divination")})
	require.Error(t, err)
	assert.Equal(t, 0, state.AgentCount(), "failed construction must not poison the pool")
}

func TestHandleRunsFullTurn(t *testing.T) {
	registry := newTestRegistry(t)
	manager := session.NewManager(nil)
	defer manager.Shutdown(context.Background())

	state := manager.GetOrCreate(context.Background(), "sess-turn")
	state.Lock()
	defer state.Unlock()

	key := legal.AgentKey{Domain: legal.DomainLabor, Intent: legal.IntentCalculation}
	agent, err := registry.Resolve(state, key)
	require.NoError(t, err)

	out, err := agent.Handle(context.Background(), state, "公司要裁员，我应该得到多少赔偿？", func(string, any) {})
	require.NoError(t, err)
	assert.NotEmpty(t, out.FinalAnswer)
	assert.GreaterOrEqual(t, out.Evaluations, 1)
}
