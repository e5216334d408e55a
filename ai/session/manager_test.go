package session

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/lexisense/ai/core/llm"
	"github.com/hrygo/lexisense/ai/legal"
)

type mockStore struct {
	snapshots map[string]*Snapshot
	loadErr   error
	saveErr   error
}

func newMockStore() *mockStore {
	return &mockStore{snapshots: make(map[string]*Snapshot)}
}

func (s *mockStore) LoadSessionState(_ context.Context, sessionID string) (*Snapshot, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.snapshots[sessionID], nil
}

func (s *mockStore) SaveSessionState(_ context.Context, sessionID string, snap *Snapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snapshots[sessionID] = snap
	return nil
}

func TestGetOrCreateReturnsSameState(t *testing.T) {
	m := NewManager(slog.Default())
	defer m.Shutdown(context.Background())

	a := m.GetOrCreate(context.Background(), "s1")
	b := m.GetOrCreate(context.Background(), "s1")
	assert.Same(t, a, b)
	assert.Equal(t, 1, m.ActiveCount())

	c := m.GetOrCreate(context.Background(), "s2")
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, m.ActiveCount())
}

func TestTerminatePersistsSnapshot(t *testing.T) {
	store := newMockStore()
	m := NewManager(slog.Default(), WithStore(store))
	defer m.Shutdown(context.Background())

	st := m.GetOrCreate(context.Background(), "s1")
	st.Lock()
	st.Memory.SetClassification(legal.DomainLabor, legal.IntentCalculation)
	st.Memory.MergeEntities([]legal.Entity{
		{Kind: legal.EntityAmount, Value: "8000", Confidence: 0.8},
	})
	st.Unlock()

	m.Terminate(context.Background(), "s1")
	assert.Equal(t, 0, m.ActiveCount())

	snap := store.snapshots["s1"]
	require.NotNil(t, snap)
	assert.Equal(t, legal.DomainLabor, snap.Domain)
	assert.Equal(t, legal.IntentCalculation, snap.Intent)
	require.Len(t, snap.Entities, 1)
	assert.Equal(t, "8000", snap.Entities[0].Value)
}

func TestGetOrCreateRestoresSnapshot(t *testing.T) {
	store := newMockStore()
	store.snapshots["s1"] = &Snapshot{
		Domain: legal.DomainFamily,
		Intent: legal.IntentCaseAnalysis,
		Entities: []legal.Entity{
			{Kind: legal.EntityPerson, Value: "张三", Confidence: 0.7},
		},
	}

	m := NewManager(slog.Default(), WithStore(store))
	defer m.Shutdown(context.Background())

	st := m.GetOrCreate(context.Background(), "s1")
	st.Lock()
	defer st.Unlock()
	assert.Equal(t, legal.DomainFamily, st.Memory.Domain)
	assert.Equal(t, legal.IntentCaseAnalysis, st.Memory.Intent)
	assert.Equal(t, 1, st.Memory.Len())
}

func TestGetOrCreateSurvivesRestoreFailure(t *testing.T) {
	store := newMockStore()
	store.loadErr = assert.AnError

	m := NewManager(slog.Default(), WithStore(store))
	defer m.Shutdown(context.Background())

	st := m.GetOrCreate(context.Background(), "s1")
	require.NotNil(t, st)
	assert.Equal(t, 0, st.Memory.Len())
}

func TestHistoryBounded(t *testing.T) {
	m := NewManager(slog.Default(), WithHistorySize(3))
	defer m.Shutdown(context.Background())

	st := m.GetOrCreate(context.Background(), "s1")
	st.Lock()
	defer st.Unlock()

	st.AppendHistory(llm.UserMessage("one"))
	st.AppendHistory(llm.AssistantMessage("two"))
	st.AppendHistory(llm.UserMessage("three"))
	st.AppendHistory(llm.AssistantMessage("four"))

	require.Equal(t, 3, st.HistoryLen())
	recent := st.RecentHistory(10)
	assert.Equal(t, "two", recent[0].Content)
	assert.Equal(t, "four", recent[2].Content)

	last := st.RecentHistory(1)
	require.Len(t, last, 1)
	assert.Equal(t, "four", last[0].Content)
}

func TestIdleCleanup(t *testing.T) {
	m := NewManager(slog.Default(), WithIdleTimeout(10*time.Millisecond))
	defer m.Shutdown(context.Background())

	st := m.GetOrCreate(context.Background(), "s1")
	st.lastActive.Store(time.Now().Add(-time.Hour).UnixNano())

	m.cleanupIdleSessions()
	assert.Equal(t, 0, m.ActiveCount())
}

// A request holds its session lock for the whole turn and re-enters
// the manager (ActiveCount) before releasing it. The reaper must make
// progress regardless: it may never wait on a session lock while
// holding the manager lock.
func TestReaperDoesNotDeadlockWithInFlightRequest(t *testing.T) {
	store := newMockStore()
	m := NewManager(slog.Default(), WithStore(store), WithIdleTimeout(time.Minute))
	defer m.Shutdown(context.Background())

	st := m.GetOrCreate(context.Background(), "busy")
	release := make(chan struct{})
	requestDone := make(chan struct{})
	go func() {
		defer close(requestDone)
		st.Lock()
		defer st.Unlock()
		_ = m.ActiveCount() // manager re-entry under the session lock
		<-release
	}()

	// Give the request goroutine time to take the session lock.
	time.Sleep(20 * time.Millisecond)

	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		m.cleanupIdleSessions()
	}()

	select {
	case <-reaperDone:
	case <-time.After(2 * time.Second):
		t.Fatal("reaper blocked behind an in-flight request")
	}

	// The busy session was active and survives the sweep.
	assert.Equal(t, 1, m.ActiveCount())
	close(release)
	<-requestDone
}

// An expired session with a request still in flight is removed from
// the map immediately but persisted only after the request releases
// the session lock.
func TestExpiredInFlightSessionPersistsAfterRelease(t *testing.T) {
	store := newMockStore()
	m := NewManager(slog.Default(), WithStore(store), WithIdleTimeout(10*time.Millisecond))
	defer m.Shutdown(context.Background())

	st := m.GetOrCreate(context.Background(), "stale")
	st.Lock()
	st.Memory.SetClassification(legal.DomainLabor, legal.IntentCalculation)
	st.lastActive.Store(time.Now().Add(-time.Hour).UnixNano())

	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		m.cleanupIdleSessions()
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, m.ActiveCount(), "removed from the map before persistence")
	assert.Nil(t, store.snapshots["stale"], "snapshot waits for the request to finish")

	st.Unlock()
	select {
	case <-cleanupDone:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup did not finish after the session lock was released")
	}
	require.NotNil(t, store.snapshots["stale"])
	assert.Equal(t, legal.DomainLabor, store.snapshots["stale"].Domain)
}
