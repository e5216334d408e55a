package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hrygo/lexisense/ai/core/llm"
)

const defaultHistorySize = 100

// State holds everything scoped to one conversation: fact memory,
// bounded history, and the specialist agents pooled for this session.
//
// A session admits exactly one in-flight request at a time. Callers
// serialize through Lock/Unlock before touching Memory, History, or
// the agent pool; agent construction-on-miss is not safe under
// concurrent first access.
type State struct {
	ID        string
	Memory    *StateMemory
	CreatedAt time.Time

	// lastActive is atomic (unix nanos) so the idle reaper can read it
	// without the session lock, which may be held for a whole turn.
	lastActive atomic.Int64

	history     []llm.Message
	historySize int

	// agents pools specialist handles keyed by AgentKey.String().
	// Owned by the routing layer; stored here so the pool's lifetime
	// is tied to the session, not the process.
	agents map[string]any

	mu sync.Mutex
}

func newState(id string, historySize int) *State {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	now := time.Now()
	st := &State{
		ID:          id,
		Memory:      NewStateMemory(),
		CreatedAt:   now,
		historySize: historySize,
		agents:      make(map[string]any),
	}
	st.lastActive.Store(now.UnixNano())
	return st
}

// Lock acquires the session's exclusive request lock.
func (s *State) Lock() { s.mu.Lock() }

// Unlock releases the session's exclusive request lock.
func (s *State) Unlock() { s.mu.Unlock() }

// Touch updates the last-active timestamp. Safe without the lock.
func (s *State) Touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns the last-active timestamp. Safe without the lock.
func (s *State) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// AppendHistory records a conversation turn, evicting the oldest
// entries past the bound. Caller must hold the lock.
func (s *State) AppendHistory(msg llm.Message) {
	s.history = append(s.history, msg)
	if len(s.history) > s.historySize {
		s.history = s.history[len(s.history)-s.historySize:]
	}
}

// RecentHistory returns up to n most recent turns. Caller must hold
// the lock.
func (s *State) RecentHistory(n int) []llm.Message {
	if n <= 0 || len(s.history) <= n {
		out := make([]llm.Message, len(s.history))
		copy(out, s.history)
		return out
	}
	out := make([]llm.Message, n)
	copy(out, s.history[len(s.history)-n:])
	return out
}

// HistoryLen returns the number of retained turns. Caller must hold
// the lock.
func (s *State) HistoryLen() int {
	return len(s.history)
}

// Agent returns the pooled agent stored under key, if any. Caller
// must hold the lock.
func (s *State) Agent(key string) (any, bool) {
	a, ok := s.agents[key]
	return a, ok
}

// PutAgent stores an agent handle under key. Caller must hold the lock.
func (s *State) PutAgent(key string, agent any) {
	s.agents[key] = agent
}

// AgentCount returns the number of pooled agents. Caller must hold
// the lock.
func (s *State) AgentCount() int {
	return len(s.agents)
}
