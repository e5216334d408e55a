// Package session owns per-conversation state: the fact memory written
// by classification, bounded conversation history, and the manager that
// serializes concurrent requests onto a single session.
package session

import (
	"github.com/hrygo/lexisense/ai/legal"
)

// StateMemory accumulates the facts known about the current case:
// the active domain/intent and every entity extracted so far.
//
// Entities are keyed by kind+value. Merging is monotonic: the set
// never shrinks within a session. An incoming entity replaces an
// identically-keyed one only when its confidence is strictly greater;
// otherwise the existing fact stands. Callers must hold the owning
// session's lock, StateMemory itself is not synchronized.
type StateMemory struct {
	Domain   legal.Domain
	Intent   legal.Intent
	entities map[string]legal.Entity
	order    []string // insertion order of entity keys, for stable snapshots
}

// NewStateMemory creates an empty fact memory.
func NewStateMemory() *StateMemory {
	return &StateMemory{
		entities: make(map[string]legal.Entity),
	}
}

// SetClassification records the domain/intent of the current turn.
func (m *StateMemory) SetClassification(domain legal.Domain, intent legal.Intent) {
	m.Domain = domain
	m.Intent = intent
}

// MergeEntities unions new facts into memory. Existing facts are kept
// unless the incoming entity has the same key and strictly greater
// confidence. Returns the number of entities added or replaced.
func (m *StateMemory) MergeEntities(entities []legal.Entity) int {
	changed := 0
	for _, e := range entities {
		if e.Value == "" {
			continue
		}
		key := e.Key()
		existing, ok := m.entities[key]
		if !ok {
			m.entities[key] = e
			m.order = append(m.order, key)
			changed++
			continue
		}
		if e.Confidence > existing.Confidence {
			m.entities[key] = e
			changed++
		}
	}
	return changed
}

// Entities returns a snapshot of all known facts in insertion order.
func (m *StateMemory) Entities() []legal.Entity {
	out := make([]legal.Entity, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.entities[key])
	}
	return out
}

// EntitiesByKind returns the known facts of one kind, insertion order.
func (m *StateMemory) EntitiesByKind(kind legal.EntityKind) []legal.Entity {
	var out []legal.Entity
	for _, key := range m.order {
		if e := m.entities[key]; e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of distinct facts.
func (m *StateMemory) Len() int {
	return len(m.entities)
}

// Reset drops all facts and classification. The only operation that
// shrinks the entity set.
func (m *StateMemory) Reset() {
	m.Domain = ""
	m.Intent = ""
	m.entities = make(map[string]legal.Entity)
	m.order = nil
}
