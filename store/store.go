// Package store provides session snapshot persistence behind a
// driver-neutral contract.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/lexisense/ai/session"
)

// SessionStateRecord is one persisted session snapshot row.
type SessionStateRecord struct {
	SessionID string
	Payload   []byte // JSON-encoded session.Snapshot
	UpdatedAt time.Time
}

// Driver is the database access contract implemented per backend.
type Driver interface {
	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	// UpsertSessionState writes a snapshot row, replacing any
	// previous one for the session.
	UpsertSessionState(ctx context.Context, record *SessionStateRecord) error

	// GetSessionState loads a snapshot row; a miss returns (nil, nil).
	GetSessionState(ctx context.Context, sessionID string) (*SessionStateRecord, error)

	// DeleteSessionStatesBefore removes rows not updated since cutoff
	// and reports how many were removed.
	DeleteSessionStatesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}

// Store wraps a Driver and adapts it to the session manager's
// PersistentStore contract.
type Store struct {
	driver Driver
}

// New creates a Store over the given driver.
func New(driver Driver) *Store {
	return &Store{driver: driver}
}

// Migrate prepares the backing schema.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

// LoadSessionState restores a session snapshot. A miss is (nil, nil).
func (s *Store) LoadSessionState(ctx context.Context, sessionID string) (*session.Snapshot, error) {
	record, err := s.driver.GetSessionState(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrapf(err, "load session state %s", sessionID)
	}
	if record == nil {
		return nil, nil
	}

	var snap session.Snapshot
	if err := json.Unmarshal(record.Payload, &snap); err != nil {
		return nil, errors.Wrapf(err, "decode session snapshot %s", sessionID)
	}
	return &snap, nil
}

// SaveSessionState persists a session snapshot.
func (s *Store) SaveSessionState(ctx context.Context, sessionID string, snap *session.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrapf(err, "encode session snapshot %s", sessionID)
	}
	return errors.Wrapf(s.driver.UpsertSessionState(ctx, &SessionStateRecord{
		SessionID: sessionID,
		Payload:   payload,
		UpdatedAt: time.Now(),
	}), "save session state %s", sessionID)
}

// PruneBefore removes snapshots older than cutoff.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.driver.DeleteSessionStatesBefore(ctx, cutoff)
}

// Close releases the underlying driver.
func (s *Store) Close() error {
	return s.driver.Close()
}

var _ session.PersistentStore = (*Store)(nil)
