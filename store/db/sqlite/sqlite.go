// Package sqlite implements the store driver on SQLite. Best effort
// for development and single-instance deployments; production setups
// should use postgres.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/lexisense/internal/profile"
	"github.com/hrygo/lexisense/store"
)

type DB struct {
	db *sql.DB
}

// NewDB opens the SQLite database at the profile's DSN.
//
// Pragmas (each must carry the `_pragma=` prefix with this driver):
// foreign keys stay off to avoid surprises on SQLite upgrades, the
// busy timeout absorbs writer contention, and WAL journal mode
// prevents reader/writer locking issues.
func NewDB(p *profile.Profile) (store.Driver, error) {
	if p.DSN == "" {
		return nil, errors.New("dsn required")
	}

	sqliteDB, err := sql.Open("sqlite", p.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", p.DSN)
	}

	// Single connection is optimal for SQLite with WAL.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	return &DB{db: sqliteDB}, nil
}

func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS session_state (
			session_id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	return errors.Wrap(err, "create session_state table")
}

func (d *DB) UpsertSessionState(ctx context.Context, record *store.SessionStateRecord) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO session_state (session_id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, record.SessionID, string(record.Payload), record.UpdatedAt)
	return errors.Wrapf(err, "upsert session state %s", record.SessionID)
}

func (d *DB) GetSessionState(ctx context.Context, sessionID string) (*store.SessionStateRecord, error) {
	record := &store.SessionStateRecord{SessionID: sessionID}
	var payload string
	err := d.db.QueryRowContext(ctx, `
		SELECT payload, updated_at FROM session_state WHERE session_id = ?
	`, sessionID).Scan(&payload, &record.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get session state %s", sessionID)
	}
	record.Payload = []byte(payload)
	return record, nil
}

func (d *DB) DeleteSessionStatesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx, `
		DELETE FROM session_state WHERE updated_at < ?
	`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "delete stale session states")
	}
	return result.RowsAffected()
}

func (d *DB) Close() error {
	return d.db.Close()
}
