// Package postgres implements the store driver on PostgreSQL, the
// recommended backend for multi-instance deployments.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/hrygo/lexisense/internal/profile"
	"github.com/hrygo/lexisense/store"
)

type DB struct {
	db *sql.DB
}

// NewDB opens a PostgreSQL connection pool for the profile's DSN.
func NewDB(p *profile.Profile) (store.Driver, error) {
	if p.DSN == "" {
		return nil, errors.New("dsn required")
	}

	pgDB, err := sql.Open("postgres", p.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", p.DSN)
	}

	pgDB.SetMaxOpenConns(10)
	pgDB.SetMaxIdleConns(5)
	pgDB.SetConnMaxLifetime(30 * time.Minute)

	return &DB{db: pgDB}, nil
}

func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS session_state (
			session_id TEXT PRIMARY KEY,
			payload JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	return errors.Wrap(err, "create session_state table")
}

func (d *DB) UpsertSessionState(ctx context.Context, record *store.SessionStateRecord) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO session_state (session_id, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, record.SessionID, string(record.Payload), record.UpdatedAt)
	return errors.Wrapf(err, "upsert session state %s", record.SessionID)
}

func (d *DB) GetSessionState(ctx context.Context, sessionID string) (*store.SessionStateRecord, error) {
	record := &store.SessionStateRecord{SessionID: sessionID}
	var payload string
	err := d.db.QueryRowContext(ctx, `
		SELECT payload, updated_at FROM session_state WHERE session_id = $1
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
		DELETE FROM session_state WHERE updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "delete stale session states")
	}
	return result.RowsAffected()
}

func (d *DB) Close() error {
	return d.db.Close()
}
