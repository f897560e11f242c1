package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"drivematch/internal/session/models"
	id "drivematch/pkg/domain"
	"drivematch/pkg/platform/sentinel"
	txcontext "drivematch/pkg/platform/tx"
)

// Postgres stores snapshots as JSONB rows in profile_snapshots. Calls join a
// transaction carried in the context when there is one.
type Postgres struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

type PostgresOption func(*Postgres)

func WithPostgresClock(now func() time.Time) PostgresOption {
	return func(s *Postgres) {
		if now != nil {
			s.now = now
		}
	}
}

func NewPostgres(db *sql.DB, ttl time.Duration, opts ...PostgresOption) *Postgres {
	s := &Postgres{db: db, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) executor(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const upsertSnapshot = `
	INSERT INTO profile_snapshots (session_id, actor, payload, updated_at, expires_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (session_id) DO UPDATE SET
		actor = EXCLUDED.actor,
		payload = EXCLUDED.payload,
		updated_at = EXCLUDED.updated_at,
		expires_at = EXCLUDED.expires_at
`

func (s *Postgres) Save(ctx context.Context, snap *models.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	now := s.now()
	var expiresAt pq.NullTime
	if s.ttl > 0 {
		expiresAt = pq.NullTime{Time: now.Add(s.ttl), Valid: true}
	}
	_, err = s.executor(ctx).ExecContext(ctx, upsertSnapshot,
		snap.SessionID.String(), string(snap.Actor), payload, now, expiresAt)
	if err != nil {
		return wrapPQ("save snapshot", err)
	}
	return nil
}

const selectSnapshot = `
	SELECT payload FROM profile_snapshots
	WHERE session_id = $1 AND (expires_at IS NULL OR expires_at > $2)
`

func (s *Postgres) Load(ctx context.Context, sessionID id.SessionID) (*models.Snapshot, error) {
	var payload []byte
	err := s.executor(ctx).QueryRowContext(ctx, selectSnapshot, sessionID.String(), s.now()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, wrapPQ("load snapshot", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *Postgres) Delete(ctx context.Context, sessionID id.SessionID) error {
	_, err := s.executor(ctx).ExecContext(ctx, `DELETE FROM profile_snapshots WHERE session_id = $1`, sessionID.String())
	if err != nil {
		return wrapPQ("delete snapshot", err)
	}
	return nil
}

// DeleteExpired removes snapshots whose TTL has passed.
func (s *Postgres) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.executor(ctx).ExecContext(ctx,
		`DELETE FROM profile_snapshots WHERE expires_at IS NOT NULL AND expires_at <= $1`, s.now())
	if err != nil {
		return 0, wrapPQ("delete expired snapshots", err)
	}
	return res.RowsAffected()
}

// Sweep runs DeleteExpired in its own transaction with a short lock timeout
// so a background sweep gives way to request writes.
func (s *Postgres) Sweep(ctx context.Context) (int64, error) {
	var n int64
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		if _, err := s.executor(ctx).ExecContext(ctx, `SET LOCAL lock_timeout = '2s'`); err != nil {
			return wrapPQ("set lock timeout", err)
		}
		var err error
		n, err = s.DeleteExpired(ctx)
		return err
	})
	return n, err
}

// wrapPQ keeps driver errors inspectable and marks connection-class
// failures as unavailable.
func wrapPQ(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() != "08" {
		return fmt.Errorf("%s: %s: %w", op, pqErr.Code.Name(), err)
	}
	return errors.Join(fmt.Errorf("%s: %w", op, err), sentinel.ErrUnavailable)
}
