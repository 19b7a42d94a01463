// Package audit is the boundary through which every successful workflow
// mutation is reported. The engine treats it as fire-and-forget: a recorder
// failure is logged by the caller, never surfaced to the client whose
// mutation already committed.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Event captures who did what to which entity, and why.
type Event struct {
	Entity   string
	EntityID uuid.UUID
	UserID   string
	Role     string
	Action   string
	Reason   string
	Before   string
	After    string
}

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, e Event) error

func (f RecorderFunc) Record(ctx context.Context, e Event) error { return f(ctx, e) }

// PGRecorder appends events to the audit_log table.
type PGRecorder struct {
	pool *pgxpool.Pool
}

func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{pool: pool}
}

func (r *PGRecorder) Record(ctx context.Context, e Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (id, entity, entity_id, user_id, role, action, reason, before_value, after_value, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New(), e.Entity, e.EntityID, e.UserID, e.Role, e.Action,
		nullable(e.Reason), nullable(e.Before), nullable(e.After), time.Now().UTC())
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// LogRecorder writes events to the structured log. Used as a fallback when
// no database-backed recorder is configured (tests, dev mode).
type LogRecorder struct {
	logger zerolog.Logger
}

func NewLogRecorder(logger zerolog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(_ context.Context, e Event) error {
	r.logger.Info().
		Str("entity", e.Entity).
		Str("entity_id", e.EntityID.String()).
		Str("user_id", e.UserID).
		Str("role", e.Role).
		Str("action", e.Action).
		Str("reason", e.Reason).
		Msg("audit")
	return nil
}
