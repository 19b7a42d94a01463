// Package versioned implements the optimistic-concurrency update primitive
// shared by every versioned aggregate (reports, templates). A mutation is a
// single conditional UPDATE guarded by the aggregate's version column; zero
// affected rows means a concurrent writer got there first and the caller
// receives a ConflictError carrying the version the store holds now.
package versioned

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/labflow/labflow/internal/platform/apperr"
)

// Querier is the subset of pgx used by the primitive. Both *pgxpool.Pool and
// pgx.Tx satisfy it, so a service can run the update inside a wider
// transaction when the mutation has companion writes (correction items).
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Aggregate is implemented by models that carry a version counter.
type Aggregate interface {
	GetVersion() int
	SetVersion(v int)
}

// Assignment is one column write applied under the version guard.
type Assignment struct {
	Column string
	Value  interface{}
}

// Update describes a compare-and-swap mutation of one aggregate row.
type Update struct {
	Table           string
	Entity          string // entity name used in NotFound errors
	ID              uuid.UUID
	ExpectedVersion int
	Assignments     []Assignment
}

// SQL renders the conditional UPDATE. The version bump and updated_at touch
// are always part of the statement so no caller can forget them.
func (u Update) SQL() (string, []interface{}) {
	var b strings.Builder
	args := []interface{}{u.ID, u.ExpectedVersion}

	fmt.Fprintf(&b, "UPDATE %s SET version = version + 1, updated_at = NOW()", u.Table)
	for _, a := range u.Assignments {
		args = append(args, a.Value)
		fmt.Fprintf(&b, ", %s = $%d", a.Column, len(args))
	}
	b.WriteString(" WHERE id = $1 AND version = $2 RETURNING version")

	return b.String(), args
}

// Apply executes the conditional update and returns the new version. When the
// guard does not match it distinguishes a missing row (NotFoundError) from a
// stale version (ConflictError with the current stored version). Nothing is
// written in either failure case.
func Apply(ctx context.Context, q Querier, u Update) (int, error) {
	sql, args := u.SQL()

	var newVersion int
	err := q.QueryRow(ctx, sql, args...).Scan(&newVersion)
	if err == nil {
		return newVersion, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("versioned update %s: %w", u.Table, err)
	}

	var current int
	err = q.QueryRow(ctx, fmt.Sprintf(`SELECT version FROM %s WHERE id = $1`, u.Table), u.ID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound(u.Entity, u.ID.String())
	}
	if err != nil {
		return 0, fmt.Errorf("reload version %s: %w", u.Table, err)
	}
	return 0, &apperr.ConflictError{ExpectedVersion: u.ExpectedVersion, CurrentVersion: current}
}
