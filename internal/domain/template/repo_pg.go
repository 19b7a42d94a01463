package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labflow/labflow/internal/platform/apperr"
	"github.com/labflow/labflow/internal/platform/db"
	"github.com/labflow/labflow/internal/platform/versioned"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const templateCols = `id, name, sample_type, version, rows, active,
	created_by, updated_by, created_at, updated_at`

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var rows []byte
	err := row.Scan(&t.ID, &t.Name, &t.SampleType, &t.Version, &rows, &t.Active,
		&t.CreatedBy, &t.UpdatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		if err := json.Unmarshal(rows, &t.Rows); err != nil {
			return nil, fmt.Errorf("decode rows: %w", err)
		}
	}
	return &t, nil
}

func (r *repoPG) Create(ctx context.Context, t *Template) error {
	t.ID = uuid.New()
	rows, err := json.Marshal(t.Rows)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO report_template (id, name, sample_type, version, rows, active, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.Name, t.SampleType, t.Version, rows, t.Active, t.CreatedBy, t.UpdatedBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	t, err := scanTemplate(r.conn(ctx).QueryRow(ctx,
		`SELECT `+templateCols+` FROM report_template WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("template", id.String())
	}
	return t, err
}

func (r *repoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Template, int, error) {
	where := ``
	if activeOnly {
		where = ` WHERE active`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM report_template`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+templateCols+` FROM report_template`+where+` ORDER BY name ASC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, id uuid.UUID, expectedVersion int, assignments []versioned.Assignment) (*Template, error) {
	_, err := versioned.Apply(ctx, r.conn(ctx), versioned.Update{
		Table:           "report_template",
		Entity:          "template",
		ID:              id,
		ExpectedVersion: expectedVersion,
		Assignments:     assignments,
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}
