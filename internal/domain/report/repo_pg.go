package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

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

// =========== Report Repository ===========

type reportRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &reportRepoPG{pool: pool}
}

func (r *reportRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const reportCols = `id, report_no, status, version, template_id,
	sample_name, sample_type, lot_batch_no,
	collection_date, received_date, test_start_date, test_end_date,
	comments, coa_rows, created_by, updated_by, created_at, updated_at`

func scanReport(row pgx.Row) (*Report, error) {
	var rep Report
	var rows []byte
	err := row.Scan(&rep.ID, &rep.ReportNo, &rep.Status, &rep.Version, &rep.TemplateID,
		&rep.SampleName, &rep.SampleType, &rep.LotBatchNo,
		&rep.CollectionDate, &rep.ReceivedDate, &rep.TestStartDate, &rep.TestEndDate,
		&rep.Comments, &rows, &rep.CreatedBy, &rep.UpdatedBy, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		if err := json.Unmarshal(rows, &rep.CoARows); err != nil {
			return nil, fmt.Errorf("decode coa_rows: %w", err)
		}
	}
	return &rep, nil
}

func (r *reportRepoPG) Create(ctx context.Context, rep *Report) error {
	rep.ID = uuid.New()
	rows, err := json.Marshal(rep.CoARows)
	if err != nil {
		return fmt.Errorf("encode coa_rows: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO report (id, report_no, status, version, template_id,
			sample_name, sample_type, lot_batch_no,
			collection_date, comments, coa_rows, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		rep.ID, rep.ReportNo, rep.Status, rep.Version, rep.TemplateID,
		rep.SampleName, rep.SampleType, rep.LotBatchNo,
		rep.CollectionDate, rep.Comments, rows, rep.CreatedBy, rep.UpdatedBy)
	return err
}

func (r *reportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	rep, err := scanReport(r.conn(ctx).QueryRow(ctx,
		`SELECT `+reportCols+` FROM report WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("report", id.String())
	}
	return rep, err
}

func (r *reportRepoPG) List(ctx context.Context, status *Status, limit, offset int) ([]*Report, int, error) {
	where := ``
	countArgs := []interface{}{}
	dataArgs := []interface{}{limit, offset}
	if status != nil {
		where = ` WHERE status = $1`
		countArgs = append(countArgs, *status)
		dataArgs = []interface{}{*status, limit, offset}
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM report`+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT ` + reportCols + ` FROM report` + where + ` ORDER BY created_at DESC`
	if status != nil {
		dataSQL += ` LIMIT $2 OFFSET $3`
	} else {
		dataSQL += ` LIMIT $1 OFFSET $2`
	}

	rows, err := r.conn(ctx).Query(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rep)
	}
	return items, total, rows.Err()
}

func (r *reportRepoPG) UpdateFields(ctx context.Context, id uuid.UUID, expectedVersion int, assignments []versioned.Assignment) (*Report, error) {
	_, err := versioned.Apply(ctx, r.conn(ctx), versioned.Update{
		Table:           "report",
		Entity:          "report",
		ID:              id,
		ExpectedVersion: expectedVersion,
		Assignments:     assignments,
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *reportRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int, status Status, updatedBy string) (*Report, error) {
	return r.UpdateFields(ctx, id, expectedVersion, []versioned.Assignment{
		{Column: "status", Value: status},
		{Column: "updated_by", Value: updatedBy},
	})
}

func (r *reportRepoPG) ApplyCorrections(ctx context.Context, id uuid.UUID, expectedVersion int, target Status, items []*CorrectionItem, updatedBy string) (*Report, error) {
	var rep *Report
	err := db.InTx(ctx, r.pool, func(ctx context.Context) error {
		_, err := versioned.Apply(ctx, r.conn(ctx), versioned.Update{
			Table:           "report",
			Entity:          "report",
			ID:              id,
			ExpectedVersion: expectedVersion,
			Assignments: []versioned.Assignment{
				{Column: "status", Value: target},
				{Column: "updated_by", Value: updatedBy},
			},
		})
		if err != nil {
			return err
		}

		for _, item := range items {
			item.ID = uuid.New()
			item.ReportID = id
			item.Status = CorrectionOpen
			item.CreatedAt = time.Now().UTC()
			if _, err := r.conn(ctx).Exec(ctx, `
				INSERT INTO correction_item (id, report_id, field_key, message, status,
					requested_by_role, old_value, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				item.ID, item.ReportID, item.FieldKey, item.Message, item.Status,
				item.RequestedByRole, item.OldValue, item.CreatedAt); err != nil {
				return fmt.Errorf("insert correction item: %w", err)
			}
		}

		rep, err = r.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// =========== Correction Repository ===========

type correctionRepoPG struct{ pool *pgxpool.Pool }

func NewCorrectionRepoPG(pool *pgxpool.Pool) CorrectionRepository {
	return &correctionRepoPG{pool: pool}
}

func (r *correctionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const correctionCols = `id, report_id, field_key, message, status,
	requested_by_role, old_value, resolution_note, resolved_by_user_id,
	created_at, resolved_at`

func scanCorrection(row pgx.Row) (*CorrectionItem, error) {
	var item CorrectionItem
	err := row.Scan(&item.ID, &item.ReportID, &item.FieldKey, &item.Message, &item.Status,
		&item.RequestedByRole, &item.OldValue, &item.ResolutionNote, &item.ResolvedByUserID,
		&item.CreatedAt, &item.ResolvedAt)
	return &item, err
}

func (r *correctionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*CorrectionItem, error) {
	item, err := scanCorrection(r.conn(ctx).QueryRow(ctx,
		`SELECT `+correctionCols+` FROM correction_item WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("correction", id.String())
	}
	return item, err
}

func (r *correctionRepoPG) ListByReport(ctx context.Context, reportID uuid.UUID, status *CorrectionStatus) ([]*CorrectionItem, error) {
	sql := `SELECT ` + correctionCols + ` FROM correction_item WHERE report_id = $1`
	args := []interface{}{reportID}
	if status != nil {
		sql += ` AND status = $2`
		args = append(args, *status)
	}
	sql += ` ORDER BY created_at ASC`

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*CorrectionItem
	for rows.Next() {
		item, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *correctionRepoPG) Resolve(ctx context.Context, id uuid.UUID, resolvedBy, note string) (*CorrectionItem, error) {
	item, err := scanCorrection(r.conn(ctx).QueryRow(ctx, `
		UPDATE correction_item
		SET status = $2, resolved_at = NOW(), resolved_by_user_id = $3, resolution_note = $4
		WHERE id = $1 AND status = $5
		RETURNING `+correctionCols, id, CorrectionResolved, resolvedBy, note, CorrectionOpen))
	if errors.Is(err, pgx.ErrNoRows) {
		existing, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, apperr.Validation("correction %s is already %s", existing.ID, existing.Status)
	}
	return item, err
}

func (r *correctionRepoPG) ResolveByField(ctx context.Context, reportID uuid.UUID, fieldKey, resolvedBy, note string) ([]*CorrectionItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		UPDATE correction_item
		SET status = $3, resolved_at = NOW(), resolved_by_user_id = $4, resolution_note = $5
		WHERE report_id = $1 AND field_key = $2 AND status = $6
		RETURNING `+correctionCols,
		reportID, fieldKey, CorrectionResolved, resolvedBy, note, CorrectionOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*CorrectionItem
	for rows.Next() {
		item, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
