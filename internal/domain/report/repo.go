package report

import (
	"context"

	"github.com/google/uuid"

	"github.com/labflow/labflow/internal/platform/versioned"
)

// Repository persists reports. Every mutation is a compare-and-swap on the
// aggregate's version column; implementations must never partially apply a
// mutation whose guard fails.
type Repository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	List(ctx context.Context, status *Status, limit, offset int) ([]*Report, int, error)

	// UpdateFields applies the given column assignments under the version
	// guard and returns the refreshed aggregate.
	UpdateFields(ctx context.Context, id uuid.UUID, expectedVersion int, assignments []versioned.Assignment) (*Report, error)

	// UpdateStatus moves the report to status under the version guard.
	UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int, status Status, updatedBy string) (*Report, error)

	// ApplyCorrections atomically sets the report's status and inserts the
	// supplied OPEN items: one transaction, one version increment. A failed
	// guard writes nothing.
	ApplyCorrections(ctx context.Context, id uuid.UUID, expectedVersion int, target Status, items []*CorrectionItem, updatedBy string) (*Report, error)
}

// CorrectionRepository persists correction items.
type CorrectionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*CorrectionItem, error)
	ListByReport(ctx context.Context, reportID uuid.UUID, status *CorrectionStatus) ([]*CorrectionItem, error)

	// Resolve marks a single OPEN item RESOLVED. Returns the updated item.
	Resolve(ctx context.Context, id uuid.UUID, resolvedBy, note string) (*CorrectionItem, error)

	// ResolveByField resolves every OPEN item of the report sharing fieldKey.
	ResolveByField(ctx context.Context, reportID uuid.UUID, fieldKey, resolvedBy, note string) ([]*CorrectionItem, error)
}

// TemplateSource supplies the analyte rows a template seeds into a new
// report's CoA table. Implemented by the template service; an adapter in
// main wires the two packages together without a direct dependency.
type TemplateSource interface {
	AnalyteRows(ctx context.Context, templateID uuid.UUID) ([]CoARow, error)
}
