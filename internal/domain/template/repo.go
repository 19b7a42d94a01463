package template

import (
	"context"

	"github.com/google/uuid"

	"github.com/labflow/labflow/internal/platform/versioned"
)

// Repository persists templates.
type Repository interface {
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, id uuid.UUID) (*Template, error)
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Template, int, error)

	// Update applies the given column assignments under the version guard
	// and returns the refreshed aggregate.
	Update(ctx context.Context, id uuid.UUID, expectedVersion int, assignments []versioned.Assignment) (*Template, error)
}
