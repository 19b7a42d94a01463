package template

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/apperr"
	"github.com/labflow/labflow/internal/platform/audit"
	"github.com/labflow/labflow/internal/platform/versioned"
)

// Service owns template lifecycle. Writes are admin-only; the handler
// enforces the role and the service enforces the invariants.
type Service struct {
	repo     Repository
	recorder audit.Recorder
	logger   zerolog.Logger
}

func NewService(repo Repository, recorder audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{repo: repo, recorder: recorder, logger: logger}
}

// CreateInput carries a new template definition.
type CreateInput struct {
	Name       string
	SampleType *string
	Rows       []AnalyteRow
}

func (s *Service) Create(ctx context.Context, in CreateInput, userID string) (*Template, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Validation("template name is required")
	}
	if err := validateRows(in.Rows); err != nil {
		return nil, err
	}

	t := &Template{
		Name:       in.Name,
		SampleType: in.SampleType,
		Version:    0,
		Rows:       in.Rows,
		Active:     true,
		CreatedBy:  userID,
		UpdatedBy:  userID,
	}
	if t.Rows == nil {
		t.Rows = []AnalyteRow{}
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, t.ID, userID, "create", t.Name)
	return s.repo.GetByID(ctx, t.ID)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Template, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Template, int, error) {
	return s.repo.List(ctx, activeOnly, limit, offset)
}

// UpdateInput carries a template revision. Nil fields are left unchanged.
type UpdateInput struct {
	Name            *string
	SampleType      *string
	Rows            []AnalyteRow
	Active          *bool
	ExpectedVersion int
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput, userID string) (*Template, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version != in.ExpectedVersion {
		return nil, &apperr.ConflictError{ExpectedVersion: in.ExpectedVersion, CurrentVersion: current.Version}
	}

	var assignments []versioned.Assignment
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, apperr.Validation("template name must not be empty")
		}
		assignments = append(assignments, versioned.Assignment{Column: "name", Value: *in.Name})
	}
	if in.SampleType != nil {
		assignments = append(assignments, versioned.Assignment{Column: "sample_type", Value: *in.SampleType})
	}
	if in.Rows != nil {
		if err := validateRows(in.Rows); err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(in.Rows)
		if err != nil {
			return nil, fmt.Errorf("encode rows: %w", err)
		}
		assignments = append(assignments, versioned.Assignment{Column: "rows", Value: encoded})
	}
	if in.Active != nil {
		assignments = append(assignments, versioned.Assignment{Column: "active", Value: *in.Active})
	}
	if len(assignments) == 0 {
		return current, nil
	}
	assignments = append(assignments, versioned.Assignment{Column: "updated_by", Value: userID})

	updated, err := s.repo.Update(ctx, id, in.ExpectedVersion, assignments)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, id, userID, "update", updated.Name)
	return updated, nil
}

// Deactivate retires a template from the active list. Reports already
// seeded from it are unaffected.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID, expectedVersion int, userID string) (*Template, error) {
	inactive := false
	return s.Update(ctx, id, UpdateInput{Active: &inactive, ExpectedVersion: expectedVersion}, userID)
}

// AnalyteRows returns the analyte list of an active template, used to seed
// a new report's CoA table.
func (s *Service) AnalyteRows(ctx context.Context, id uuid.UUID) ([]AnalyteRow, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, apperr.Validation("template %s is inactive", id)
	}
	return t.Rows, nil
}

func validateRows(rows []AnalyteRow) error {
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.Key) == "" {
			return apperr.Validation("every analyte row needs a key")
		}
		if seen[row.Key] {
			return apperr.Validation("duplicate analyte row key %q", row.Key)
		}
		seen[row.Key] = true
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, id uuid.UUID, userID, action, name string) {
	err := s.recorder.Record(ctx, audit.Event{
		Entity:   "template",
		EntityID: id,
		UserID:   userID,
		Role:     "admin",
		Action:   action,
		After:    name,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("template_id", id.String()).Msg("audit record failed")
	}
}
