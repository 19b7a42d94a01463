package template

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/apperr"
	"github.com/labflow/labflow/internal/platform/audit"
	"github.com/labflow/labflow/internal/platform/versioned"
)

type mockRepo struct {
	templates map[uuid.UUID]*Template
}

func newMockRepo() *mockRepo {
	return &mockRepo{templates: make(map[uuid.UUID]*Template)}
}

func (m *mockRepo) Create(_ context.Context, t *Template) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.templates[t.ID] = t
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Template, error) {
	t, ok := m.templates[id]
	if !ok {
		return nil, apperr.NotFound("template", id.String())
	}
	clone := *t
	clone.Rows = append([]AnalyteRow(nil), t.Rows...)
	return &clone, nil
}

func (m *mockRepo) List(_ context.Context, activeOnly bool, _, _ int) ([]*Template, int, error) {
	var out []*Template
	for _, t := range m.templates {
		if activeOnly && !t.Active {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

func (m *mockRepo) Update(ctx context.Context, id uuid.UUID, expectedVersion int, assignments []versioned.Assignment) (*Template, error) {
	t, ok := m.templates[id]
	if !ok {
		return nil, apperr.NotFound("template", id.String())
	}
	if t.Version != expectedVersion {
		return nil, &apperr.ConflictError{ExpectedVersion: expectedVersion, CurrentVersion: t.Version}
	}
	for _, a := range assignments {
		switch a.Column {
		case "name":
			t.Name = a.Value.(string)
		case "sample_type":
			s := a.Value.(string)
			t.SampleType = &s
		case "rows":
			var rows []AnalyteRow
			if err := json.Unmarshal(a.Value.([]byte), &rows); err != nil {
				return nil, err
			}
			t.Rows = rows
		case "active":
			t.Active = a.Value.(bool)
		case "updated_by":
			t.UpdatedBy = a.Value.(string)
		}
	}
	t.Version++
	return m.GetByID(ctx, id)
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	recorder := audit.RecorderFunc(func(context.Context, audit.Event) error { return nil })
	return NewService(repo, recorder, zerolog.Nop()), repo
}

func TestCreateTemplate(t *testing.T) {
	svc, _ := newTestService()

	tpl, err := svc.Create(context.Background(), CreateInput{
		Name: "USP Tablet Assay",
		Rows: []AnalyteRow{
			{Key: "IDENTIFICATION", Specification: "Conforms to IR", Method: "USP <197>"},
			{Key: "ASSAY", Specification: "98.0-102.0", Method: "HPLC", Unit: "%"},
		},
	}, "admin-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tpl.Version != 0 {
		t.Errorf("version = %d, want 0", tpl.Version)
	}
	if !tpl.Active {
		t.Error("new template must be active")
	}
	if len(tpl.Rows) != 2 {
		t.Errorf("rows = %d", len(tpl.Rows))
	}
}

func TestCreateTemplateValidation(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.Create(context.Background(), CreateInput{Name: "  "}, "admin-1"); err == nil {
		t.Error("blank name must fail")
	}
	_, err := svc.Create(context.Background(), CreateInput{
		Name: "Dup",
		Rows: []AnalyteRow{{Key: "ASSAY"}, {Key: "ASSAY"}},
	}, "admin-1")
	var validation *apperr.ValidationError
	if !errors.As(err, &validation) {
		t.Errorf("duplicate keys: expected ValidationError, got %v", err)
	}
}

func TestUpdateTemplateCAS(t *testing.T) {
	svc, _ := newTestService()
	tpl, err := svc.Create(context.Background(), CreateInput{Name: "Original"}, "admin-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "Renamed"
	updated, err := svc.Update(context.Background(), tpl.ID, UpdateInput{
		Name: &name, ExpectedVersion: tpl.Version,
	}, "admin-1")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Renamed" || updated.Version != tpl.Version+1 {
		t.Errorf("updated = %+v", updated)
	}

	// Stale writer loses.
	other := "Stale"
	_, err = svc.Update(context.Background(), tpl.ID, UpdateInput{
		Name: &other, ExpectedVersion: tpl.Version,
	}, "admin-1")
	var conflict *apperr.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.CurrentVersion != updated.Version {
		t.Errorf("conflict.CurrentVersion = %d, want %d", conflict.CurrentVersion, updated.Version)
	}
}

func TestAnalyteRowsRejectsInactiveTemplate(t *testing.T) {
	svc, _ := newTestService()
	tpl, err := svc.Create(context.Background(), CreateInput{
		Name: "Retired",
		Rows: []AnalyteRow{{Key: "pH"}},
	}, "admin-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.AnalyteRows(context.Background(), tpl.ID); err != nil {
		t.Fatalf("active template rows: %v", err)
	}

	if _, err := svc.Deactivate(context.Background(), tpl.ID, tpl.Version, "admin-1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err = svc.AnalyteRows(context.Background(), tpl.ID)
	var validation *apperr.ValidationError
	if !errors.As(err, &validation) {
		t.Errorf("expected ValidationError for inactive template, got %v", err)
	}
}
