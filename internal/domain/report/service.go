package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/apperr"
	"github.com/labflow/labflow/internal/platform/audit"
	"github.com/labflow/labflow/internal/platform/auth"
	"github.com/labflow/labflow/internal/platform/versioned"
)

// Service orchestrates every report mutation: it consults the transition
// table and field matrix, runs the e-sign gate, performs the guarded write,
// and notifies the audit boundary. Nothing here retries; a Conflict is the
// caller's signal to reload and resubmit.
type Service struct {
	reports     Repository
	corrections CorrectionRepository
	templates   TemplateSource
	esign       auth.ESignVerifier
	recorder    audit.Recorder
	logger      zerolog.Logger
}

func NewService(reports Repository, corrections CorrectionRepository, templates TemplateSource,
	esign auth.ESignVerifier, recorder audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		reports:     reports,
		corrections: corrections,
		templates:   templates,
		esign:       esign,
		recorder:    recorder,
		logger:      logger,
	}
}

// CreateInput carries the fields a submitter may set on a new report.
type CreateInput struct {
	TemplateID     *uuid.UUID
	SampleName     *string
	SampleType     *string
	LotBatchNo     *string
	CollectionDate *time.Time
	Comments       *string
}

// Create opens a new report in DRAFT at version 0. When a template is named
// its analyte rows seed the CoA table.
func (s *Service) Create(ctx context.Context, in CreateInput, userID string, role Role) (*Report, error) {
	if role != RoleClient && role != RoleAdmin {
		return nil, apperr.Forbidden("role %s may not create reports", role)
	}

	rep := &Report{
		ReportNo:       newReportNo(),
		Status:         StatusDraft,
		Version:        0,
		TemplateID:     in.TemplateID,
		SampleName:     in.SampleName,
		SampleType:     in.SampleType,
		LotBatchNo:     in.LotBatchNo,
		CollectionDate: in.CollectionDate,
		Comments:       in.Comments,
		CoARows:        []CoARow{},
		CreatedBy:      userID,
		UpdatedBy:      userID,
	}

	if in.TemplateID != nil {
		if s.templates == nil {
			return nil, apperr.Validation("templates are not configured")
		}
		rows, err := s.templates.AnalyteRows(ctx, *in.TemplateID)
		if err != nil {
			return nil, err
		}
		rep.CoARows = rows
	}

	if err := s.reports.Create(ctx, rep); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, rep.ID, userID, role, "create", "", "", string(rep.Status))
	return s.reports.GetByID(ctx, rep.ID)
}

// Get loads one report.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Report, error) {
	return s.reports.GetByID(ctx, id)
}

// List returns reports, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *Status, limit, offset int) ([]*Report, int, error) {
	return s.reports.List(ctx, status, limit, offset)
}

// PatchFields applies a field patch under the version guard. Keys outside
// the caller's authorized set for the report's current status are dropped
// silently; the returned applied list names exactly the keys that were
// written. An all-dropped patch is a no-op that leaves the version alone.
func (s *Service) PatchFields(ctx context.Context, id uuid.UUID, expectedVersion int,
	payload map[string]interface{}, userID string, role Role) (*Report, []string, error) {

	rep, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if rep.Version != expectedVersion {
		return nil, nil, &apperr.ConflictError{ExpectedVersion: expectedVersion, CurrentVersion: rep.Version}
	}

	filtered := FilterPatch(role, rep.Status, payload)
	if len(filtered) == 0 {
		return rep, []string{}, nil
	}

	assignments, applied, err := buildAssignments(rep, filtered)
	if err != nil {
		return nil, nil, err
	}
	assignments = append(assignments, versioned.Assignment{Column: "updated_by", Value: userID})

	updated, err := s.reports.UpdateFields(ctx, id, expectedVersion, assignments)
	if err != nil {
		return nil, nil, err
	}

	s.recordAudit(ctx, id, userID, role, "update_fields", "", strings.Join(applied, ","), "")
	return updated, applied, nil
}

// ChangeStatusInput carries a status transition request.
type ChangeStatusInput struct {
	Target          Status
	Reason          string
	ESignPassword   string
	ExpectedVersion int
}

// ChangeStatus runs the transition state machine: version check, table
// check, needs-correction redirect, e-sign gate, then the guarded write.
// Every check failure aborts with no state change.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, in ChangeStatusInput,
	userID string, role Role) (*Report, error) {

	rep, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep.Version != in.ExpectedVersion {
		return nil, &apperr.ConflictError{ExpectedVersion: in.ExpectedVersion, CurrentVersion: rep.Version}
	}

	if !CanInitiate(rep.Status, role, in.Target) {
		return nil, apperr.Forbidden("role %s may not move report from %s to %s", role, rep.Status, in.Target)
	}

	if in.Target.IsNeedsCorrection() {
		return nil, apperr.Validation(
			"transition to %s must be requested through the corrections endpoint", in.Target)
	}

	if RequiresESign(rep.Status, in.Target) {
		if strings.TrimSpace(in.Reason) == "" {
			return nil, apperr.Validation("reason is required for transition to %s", in.Target)
		}
		if err := s.esign.VerifyPassword(ctx, userID, in.ESignPassword); err != nil {
			return nil, err
		}
	}

	updated, err := s.reports.UpdateStatus(ctx, id, in.ExpectedVersion, in.Target, userID)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, id, userID, role, "status_change", in.Reason, string(rep.Status), string(in.Target))
	return updated, nil
}

// CorrectionInput is one flagged field in a correction request.
type CorrectionInput struct {
	FieldKey string
	Message  string
}

// CreateCorrectionsInput carries a correction request: the defect list plus
// the needs-correction status the report is routed to.
type CreateCorrectionsInput struct {
	Items           []CorrectionInput
	TargetStatus    Status
	Reason          string
	ExpectedVersion int
}

// CreateCorrections is the only path into a needs-correction status. The
// status change and the item inserts commit as one atomic operation with a
// single version increment, so no reader can observe the status without its
// items.
func (s *Service) CreateCorrections(ctx context.Context, id uuid.UUID, in CreateCorrectionsInput,
	userID string, role Role) (*Report, []*CorrectionItem, error) {

	if len(in.Items) == 0 {
		return nil, nil, apperr.Validation("at least one correction item is required")
	}
	if !in.TargetStatus.IsNeedsCorrection() {
		return nil, nil, apperr.Validation("%s is not a correction status", in.TargetStatus)
	}

	paths := make([]FieldPath, 0, len(in.Items))
	for _, item := range in.Items {
		if strings.TrimSpace(item.Message) == "" {
			return nil, nil, apperr.Validation("correction for %q is missing a message", item.FieldKey)
		}
		path, err := ParseFieldPath(item.FieldKey)
		if err != nil {
			return nil, nil, err
		}
		paths = append(paths, path)
	}

	rep, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if rep.Version != in.ExpectedVersion {
		return nil, nil, &apperr.ConflictError{ExpectedVersion: in.ExpectedVersion, CurrentVersion: rep.Version}
	}

	if !CanInitiate(rep.Status, role, in.TargetStatus) {
		return nil, nil, apperr.Forbidden("role %s may not move report from %s to %s", role, rep.Status, in.TargetStatus)
	}

	items := make([]*CorrectionItem, 0, len(in.Items))
	for i, input := range in.Items {
		item := &CorrectionItem{
			FieldKey:        paths[i].String(),
			Message:         input.Message,
			RequestedByRole: role,
		}
		if old, ok := rep.ValueAt(paths[i]); ok {
			item.OldValue = &old
		}
		items = append(items, item)
	}

	updated, err := s.reports.ApplyCorrections(ctx, id, in.ExpectedVersion, in.TargetStatus, items, userID)
	if err != nil {
		return nil, nil, err
	}

	s.recordAudit(ctx, id, userID, role, "request_corrections", in.Reason,
		string(rep.Status), string(in.TargetStatus))
	return updated, items, nil
}

// ResolveCorrection marks one OPEN item RESOLVED. The caller must be
// permitted to edit the item's base field in the report's current status.
// Resolution never touches the report's status; moving on is a separate,
// human-triggered transition.
func (s *Service) ResolveCorrection(ctx context.Context, reportID, correctionID uuid.UUID,
	note, userID string, role Role) (*CorrectionItem, error) {

	rep, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}

	item, err := s.corrections.GetByID(ctx, correctionID)
	if err != nil {
		return nil, err
	}
	if item.ReportID != reportID {
		return nil, apperr.NotFound("correction", correctionID.String())
	}

	path, err := ParseFieldPath(item.FieldKey)
	if err != nil {
		return nil, err
	}
	if !CanEditField(role, rep.Status, path) {
		return nil, apperr.Forbidden("role %s may not resolve corrections on %q while report is %s",
			role, path.Base(), rep.Status)
	}

	resolved, err := s.corrections.Resolve(ctx, correctionID, userID, note)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, reportID, userID, role, "resolve_correction", note, item.FieldKey, "")
	return resolved, nil
}

// ResolveField resolves every OPEN item of the report sharing fieldKey.
func (s *Service) ResolveField(ctx context.Context, reportID uuid.UUID,
	fieldKey, note, userID string, role Role) ([]*CorrectionItem, error) {

	path, err := ParseFieldPath(fieldKey)
	if err != nil {
		return nil, err
	}

	rep, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !CanEditField(role, rep.Status, path) {
		return nil, apperr.Forbidden("role %s may not resolve corrections on %q while report is %s",
			role, path.Base(), rep.Status)
	}

	resolved, err := s.corrections.ResolveByField(ctx, reportID, path.String(), userID, note)
	if err != nil {
		return nil, err
	}

	if len(resolved) > 0 {
		s.recordAudit(ctx, reportID, userID, role, "resolve_field", note, fieldKey, "")
	}
	return resolved, nil
}

// ListCorrections returns the report's correction items, optionally
// filtered to OPEN ones.
func (s *Service) ListCorrections(ctx context.Context, reportID uuid.UUID, onlyOpen bool) ([]*CorrectionItem, error) {
	if _, err := s.reports.GetByID(ctx, reportID); err != nil {
		return nil, err
	}
	var filter *CorrectionStatus
	if onlyOpen {
		open := CorrectionOpen
		filter = &open
	}
	return s.corrections.ListByReport(ctx, reportID, filter)
}

func (s *Service) recordAudit(ctx context.Context, entityID uuid.UUID, userID string, role Role,
	action, reason, before, after string) {
	err := s.recorder.Record(ctx, audit.Event{
		Entity:   "report",
		EntityID: entityID,
		UserID:   userID,
		Role:     string(role),
		Action:   action,
		Reason:   reason,
		Before:   before,
		After:    after,
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("entity_id", entityID.String()).
			Str("action", action).
			Msg("audit record failed")
	}
}

// buildAssignments translates an authorized patch into column assignments.
// Nested coaRows keys mutate a copy of the row collection, which is then
// written back as one jsonb assignment.
func buildAssignments(rep *Report, filtered map[string]interface{}) ([]versioned.Assignment, []string, error) {
	var assignments []versioned.Assignment
	applied := make([]string, 0, len(filtered))

	rows := make([]CoARow, len(rep.CoARows))
	copy(rows, rep.CoARows)
	rowsChanged := false

	// Deterministic application order keeps nested-cell writes reproducible.
	keys := make([]string, 0, len(filtered))
	for key := range filtered {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := filtered[key]
		path, err := ParseFieldPath(key)
		if err != nil {
			return nil, nil, err
		}

		if path.Base() == FieldCoARows {
			if path.Len() == 1 {
				decoded, err := decodeRows(value)
				if err != nil {
					return nil, nil, err
				}
				rows = decoded
			} else {
				if err := setCell(&rows, path, value); err != nil {
					return nil, nil, err
				}
			}
			rowsChanged = true
			applied = append(applied, key)
			continue
		}

		assignment, err := scalarAssignment(path.Base(), value)
		if err != nil {
			return nil, nil, err
		}
		assignments = append(assignments, assignment)
		applied = append(applied, key)
	}

	if rowsChanged {
		encoded, err := json.Marshal(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("encode coa_rows: %w", err)
		}
		assignments = append(assignments, versioned.Assignment{Column: "coa_rows", Value: encoded})
	}

	return assignments, applied, nil
}

func scalarAssignment(field string, value interface{}) (versioned.Assignment, error) {
	switch field {
	case FieldSampleName, FieldSampleType, FieldLotBatchNo, FieldComments:
		str, ok := value.(string)
		if !ok {
			return versioned.Assignment{}, apperr.Validation("%s must be a string", field)
		}
		return versioned.Assignment{Column: columnFor(field), Value: str}, nil
	case FieldCollectionDate, FieldReceivedDate, FieldTestStartDate, FieldTestEndDate:
		t, err := parseDate(field, value)
		if err != nil {
			return versioned.Assignment{}, err
		}
		return versioned.Assignment{Column: columnFor(field), Value: t}, nil
	}
	return versioned.Assignment{}, apperr.Validation("field %q is not patchable", field)
}

func columnFor(field string) string {
	switch field {
	case FieldSampleName:
		return "sample_name"
	case FieldSampleType:
		return "sample_type"
	case FieldLotBatchNo:
		return "lot_batch_no"
	case FieldCollectionDate:
		return "collection_date"
	case FieldReceivedDate:
		return "received_date"
	case FieldTestStartDate:
		return "test_start_date"
	case FieldTestEndDate:
		return "test_end_date"
	case FieldComments:
		return "comments"
	}
	return ""
}

func parseDate(field string, value interface{}) (*time.Time, error) {
	str, ok := value.(string)
	if !ok {
		return nil, apperr.Validation("%s must be a date string (YYYY-MM-DD)", field)
	}
	if str == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", str)
	if err != nil {
		return nil, apperr.Validation("%s must be formatted YYYY-MM-DD: %v", field, err)
	}
	return &t, nil
}

func decodeRows(value interface{}) ([]CoARow, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, apperr.Validation("coaRows is not valid JSON")
	}
	var rows []CoARow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, apperr.Validation("coaRows must be an array of rows")
	}
	return rows, nil
}

// setCell writes one cell addressed by "coaRows:<rowKey>:<column>". An
// unknown row key creates the row; nested vocabulary is the caller's.
func setCell(rows *[]CoARow, path FieldPath, value interface{}) error {
	if path.Len() != 3 {
		return apperr.Validation("nested coaRows key must be coaRows:<rowKey>:<column>, got %q", path.String())
	}
	str, ok := value.(string)
	if !ok {
		return apperr.Validation("%s must be a string", path.String())
	}

	segs := path.Segments()
	rowKey, column := segs[1], segs[2]

	idx := -1
	for i := range *rows {
		if (*rows)[i].Key == rowKey {
			idx = i
			break
		}
	}
	if idx == -1 {
		*rows = append(*rows, CoARow{Key: rowKey})
		idx = len(*rows) - 1
	}

	switch column {
	case "specification":
		(*rows)[idx].Specification = str
	case "result":
		(*rows)[idx].Result = str
	case "method":
		(*rows)[idx].Method = str
	case "unit":
		(*rows)[idx].Unit = str
	default:
		return apperr.Validation("unknown coaRows column %q", column)
	}
	return nil
}

func newReportNo() string {
	id := uuid.New()
	return fmt.Sprintf("RPT-%s-%s", time.Now().UTC().Format("20060102"),
		strings.ToUpper(id.String()[:8]))
}
