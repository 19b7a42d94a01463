// Package report implements the laboratory report lifecycle engine: the
// status transition table, the per-field authorization matrix, the
// correction sub-workflow, and the optimistic-concurrency mutation paths.
package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is one of the closed set of workflow participants.
type Role string

const (
	RoleClient    Role = "client"
	RoleFrontDesk Role = "front_desk"
	RoleTesting   Role = "testing"
	RoleQA        Role = "qa"
	RoleAdmin     Role = "admin"
)

// AllRoles enumerates every valid role. Table-totality tests range over it.
var AllRoles = []Role{RoleClient, RoleFrontDesk, RoleTesting, RoleQA, RoleAdmin}

// ParseRole validates a wire-level role string.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	for _, known := range AllRoles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role: %q", s)
}

// Status is one of the closed set of workflow states.
type Status string

const (
	StatusDraft                 Status = "DRAFT"
	StatusSubmitted             Status = "SUBMITTED"
	StatusIntakeNeedsCorrection Status = "INTAKE_NEEDS_CORRECTION"
	StatusReceived              Status = "RECEIVED"
	StatusTestingCompleted      Status = "TESTING_COMPLETED"
	StatusQANeedsCorrection     Status = "QA_NEEDS_CORRECTION"
	StatusQAApproved            Status = "QA_APPROVED"
	StatusAdminNeedsCorrection  Status = "ADMIN_NEEDS_CORRECTION"
	StatusApproved              Status = "APPROVED"
)

// AllStatuses enumerates every valid status. The transition table and the
// field matrix are checked for totality against this slice.
var AllStatuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusIntakeNeedsCorrection,
	StatusReceived,
	StatusTestingCompleted,
	StatusQANeedsCorrection,
	StatusQAApproved,
	StatusAdminNeedsCorrection,
	StatusApproved,
}

// ParseStatus validates a wire-level status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	for _, known := range AllStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status: %q", s)
}

// Patchable field keys as they appear on the wire and in correction items.
const (
	FieldSampleName     = "sampleName"
	FieldSampleType     = "sampleType"
	FieldLotBatchNo     = "lotBatchNo"
	FieldCollectionDate = "collectionDate"
	FieldReceivedDate   = "receivedDate"
	FieldTestStartDate  = "testStartDate"
	FieldTestEndDate    = "testEndDate"
	FieldComments       = "comments"
	FieldCoARows        = "coaRows"
)

// CoARow is one analyte row of the certificate-of-analysis table. Rows are
// addressed by Key in nested field paths ("coaRows:<key>:<column>").
type CoARow struct {
	Key           string `json:"key"`
	Specification string `json:"specification"`
	Result        string `json:"result"`
	Method        string `json:"method"`
	Unit          string `json:"unit"`
}

// Report is the versioned aggregate moving through the review pipeline.
type Report struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ReportNo       string     `db:"report_no" json:"reportNo"`
	Status         Status     `db:"status" json:"status"`
	Version        int        `db:"version" json:"version"`
	TemplateID     *uuid.UUID `db:"template_id" json:"templateId,omitempty"`
	SampleName     *string    `db:"sample_name" json:"sampleName,omitempty"`
	SampleType     *string    `db:"sample_type" json:"sampleType,omitempty"`
	LotBatchNo     *string    `db:"lot_batch_no" json:"lotBatchNo,omitempty"`
	CollectionDate *time.Time `db:"collection_date" json:"collectionDate,omitempty"`
	ReceivedDate   *time.Time `db:"received_date" json:"receivedDate,omitempty"`
	TestStartDate  *time.Time `db:"test_start_date" json:"testStartDate,omitempty"`
	TestEndDate    *time.Time `db:"test_end_date" json:"testEndDate,omitempty"`
	Comments       *string    `db:"comments" json:"comments,omitempty"`
	CoARows        []CoARow   `db:"coa_rows" json:"coaRows"`
	CreatedBy      string     `db:"created_by" json:"createdBy"`
	UpdatedBy      string     `db:"updated_by" json:"updatedBy"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// GetVersion returns the current version.
func (r *Report) GetVersion() int { return r.Version }

// SetVersion sets the current version.
func (r *Report) SetVersion(v int) { r.Version = v }

// RowByKey returns the CoA row with the given key, or nil.
func (r *Report) RowByKey(key string) *CoARow {
	for i := range r.CoARows {
		if r.CoARows[i].Key == key {
			return &r.CoARows[i]
		}
	}
	return nil
}

// ValueAt renders the current value of the field addressed by path, used to
// snapshot oldValue when a correction is flagged. The second return is false
// when the path does not resolve to anything on this report.
func (r *Report) ValueAt(path FieldPath) (string, bool) {
	if path.Len() == 1 {
		switch path.Base() {
		case FieldSampleName:
			return strOrEmpty(r.SampleName), true
		case FieldSampleType:
			return strOrEmpty(r.SampleType), true
		case FieldLotBatchNo:
			return strOrEmpty(r.LotBatchNo), true
		case FieldCollectionDate:
			return dateOrEmpty(r.CollectionDate), true
		case FieldReceivedDate:
			return dateOrEmpty(r.ReceivedDate), true
		case FieldTestStartDate:
			return dateOrEmpty(r.TestStartDate), true
		case FieldTestEndDate:
			return dateOrEmpty(r.TestEndDate), true
		case FieldComments:
			return strOrEmpty(r.Comments), true
		}
		return "", false
	}

	if path.Base() == FieldCoARows && path.Len() == 3 {
		segs := path.Segments()
		row := r.RowByKey(segs[1])
		if row == nil {
			return "", false
		}
		switch segs[2] {
		case "specification":
			return row.Specification, true
		case "result":
			return row.Result, true
		case "method":
			return row.Method, true
		case "unit":
			return row.Unit, true
		}
	}
	return "", false
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dateOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
