package report

import (
	"time"

	"github.com/google/uuid"
)

// CorrectionStatus is the two-state lifecycle of a correction item. Items
// are never deleted and never re-opened; a new defect on the same field is
// a new item.
type CorrectionStatus string

const (
	CorrectionOpen     CorrectionStatus = "OPEN"
	CorrectionResolved CorrectionStatus = "RESOLVED"
)

// CorrectionItem is a flagged defect on a specific field or nested cell.
// Items are created only as a side effect of a transition into a "needs
// correction" status, under the same version guard as the report itself.
type CorrectionItem struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	ReportID         uuid.UUID        `db:"report_id" json:"reportId"`
	FieldKey         string           `db:"field_key" json:"fieldKey"`
	Message          string           `db:"message" json:"message"`
	Status           CorrectionStatus `db:"status" json:"status"`
	RequestedByRole  Role             `db:"requested_by_role" json:"requestedByRole"`
	OldValue         *string          `db:"old_value" json:"oldValue,omitempty"`
	ResolutionNote   *string          `db:"resolution_note" json:"resolutionNote,omitempty"`
	ResolvedByUserID *string          `db:"resolved_by_user_id" json:"resolvedByUserId,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"createdAt"`
	ResolvedAt       *time.Time       `db:"resolved_at" json:"resolvedAt,omitempty"`
}
