// Package template manages the report templates that seed a new report's
// certificate-of-analysis table with a predefined analyte list.
package template

import (
	"time"

	"github.com/google/uuid"
)

// AnalyteRow is one predefined analyte of a template. Result is left for the
// testing stage; a template carries the expected shape of the table, not
// measured values.
type AnalyteRow struct {
	Key           string `json:"key"`
	Specification string `json:"specification"`
	Method        string `json:"method"`
	Unit          string `json:"unit"`
}

// Template is a versioned aggregate. Writes follow the same
// compare-and-swap discipline as reports.
type Template struct {
	ID         uuid.UUID    `db:"id" json:"id"`
	Name       string       `db:"name" json:"name"`
	SampleType *string      `db:"sample_type" json:"sampleType,omitempty"`
	Version    int          `db:"version" json:"version"`
	Rows       []AnalyteRow `db:"rows" json:"rows"`
	Active     bool         `db:"active" json:"active"`
	CreatedBy  string       `db:"created_by" json:"createdBy"`
	UpdatedBy  string       `db:"updated_by" json:"updatedBy"`
	CreatedAt  time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updatedAt"`
}

// GetVersion returns the current version.
func (t *Template) GetVersion() int { return t.Version }

// SetVersion sets the current version.
func (t *Template) SetVersion(v int) { t.Version = v }
