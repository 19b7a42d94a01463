package report

import (
	"testing"
	"time"
)

func TestValueAt(t *testing.T) {
	name := "Paracetamol API"
	collected := time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)
	rep := &Report{
		SampleName:     &name,
		CollectionDate: &collected,
		CoARows: []CoARow{
			{Key: "IDENTIFICATION", Specification: "Conforms to IR", Result: "Conforms", Method: "USP <197>"},
			{Key: "ASSAY", Specification: "98.0-102.0", Result: "99.4", Unit: "%"},
		},
	}

	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"sampleName", "Paracetamol API", true},
		{"collectionDate", "2026-07-14", true},
		{"sampleType", "", true},
		{"receivedDate", "", true},
		{"coaRows:IDENTIFICATION:result", "Conforms", true},
		{"coaRows:IDENTIFICATION:method", "USP <197>", true},
		{"coaRows:ASSAY:unit", "%", true},
		{"coaRows:MISSING:result", "", false},
		{"coaRows:ASSAY:nonsense", "", false},
		{"notAField", "", false},
	}
	for _, tt := range tests {
		path, err := ParseFieldPath(tt.key)
		if err != nil {
			t.Fatalf("ParseFieldPath(%q): %v", tt.key, err)
		}
		got, ok := rep.ValueAt(path)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ValueAt(%q) = (%q, %v), want (%q, %v)", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRowByKey(t *testing.T) {
	rep := &Report{CoARows: []CoARow{{Key: "pH", Result: "6.8"}}}
	if row := rep.RowByKey("pH"); row == nil || row.Result != "6.8" {
		t.Errorf("RowByKey(pH) = %+v", row)
	}
	if row := rep.RowByKey("ASSAY"); row != nil {
		t.Errorf("RowByKey(ASSAY) = %+v, want nil", row)
	}
}

func TestParseRoleAndStatus(t *testing.T) {
	if _, err := ParseRole("front_desk"); err != nil {
		t.Errorf("front_desk should parse: %v", err)
	}
	if _, err := ParseRole("superuser"); err == nil {
		t.Error("superuser must not parse")
	}
	if _, err := ParseStatus("QA_APPROVED"); err != nil {
		t.Errorf("QA_APPROVED should parse: %v", err)
	}
	if _, err := ParseStatus("qa_approved"); err == nil {
		t.Error("status parsing must be case sensitive")
	}
}
