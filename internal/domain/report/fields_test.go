package report

import "testing"

func TestEditableFields(t *testing.T) {
	tests := []struct {
		role    Role
		status  Status
		allowed []string
		denied  []string
	}{
		{RoleClient, StatusDraft,
			[]string{FieldSampleName, FieldSampleType, FieldLotBatchNo, FieldCollectionDate, FieldComments},
			[]string{FieldReceivedDate, FieldCoARows, FieldTestStartDate}},
		{RoleClient, StatusIntakeNeedsCorrection,
			[]string{FieldSampleName, FieldComments},
			[]string{FieldCoARows}},
		{RoleClient, StatusSubmitted, nil,
			[]string{FieldSampleName, FieldComments}},
		{RoleFrontDesk, StatusSubmitted,
			[]string{FieldReceivedDate, FieldComments},
			[]string{FieldSampleName, FieldCoARows}},
		{RoleTesting, StatusReceived,
			[]string{FieldCoARows, FieldTestStartDate, FieldTestEndDate, FieldComments},
			[]string{FieldSampleName, FieldReceivedDate}},
		{RoleTesting, StatusQANeedsCorrection,
			[]string{FieldCoARows},
			[]string{FieldSampleName}},
		{RoleQA, StatusTestingCompleted,
			[]string{FieldComments},
			[]string{FieldCoARows, FieldSampleName}},
		{RoleAdmin, StatusDraft,
			[]string{FieldSampleName, FieldCoARows, FieldReceivedDate},
			nil},
		{RoleAdmin, StatusQAApproved,
			[]string{FieldComments, FieldCoARows},
			nil},
		{RoleAdmin, StatusApproved, nil,
			[]string{FieldComments, FieldSampleName, FieldCoARows}},
	}
	for _, tt := range tests {
		set := EditableFields(tt.role, tt.status)
		for _, field := range tt.allowed {
			if !set.Allows(field) {
				t.Errorf("%s in %s: expected %s to be editable", tt.role, tt.status, field)
			}
		}
		for _, field := range tt.denied {
			if set.Allows(field) {
				t.Errorf("%s in %s: expected %s to be denied", tt.role, tt.status, field)
			}
		}
	}
}

func TestNoEditsInTerminalStatus(t *testing.T) {
	for _, role := range AllRoles {
		if !EditableFields(role, StatusApproved).Empty() {
			t.Errorf("role %s must not edit an approved report", role)
		}
	}
}

func TestCanEditFieldJudgesNestedKeysByBase(t *testing.T) {
	cell, _ := ParseFieldPath("coaRows:IDENTIFICATION:result")
	if !CanEditField(RoleTesting, StatusReceived, cell) {
		t.Error("testing must edit CoA cells while report is RECEIVED")
	}
	if CanEditField(RoleClient, StatusDraft, cell) {
		t.Error("client must not edit CoA cells")
	}
	if !CanEditField(RoleAdmin, StatusReceived, cell) {
		t.Error("admin wildcard must cover nested keys")
	}
}

func TestFilterPatchDropsUnauthorizedKeysSilently(t *testing.T) {
	payload := map[string]interface{}{
		FieldSampleName:     "Amoxicillin 500mg",
		FieldCollectionDate: "2026-08-01",
		FieldReceivedDate:   "2026-08-02",
		"coaRows:pH:result": "6.8",
	}

	got := FilterPatch(RoleClient, StatusDraft, payload)
	if len(got) != 2 {
		t.Fatalf("expected 2 surviving keys, got %d: %v", len(got), got)
	}
	if _, ok := got[FieldSampleName]; !ok {
		t.Error("sampleName should survive for client in DRAFT")
	}
	if _, ok := got[FieldCollectionDate]; !ok {
		t.Error("collectionDate should survive for client in DRAFT")
	}
	if _, ok := got[FieldReceivedDate]; ok {
		t.Error("receivedDate must be dropped for client")
	}
	if _, ok := got["coaRows:pH:result"]; ok {
		t.Error("CoA cell must be dropped for client")
	}
}

func TestFilterPatchDropsMalformedKeys(t *testing.T) {
	payload := map[string]interface{}{
		"":                "x",
		"coaRows::result": "y",
		FieldComments:     "ok",
	}
	got := FilterPatch(RoleClient, StatusDraft, payload)
	if len(got) != 1 {
		t.Fatalf("expected only comments to survive, got %v", got)
	}
	if _, ok := got[FieldComments]; !ok {
		t.Error("comments should survive")
	}
}

func TestFilterPatchEmptyForUnknownRoleOrStatus(t *testing.T) {
	payload := map[string]interface{}{FieldComments: "x"}
	if got := FilterPatch(Role("intruder"), StatusDraft, payload); len(got) != 0 {
		t.Errorf("unknown role must edit nothing, got %v", got)
	}
	if got := FilterPatch(RoleClient, Status("LIMBO"), payload); len(got) != 0 {
		t.Errorf("unknown status must allow nothing, got %v", got)
	}
}
