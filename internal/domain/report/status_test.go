package report

import "testing"

// TestTransitionTableTotal guards against adding a status without wiring it
// into the workflow. Every status must have a rule, and every rule must only
// reference known statuses and roles.
func TestTransitionTableTotal(t *testing.T) {
	for _, status := range AllStatuses {
		rule, ok := RuleFor(status)
		if !ok {
			t.Fatalf("status %s has no transition rule", status)
		}
		for _, next := range rule.Next {
			if _, err := ParseStatus(string(next)); err != nil {
				t.Errorf("status %s lists unknown next status %q", status, next)
			}
		}
		for _, role := range rule.CanSet {
			if _, err := ParseRole(string(role)); err != nil {
				t.Errorf("status %s lists unknown CanSet role %q", status, role)
			}
		}
		for _, role := range rule.CanEdit {
			if _, err := ParseRole(string(role)); err != nil {
				t.Errorf("status %s lists unknown CanEdit role %q", status, role)
			}
		}
	}
}

func TestCanInitiate(t *testing.T) {
	tests := []struct {
		name string
		from Status
		role Role
		to   Status
		want bool
	}{
		{"client submits draft", StatusDraft, RoleClient, StatusSubmitted, true},
		{"admin submits draft", StatusDraft, RoleAdmin, StatusSubmitted, true},
		{"testing cannot submit draft", StatusDraft, RoleTesting, StatusSubmitted, false},
		{"draft cannot skip to received", StatusDraft, RoleAdmin, StatusReceived, false},

		{"front desk accepts submission", StatusSubmitted, RoleFrontDesk, StatusReceived, true},
		{"front desk flags intake", StatusSubmitted, RoleFrontDesk, StatusIntakeNeedsCorrection, true},
		{"client cannot accept own submission", StatusSubmitted, RoleClient, StatusReceived, false},

		{"client resubmits after correction", StatusIntakeNeedsCorrection, RoleClient, StatusSubmitted, true},
		{"front desk cannot resubmit for client", StatusIntakeNeedsCorrection, RoleFrontDesk, StatusSubmitted, false},

		{"testing completes", StatusReceived, RoleTesting, StatusTestingCompleted, true},
		{"qa cannot complete testing", StatusReceived, RoleQA, StatusTestingCompleted, false},

		{"qa approves", StatusTestingCompleted, RoleQA, StatusQAApproved, true},
		{"qa flags results", StatusTestingCompleted, RoleQA, StatusQANeedsCorrection, true},
		{"testing cannot self-approve", StatusTestingCompleted, RoleTesting, StatusQAApproved, false},

		{"testing resubmits after qa flag", StatusQANeedsCorrection, RoleTesting, StatusTestingCompleted, true},

		{"admin grants final approval", StatusQAApproved, RoleAdmin, StatusApproved, true},
		{"admin flags qa approval", StatusQAApproved, RoleAdmin, StatusAdminNeedsCorrection, true},
		{"qa cannot grant final approval", StatusQAApproved, RoleQA, StatusApproved, false},

		{"qa returns to qa approved", StatusAdminNeedsCorrection, RoleQA, StatusQAApproved, true},
		{"testing cannot return to qa approved", StatusAdminNeedsCorrection, RoleTesting, StatusQAApproved, false},

		{"approved is terminal", StatusApproved, RoleAdmin, StatusDraft, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanInitiate(tt.from, tt.role, tt.to); got != tt.want {
				t.Errorf("CanInitiate(%s, %s, %s) = %v, want %v", tt.from, tt.role, tt.to, got, tt.want)
			}
		})
	}
}

func TestAdminIsNotAboveTheTable(t *testing.T) {
	// Admin holds broad rights but still follows the graph: no transition
	// out of APPROVED, no skipping intermediate statuses.
	if CanInitiate(StatusApproved, RoleAdmin, StatusQAApproved) {
		t.Error("admin must not reopen an approved report")
	}
	if CanInitiate(StatusSubmitted, RoleAdmin, StatusTestingCompleted) {
		t.Error("admin must not skip the testing stage")
	}
}

func TestIsNeedsCorrection(t *testing.T) {
	want := map[Status]bool{
		StatusIntakeNeedsCorrection: true,
		StatusQANeedsCorrection:     true,
		StatusAdminNeedsCorrection:  true,
	}
	for _, status := range AllStatuses {
		if got := status.IsNeedsCorrection(); got != want[status] {
			t.Errorf("%s.IsNeedsCorrection() = %v, want %v", status, got, want[status])
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, status := range AllStatuses {
		want := status == StatusApproved
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestRequiresESign(t *testing.T) {
	if !RequiresESign(StatusTestingCompleted, StatusQAApproved) {
		t.Error("qa approval must require e-sign")
	}
	if !RequiresESign(StatusQAApproved, StatusApproved) {
		t.Error("final approval must require e-sign")
	}
	if RequiresESign(StatusDraft, StatusSubmitted) {
		t.Error("submission must not require e-sign")
	}
	if RequiresESign(StatusSubmitted, StatusReceived) {
		t.Error("intake acceptance must not require e-sign")
	}
}
