package report

// TransitionRule governs one status: which statuses a report may move to,
// which roles may initiate any move out, and which roles may write fields
// while the report sits here. The per-field refinement of CanEdit lives in
// the field authorization matrix (fields.go).
type TransitionRule struct {
	Next    []Status
	CanSet  []Role
	CanEdit []Role
}

// transitionTable is the full workflow. Every member of AllStatuses has an
// entry; TestTransitionTableTotal fails the build pipeline if a status is
// added without one. Terminal statuses carry an empty Next.
var transitionTable = map[Status]TransitionRule{
	StatusDraft: {
		Next:    []Status{StatusSubmitted},
		CanSet:  []Role{RoleClient, RoleAdmin},
		CanEdit: []Role{RoleClient, RoleAdmin},
	},
	StatusSubmitted: {
		Next:    []Status{StatusReceived, StatusIntakeNeedsCorrection},
		CanSet:  []Role{RoleFrontDesk, RoleAdmin},
		CanEdit: []Role{RoleFrontDesk, RoleAdmin},
	},
	StatusIntakeNeedsCorrection: {
		Next:    []Status{StatusSubmitted},
		CanSet:  []Role{RoleClient, RoleAdmin},
		CanEdit: []Role{RoleClient, RoleAdmin},
	},
	StatusReceived: {
		Next:    []Status{StatusTestingCompleted},
		CanSet:  []Role{RoleTesting, RoleAdmin},
		CanEdit: []Role{RoleTesting, RoleAdmin},
	},
	StatusTestingCompleted: {
		Next:    []Status{StatusQAApproved, StatusQANeedsCorrection},
		CanSet:  []Role{RoleQA, RoleAdmin},
		CanEdit: []Role{RoleQA, RoleAdmin},
	},
	StatusQANeedsCorrection: {
		Next:    []Status{StatusTestingCompleted},
		CanSet:  []Role{RoleTesting, RoleAdmin},
		CanEdit: []Role{RoleTesting, RoleAdmin},
	},
	StatusQAApproved: {
		Next:    []Status{StatusApproved, StatusAdminNeedsCorrection},
		CanSet:  []Role{RoleAdmin},
		CanEdit: []Role{RoleAdmin},
	},
	StatusAdminNeedsCorrection: {
		Next:    []Status{StatusQAApproved},
		CanSet:  []Role{RoleQA, RoleAdmin},
		CanEdit: []Role{RoleTesting, RoleQA, RoleAdmin},
	},
	StatusApproved: {
		Next:    []Status{},
		CanSet:  []Role{},
		CanEdit: []Role{},
	},
}

// RuleFor looks up the transition rule for a status.
func RuleFor(status Status) (TransitionRule, bool) {
	rule, ok := transitionTable[status]
	return rule, ok
}

// CanInitiate reports whether role may move a report from one status to
// another: the target must be in the table's Next set and the role in its
// CanSet set.
func CanInitiate(from Status, role Role, to Status) bool {
	rule, ok := transitionTable[from]
	if !ok {
		return false
	}
	if !containsStatus(rule.Next, to) {
		return false
	}
	return containsRole(rule.CanSet, role)
}

// IsNeedsCorrection reports whether the status is a "needs correction"
// variant. Transitions into these statuses are only reachable through the
// correction tracker so a report can never sit in one with zero items.
func (s Status) IsNeedsCorrection() bool {
	switch s {
	case StatusIntakeNeedsCorrection, StatusQANeedsCorrection, StatusAdminNeedsCorrection:
		return true
	}
	return false
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	rule, ok := transitionTable[s]
	return ok && len(rule.Next) == 0
}

type transition struct {
	From Status
	To   Status
}

// eSignTransitions marks the transitions that only commit after the caller
// re-authenticates with the e-sign password and supplies a reason.
var eSignTransitions = map[transition]bool{
	{From: StatusTestingCompleted, To: StatusQAApproved}: true,
	{From: StatusQAApproved, To: StatusApproved}:         true,
}

// RequiresESign reports whether the transition is gated behind step-up
// authentication.
func RequiresESign(from, to Status) bool {
	return eSignTransitions[transition{From: from, To: to}]
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsRole(list []Role, r Role) bool {
	for _, v := range list {
		if v == r {
			return true
		}
	}
	return false
}
