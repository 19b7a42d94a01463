package report

// Wildcard in a FieldSet grants every field.
const Wildcard = "*"

// FieldSet is the set of base field keys a role may write in a status.
type FieldSet map[string]bool

// Allows reports whether the set grants the given base field key.
func (s FieldSet) Allows(field string) bool {
	return s[Wildcard] || s[field]
}

// Empty reports whether the set grants nothing.
func (s FieldSet) Empty() bool { return len(s) == 0 }

var intakeFields = FieldSet{
	FieldSampleName:     true,
	FieldSampleType:     true,
	FieldLotBatchNo:     true,
	FieldCollectionDate: true,
	FieldComments:       true,
}

var resultFields = FieldSet{
	FieldCoARows:       true,
	FieldTestStartDate: true,
	FieldTestEndDate:   true,
	FieldComments:      true,
}

var reviewFields = FieldSet{
	FieldComments: true,
}

var allFields = FieldSet{Wildcard: true}

// fieldMatrix maps (role, status) to the writable field set. Statuses
// absent from a role's row grant nothing. Admin holds the wildcard in every
// non-terminal status. Clients are untrusted with respect to which fields
// they may change, so the server filters patches against this matrix and
// silently drops keys outside the set.
var fieldMatrix = map[Role]map[Status]FieldSet{
	RoleClient: {
		StatusDraft:                 intakeFields,
		StatusIntakeNeedsCorrection: intakeFields,
	},
	RoleFrontDesk: {
		StatusSubmitted: {FieldReceivedDate: true, FieldComments: true},
	},
	RoleTesting: {
		StatusReceived:             resultFields,
		StatusQANeedsCorrection:    resultFields,
		StatusAdminNeedsCorrection: resultFields,
	},
	RoleQA: {
		StatusTestingCompleted:     reviewFields,
		StatusAdminNeedsCorrection: reviewFields,
	},
	RoleAdmin: {
		StatusDraft:                 allFields,
		StatusSubmitted:             allFields,
		StatusIntakeNeedsCorrection: allFields,
		StatusReceived:              allFields,
		StatusTestingCompleted:      allFields,
		StatusQANeedsCorrection:     allFields,
		StatusQAApproved:            allFields,
		StatusAdminNeedsCorrection:  allFields,
	},
}

// EditableFields returns the set of base field keys the role may write
// while the report sits in the given status. Never nil.
func EditableFields(role Role, status Status) FieldSet {
	byStatus, ok := fieldMatrix[role]
	if !ok {
		return FieldSet{}
	}
	set, ok := byStatus[status]
	if !ok {
		return FieldSet{}
	}
	return set
}

// CanEditField reports whether the role may write the field addressed by
// path (judged by its base key) in the given status.
func CanEditField(role Role, status Status, path FieldPath) bool {
	return EditableFields(role, status).Allows(path.Base())
}

// FilterPatch drops every key of payload the role is not permitted to write
// in the given status, returning the authorized subset. Nested keys
// ("coaRows:IDENTIFICATION:result") are judged by their base segment.
// Malformed keys are dropped with the unauthorized ones.
func FilterPatch(role Role, status Status, payload map[string]interface{}) map[string]interface{} {
	allowed := EditableFields(role, status)
	filtered := make(map[string]interface{})
	for key, value := range payload {
		path, err := ParseFieldPath(key)
		if err != nil {
			continue
		}
		if allowed.Allows(path.Base()) {
			filtered[key] = value
		}
	}
	return filtered
}
