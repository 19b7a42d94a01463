package report

import (
	"strings"

	"github.com/labflow/labflow/internal/platform/apperr"
)

// FieldPath addresses a top-level field ("comments") or a nested cell
// ("coaRows:IDENTIFICATION:result") as an ordered list of colon-delimited
// segments. The engine never validates nested segments against a schema;
// depth beyond the base key is opaque caller vocabulary, stored and
// returned verbatim.
type FieldPath struct {
	segments []string
}

// ParseFieldPath splits a colon-delimited key. Empty keys and empty
// segments are rejected.
func ParseFieldPath(key string) (FieldPath, error) {
	if key == "" {
		return FieldPath{}, apperr.Validation("field key must not be empty")
	}
	segments := strings.Split(key, ":")
	for _, seg := range segments {
		if seg == "" {
			return FieldPath{}, apperr.Validation("field key %q has an empty segment", key)
		}
	}
	return FieldPath{segments: segments}, nil
}

// String renders the canonical colon-delimited form.
func (p FieldPath) String() string { return strings.Join(p.segments, ":") }

// Base returns the first segment, the key consulted in the field
// authorization matrix.
func (p FieldPath) Base() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[0]
}

// Len returns the number of segments.
func (p FieldPath) Len() int { return len(p.segments) }

// Segments returns a copy of the path's segments.
func (p FieldPath) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Equal reports segment-wise equality.
func (p FieldPath) Equal(other FieldPath) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is a leading sub-path of p, so
// "coaRows" prefixes "coaRows:IDENTIFICATION:result".
func (p FieldPath) HasPrefix(prefix FieldPath) bool {
	if len(prefix.segments) > len(p.segments) {
		return false
	}
	for i := range prefix.segments {
		if p.segments[i] != prefix.segments[i] {
			return false
		}
	}
	return true
}
