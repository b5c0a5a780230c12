package domain

import "unique"

// InternedString is a canonicalized string handle. File paths repeat across
// the dependency graph and file records, so they are stored interned.
type InternedString struct {
	h unique.Handle[string]
}

// NewInternedString interns s.
func NewInternedString(s string) InternedString {
	return InternedString{h: unique.Make(s)}
}

// String returns the interned value.
func (is InternedString) String() string {
	return is.h.Value()
}

// IsZero reports whether is was never assigned.
func (is InternedString) IsZero() bool {
	return is == InternedString{}
}
