package domain

import (
	"fmt"
	"strings"
)

// UserRef identifies a user either by bare ID or by a loaded entity.
// The set of implementations is closed: RefID and *User.
type UserRef interface {
	refID() (string, bool)
}

// RefID is a user reference by identifier.
type RefID string

func (r RefID) refID() (string, bool) { return strings.TrimSpace(string(r)), true }

func (u *User) refID() (string, bool) {
	if u == nil {
		return "", false
	}
	return strings.TrimSpace(u.ID), true
}

// RefIDs wraps plain identifiers as references.
func RefIDs(ids ...string) []UserRef {
	refs := make([]UserRef, len(ids))
	for i, id := range ids {
		refs[i] = RefID(id)
	}
	return refs
}

// NormalizeRefs flattens refs into distinct identifiers accepted by valid,
// keeping first-seen order. Every dropped ref yields an error wrapping ErrValidation.
func NormalizeRefs(refs []UserRef, valid func(string) bool) ([]string, []error) {
	seen := make(map[string]struct{}, len(refs))
	ids := make([]string, 0, len(refs))
	var dropped []error
	for i, ref := range refs {
		if ref == nil {
			dropped = append(dropped, fmt.Errorf("ref %d is nil: %w", i, ErrValidation))
			continue
		}
		id, ok := ref.refID()
		if !ok || id == "" {
			dropped = append(dropped, fmt.Errorf("ref %d has no id: %w", i, ErrValidation))
			continue
		}
		if valid != nil && !valid(id) {
			dropped = append(dropped, fmt.Errorf("malformed user id %q: %w", id, ErrValidation))
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, dropped
}
