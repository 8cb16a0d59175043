package rbac

import "strings"

// Policy maps a role to the permissions it grants. A permission ending in "*"
// grants everything with that prefix; "*" alone grants everything.
type Policy map[string][]string

// Allows reports whether role holds perm under p.
func (p Policy) Allows(role, perm string) bool {
	for _, granted := range p[role] {
		if granted == "*" || granted == perm {
			return true
		}
		if prefix, ok := strings.CutSuffix(granted, "*"); ok && strings.HasPrefix(perm, prefix) {
			return true
		}
	}
	return false
}

// AllowsAny reports whether role holds at least one of perms.
func (p Policy) AllowsAny(role string, perms ...string) bool {
	for _, perm := range perms {
		if p.Allows(role, perm) {
			return true
		}
	}
	return false
}
