package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Role enumerates the known capability groups.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// DefaultRole is granted to self-registered accounts.
const DefaultRole = RoleCustomer

// KnownRoles returns every role the service understands.
func KnownRoles() []Role {
	return []Role{RoleAdmin, RoleCustomer}
}

// ParseRole converts a role name into a Role, rejecting unknown names.
func ParseRole(name string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range KnownRoles() {
		if role == known {
			return role, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

// ParseRoles parses every name, failing on the first unknown one.
func ParseRoles(names []string) (RoleSet, error) {
	roles := make([]Role, 0, len(names))
	for _, name := range names {
		role, err := ParseRole(name)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return NewRoleSet(roles...), nil
}

// RoleSet is a sorted, duplicate-free set of roles. Treat it as read-only.
type RoleSet []Role

// NewRoleSet builds a RoleSet from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	seen := make(map[Role]struct{}, len(roles))
	set := make(RoleSet, 0, len(roles))
	for _, role := range roles {
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		set = append(set, role)
	}
	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	return set
}

// Has reports whether role is a member of the set.
func (s RoleSet) Has(role Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// Intersects reports whether the two sets share at least one role.
func (s RoleSet) Intersects(other RoleSet) bool {
	for _, r := range s {
		if other.Has(r) {
			return true
		}
	}
	return false
}

// Strings returns role names, e.g. for token claims.
func (s RoleSet) Strings() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = string(r)
	}
	return out
}

// RoleRecord is a row of the role store.
type RoleRecord struct {
	ID        string
	Name      Role
	CreatedAt time.Time
}
