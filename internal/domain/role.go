package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// RoleName identifies a role from the configured catalog.
type RoleName string

// Built-in role names. The active catalog is configured at startup.
const (
	RoleAdmin     RoleName = "ADMIN"
	RoleUser      RoleName = "USER"
	RoleStaff     RoleName = "STAFF"
	RoleModerator RoleName = "MODERATOR"
)

// DefaultRoleNames is the catalog used when none is configured.
var DefaultRoleNames = []string{
	string(RoleAdmin),
	string(RoleUser),
	string(RoleStaff),
	string(RoleModerator),
}

// RoleCatalog is the finite set of role names known to the process.
type RoleCatalog struct {
	names map[RoleName]struct{}
	order []RoleName
}

// NewRoleCatalog validates the configured names. Names are case-sensitive;
// empty or duplicate names are rejected.
func NewRoleCatalog(names []string) (*RoleCatalog, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: role catalog is empty", ErrConfiguration)
	}
	catalog := &RoleCatalog{names: make(map[RoleName]struct{}, len(names))}
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, fmt.Errorf("%w: empty role name", ErrConfiguration)
		}
		role := RoleName(name)
		if _, dup := catalog.names[role]; dup {
			return nil, fmt.Errorf("%w: duplicate role %q", ErrConfiguration, name)
		}
		catalog.names[role] = struct{}{}
		catalog.order = append(catalog.order, role)
	}
	return catalog, nil
}

// Parse resolves a string into a catalog role.
func (c *RoleCatalog) Parse(name string) (RoleName, error) {
	role := RoleName(name)
	if _, ok := c.names[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, name)
	}
	return role, nil
}

// ParseSet resolves every name, failing on the first unknown one.
func (c *RoleCatalog) ParseSet(names []string) (RoleSet, error) {
	roles := make([]RoleName, 0, len(names))
	for _, name := range names {
		role, err := c.Parse(name)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return NewRoleSet(roles...), nil
}

// Check reports whether every member of the set belongs to the catalog.
func (c *RoleCatalog) Check(set RoleSet) error {
	for _, role := range set {
		if _, ok := c.names[role]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
	}
	return nil
}

// Names returns the catalog in configured order.
func (c *RoleCatalog) Names() []RoleName {
	out := make([]RoleName, len(c.order))
	copy(out, c.order)
	return out
}

// RoleSet is a sorted, de-duplicated set of role names. Values are never
// mutated after construction.
type RoleSet []RoleName

// NewRoleSet builds a set from the given names.
func NewRoleSet(roles ...RoleName) RoleSet {
	if len(roles) == 0 {
		return RoleSet{}
	}
	seen := make(map[RoleName]struct{}, len(roles))
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

// Len returns the number of roles.
func (s RoleSet) Len() int { return len(s) }

// Contains reports membership.
func (s RoleSet) Contains(role RoleName) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= role })
	return i < len(s) && s[i] == role
}

// Intersects reports whether the two sets share at least one role.
func (s RoleSet) Intersects(other RoleSet) bool {
	i, j := 0, 0
	for i < len(s) && j < len(other) {
		switch {
		case s[i] == other[j]:
			return true
		case s[i] < other[j]:
			i++
		default:
			j++
		}
	}
	return false
}

// Equal reports whether both sets hold the same roles.
func (s RoleSet) Equal(other RoleSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Names returns the roles as plain strings.
func (s RoleSet) Names() []string {
	out := make([]string, len(s))
	for i, role := range s {
		out[i] = string(role)
	}
	return out
}

// MarshalJSON encodes a single role as a string and anything else as an array.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(string(s[0]))
	}
	return json.Marshal(s.Names())
}

// UnmarshalJSON accepts either a string or an array of strings.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*s = RoleSet{}
			return nil
		}
		*s = NewRoleSet(RoleName(single))
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("role claim: %w", err)
	}
	roles := make([]RoleName, 0, len(many))
	for _, name := range many {
		roles = append(roles, RoleName(name))
	}
	*s = NewRoleSet(roles...)
	return nil
}
