// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

/*
Package authz is the permission resolver for the organization/group/campaign
hierarchy.

Architecture:
  - Scopes form a chain: Campaign -> Group -> Organization, walked through
    nullable parent links at check time. A principal holds at most one role
    per scope.
  - Authorize consults exactly one role: the nearest enclosing scope that
    carries roles for the action's category. Roles never flatten across
    levels; a group owner gets nothing at the organization above it.
  - The (role, action) matrix is static. Explicit grants are additive and
    only reach the enumerated content/session permissions; structural
    verdicts (ownership, billing, deletion) are final.
  - No role record anywhere on the chain means deny. The resolver fails
    closed on every path, including store errors.
*/
package authz

// Role is a named position at a single scope.
type Role string

// Group-level roles. Exactly one per (user, group).
const (
	RoleOwner     Role = "owner"
	RoleGM        Role = "gm"
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// Organization-level roles. RoleOwner is shared between levels; the scope
// kind disambiguates.
const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// groupRoles and orgRoles gate client-supplied role strings per scope kind.
var (
	groupRoles = map[Role]struct{}{
		RoleOwner: {}, RoleGM: {}, RolePlayer: {}, RoleSpectator: {},
	}
	orgRoles = map[Role]struct{}{
		RoleOwner: {}, RoleAdmin: {}, RoleMember: {},
	}
)

// ValidRole reports whether the role exists at the given scope kind.
func ValidRole(kind ScopeKind, role Role) bool {
	switch kind {
	case ScopeOrganization:
		_, ok := orgRoles[role]
		return ok
	case ScopeGroup:
		_, ok := groupRoles[role]
		return ok
	default:
		return false
	}
}

// gmAssignable is the only set of roles a GM may hand out. Assigning
// anything above it is an InsufficientPrivilege failure, distinct from a
// plain deny.
var gmAssignable = map[Role]struct{}{
	RolePlayer:    {},
	RoleSpectator: {},
}
