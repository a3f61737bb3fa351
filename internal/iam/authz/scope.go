// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package authz

import "time"

// ScopeKind names a level of the hierarchy.
type ScopeKind string

const (
	ScopeOrganization ScopeKind = "organization"
	ScopeGroup        ScopeKind = "group"
	ScopeCampaign     ScopeKind = "campaign"
)

// KnownScopeKind gates client-supplied kind strings.
func KnownScopeKind(raw string) bool {
	switch ScopeKind(raw) {
	case ScopeOrganization, ScopeGroup, ScopeCampaign:
		return true
	default:
		return false
	}
}

// Scope identifies one node in the hierarchy.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// Chain is the resolved path from the requested scope up to its root,
// innermost first. A campaign resolves to [campaign, group, organization?];
// parents are nullable, so a free-standing group yields [group].
type Chain []Scope

// Nearest returns the innermost scope of the given kind, if present.
func (chain Chain) Nearest(kind ScopeKind) (Scope, bool) {
	for _, scope := range chain {
		if scope.Kind == kind {
			return scope, true
		}
	}
	return Scope{}, false
}

// # Hierarchy Records

// Organization is the root scope node.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// Group is a play group, optionally inside an organization.
type Group struct {
	ID             string    `json:"id"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	CreatedAt      time.Time `json:"created_at"`
}

// Campaign is a running game inside a group.
type Campaign struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}
