// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package authz

import "context"

// Store is the persistence boundary for the hierarchy, role assignments,
// and grants.
type Store interface {
	// ResolveChain walks the parent links from the given scope to the
	// root. A scope that does not exist yields apperr.NotFound.
	ResolveChain(ctx context.Context, scope Scope) (Chain, error)

	// FindRole returns the principal's role at exactly this scope, or
	// apperr.NotFound when no assignment exists.
	FindRole(ctx context.Context, scope Scope, userID string) (Role, error)

	// UpsertRole sets the principal's single role at the scope.
	UpsertRole(ctx context.Context, scope Scope, userID string, role Role) error

	// DeleteRole removes the principal's assignment at the scope.
	DeleteRole(ctx context.Context, scope Scope, userID string) error

	// HasGrant reports whether any scope on the chain carries an explicit
	// grant of the action to the principal.
	HasGrant(ctx context.Context, chain Chain, userID string, action Action) (bool, error)

	// PutGrant records an explicit grant at the scope.
	PutGrant(ctx context.Context, scope Scope, userID string, action Action) error

	// DeleteGrant removes an explicit grant.
	DeleteGrant(ctx context.Context, scope Scope, userID string, action Action) error

	// CreateOrganization, CreateGroup, and CreateCampaign insert hierarchy
	// nodes. Slug collisions yield apperr.Conflict.
	CreateOrganization(ctx context.Context, org *Organization) error
	CreateGroup(ctx context.Context, group *Group) error
	CreateCampaign(ctx context.Context, campaign *Campaign) error
}
