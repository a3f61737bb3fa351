// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package authz

import (
	"context"
	"log/slog"
	"strings"

	"github.com/arcanumhq/arcanum/internal/iam/audit"
	"github.com/arcanumhq/arcanum/internal/platform/apperr"
	"github.com/arcanumhq/arcanum/internal/platform/metrics"
	"github.com/arcanumhq/arcanum/pkg/slug"
	"github.com/arcanumhq/arcanum/pkg/uuid"
)

// ErrDenied is the uniform authorization failure. The message never names
// the missing role or grant.
var ErrDenied = apperr.Forbidden("Not allowed")

// Resolver evaluates authorization decisions and manages role and grant
// assignments.
type Resolver struct {
	store    Store
	recorder audit.Recorder
	metrics  *metrics.Registry
	logger   *slog.Logger
}

// NewResolver wires the permission resolver.
func NewResolver(store Store, recorder audit.Recorder, registry *metrics.Registry, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, recorder: recorder, metrics: registry, logger: logger}
}

/*
Authorize decides whether the principal may perform the action at the scope.

Algorithm:
 1. resolve the scope chain by walking parent links;
 2. find the principal's role at the nearest scope of the action's
    category — exactly one role is consulted, never a merge across levels;
 3. evaluate the static matrix;
 4. when the matrix answers "grantable", consult the grant table along the
    chain;
 5. anything else, including store failures and unknown actions, denies.

Returns:
  - error: nil on allow, ErrDenied on deny. Denials are counted and sent to
    the audit sink.
*/
func (resolver *Resolver) Authorize(ctx context.Context, userID string, action Action, scope Scope) error {
	category, known := actionCategories[action]
	if !known {
		return resolver.deny(ctx, userID, action, scope, "unknown_action")
	}

	chain, err := resolver.store.ResolveChain(ctx, scope)
	if err != nil {
		resolver.logger.WarnContext(ctx, "authz_chain_resolve_failed", "error", err, "scope", scope.ID)
		return resolver.deny(ctx, userID, action, scope, "chain_unresolved")
	}

	roleScopeKind := ScopeGroup
	if category == CategoryOrganization {
		roleScopeKind = ScopeOrganization
	}
	roleScope, found := chain.Nearest(roleScopeKind)
	if !found {
		return resolver.deny(ctx, userID, action, scope, "no_scope_for_category")
	}

	role, err := resolver.store.FindRole(ctx, roleScope, userID)
	if err != nil {
		if !apperr.IsCode(err, apperr.CodeNotFound) {
			resolver.logger.WarnContext(ctx, "authz_role_lookup_failed", "error", err, "scope", roleScope.ID)
		}
		return resolver.deny(ctx, userID, action, scope, "no_role")
	}

	switch lookupVerdict(category, role, action) {
	case VerdictAllow:
		resolver.metrics.AuthzDecisions.WithLabelValues("allow").Inc()
		return nil

	case VerdictGrantable:
		if !Grantable(action) {
			return resolver.deny(ctx, userID, action, scope, "matrix")
		}
		granted, err := resolver.store.HasGrant(ctx, chain, userID, action)
		if err != nil {
			resolver.logger.WarnContext(ctx, "authz_grant_lookup_failed", "error", err)
			return resolver.deny(ctx, userID, action, scope, "grant_unresolved")
		}
		if !granted {
			return resolver.deny(ctx, userID, action, scope, "no_grant")
		}
		resolver.metrics.AuthzDecisions.WithLabelValues("allow").Inc()
		return nil

	default:
		return resolver.deny(ctx, userID, action, scope, "matrix")
	}
}

func (resolver *Resolver) deny(ctx context.Context, userID string, action Action, scope Scope, reason string) error {
	resolver.metrics.AuthzDecisions.WithLabelValues("deny").Inc()
	resolver.recorder.Record(ctx, audit.Event{
		Type:        audit.EventAuthzDenied,
		PrincipalID: userID,
		Metadata: map[string]string{
			"action":     string(action),
			"scope_kind": string(scope.Kind),
			"scope_id":   scope.ID,
			"reason":     reason,
		},
	})
	return ErrDenied
}

// # Role Management

/*
AssignRole sets the target's role at a scope, itself an authorization
decision.

The actor needs the member-management action for the scope's level. A GM
may only hand out Player or Spectator; attempting GM or Owner fails with
InsufficientPrivilege, a failure distinct from a plain deny because the
actor does hold a role that manages members.
*/
func (resolver *Resolver) AssignRole(ctx context.Context, actorID string, scope Scope, targetID string, role Role) error {
	if !ValidRole(scope.Kind, role) {
		return apperr.Unprocessable("Role does not exist at this scope")
	}

	manageAction := ActionChangeMemberRoles
	if scope.Kind == ScopeOrganization {
		manageAction = ActionManageOrgMembers
	}
	if err := resolver.Authorize(ctx, actorID, manageAction, scope); err != nil {
		return err
	}

	actorRole, err := resolver.store.FindRole(ctx, scope, actorID)
	if err != nil {
		return ErrDenied
	}
	if actorRole == RoleGM {
		if _, ok := gmAssignable[role]; !ok {
			resolver.metrics.AuthzDecisions.WithLabelValues("insufficient_privilege").Inc()
			resolver.recorder.Record(ctx, audit.Event{
				Type:        audit.EventAuthzDenied,
				PrincipalID: actorID,
				Metadata: map[string]string{
					"action": "assign_role:" + string(role),
					"reason": "gm_role_ceiling",
				},
			})
			return apperr.InsufficientPrivilege("A GM may only assign the Player or Spectator roles")
		}
	}

	if err := resolver.store.UpsertRole(ctx, scope, targetID, role); err != nil {
		return err
	}
	resolver.recorder.Record(ctx, audit.Event{
		Type:        audit.EventRoleAssigned,
		PrincipalID: actorID,
		Metadata: map[string]string{
			"target":     targetID,
			"role":       string(role),
			"scope_kind": string(scope.Kind),
			"scope_id":   scope.ID,
		},
	})
	return nil
}

// RemoveRole drops the target's assignment at the scope.
func (resolver *Resolver) RemoveRole(ctx context.Context, actorID string, scope Scope, targetID string) error {
	manageAction := ActionChangeMemberRoles
	if scope.Kind == ScopeOrganization {
		manageAction = ActionManageOrgMembers
	}
	if err := resolver.Authorize(ctx, actorID, manageAction, scope); err != nil {
		return err
	}
	return resolver.store.DeleteRole(ctx, scope, targetID)
}

// # Grant Management

// AddGrant records an explicit content/session permission for the target.
// Only the enumerated grantable actions are accepted.
func (resolver *Resolver) AddGrant(ctx context.Context, actorID string, scope Scope, targetID string, action Action) error {
	if !Grantable(action) {
		return apperr.Unprocessable("Action is not grantable")
	}
	if err := resolver.Authorize(ctx, actorID, ActionChangeMemberRoles, scope); err != nil {
		return err
	}
	return resolver.store.PutGrant(ctx, scope, targetID, action)
}

// RemoveGrant withdraws an explicit grant.
func (resolver *Resolver) RemoveGrant(ctx context.Context, actorID string, scope Scope, targetID string, action Action) error {
	if err := resolver.Authorize(ctx, actorID, ActionChangeMemberRoles, scope); err != nil {
		return err
	}
	return resolver.store.DeleteGrant(ctx, scope, targetID, action)
}

// # Hierarchy Management

// CreateOrganization inserts a root scope and makes the creator its owner.
func (resolver *Resolver) CreateOrganization(ctx context.Context, actorID, name string) (*Organization, error) {
	org := &Organization{
		ID:   uuid.Must(),
		Name: strings.TrimSpace(name),
		Slug: slug.From(name),
	}
	if err := resolver.store.CreateOrganization(ctx, org); err != nil {
		return nil, err
	}
	scope := Scope{Kind: ScopeOrganization, ID: org.ID}
	if err := resolver.store.UpsertRole(ctx, scope, actorID, RoleOwner); err != nil {
		return nil, err
	}
	return org, nil
}

// CreateGroup inserts a group, inside an organization when orgID is given,
// and makes the creator its owner.
func (resolver *Resolver) CreateGroup(ctx context.Context, actorID, name string, orgID *string) (*Group, error) {
	if orgID != nil {
		orgScope := Scope{Kind: ScopeOrganization, ID: *orgID}
		if err := resolver.Authorize(ctx, actorID, ActionCreateGroup, orgScope); err != nil {
			return nil, err
		}
	}

	group := &Group{
		ID:             uuid.Must(),
		OrganizationID: orgID,
		Name:           strings.TrimSpace(name),
		Slug:           slug.From(name),
	}
	if err := resolver.store.CreateGroup(ctx, group); err != nil {
		return nil, err
	}
	scope := Scope{Kind: ScopeGroup, ID: group.ID}
	if err := resolver.store.UpsertRole(ctx, scope, actorID, RoleOwner); err != nil {
		return nil, err
	}
	return group, nil
}

// CreateCampaign inserts a campaign under a group the actor can manage
// campaigns in.
func (resolver *Resolver) CreateCampaign(ctx context.Context, actorID, groupID, name string) (*Campaign, error) {
	groupScope := Scope{Kind: ScopeGroup, ID: groupID}
	if err := resolver.Authorize(ctx, actorID, ActionManageCampaigns, groupScope); err != nil {
		return nil, err
	}

	campaign := &Campaign{
		ID:      uuid.Must(),
		GroupID: groupID,
		Name:    strings.TrimSpace(name),
		Slug:    slug.From(name),
	}
	if err := resolver.store.CreateCampaign(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}
