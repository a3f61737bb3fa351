// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package authz_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanumhq/arcanum/internal/iam/audit"
	"github.com/arcanumhq/arcanum/internal/iam/authz"
	"github.com/arcanumhq/arcanum/internal/platform/apperr"
	"github.com/arcanumhq/arcanum/internal/platform/metrics"
)

// # Fake Store

type fakeStore struct {
	mu        sync.Mutex
	orgs      map[string]*authz.Organization
	groups    map[string]*authz.Group
	campaigns map[string]*authz.Campaign
	roles     map[string]authz.Role
	grants    map[string]bool

	chainErr error
	roleErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orgs:      make(map[string]*authz.Organization),
		groups:    make(map[string]*authz.Group),
		campaigns: make(map[string]*authz.Campaign),
		roles:     make(map[string]authz.Role),
		grants:    make(map[string]bool),
	}
}

func roleKey(scope authz.Scope, userID string) string {
	return string(scope.Kind) + "|" + scope.ID + "|" + userID
}

func grantKey(scope authz.Scope, userID string, action authz.Action) string {
	return roleKey(scope, userID) + "|" + string(action)
}

func (store *fakeStore) ResolveChain(_ context.Context, scope authz.Scope) (authz.Chain, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.chainErr != nil {
		return nil, store.chainErr
	}

	appendGroup := func(chain authz.Chain, groupID string) (authz.Chain, error) {
		group, found := store.groups[groupID]
		if !found {
			return nil, apperr.NotFound("Group")
		}
		chain = append(chain, authz.Scope{Kind: authz.ScopeGroup, ID: groupID})
		if group.OrganizationID != nil {
			chain = append(chain, authz.Scope{Kind: authz.ScopeOrganization, ID: *group.OrganizationID})
		}
		return chain, nil
	}

	switch scope.Kind {
	case authz.ScopeCampaign:
		campaign, found := store.campaigns[scope.ID]
		if !found {
			return nil, apperr.NotFound("Campaign")
		}
		return appendGroup(authz.Chain{scope}, campaign.GroupID)
	case authz.ScopeGroup:
		return appendGroup(nil, scope.ID)
	case authz.ScopeOrganization:
		if _, found := store.orgs[scope.ID]; !found {
			return nil, apperr.NotFound("Organization")
		}
		return authz.Chain{scope}, nil
	default:
		return nil, apperr.NotFound("Scope")
	}
}

func (store *fakeStore) FindRole(_ context.Context, scope authz.Scope, userID string) (authz.Role, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.roleErr != nil {
		return "", store.roleErr
	}
	role, found := store.roles[roleKey(scope, userID)]
	if !found {
		return "", apperr.NotFound("Role assignment")
	}
	return role, nil
}

func (store *fakeStore) UpsertRole(_ context.Context, scope authz.Scope, userID string, role authz.Role) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.roles[roleKey(scope, userID)] = role
	return nil
}

func (store *fakeStore) DeleteRole(_ context.Context, scope authz.Scope, userID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.roles, roleKey(scope, userID))
	return nil
}

func (store *fakeStore) HasGrant(_ context.Context, chain authz.Chain, userID string, action authz.Action) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, scope := range chain {
		if store.grants[grantKey(scope, userID, action)] {
			return true, nil
		}
	}
	return false, nil
}

func (store *fakeStore) PutGrant(_ context.Context, scope authz.Scope, userID string, action authz.Action) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.grants[grantKey(scope, userID, action)] = true
	return nil
}

func (store *fakeStore) DeleteGrant(_ context.Context, scope authz.Scope, userID string, action authz.Action) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.grants, grantKey(scope, userID, action))
	return nil
}

func (store *fakeStore) CreateOrganization(_ context.Context, org *authz.Organization) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.orgs[org.ID] = org
	return nil
}

func (store *fakeStore) CreateGroup(_ context.Context, group *authz.Group) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.groups[group.ID] = group
	return nil
}

func (store *fakeStore) CreateCampaign(_ context.Context, campaign *authz.Campaign) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.campaigns[campaign.ID] = campaign
	return nil
}

var _ authz.Store = (*fakeStore)(nil)

// # Harness

// newTestResolver builds a resolver over a small fixed hierarchy:
// org-1 > group-1 > campaign-1, plus the free-standing group-solo.
func newTestResolver(t *testing.T) (*authz.Resolver, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	store.orgs["org-1"] = &authz.Organization{ID: "org-1", Name: "Wizards Guild"}
	orgID := "org-1"
	store.groups["group-1"] = &authz.Group{ID: "group-1", OrganizationID: &orgID, Name: "Thursday Table"}
	store.groups["group-solo"] = &authz.Group{ID: "group-solo", Name: "Pickup Games"}
	store.campaigns["campaign-1"] = &authz.Campaign{ID: "campaign-1", GroupID: "group-1", Name: "Tomb of Echoes"}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return authz.NewResolver(store, audit.Noop{}, metrics.New(), logger), store
}

var (
	groupScope    = authz.Scope{Kind: authz.ScopeGroup, ID: "group-1"}
	campaignScope = authz.Scope{Kind: authz.ScopeCampaign, ID: "campaign-1"}
	orgScope      = authz.Scope{Kind: authz.ScopeOrganization, ID: "org-1"}
)

func setRole(store *fakeStore, scope authz.Scope, userID string, role authz.Role) {
	store.roles[roleKey(scope, userID)] = role
}

// # Matrix

/*
TestAuthorize_GroupMatrix spot-checks the static verdicts for each group
role against a campaign inside the group.
*/
func TestAuthorize_GroupMatrix(t *testing.T) {
	tests := []struct {
		name    string
		role    authz.Role
		action  authz.Action
		allowed bool
	}{
		{"owner_deletes_group", authz.RoleOwner, authz.ActionDeleteGroup, true},
		{"owner_transfers_ownership", authz.RoleOwner, authz.ActionTransferOwnership, true},
		{"gm_manages_campaigns", authz.RoleGM, authz.ActionManageCampaigns, true},
		{"gm_bypasses_fog", authz.RoleGM, authz.ActionBypassFog, true},
		{"gm_cannot_delete_group", authz.RoleGM, authz.ActionDeleteGroup, false},
		{"gm_cannot_transfer_ownership", authz.RoleGM, authz.ActionTransferOwnership, false},
		{"player_views_campaign", authz.RolePlayer, authz.ActionViewCampaign, true},
		{"player_joins_session", authz.RolePlayer, authz.ActionJoinSession, true},
		{"player_cannot_manage_npcs", authz.RolePlayer, authz.ActionManageNPCs, false},
		{"player_cannot_manage_campaigns", authz.RolePlayer, authz.ActionManageCampaigns, false},
		{"spectator_views_campaign", authz.RoleSpectator, authz.ActionViewCampaign, true},
		{"spectator_cannot_join_session", authz.RoleSpectator, authz.ActionJoinSession, false},
		{"spectator_cannot_manage_content", authz.RoleSpectator, authz.ActionManageContent, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resolver, store := newTestResolver(t)
			setRole(store, groupScope, "user-1", tc.role)

			err := resolver.Authorize(context.Background(), "user-1", tc.action, campaignScope)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, authz.ErrDenied)
			}
		})
	}
}

func TestAuthorize_OrgMatrix(t *testing.T) {
	tests := []struct {
		name    string
		role    authz.Role
		action  authz.Action
		allowed bool
	}{
		{"owner_manages_billing", authz.RoleOwner, authz.ActionManageBilling, true},
		{"owner_deletes_org", authz.RoleOwner, authz.ActionDeleteOrganization, true},
		{"admin_edits_settings", authz.RoleAdmin, authz.ActionEditOrgSettings, true},
		{"admin_cannot_manage_billing", authz.RoleAdmin, authz.ActionManageBilling, false},
		{"admin_cannot_delete_org", authz.RoleAdmin, authz.ActionDeleteOrganization, false},
		{"member_creates_group", authz.RoleMember, authz.ActionCreateGroup, true},
		{"member_views_org", authz.RoleMember, authz.ActionViewOrganization, true},
		{"member_cannot_manage_members", authz.RoleMember, authz.ActionManageOrgMembers, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resolver, store := newTestResolver(t)
			setRole(store, orgScope, "user-1", tc.role)

			err := resolver.Authorize(context.Background(), "user-1", tc.action, orgScope)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, authz.ErrDenied)
			}
		})
	}
}

// # Grants

/*
TestAuthorize_GrantOpensContentAction verifies a player passes a grantable
action only when the grant row exists.
*/
func TestAuthorize_GrantOpensContentAction(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()
	setRole(store, groupScope, "player-1", authz.RolePlayer)

	err := resolver.Authorize(ctx, "player-1", authz.ActionManageNPCs, campaignScope)
	require.ErrorIs(t, err, authz.ErrDenied)

	store.grants[grantKey(groupScope, "player-1", authz.ActionManageNPCs)] = true
	assert.NoError(t, resolver.Authorize(ctx, "player-1", authz.ActionManageNPCs, campaignScope))
}

func TestAuthorize_SpectatorJoinByGrant(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()
	setRole(store, groupScope, "viewer-1", authz.RoleSpectator)

	require.ErrorIs(t, resolver.Authorize(ctx, "viewer-1", authz.ActionJoinSession, campaignScope), authz.ErrDenied)

	store.grants[grantKey(campaignScope, "viewer-1", authz.ActionJoinSession)] = true
	assert.NoError(t, resolver.Authorize(ctx, "viewer-1", authz.ActionJoinSession, campaignScope))
}

/*
TestAuthorize_StructuralVerdictsFinal verifies grant rows cannot reopen a
hard deny, even for actions the grant table could otherwise carry.
*/
func TestAuthorize_StructuralVerdictsFinal(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()
	setRole(store, groupScope, "player-1", authz.RolePlayer)

	// Rows planted directly in the store, bypassing AddGrant's validation.
	store.grants[grantKey(groupScope, "player-1", authz.ActionDeleteGroup)] = true
	store.grants[grantKey(groupScope, "player-1", authz.ActionChangeMemberRoles)] = true
	store.grants[grantKey(groupScope, "player-1", authz.ActionManageCampaigns)] = true

	assert.ErrorIs(t, resolver.Authorize(ctx, "player-1", authz.ActionDeleteGroup, groupScope), authz.ErrDenied)
	assert.ErrorIs(t, resolver.Authorize(ctx, "player-1", authz.ActionChangeMemberRoles, groupScope), authz.ErrDenied)
	assert.ErrorIs(t, resolver.Authorize(ctx, "player-1", authz.ActionManageCampaigns, groupScope), authz.ErrDenied)
}

// # Scope Chain

/*
TestAuthorize_NearestScopeOnly verifies exactly one role is consulted: the
innermost scope of the action's category. Roles never merge across levels.
*/
func TestAuthorize_NearestScopeOnly(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()

	// Org owner with no group role gets nothing inside the group.
	setRole(store, orgScope, "boss-1", authz.RoleOwner)
	assert.ErrorIs(t, resolver.Authorize(ctx, "boss-1", authz.ActionDeleteGroup, groupScope), authz.ErrDenied)
	assert.ErrorIs(t, resolver.Authorize(ctx, "boss-1", authz.ActionViewCampaign, campaignScope), authz.ErrDenied)

	// The group role decides campaign actions through the chain.
	setRole(store, groupScope, "gm-1", authz.RoleGM)
	assert.NoError(t, resolver.Authorize(ctx, "gm-1", authz.ActionManageNPCs, campaignScope))

	// Org actions at a campaign scope resolve through the chain to the org
	// role, not the group role.
	setRole(store, orgScope, "gm-1", authz.RoleMember)
	assert.NoError(t, resolver.Authorize(ctx, "gm-1", authz.ActionViewOrganization, campaignScope))
	assert.ErrorIs(t, resolver.Authorize(ctx, "gm-1", authz.ActionManageBilling, campaignScope), authz.ErrDenied)
}

/*
TestAuthorize_FreeStandingGroup verifies a group without an organization
denies org-category actions for lack of a scope.
*/
func TestAuthorize_FreeStandingGroup(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()
	soloScope := authz.Scope{Kind: authz.ScopeGroup, ID: "group-solo"}
	setRole(store, soloScope, "owner-1", authz.RoleOwner)

	assert.NoError(t, resolver.Authorize(ctx, "owner-1", authz.ActionDeleteGroup, soloScope))
	assert.ErrorIs(t, resolver.Authorize(ctx, "owner-1", authz.ActionCreateGroup, soloScope), authz.ErrDenied)
}

// # Fail Closed

func TestAuthorize_FailClosed(t *testing.T) {
	ctx := context.Background()

	t.Run("no_role_anywhere", func(t *testing.T) {
		resolver, _ := newTestResolver(t)
		assert.ErrorIs(t, resolver.Authorize(ctx, "stranger", authz.ActionViewCampaign, campaignScope), authz.ErrDenied)
	})

	t.Run("unknown_action", func(t *testing.T) {
		resolver, store := newTestResolver(t)
		setRole(store, groupScope, "user-1", authz.RoleOwner)
		assert.ErrorIs(t, resolver.Authorize(ctx, "user-1", authz.Action("launch_rockets"), groupScope), authz.ErrDenied)
	})

	t.Run("unknown_scope", func(t *testing.T) {
		resolver, _ := newTestResolver(t)
		missing := authz.Scope{Kind: authz.ScopeGroup, ID: "no-such-group"}
		assert.ErrorIs(t, resolver.Authorize(ctx, "user-1", authz.ActionViewCampaign, missing), authz.ErrDenied)
	})

	t.Run("chain_store_error", func(t *testing.T) {
		resolver, store := newTestResolver(t)
		setRole(store, groupScope, "user-1", authz.RoleOwner)
		store.chainErr = errors.New("connection reset")
		assert.ErrorIs(t, resolver.Authorize(ctx, "user-1", authz.ActionViewCampaign, groupScope), authz.ErrDenied)
	})

	t.Run("role_store_error", func(t *testing.T) {
		resolver, store := newTestResolver(t)
		setRole(store, groupScope, "user-1", authz.RoleOwner)
		store.roleErr = errors.New("connection reset")
		assert.ErrorIs(t, resolver.Authorize(ctx, "user-1", authz.ActionViewCampaign, groupScope), authz.ErrDenied)
	})
}

// # Role Assignment

/*
TestAssignRole_GMCeiling verifies a GM may hand out Player and Spectator but
nothing above, and that the failure is InsufficientPrivilege rather than a
plain deny.
*/
func TestAssignRole_GMCeiling(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()
	setRole(store, groupScope, "gm-1", authz.RoleGM)

	require.NoError(t, resolver.AssignRole(ctx, "gm-1", groupScope, "newbie", authz.RolePlayer))
	require.NoError(t, resolver.AssignRole(ctx, "gm-1", groupScope, "lurker", authz.RoleSpectator))
	assert.Equal(t, authz.RolePlayer, store.roles[roleKey(groupScope, "newbie")])

	err := resolver.AssignRole(ctx, "gm-1", groupScope, "rival", authz.RoleGM)
	assert.True(t, apperr.IsCode(err, apperr.CodeInsufficientPrivilege))
	err = resolver.AssignRole(ctx, "gm-1", groupScope, "rival", authz.RoleOwner)
	assert.True(t, apperr.IsCode(err, apperr.CodeInsufficientPrivilege))
	_, assigned := store.roles[roleKey(groupScope, "rival")]
	assert.False(t, assigned)
}

func TestAssignRole_OwnerAssignsGM(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()
	setRole(store, groupScope, "owner-1", authz.RoleOwner)

	require.NoError(t, resolver.AssignRole(ctx, "owner-1", groupScope, "gm-2", authz.RoleGM))
	assert.Equal(t, authz.RoleGM, store.roles[roleKey(groupScope, "gm-2")])
}

func TestAssignRole_PlayerCannotAssign(t *testing.T) {
	resolver, store := newTestResolver(t)
	setRole(store, groupScope, "player-1", authz.RolePlayer)

	err := resolver.AssignRole(context.Background(), "player-1", groupScope, "friend", authz.RoleSpectator)
	assert.ErrorIs(t, err, authz.ErrDenied)
}

func TestAssignRole_RoleMustFitScope(t *testing.T) {
	resolver, store := newTestResolver(t)
	setRole(store, groupScope, "owner-1", authz.RoleOwner)

	err := resolver.AssignRole(context.Background(), "owner-1", groupScope, "friend", authz.RoleAdmin)
	assert.True(t, apperr.IsCode(err, apperr.CodeUnprocessable))
}

// # Grant Management

func TestAddGrant(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()
	setRole(store, groupScope, "gm-1", authz.RoleGM)
	setRole(store, groupScope, "player-1", authz.RolePlayer)

	require.NoError(t, resolver.AddGrant(ctx, "gm-1", groupScope, "player-1", authz.ActionBypassFog))
	assert.NoError(t, resolver.Authorize(ctx, "player-1", authz.ActionBypassFog, campaignScope))

	require.NoError(t, resolver.RemoveGrant(ctx, "gm-1", groupScope, "player-1", authz.ActionBypassFog))
	assert.ErrorIs(t, resolver.Authorize(ctx, "player-1", authz.ActionBypassFog, campaignScope), authz.ErrDenied)
}

func TestAddGrant_StructuralActionRejected(t *testing.T) {
	resolver, store := newTestResolver(t)
	setRole(store, groupScope, "owner-1", authz.RoleOwner)

	err := resolver.AddGrant(context.Background(), "owner-1", groupScope, "player-1", authz.ActionDeleteGroup)
	assert.True(t, apperr.IsCode(err, apperr.CodeUnprocessable))
}

// # Hierarchy

func TestCreateOrganization(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()

	org, err := resolver.CreateOrganization(ctx, "founder", "Night Owls  ")
	require.NoError(t, err)
	assert.Equal(t, "Night Owls", org.Name)
	assert.Equal(t, "night-owls", org.Slug)
	assert.Equal(t, authz.RoleOwner, store.roles[roleKey(authz.Scope{Kind: authz.ScopeOrganization, ID: org.ID}, "founder")])
}

func TestCreateGroup_InOrganization(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()

	// A stranger to the org cannot create a group inside it.
	orgID := "org-1"
	_, err := resolver.CreateGroup(ctx, "stranger", "Raiders", &orgID)
	require.ErrorIs(t, err, authz.ErrDenied)

	setRole(store, orgScope, "member-1", authz.RoleMember)
	group, err := resolver.CreateGroup(ctx, "member-1", "Raiders", &orgID)
	require.NoError(t, err)
	assert.Equal(t, &orgID, group.OrganizationID)
	assert.Equal(t, authz.RoleOwner, store.roles[roleKey(authz.Scope{Kind: authz.ScopeGroup, ID: group.ID}, "member-1")])
}

func TestCreateGroup_FreeStanding(t *testing.T) {
	resolver, store := newTestResolver(t)

	group, err := resolver.CreateGroup(context.Background(), "anyone", "Casual Friday", nil)
	require.NoError(t, err)
	assert.Nil(t, group.OrganizationID)
	assert.Equal(t, authz.RoleOwner, store.roles[roleKey(authz.Scope{Kind: authz.ScopeGroup, ID: group.ID}, "anyone")])
}

func TestCreateCampaign(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()
	setRole(store, groupScope, "gm-1", authz.RoleGM)
	setRole(store, groupScope, "player-1", authz.RolePlayer)

	campaign, err := resolver.CreateCampaign(ctx, "gm-1", "group-1", "Curse of the Amber Crown")
	require.NoError(t, err)
	assert.Equal(t, "group-1", campaign.GroupID)
	assert.Equal(t, "curse-of-the-amber-crown", campaign.Slug)

	_, err = resolver.CreateCampaign(ctx, "player-1", "group-1", "Side Quest")
	assert.ErrorIs(t, err, authz.ErrDenied)
}
