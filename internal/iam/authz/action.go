// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package authz

// Action is something a principal asks to do against a scope.
type Action string

// Group/campaign structural actions. These verdicts are final: no grant can
// reach them.
const (
	ActionDeleteGroup       Action = "delete_group"
	ActionTransferOwnership Action = "transfer_ownership"
	ActionEditGroupSettings Action = "edit_group_settings"
	ActionChangeMemberRoles Action = "change_member_roles"
)

// Content and session actions. These are the only actions the grant table
// may add on top of a role.
const (
	ActionManageNPCs      Action = "manage_npcs"
	ActionManageContent   Action = "manage_content"
	ActionManageAudio     Action = "manage_audio"
	ActionBypassFog       Action = "bypass_fog"
	ActionManageCampaigns Action = "manage_campaigns"
	ActionInvitePlayers   Action = "invite_players"
)

// Read/participation actions.
const (
	ActionViewCampaign Action = "view_campaign"
	ActionJoinSession  Action = "join_session"
)

// Organization-wide actions.
const (
	ActionManageBilling      Action = "manage_billing"
	ActionEditOrgSettings    Action = "edit_org_settings"
	ActionDeleteOrganization Action = "delete_organization"
	ActionManageOrgMembers   Action = "manage_org_members"
	ActionCreateGroup        Action = "create_group"
	ActionViewOrganization   Action = "view_organization"
)

// Category routes an action to the scope level whose roles decide it.
type Category int

const (
	// CategoryGroup actions are decided by the principal's group role,
	// whether the resource is the group itself or a campaign inside it.
	CategoryGroup Category = iota

	// CategoryOrganization actions are decided by the organization role.
	CategoryOrganization
)

// actionCategories routes every known action. An action missing from this
// table is unknown and denied outright.
var actionCategories = map[Action]Category{
	ActionDeleteGroup:       CategoryGroup,
	ActionTransferOwnership: CategoryGroup,
	ActionEditGroupSettings: CategoryGroup,
	ActionChangeMemberRoles: CategoryGroup,
	ActionManageNPCs:        CategoryGroup,
	ActionManageContent:     CategoryGroup,
	ActionManageAudio:       CategoryGroup,
	ActionBypassFog:         CategoryGroup,
	ActionManageCampaigns:   CategoryGroup,
	ActionInvitePlayers:     CategoryGroup,
	ActionViewCampaign:      CategoryGroup,
	ActionJoinSession:       CategoryGroup,

	ActionManageBilling:      CategoryOrganization,
	ActionEditOrgSettings:    CategoryOrganization,
	ActionDeleteOrganization: CategoryOrganization,
	ActionManageOrgMembers:   CategoryOrganization,
	ActionCreateGroup:        CategoryOrganization,
	ActionViewOrganization:   CategoryOrganization,
}

// grantableActions is the closed set a Grant row may name. Grants touching
// anything else are rejected at write time and ignored at check time.
var grantableActions = map[Action]struct{}{
	ActionManageNPCs:      {},
	ActionManageContent:   {},
	ActionManageAudio:     {},
	ActionBypassFog:       {},
	ActionManageCampaigns: {},
	ActionInvitePlayers:   {},
}

// Grantable reports whether the grant table may carry this action.
func Grantable(action Action) bool {
	_, ok := grantableActions[action]
	return ok
}

// KnownAction reports whether the action exists at all.
func KnownAction(raw string) bool {
	_, ok := actionCategories[Action(raw)]
	return ok
}
