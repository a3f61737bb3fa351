// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package authz

// Verdict is the matrix outcome for one (role, action) pair.
type Verdict int

const (
	// VerdictDeny is final: no grant can reopen it. Structural actions
	// below the required role land here, and so does ActionManageCampaigns
	// for players, which keeps campaign administration above the
	// player/spectator line no matter what grants exist.
	VerdictDeny Verdict = iota

	// VerdictGrantable means the role alone does not allow the action but
	// an explicit grant row on the scope chain may.
	VerdictGrantable

	// VerdictAllow passes on the role alone.
	VerdictAllow
)

// groupMatrix is the static (role, action) table for group-category
// actions. Entries absent from a role's row (and every unknown action)
// resolve to VerdictDeny.
var groupMatrix = map[Role]map[Action]Verdict{
	RoleOwner: {
		ActionDeleteGroup:       VerdictAllow,
		ActionTransferOwnership: VerdictAllow,
		ActionEditGroupSettings: VerdictAllow,
		ActionChangeMemberRoles: VerdictAllow,
		ActionManageNPCs:        VerdictAllow,
		ActionManageContent:     VerdictAllow,
		ActionManageAudio:       VerdictAllow,
		ActionBypassFog:         VerdictAllow,
		ActionManageCampaigns:   VerdictAllow,
		ActionInvitePlayers:     VerdictAllow,
		ActionViewCampaign:      VerdictAllow,
		ActionJoinSession:       VerdictAllow,
	},
	RoleGM: {
		ActionEditGroupSettings: VerdictAllow,
		ActionChangeMemberRoles: VerdictAllow,
		ActionManageNPCs:        VerdictAllow,
		ActionManageContent:     VerdictAllow,
		ActionManageAudio:       VerdictAllow,
		ActionBypassFog:         VerdictAllow,
		ActionManageCampaigns:   VerdictAllow,
		ActionInvitePlayers:     VerdictAllow,
		ActionViewCampaign:      VerdictAllow,
		ActionJoinSession:       VerdictAllow,
	},
	RolePlayer: {
		ActionManageNPCs:    VerdictGrantable,
		ActionManageContent: VerdictGrantable,
		ActionManageAudio:   VerdictGrantable,
		ActionBypassFog:     VerdictGrantable,
		ActionInvitePlayers: VerdictGrantable,
		ActionViewCampaign:  VerdictAllow,
		ActionJoinSession:   VerdictAllow,
	},
	RoleSpectator: {
		ActionViewCampaign: VerdictAllow,
		ActionJoinSession:  VerdictGrantable,
	},
}

// orgMatrix is the static table for organization-category actions.
var orgMatrix = map[Role]map[Action]Verdict{
	RoleOwner: {
		ActionManageBilling:      VerdictAllow,
		ActionEditOrgSettings:    VerdictAllow,
		ActionDeleteOrganization: VerdictAllow,
		ActionManageOrgMembers:   VerdictAllow,
		ActionCreateGroup:        VerdictAllow,
		ActionViewOrganization:   VerdictAllow,
	},
	RoleAdmin: {
		ActionEditOrgSettings:  VerdictAllow,
		ActionManageOrgMembers: VerdictAllow,
		ActionCreateGroup:      VerdictAllow,
		ActionViewOrganization: VerdictAllow,
	},
	RoleMember: {
		ActionCreateGroup:      VerdictAllow,
		ActionViewOrganization: VerdictAllow,
	},
}

// lookupVerdict resolves the matrix cell for a role at the action's level.
// Unknown roles and unknown actions deny.
func lookupVerdict(category Category, role Role, action Action) Verdict {
	var table map[Role]map[Action]Verdict
	switch category {
	case CategoryGroup:
		table = groupMatrix
	case CategoryOrganization:
		table = orgMatrix
	default:
		return VerdictDeny
	}

	row, ok := table[role]
	if !ok {
		return VerdictDeny
	}
	return row[action] // zero value is VerdictDeny
}
