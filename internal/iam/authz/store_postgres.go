// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package authz

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcanumhq/arcanum/internal/platform/dberr"
	"github.com/arcanumhq/arcanum/pkg/uuid"
)

// PostgresStore persists the hierarchy in realm.organization,
// realm.grouproom, and realm.campaign, plus realm.roleassignment and
// realm.permissiongrant.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore builds a PostgresStore on the shared pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

/*
ResolveChain walks the nullable parent links upward. At most two queries
run: a campaign lookup and a group lookup; organizations are roots.
*/
func (store *PostgresStore) ResolveChain(ctx context.Context, scope Scope) (Chain, error) {
	chain := Chain{scope}

	current := scope
	if current.Kind == ScopeCampaign {
		var groupID string
		err := store.pool.QueryRow(ctx,
			`SELECT groupid FROM realm.campaign WHERE id = $1`, current.ID,
		).Scan(&groupID)
		if err != nil {
			return nil, dberr.Wrap(err, "campaign_select")
		}
		current = Scope{Kind: ScopeGroup, ID: groupID}
		chain = append(chain, current)
	}

	if current.Kind == ScopeGroup {
		var orgID *string
		err := store.pool.QueryRow(ctx,
			`SELECT organizationid FROM realm.grouproom WHERE id = $1`, current.ID,
		).Scan(&orgID)
		if err != nil {
			return nil, dberr.Wrap(err, "group_select")
		}
		if orgID != nil {
			chain = append(chain, Scope{Kind: ScopeOrganization, ID: *orgID})
		}
		return chain, nil
	}

	if current.Kind == ScopeOrganization {
		var exists bool
		err := store.pool.QueryRow(ctx,
			`SELECT true FROM realm.organization WHERE id = $1`, current.ID,
		).Scan(&exists)
		if err != nil {
			return nil, dberr.Wrap(err, "organization_select")
		}
	}
	return chain, nil
}

func (store *PostgresStore) FindRole(ctx context.Context, scope Scope, userID string) (Role, error) {
	var role Role
	err := store.pool.QueryRow(ctx,
		`SELECT role FROM realm.roleassignment
		 WHERE scopekind = $1 AND scopeid = $2 AND userid = $3`,
		scope.Kind, scope.ID, userID,
	).Scan(&role)
	if err != nil {
		return "", dberr.Wrap(err, "role_select")
	}
	return role, nil
}

// UpsertRole relies on the (scopekind, scopeid, userid) uniqueness so a
// principal holds exactly one role per scope.
func (store *PostgresStore) UpsertRole(ctx context.Context, scope Scope, userID string, role Role) error {
	query := `
		INSERT INTO realm.roleassignment (id, scopekind, scopeid, userid, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scopekind, scopeid, userid)
		DO UPDATE SET role = EXCLUDED.role, updatedat = now()`

	if _, err := store.pool.Exec(ctx, query, uuid.Must(), scope.Kind, scope.ID, userID, role); err != nil {
		return dberr.Wrap(err, "role_upsert")
	}
	return nil
}

func (store *PostgresStore) DeleteRole(ctx context.Context, scope Scope, userID string) error {
	tag, err := store.pool.Exec(ctx,
		`DELETE FROM realm.roleassignment
		 WHERE scopekind = $1 AND scopeid = $2 AND userid = $3`,
		scope.Kind, scope.ID, userID)
	if err != nil {
		return dberr.Wrap(err, "role_delete")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

// HasGrant checks every scope on the chain in one query: a grant at the
// group level covers the campaigns inside it.
func (store *PostgresStore) HasGrant(ctx context.Context, chain Chain, userID string, action Action) (bool, error) {
	kinds := make([]string, 0, len(chain))
	ids := make([]string, 0, len(chain))
	for _, scope := range chain {
		kinds = append(kinds, string(scope.Kind))
		ids = append(ids, scope.ID)
	}

	query := `
		SELECT EXISTS (
			SELECT 1
			FROM realm.permissiongrant
			WHERE userid = $1 AND action = $2
			  AND (scopekind, scopeid) IN (
				SELECT unnest($3::text[]), unnest($4::text[])
			  )
		)`

	var granted bool
	err := store.pool.QueryRow(ctx, query, userID, action, kinds, ids).Scan(&granted)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false, dberr.Wrap(err, "grant_select")
	}
	return granted, nil
}

func (store *PostgresStore) PutGrant(ctx context.Context, scope Scope, userID string, action Action) error {
	query := `
		INSERT INTO realm.permissiongrant (id, scopekind, scopeid, userid, action)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scopekind, scopeid, userid, action) DO NOTHING`

	if _, err := store.pool.Exec(ctx, query, uuid.Must(), scope.Kind, scope.ID, userID, action); err != nil {
		return dberr.Wrap(err, "grant_insert")
	}
	return nil
}

func (store *PostgresStore) DeleteGrant(ctx context.Context, scope Scope, userID string, action Action) error {
	tag, err := store.pool.Exec(ctx,
		`DELETE FROM realm.permissiongrant
		 WHERE scopekind = $1 AND scopeid = $2 AND userid = $3 AND action = $4`,
		scope.Kind, scope.ID, userID, action)
	if err != nil {
		return dberr.Wrap(err, "grant_delete")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

// # Hierarchy Nodes

func (store *PostgresStore) CreateOrganization(ctx context.Context, org *Organization) error {
	err := store.pool.QueryRow(ctx,
		`INSERT INTO realm.organization (id, name, slug)
		 VALUES ($1, $2, $3) RETURNING createdat`,
		org.ID, org.Name, org.Slug,
	).Scan(&org.CreatedAt)
	if err != nil {
		return dberr.Wrap(err, "organization_insert")
	}
	return nil
}

func (store *PostgresStore) CreateGroup(ctx context.Context, group *Group) error {
	err := store.pool.QueryRow(ctx,
		`INSERT INTO realm.grouproom (id, organizationid, name, slug)
		 VALUES ($1, $2, $3, $4) RETURNING createdat`,
		group.ID, group.OrganizationID, group.Name, group.Slug,
	).Scan(&group.CreatedAt)
	if err != nil {
		return dberr.Wrap(err, "group_insert")
	}
	return nil
}

func (store *PostgresStore) CreateCampaign(ctx context.Context, campaign *Campaign) error {
	err := store.pool.QueryRow(ctx,
		`INSERT INTO realm.campaign (id, groupid, name, slug)
		 VALUES ($1, $2, $3, $4) RETURNING createdat`,
		campaign.ID, campaign.GroupID, campaign.Name, campaign.Slug,
	).Scan(&campaign.CreatedAt)
	if err != nil {
		return dberr.Wrap(err, "campaign_insert")
	}
	return nil
}
