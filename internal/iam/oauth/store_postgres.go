// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package oauth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcanumhq/arcanum/internal/platform/dberr"
)

// PostgresStore persists provider connections in iam.oauthconnection.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

// FindConnection implements [Store].
func (store *PostgresStore) FindConnection(ctx context.Context, provider, providerUserID string) (*Connection, error) {
	query := `
		SELECT id, userid, provider, provideruserid, createdat
		FROM iam.oauthconnection
		WHERE provider = $1 AND provideruserid = $2`

	connection := &Connection{}
	err := store.pool.QueryRow(ctx, query, provider, providerUserID).Scan(
		&connection.ID, &connection.UserID, &connection.Provider,
		&connection.ProviderUserID, &connection.CreatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "oauthconnection_find")
	}
	return connection, nil
}

// Insert implements [Store]. The (provider, provideruserid) unique index
// surfaces a concurrent double-link as a conflict.
func (store *PostgresStore) Insert(ctx context.Context, connection *Connection) error {
	query := `
		INSERT INTO iam.oauthconnection (id, userid, provider, provideruserid)
		VALUES ($1, $2, $3, $4)
		RETURNING createdat`

	err := store.pool.QueryRow(ctx, query,
		connection.ID, connection.UserID, connection.Provider, connection.ProviderUserID,
	).Scan(&connection.CreatedAt)
	if err != nil {
		return dberr.Wrap(err, "oauthconnection_insert")
	}
	return nil
}

// ListByUser implements [Store].
func (store *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Connection, error) {
	query := `
		SELECT id, userid, provider, provideruserid, createdat
		FROM iam.oauthconnection
		WHERE userid = $1
		ORDER BY createdat`

	rows, err := store.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, dberr.Wrap(err, "oauthconnection_list")
	}
	defer rows.Close()

	var connections []Connection
	for rows.Next() {
		var connection Connection
		err := rows.Scan(
			&connection.ID, &connection.UserID, &connection.Provider,
			&connection.ProviderUserID, &connection.CreatedAt,
		)
		if err != nil {
			return nil, dberr.Wrap(err, "oauthconnection_scan")
		}
		connections = append(connections, connection)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "oauthconnection_rows")
	}
	return connections, nil
}

// Delete implements [Store]. Scoping by userid keeps one account from
// unlinking another's connection.
func (store *PostgresStore) Delete(ctx context.Context, userID, connectionID string) error {
	query := `DELETE FROM iam.oauthconnection WHERE id = $1 AND userid = $2`

	tag, err := store.pool.Exec(ctx, query, connectionID, userID)
	if err != nil {
		return dberr.Wrap(err, "oauthconnection_delete")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}
