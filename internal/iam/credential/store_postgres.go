// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package credential

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcanumhq/arcanum/internal/platform/apperr"
	"github.com/arcanumhq/arcanum/internal/platform/dberr"
)

// PostgresStore persists accounts in iam.account.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore builds a PostgresStore on the shared pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const userColumns = `
	id, email, displayname, passwordhash, emailverified,
	issuspended, isactive, createdat, updatedat`

func scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash,
		&user.EmailVerified, &user.Suspended, &user.Active,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

/*
Create inserts a new account row.

Parameters:
  - ctx: request context.
  - user: account to persist; timestamps are filled in from the returned row.

Returns:
  - error: apperr.Conflict when the email is already registered.
*/
func (store *PostgresStore) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO iam.account
			(id, email, displayname, passwordhash, emailverified, issuspended, isactive)
		VALUES ($1, $2, $3, $4, $5, false, true)
		RETURNING createdat, updatedat`

	err := store.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.DisplayName, user.PasswordHash, user.EmailVerified,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return dberr.Wrap(err, "account_insert")
	}
	user.Suspended = false
	user.Active = true
	return nil
}

func (store *PostgresStore) FindByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM iam.account WHERE id = $1 AND deletedat IS NULL`

	user, err := scanUser(store.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "account_select")
	}
	return user, nil
}

func (store *PostgresStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM iam.account WHERE email = $1 AND deletedat IS NULL`

	user, err := scanUser(store.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, dberr.Wrap(err, "account_select_email")
	}
	return user, nil
}

func (store *PostgresStore) MarkEmailVerified(ctx context.Context, id string) error {
	query := `
		UPDATE iam.account
		SET emailverified = true, updatedat = now()
		WHERE id = $1 AND deletedat IS NULL`

	tag, err := store.pool.Exec(ctx, query, id)
	if err != nil {
		return dberr.Wrap(err, "account_mark_verified")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

/*
UpdatePassword swaps the password hash with a compare-and-set on the current
hash. Two concurrent changes can both pass verification; only the first
UPDATE matches, the loser gets apperr.Conflict and must retry against the new
credential state.
*/
func (store *PostgresStore) UpdatePassword(ctx context.Context, id string, expectedHash *string, newHash string) error {
	query := `
		UPDATE iam.account
		SET passwordhash = $3, updatedat = now()
		WHERE id = $1
		  AND passwordhash IS NOT DISTINCT FROM $2
		  AND deletedat IS NULL`

	tag, err := store.pool.Exec(ctx, query, id, expectedHash, newHash)
	if err != nil {
		return dberr.Wrap(err, "account_update_password")
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a lost race from a missing account.
		var exists bool
		checkErr := store.pool.QueryRow(ctx,
			`SELECT true FROM iam.account WHERE id = $1 AND deletedat IS NULL`, id,
		).Scan(&exists)
		if checkErr != nil {
			if errors.Is(checkErr, pgx.ErrNoRows) {
				return dberr.ErrNotFound
			}
			return dberr.Wrap(checkErr, "account_update_password_check")
		}
		return apperr.Conflict("Password was changed by another request")
	}
	return nil
}

func (store *PostgresStore) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE iam.account
		SET isactive = false, deletedat = now(), updatedat = now()
		WHERE id = $1 AND deletedat IS NULL`

	tag, err := store.pool.Exec(ctx, query, id)
	if err != nil {
		return dberr.Wrap(err, "account_soft_delete")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}
