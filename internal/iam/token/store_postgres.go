// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements [Store] on the iam.credentialtoken table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed capability token store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

/*
Insert persists a freshly issued token record.
*/
func (store *PostgresStore) Insert(context context.Context, record *Token) error {
	const query = `
		INSERT INTO iam.credentialtoken (id, kind, userid, tokenhash, boundip, expiresat, createdat)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := store.pool.Exec(context, query,
		record.ID,
		string(record.Kind),
		record.UserID,
		record.TokenHash,
		record.BoundIP,
		record.ExpiresAt,
		record.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_token_insert_failed: %w", err)
	}

	return nil
}

/*
Consume atomically marks the matching unused, unexpired token as used.

Description: The UPDATE's WHERE clause is the compare-and-set — only a row
with usedat IS NULL can transition, so exactly one concurrent caller wins.
The IP binding rides inside the same condition, so a submission from the
wrong address never burns the legitimate holder's token. When no row
transitions, a follow-up read classifies the failure as NotFound,
AlreadyUsed, or Expired.
*/
func (store *PostgresStore) Consume(context context.Context, kind Kind, tokenHash, requestIP string) (*Token, error) {
	const consumeQuery = `
		UPDATE iam.credentialtoken
		SET usedat = now()
		WHERE kind = $1 AND tokenhash = $2 AND usedat IS NULL AND expiresat > now()
			AND (boundip = '' OR boundip = $3)
		RETURNING id, kind, userid, tokenhash, boundip, expiresat, usedat, createdat`

	record := &Token{}
	var kindValue string
	err := store.pool.QueryRow(context, consumeQuery, string(kind), tokenHash, requestIP).Scan(
		&record.ID,
		&kindValue,
		&record.UserID,
		&record.TokenHash,
		&record.BoundIP,
		&record.ExpiresAt,
		&record.UsedAt,
		&record.CreatedAt,
	)
	if err == nil {
		record.Kind = Kind(kindValue)
		return record, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres_token_consume_failed: %w", err)
	}

	// CAS missed. Classify: IP-mismatched, used, expired, or simply unknown.
	const classifyQuery = `
		SELECT usedat, expiresat, boundip
		FROM iam.credentialtoken
		WHERE kind = $1 AND tokenhash = $2`

	var usedAt *time.Time
	var expiresAt time.Time
	var boundIP string
	err = store.pool.QueryRow(context, classifyQuery, string(kind), tokenHash).Scan(&usedAt, &expiresAt, &boundIP)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("postgres_token_classify_failed: %w", err)
	}

	// A bound token redeemed from the wrong address is indistinguishable
	// from an unknown one, and stays unburned for the legitimate holder.
	if boundIP != "" && boundIP != requestIP {
		return nil, ErrNotFound
	}
	if usedAt != nil {
		return nil, ErrAlreadyUsed
	}
	if !expiresAt.After(time.Now()) {
		return nil, ErrExpired
	}

	// The row reappeared as consumable between the two statements — a lost
	// race against a concurrent invalidation. Treat as already used.
	return nil, ErrAlreadyUsed
}

/*
InvalidateAll marks every outstanding token of the kind for the user as used.
*/
func (store *PostgresStore) InvalidateAll(context context.Context, kind Kind, userID string) error {
	const query = `
		UPDATE iam.credentialtoken
		SET usedat = now()
		WHERE kind = $1 AND userid = $2 AND usedat IS NULL`

	if _, err := store.pool.Exec(context, query, string(kind), userID); err != nil {
		return fmt.Errorf("postgres_token_invalidate_all_failed: %w", err)
	}

	return nil
}
