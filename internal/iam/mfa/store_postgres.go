// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package mfa

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcanumhq/arcanum/internal/platform/dberr"
	"github.com/arcanumhq/arcanum/pkg/uuid"
)

// PostgresStore persists factors in iam.mfafactor and recovery codes in
// iam.recoverycode.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore builds a PostgresStore on the shared pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const factorColumns = `
	id, userid, method, verified, isprimary, secretbase32, lastcounter,
	destination, credentialid, publickey, signcount, createdat, updatedat`

func scanFactor(row pgx.Row) (*Factor, error) {
	var factor Factor
	err := row.Scan(
		&factor.ID, &factor.UserID, &factor.Method, &factor.Verified,
		&factor.IsPrimary, &factor.SecretBase32, &factor.LastCounter,
		&factor.Destination, &factor.CredentialID, &factor.PublicKey,
		&factor.SignCount, &factor.CreatedAt, &factor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &factor, nil
}

func (store *PostgresStore) InsertFactor(ctx context.Context, factor *Factor) error {
	query := `
		INSERT INTO iam.mfafactor
			(id, userid, method, verified, isprimary, secretbase32,
			 lastcounter, destination, credentialid, publickey, signcount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING createdat, updatedat`

	err := store.pool.QueryRow(ctx, query,
		factor.ID, factor.UserID, factor.Method, factor.Verified,
		factor.IsPrimary, factor.SecretBase32, factor.LastCounter,
		factor.Destination, factor.CredentialID, factor.PublicKey, factor.SignCount,
	).Scan(&factor.CreatedAt, &factor.UpdatedAt)
	if err != nil {
		return dberr.Wrap(err, "mfa_factor_insert")
	}
	return nil
}

func (store *PostgresStore) FindFactor(ctx context.Context, userID string, method Method) (*Factor, error) {
	query := `SELECT ` + factorColumns + ` FROM iam.mfafactor WHERE userid = $1 AND method = $2`

	factor, err := scanFactor(store.pool.QueryRow(ctx, query, userID, method))
	if err != nil {
		return nil, dberr.Wrap(err, "mfa_factor_select")
	}
	return factor, nil
}

func (store *PostgresStore) ListFactors(ctx context.Context, userID string) ([]Factor, error) {
	query := `
		SELECT ` + factorColumns + `
		FROM iam.mfafactor
		WHERE userid = $1 AND verified
		ORDER BY createdat`

	rows, err := store.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, dberr.Wrap(err, "mfa_factor_list")
	}
	defer rows.Close()

	var factors []Factor
	for rows.Next() {
		factor, err := scanFactor(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "mfa_factor_scan")
		}
		factors = append(factors, *factor)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "mfa_factor_rows")
	}
	return factors, nil
}

func (store *PostgresStore) CountVerified(ctx context.Context, userID string) (int, error) {
	var count int
	err := store.pool.QueryRow(ctx,
		`SELECT count(*) FROM iam.mfafactor WHERE userid = $1 AND verified`, userID,
	).Scan(&count)
	if err != nil {
		return 0, dberr.Wrap(err, "mfa_factor_count")
	}
	return count, nil
}

/*
AdvanceTOTPCounter is the replay gate: the conditional update only matches
when the accepted time-step is strictly ahead of the stored one, so two
submissions of the same code produce exactly one winner.
*/
func (store *PostgresStore) AdvanceTOTPCounter(ctx context.Context, factorID string, counter int64) error {
	query := `
		UPDATE iam.mfafactor
		SET lastcounter = $2, updatedat = now()
		WHERE id = $1 AND lastcounter < $2`

	tag, err := store.pool.Exec(ctx, query, factorID, counter)
	if err != nil {
		return dberr.Wrap(err, "mfa_counter_advance")
	}
	if tag.RowsAffected() == 0 {
		return ErrCodeReplayed
	}
	return nil
}

// AdvanceSignCount is the WebAuthn clone detector: a signature counter that
// fails to strictly increase means a second authenticator holds the key.
func (store *PostgresStore) AdvanceSignCount(ctx context.Context, factorID string, signCount uint32) error {
	query := `
		UPDATE iam.mfafactor
		SET signcount = $2, updatedat = now()
		WHERE id = $1 AND signcount < $2`

	tag, err := store.pool.Exec(ctx, query, factorID, signCount)
	if err != nil {
		return dberr.Wrap(err, "mfa_signcount_advance")
	}
	if tag.RowsAffected() == 0 {
		return ErrCounterCloned
	}
	return nil
}

// SetPrimary clears the flag on every sibling and sets it on the chosen
// factor in one transaction, so the partial unique index never sees two
// primaries.
func (store *PostgresStore) SetPrimary(ctx context.Context, userID, factorID string) error {
	transaction, err := store.pool.Begin(ctx)
	if err != nil {
		return dberr.Wrap(err, "mfa_set_primary_begin")
	}
	defer transaction.Rollback(ctx)

	_, err = transaction.Exec(ctx,
		`UPDATE iam.mfafactor SET isprimary = false, updatedat = now()
		 WHERE userid = $1 AND isprimary`, userID)
	if err != nil {
		return dberr.Wrap(err, "mfa_clear_primary")
	}

	tag, err := transaction.Exec(ctx,
		`UPDATE iam.mfafactor SET isprimary = true, updatedat = now()
		 WHERE id = $1 AND userid = $2 AND verified`, factorID, userID)
	if err != nil {
		return dberr.Wrap(err, "mfa_set_primary")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}

	if err := transaction.Commit(ctx); err != nil {
		return dberr.Wrap(err, "mfa_set_primary_commit")
	}
	return nil
}

/*
DeleteFactor removes the factor and, when it was the user's last verified
one, purges the recovery batch in the same transaction. A concurrent
enrollment therefore never sees a window where its freshly minted batch can
be swept away by a trailing cleanup.
*/
func (store *PostgresStore) DeleteFactor(ctx context.Context, userID, factorID string) (int, error) {
	transaction, err := store.pool.Begin(ctx)
	if err != nil {
		return 0, dberr.Wrap(err, "mfa_factor_delete_begin")
	}
	defer transaction.Rollback(ctx)

	tag, err := transaction.Exec(ctx,
		`DELETE FROM iam.mfafactor WHERE id = $1 AND userid = $2`, factorID, userID)
	if err != nil {
		return 0, dberr.Wrap(err, "mfa_factor_delete")
	}
	if tag.RowsAffected() == 0 {
		return 0, dberr.ErrNotFound
	}

	var remaining int
	err = transaction.QueryRow(ctx,
		`SELECT count(*) FROM iam.mfafactor WHERE userid = $1 AND verified`, userID,
	).Scan(&remaining)
	if err != nil {
		return 0, dberr.Wrap(err, "mfa_factor_delete_count")
	}

	if remaining == 0 {
		if _, err := transaction.Exec(ctx,
			`DELETE FROM iam.recoverycode WHERE userid = $1`, userID); err != nil {
			return 0, dberr.Wrap(err, "recovery_delete")
		}
	}

	if err := transaction.Commit(ctx); err != nil {
		return 0, dberr.Wrap(err, "mfa_factor_delete_commit")
	}
	return remaining, nil
}

// # Recovery Codes

// ReplaceRecoveryCodes swaps the whole batch inside one transaction: the old
// codes stay valid until the instant the new ones exist.
func (store *PostgresStore) ReplaceRecoveryCodes(ctx context.Context, userID string, hashes []string) error {
	transaction, err := store.pool.Begin(ctx)
	if err != nil {
		return dberr.Wrap(err, "recovery_replace_begin")
	}
	defer transaction.Rollback(ctx)

	if _, err := transaction.Exec(ctx,
		`DELETE FROM iam.recoverycode WHERE userid = $1`, userID); err != nil {
		return dberr.Wrap(err, "recovery_clear")
	}

	for _, hash := range hashes {
		if _, err := transaction.Exec(ctx,
			`INSERT INTO iam.recoverycode (id, userid, codehash) VALUES ($1, $2, $3)`,
			uuid.Must(), userID, hash); err != nil {
			return dberr.Wrap(err, "recovery_insert")
		}
	}

	if err := transaction.Commit(ctx); err != nil {
		return dberr.Wrap(err, "recovery_replace_commit")
	}
	return nil
}

/*
ConsumeRecoveryCode burns a code with a single conditional update: the
`usedat IS NULL` predicate makes each code single-use even under concurrent
submission of the same code.
*/
func (store *PostgresStore) ConsumeRecoveryCode(ctx context.Context, userID, hash string) (int, error) {
	query := `
		UPDATE iam.recoverycode
		SET usedat = now()
		WHERE userid = $1 AND codehash = $2 AND usedat IS NULL`

	tag, err := store.pool.Exec(ctx, query, userID, hash)
	if err != nil {
		return 0, dberr.Wrap(err, "recovery_consume")
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrRecoveryCodeInvalid
	}
	return store.CountRecoveryCodes(ctx, userID)
}

func (store *PostgresStore) CountRecoveryCodes(ctx context.Context, userID string) (int, error) {
	var count int
	err := store.pool.QueryRow(ctx,
		`SELECT count(*) FROM iam.recoverycode WHERE userid = $1 AND usedat IS NULL`, userID,
	).Scan(&count)
	if err != nil {
		return 0, dberr.Wrap(err, "recovery_count")
	}
	return count, nil
}
