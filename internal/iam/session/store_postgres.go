// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcanumhq/arcanum/internal/platform/dberr"
)

// PostgresStore persists sessions in iam.session.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore builds a PostgresStore on the shared pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const sessionColumns = `
	id, userid, tokenhash, mfaverified, isrevoked,
	expiresat, lastactiveat, devicename, useragent, ipaddress, createdat`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.UserID, &s.TokenHash, &s.MFAVerified, &s.Revoked,
		&s.ExpiresAt, &s.LastActiveAt, &s.DeviceName, &s.UserAgent,
		&s.IPAddress, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (store *PostgresStore) Insert(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO iam.session
			(id, userid, tokenhash, mfaverified, isrevoked, expiresat,
			 lastactiveat, devicename, useragent, ipaddress)
		VALUES ($1, $2, $3, $4, false, $5, now(), $6, $7, $8)
		RETURNING lastactiveat, createdat`

	err := store.pool.QueryRow(ctx, query,
		session.ID, session.UserID, session.TokenHash, session.MFAVerified,
		session.ExpiresAt, session.DeviceName, session.UserAgent, session.IPAddress,
	).Scan(&session.LastActiveAt, &session.CreatedAt)
	if err != nil {
		return dberr.Wrap(err, "session_insert")
	}
	return nil
}

/*
Touch is the hot path: one statement that validates and renews in the same
breath. The WHERE clause is the whole liveness check — anything it rejects
is classified afterwards so the caller gets a precise failure.
*/
func (store *PostgresStore) Touch(ctx context.Context, tokenHash string) (*Session, error) {
	// Only promoted sessions slide; a pending session keeps its short fuse.
	query := `
		UPDATE iam.session
		SET lastactiveat = now(),
		    expiresat = CASE WHEN mfaverified
		                     THEN now() + make_interval(secs => $2)
		                     ELSE expiresat END
		WHERE tokenhash = $1
		  AND NOT isrevoked
		  AND expiresat > now()
		RETURNING ` + sessionColumns

	session, err := scanSession(store.pool.QueryRow(ctx, query, tokenHash, Lifetime.Seconds()))
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, dberr.Wrap(err, "session_touch")
	}
	return nil, store.classify(ctx, tokenHash)
}

// classify turns a failed Touch into the precise dead-token error.
func (store *PostgresStore) classify(ctx context.Context, tokenHash string) error {
	var revoked bool
	var expiresAt time.Time
	err := store.pool.QueryRow(ctx,
		`SELECT isrevoked, expiresat FROM iam.session WHERE tokenhash = $1`,
		tokenHash,
	).Scan(&revoked, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSessionNotFound
		}
		return dberr.Wrap(err, "session_classify")
	}
	if revoked {
		return ErrSessionRevoked
	}
	if !expiresAt.After(time.Now()) {
		return ErrSessionExpired
	}
	// The row became live again between UPDATE and SELECT; treat the
	// original miss as not found.
	return ErrSessionNotFound
}

func (store *PostgresStore) FindByID(ctx context.Context, id string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM iam.session WHERE id = $1`

	session, err := scanSession(store.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "session_select")
	}
	return session, nil
}

/*
PromoteMFA upgrades a pending session in a single conditional update. The
`NOT mfaverified` predicate makes the operation single-shot: when two proofs
race, exactly one matches and the loser is told the session was already
verified.
*/
func (store *PostgresStore) PromoteMFA(ctx context.Context, id string) (*Session, error) {
	query := `
		UPDATE iam.session
		SET mfaverified = true,
		    expiresat = now() + make_interval(secs => $2),
		    lastactiveat = now()
		WHERE id = $1
		  AND NOT mfaverified
		  AND NOT isrevoked
		  AND expiresat > now()
		RETURNING ` + sessionColumns

	session, err := scanSession(store.pool.QueryRow(ctx, query, id, Lifetime.Seconds()))
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, dberr.Wrap(err, "session_promote")
	}

	existing, findErr := store.FindByID(ctx, id)
	if findErr != nil {
		return nil, ErrSessionNotFound
	}
	switch existing.State(time.Now()) {
	case StateRevoked:
		return nil, ErrSessionRevoked
	case StateExpired:
		return nil, ErrSessionExpired
	default:
		return nil, ErrAlreadyVerified
	}
}

func (store *PostgresStore) Revoke(ctx context.Context, id, userID string) error {
	query := `
		UPDATE iam.session
		SET isrevoked = true, lastactiveat = now()
		WHERE id = $1 AND userid = $2 AND NOT isrevoked`

	tag, err := store.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return dberr.Wrap(err, "session_revoke")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

func (store *PostgresStore) RevokeAll(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE iam.session
		SET isrevoked = true
		WHERE userid = $1 AND NOT isrevoked`

	tag, err := store.pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, dberr.Wrap(err, "session_revoke_all")
	}
	return tag.RowsAffected(), nil
}

func (store *PostgresStore) RevokeAllExcept(ctx context.Context, userID, keepID string) (int64, error) {
	query := `
		UPDATE iam.session
		SET isrevoked = true
		WHERE userid = $1 AND id <> $2 AND NOT isrevoked`

	tag, err := store.pool.Exec(ctx, query, userID, keepID)
	if err != nil {
		return 0, dberr.Wrap(err, "session_revoke_all_except")
	}
	return tag.RowsAffected(), nil
}

func (store *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM iam.session
		WHERE userid = $1 AND NOT isrevoked AND expiresat > now()
		ORDER BY lastactiveat DESC`

	rows, err := store.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, dberr.Wrap(err, "session_list")
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "session_list_scan")
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "session_list_rows")
	}
	return sessions, nil
}
