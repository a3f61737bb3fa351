// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arcanumhq/arcanum/internal/platform/apperr"
)

var (
	// ErrNotFound is a standard error returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("Resource")
)

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
//
// # Classification
//
//   - pgx.ErrNoRows                     → NOT_FOUND
//   - SQLSTATE 23505 (unique_violation) → CONFLICT
//   - connection-class SQLSTATEs (08xx) → TRANSIENT_STORE_ERROR (caller may retry)
//   - anything else                     → INTERNAL_ERROR
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation:
			return apperr.Conflict("Resource already exists")
		case pgerrcode.IsConnectionException(pgErr.Code):
			return apperr.Transient(err)
		}
	}

	return apperr.Internal(err)
}
