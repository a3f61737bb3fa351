// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanumhq/arcanum/internal/platform/apperr"
)

/*
TestConstructors_HTTPMapping verifies each taxonomy kind carries its code and
status.
*/
func TestConstructors_HTTPMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    *apperr.AppError
		code   string
		status int
	}{
		{"not_found", apperr.NotFound("Session"), apperr.CodeNotFound, http.StatusNotFound},
		{"unauthorized", apperr.Unauthorized("Invalid email or password"), apperr.CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", apperr.Forbidden("Not allowed"), apperr.CodeForbidden, http.StatusForbidden},
		{"insufficient_privilege", apperr.InsufficientPrivilege("Role ceiling"), apperr.CodeInsufficientPrivilege, http.StatusForbidden},
		{"conflict", apperr.Conflict("Email is already registered"), apperr.CodeConflict, http.StatusConflict},
		{"validation", apperr.ValidationError("Invalid input"), apperr.CodeValidation, http.StatusBadRequest},
		{"rate_limited", apperr.RateLimited(30), apperr.CodeRateLimited, http.StatusTooManyRequests},
		{"unprocessable", apperr.Unprocessable("Unknown factor method"), apperr.CodeUnprocessable, http.StatusUnprocessableEntity},
		{"internal", apperr.Internal(errors.New("boom")), apperr.CodeInternal, http.StatusInternalServerError},
		{"transient", apperr.Transient(errors.New("conn reset")), apperr.CodeTransient, http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, tc.err.Code)
			assert.Equal(t, tc.status, tc.err.HTTPStatus)
			assert.True(t, apperr.IsCode(tc.err, tc.code))
		})
	}
}

/*
TestCauseNeverInMessage verifies the server-side cause does not leak through
the client-facing message.
*/
func TestCauseNeverInMessage(t *testing.T) {
	cause := errors.New("pq: duplicate key value violates unique constraint")
	err := apperr.Internal(cause)

	assert.NotContains(t, err.Error(), "duplicate key")
	assert.ErrorIs(t, err, cause, "the cause must stay reachable for logging")
}

func TestIsCode_WrappedChain(t *testing.T) {
	inner := apperr.Conflict("Code already used")
	wrapped := fmt.Errorf("token_consume_failed: %w", inner)

	assert.True(t, apperr.IsCode(wrapped, apperr.CodeConflict))
	assert.False(t, apperr.IsCode(wrapped, apperr.CodeNotFound))
	assert.False(t, apperr.IsCode(errors.New("plain"), apperr.CodeConflict))
}

func TestAs(t *testing.T) {
	err := apperr.RateLimited(45)
	wrapped := fmt.Errorf("guard: %w", err)

	extracted := apperr.As(wrapped)
	require.NotNil(t, extracted)
	assert.Equal(t, 45, extracted.RetryAfterSeconds)

	assert.Nil(t, apperr.As(errors.New("plain")))
}

func TestValidationError_Details(t *testing.T) {
	err := apperr.ValidationError("Invalid input",
		apperr.FieldError{Field: "email", Message: "invalid email format"},
		apperr.FieldError{Field: "password", Message: "too short"},
	)

	require.Len(t, err.Details, 2)
	assert.Equal(t, "email", err.Details[0].Field)
}
