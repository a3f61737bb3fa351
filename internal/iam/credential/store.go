// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package credential

import "context"

// Store is the persistence boundary for accounts.
type Store interface {
	// Create inserts a new account. A duplicate email yields
	// apperr.Conflict.
	Create(ctx context.Context, user *User) error

	// FindByID returns the account, including soft-deleted ones being
	// filtered out. Missing accounts yield apperr.NotFound.
	FindByID(ctx context.Context, id string) (*User, error)

	// FindByEmail looks an account up by its lowercased email address.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// MarkEmailVerified flips the verification flag.
	MarkEmailVerified(ctx context.Context, id string) error

	// UpdatePassword swaps the password hash only if the stored hash still
	// equals expectedHash. When another writer won the race, zero rows
	// match and apperr.Conflict is returned. expectedHash nil matches an
	// account that has no password yet.
	UpdatePassword(ctx context.Context, id string, expectedHash *string, newHash string) error

	// SoftDelete deactivates the account without removing the row.
	SoftDelete(ctx context.Context, id string) error
}
