// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

/*
Package credential implements account lifecycle and password authentication.

Architecture:
  - User is the account entity. The password hash is optional so that
    accounts created through an OAuth provider can exist without one.
  - Service orchestrates registration, login, email verification, and both
    password-recovery flows on top of the capability-token and guard layers.
  - PostgresStore persists accounts in iam.account; deletion is a soft
    flag so audit references stay resolvable.
*/
package credential

import "time"

// User is an account record.
//
// PasswordHash is nil for accounts provisioned through an external identity
// provider that have never set a local password. Such accounts cannot log in
// with a password until one is set through the reset flow.
type User struct {
	ID            string
	Email         string
	DisplayName   string
	PasswordHash  *string
	EmailVerified bool
	Suspended     bool
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasPassword reports whether local password login is possible at all.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
