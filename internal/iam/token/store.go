// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package token

import "context"

// Store defines the persistence contract for capability tokens.
type Store interface {

	/*
		Insert persists a freshly issued token record.

		Parameters:
		  - context: context.Context
		  - record: *Token

		Returns:
		  - error: Persistence failures
	*/
	Insert(context context.Context, record *Token) error

	/*
		Consume atomically marks the matching unused token as used.

		Description: Must be a single conditional update — concurrent calls
		for the same token yield exactly one winner. The IP binding is part
		of the condition: a mismatched address leaves the token unburned and
		reads as ErrNotFound. Implementations return ErrNotFound, ErrExpired,
		or ErrAlreadyUsed for the distinct failure states.

		Parameters:
		  - context: context.Context
		  - kind: Kind
		  - tokenHash: string
		  - requestIP: string (checked against BoundIP when the token is bound)

		Returns:
		  - *Token: The winning consumer's record
		  - error: Failure kind or storage errors
	*/
	Consume(context context.Context, kind Kind, tokenHash, requestIP string) (*Token, error)

	/*
		InvalidateAll marks every outstanding token of the kind for the user
		as used.

		Parameters:
		  - context: context.Context
		  - kind: Kind
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	InvalidateAll(context context.Context, kind Kind, userID string) error
}
