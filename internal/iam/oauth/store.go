// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package oauth

import (
	"context"
	"time"
)

// Connection links a local account to one external identity.
type Connection struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Store is the persistence boundary for provider connections.
type Store interface {
	// FindConnection looks a connection up by its (provider, providerUserID)
	// key. Missing connections yield apperr.NotFound.
	FindConnection(ctx context.Context, provider, providerUserID string) (*Connection, error)

	// Insert persists a new connection. A duplicate key yields
	// apperr.Conflict.
	Insert(ctx context.Context, connection *Connection) error

	// ListByUser returns the user's connections.
	ListByUser(ctx context.Context, userID string) ([]Connection, error)

	// Delete unlinks a connection from the user.
	Delete(ctx context.Context, userID, connectionID string) error
}
