// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcanumhq/arcanum/pkg/uuid"
)

// PostgresRecorder appends audit events to the system.auditlog table.
//
// # Reliability
//
// Writes are best effort: a failed insert is logged as a soft alarm and the
// primary operation proceeds. The table is append-only from the core's
// perspective — nothing in this repository ever queries it.
type PostgresRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresRecorder creates a Postgres-backed audit sink.
func NewPostgresRecorder(pool *pgxpool.Pool, logger *slog.Logger) *PostgresRecorder {
	return &PostgresRecorder{pool: pool, logger: logger}
}

/*
Record appends the event to system.auditlog.

Description: Serializes metadata as JSONB. Insert failures are logged and
swallowed — audit must never block the operation that produced the event.

Parameters:
  - context: context.Context
  - event: Event
*/
func (recorder *PostgresRecorder) Record(context context.Context, event Event) {
	const query = `
		INSERT INTO system.auditlog (id, eventtype, principalid, metadata, createdat)
		VALUES ($1, $2, $3, $4, $5)`

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		metadata = []byte("{}")
	}

	_, err = recorder.pool.Exec(context, query,
		uuid.New(),
		string(event.Type),
		event.PrincipalID,
		metadata,
		occurredAt,
	)

	if err != nil {
		// Soft alarm: the audit trail has a gap, but the caller's operation
		// must still complete.
		recorder.logger.ErrorContext(context, "audit_write_failed",
			slog.String("event_type", string(event.Type)),
			slog.Any("error", err),
		)
	}
}
