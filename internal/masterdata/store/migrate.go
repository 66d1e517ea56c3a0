package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// Tables lists every table Migrate creates, children first, for truncation in
// tests.
var Tables = []string{
	"documents",
	"outbox",
	"field_audit_events",
	"field_provenance",
	"entity_stakeholders",
	"entity_traders",
	"entity_registered_address",
	"entity_identity",
	"entity_bridges",
	"canonical_entities",
}

// Migrate applies the schema. Safe to run repeatedly.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
