package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations for the given dialect. Every statement
// is idempotent so Migrate can run on each startup.
func Migrate(db *sql.DB, dialect Dialect) error {
	for i, stmt := range migrations(dialect) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

func migrations(dialect Dialect) []string {
	bigint := dialect.bigintType()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id              TEXT PRIMARY KEY,
			kind            TEXT NOT NULL
			                CHECK(kind IN ('campaign','project','task')),
			parent_id       TEXT REFERENCES entities(id),
			campaign_id     TEXT REFERENCES entities(id),
			name            TEXT NOT NULL DEFAULT '',
			segment         TEXT NOT NULL DEFAULT '',
			state           TEXT NOT NULL,
			previous_state  TEXT,
			budget_own      {{bigint}},
			budget_total    {{bigint}} NOT NULL DEFAULT 0,
			actual_end_date TEXT,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,
			CHECK ((kind = 'campaign') = (parent_id IS NULL))
		)`,

		`CREATE INDEX IF NOT EXISTS idx_entities_parent ON entities(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_campaign ON entities(campaign_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_kind_state ON entities(kind, state)`,

		`CREATE TABLE IF NOT EXISTS state_history (
			id         TEXT PRIMARY KEY,
			entity_id  TEXT NOT NULL REFERENCES entities(id),
			from_state TEXT NOT NULL,
			to_state   TEXT NOT NULL,
			actor      TEXT NOT NULL DEFAULT '',
			cause      TEXT NOT NULL
			           CHECK(cause IN ('client','cascade_close','propagated','restore')),
			at         TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_state_history_entity ON state_history(entity_id, at)`,
	}
	for i, s := range stmts {
		stmts[i] = strings.ReplaceAll(s, "{{bigint}}", bigint)
	}
	return stmts
}
