// Package store provides SQLite-backed persistence for sealed survey plans,
// their stage snapshots and the audit log.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS seals (
	plan_id            TEXT PRIMARY KEY,
	seal_hash          TEXT NOT NULL,
	sealed_at          TEXT NOT NULL,
	section_count      INTEGER NOT NULL,
	total_unit_area    REAL NOT NULL,
	parent_parcel_area REAL NOT NULL,
	generated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS computation_snapshots (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	plan_id       TEXT NOT NULL,
	stage         TEXT NOT NULL,
	snapshot_json TEXT NOT NULL DEFAULT '{}',
	checksum      TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_plan_stage ON computation_snapshots(plan_id, stage);

CREATE TABLE IF NOT EXISTS audit_records (
	id          TEXT PRIMARY KEY,
	plan_id     TEXT NOT NULL,
	category    TEXT NOT NULL,
	actor       TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	detail_json TEXT NOT NULL DEFAULT '{}',
	severity    TEXT NOT NULL DEFAULT 'info',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_plan ON audit_records(plan_id);
`

// Execer is satisfied by both *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreInit.Code, domain.ErrStoreInit.Message, err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, domain.WrapEngineError(domain.ErrStoreInit.Code, "migrate schema", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}
