package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Snapshots: one immutable scan catalog each
CREATE TABLE IF NOT EXISTS snapshots (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    label TEXT,
    git_commit TEXT,
    git_branch TEXT,
    git_tag TEXT,
    project_root TEXT NOT NULL,
    config_hash TEXT,
    metadata TEXT DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_git_commit ON snapshots(git_commit);

-- Deduplicated whole-file source text, keyed by (hash, size).
-- No cascade from snapshots: content outliving its last reference is
-- retained rather than garbage-collected.
CREATE TABLE IF NOT EXISTS source_contents (
    id TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    file_hash TEXT NOT NULL,
    file_size_bytes INTEGER NOT NULL,
    line_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_source_contents_hash ON source_contents(file_hash);

-- Per-snapshot, per-path pointers into source_contents
CREATE TABLE IF NOT EXISTS source_file_refs (
    id TEXT PRIMARY KEY,
    snapshot_id TEXT NOT NULL,
    file_path TEXT NOT NULL,
    content_id TEXT NOT NULL,
    file_modified_time TIMESTAMP,
    function_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE,
    FOREIGN KEY (content_id) REFERENCES source_contents(id),
    UNIQUE(snapshot_id, file_path)
);

CREATE INDEX IF NOT EXISTS idx_source_file_refs_snapshot ON source_file_refs(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_source_file_refs_content ON source_file_refs(content_id);

-- Functions: one row per observed occurrence, never updated in place
CREATE TABLE IF NOT EXISTS functions (
    id TEXT PRIMARY KEY,
    semantic_id TEXT NOT NULL,
    content_id TEXT NOT NULL,
    snapshot_id TEXT NOT NULL,
    name TEXT NOT NULL,
    display_name TEXT NOT NULL,
    signature TEXT NOT NULL,
    signature_hash TEXT NOT NULL,
    context_path TEXT DEFAULT '[]',
    modifiers TEXT DEFAULT '[]',
    file_path TEXT NOT NULL,
    start_line INTEGER NOT NULL,
    start_column INTEGER NOT NULL DEFAULT 0,
    end_line INTEGER NOT NULL,
    end_column INTEGER NOT NULL DEFAULT 0,
    nesting_level INTEGER NOT NULL DEFAULT 0,
    is_exported BOOLEAN NOT NULL DEFAULT 0,
    is_async BOOLEAN NOT NULL DEFAULT 0,
    is_generator BOOLEAN NOT NULL DEFAULT 0,
    is_arrow_function BOOLEAN NOT NULL DEFAULT 0,
    is_method BOOLEAN NOT NULL DEFAULT 0,
    is_constructor BOOLEAN NOT NULL DEFAULT 0,
    is_static BOOLEAN NOT NULL DEFAULT 0,
    access_modifier TEXT,
    ast_hash TEXT,
    source_code TEXT,
    source_file_ref_id TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_functions_snapshot ON functions(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_functions_semantic ON functions(semantic_id);
CREATE INDEX IF NOT EXISTS idx_functions_content ON functions(content_id);
CREATE INDEX IF NOT EXISTS idx_functions_name ON functions(name);
CREATE INDEX IF NOT EXISTS idx_functions_file ON functions(snapshot_id, file_path);

-- Parameters: owned exclusively by their function.
-- Logical key (function, snapshot, position) so a retried write wins over
-- a partial prior write.
CREATE TABLE IF NOT EXISTS parameters (
    function_id TEXT NOT NULL,
    snapshot_id TEXT NOT NULL,
    name TEXT NOT NULL,
    type TEXT,
    type_simple TEXT,
    position INTEGER NOT NULL,
    is_optional BOOLEAN NOT NULL DEFAULT 0,
    is_rest BOOLEAN NOT NULL DEFAULT 0,
    default_value TEXT,
    PRIMARY KEY (function_id, snapshot_id, position),
    FOREIGN KEY (function_id) REFERENCES functions(id) ON DELETE CASCADE,
    FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_parameters_function ON parameters(function_id);

-- Quality metrics: 1:1 extension of a function row, keyed by the logical
-- (function, snapshot) composite
CREATE TABLE IF NOT EXISTS quality_metrics (
    function_id TEXT NOT NULL,
    snapshot_id TEXT NOT NULL,
    lines_of_code INTEGER NOT NULL DEFAULT 0,
    total_lines INTEGER NOT NULL DEFAULT 0,
    cyclomatic_complexity INTEGER NOT NULL DEFAULT 1,
    cognitive_complexity INTEGER NOT NULL DEFAULT 0,
    max_nesting_level INTEGER NOT NULL DEFAULT 0,
    parameter_count INTEGER NOT NULL DEFAULT 0,
    return_statement_count INTEGER NOT NULL DEFAULT 0,
    branch_count INTEGER NOT NULL DEFAULT 0,
    loop_count INTEGER NOT NULL DEFAULT 0,
    try_catch_count INTEGER NOT NULL DEFAULT 0,
    async_await_count INTEGER NOT NULL DEFAULT 0,
    callback_count INTEGER NOT NULL DEFAULT 0,
    comment_lines INTEGER NOT NULL DEFAULT 0,
    code_to_comment_ratio REAL NOT NULL DEFAULT 0,
    halstead_volume REAL,
    halstead_difficulty REAL,
    maintainability_index REAL,
    PRIMARY KEY (function_id, snapshot_id),
    FOREIGN KEY (function_id) REFERENCES functions(id) ON DELETE CASCADE,
    FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_quality_metrics_snapshot ON quality_metrics(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_quality_metrics_complexity ON quality_metrics(cyclomatic_complexity);

-- Call edges: caller -> resolved callee or external symbol.
-- Ids are deterministic over (caller, callee, snapshot, call site) so
-- re-scans conflict-ignore instead of accumulating duplicates.
CREATE TABLE IF NOT EXISTS call_edges (
    id TEXT PRIMARY KEY,
    snapshot_id TEXT NOT NULL,
    caller_function_id TEXT NOT NULL,
    callee_function_id TEXT,
    callee_name TEXT NOT NULL,
    callee_signature TEXT,
    caller_class_name TEXT,
    callee_class_name TEXT,
    call_type TEXT NOT NULL DEFAULT 'direct',
    call_context TEXT NOT NULL DEFAULT 'normal',
    line_number INTEGER NOT NULL DEFAULT 0,
    column_number INTEGER NOT NULL DEFAULT 0,
    is_async BOOLEAN NOT NULL DEFAULT 0,
    is_chained BOOLEAN NOT NULL DEFAULT 0,
    confidence_score REAL NOT NULL DEFAULT 1.0,
    metadata TEXT DEFAULT '{}',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE,
    FOREIGN KEY (caller_function_id) REFERENCES functions(id) ON DELETE CASCADE,
    FOREIGN KEY (callee_function_id) REFERENCES functions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_call_edges_snapshot ON call_edges(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_call_edges_caller ON call_edges(caller_function_id);
CREATE INDEX IF NOT EXISTS idx_call_edges_callee ON call_edges(callee_function_id);
CREATE INDEX IF NOT EXISTS idx_call_edges_callee_name ON call_edges(callee_name);
`

const migrationV1Down = `
DROP TABLE IF EXISTS call_edges;
DROP TABLE IF EXISTS quality_metrics;
DROP TABLE IF EXISTS parameters;
DROP TABLE IF EXISTS functions;
DROP TABLE IF EXISTS source_file_refs;
DROP TABLE IF EXISTS source_contents;
DROP TABLE IF EXISTS snapshots;
`

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	// Check if schema_version table exists
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)

	// Parse current version (default to 0.0.0 if no migrations applied or table doesn't exist)
	var currentVersion *semver.Version
	if err == sql.ErrNoRows {
		currentVersion = semver.MustParse("0.0.0")
	} else if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	} else {
		var currentVersionStr string
		err = db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&currentVersionStr)
		if err == sql.ErrNoRows || currentVersionStr == "" {
			currentVersion = semver.MustParse("0.0.0")
		} else if err != nil {
			return fmt.Errorf("failed to read schema_version: %w", err)
		} else {
			currentVersion, err = semver.NewVersion(currentVersionStr)
			if err != nil {
				return fmt.Errorf("invalid current schema version %s: %w", currentVersionStr, err)
			}
		}
	}

	// Run migrations in order
	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		_, err = db.ExecContext(ctx, migration.Up)
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		_, err = db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version)
		if err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	var currentVersion string
	err := db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("no migrations to rollback: %w", err)
	}

	var migration *Migration
	for i := range AllMigrations {
		if AllMigrations[i].Version == currentVersion {
			migration = &AllMigrations[i]
			break
		}
	}

	if migration == nil {
		return fmt.Errorf("migration %s not found", currentVersion)
	}

	_, err = db.ExecContext(ctx, migration.Down)
	if err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", currentVersion, err)
	}

	_, err = db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", currentVersion)
	if err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", currentVersion, err)
	}

	return nil
}
