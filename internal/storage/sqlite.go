package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/akiramei/funcqc-sub004/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist.
	// Callers treat it as a distinct, non-error outcome rather than a
	// query failure.
	ErrNotFound = errors.New("not found")
	// ErrNestedTransaction is returned when ExecuteInTransaction is
	// invoked from inside an open transaction. Nested transactions are
	// not supported; savepoints are the escape hatch if partial nesting
	// is ever required.
	ErrNestedTransaction = errors.New("nested transactions not supported")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger

	// verifyWrites enables post-write row-count verification. It is a
	// diagnostic safety net for non-production builds; mismatches are
	// logged, never returned.
	verifyWrites bool

	// txDepth guards against nested ExecuteInTransaction calls on one
	// connection.
	txDepth atomic.Int32
}

// Option configures a SQLiteStorage instance.
type Option func(*SQLiteStorage)

// WithLogger sets the structured logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SQLiteStorage) { s.logger = logger }
}

// WithWriteVerification enables row-count verification after bulk writes.
func WithWriteVerification() Option {
	return func(s *SQLiteStorage) { s.verifyWrites = true }
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance. Schema
// initialization is scoped to this instance: migrations run here, and no
// process-global "schema ready" state exists.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, types.NewConnectionError("open database", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, types.NewConnectionError("apply migrations", err)
	}

	s := &SQLiteStorage{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx is the transactional view handed to ExecuteInTransaction bodies
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// ExecuteInTransaction runs fn within a single transaction. On any error
// from fn the transaction rolls back and the error propagates unchanged.
// Invoking it while a transaction is already open on this store fails
// fast instead of silently flattening.
func (s *SQLiteStorage) ExecuteInTransaction(ctx context.Context, fn func(tx Tx) error) error {
	if s.txDepth.Add(1) > 1 {
		s.txDepth.Add(-1)
		return ErrNestedTransaction
	}
	defer s.txDepth.Add(-1)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.NewWriteError("begin transaction", err)
	}

	wrapped := &sqliteTx{tx: tx, storage: s}
	if err := fn(wrapped); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return types.NewWriteError("commit transaction", err)
	}
	return nil
}

// Snapshot operations

// saveSnapshotWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) saveSnapshotWithQuerier(ctx context.Context, q querier, snapshot *types.Snapshot) error {
	metadata, err := json.Marshal(snapshot.Metadata)
	if err != nil {
		return types.NewWriteError("save snapshot", err)
	}

	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO snapshots (id, created_at, label, git_commit, git_branch, git_tag, project_root, config_hash, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, query,
		snapshot.ID, snapshot.CreatedAt, snapshot.Label,
		snapshot.GitCommit, snapshot.GitBranch, snapshot.GitTag,
		snapshot.ProjectRoot, snapshot.ConfigHash, string(metadata))
	if err != nil {
		return types.NewWriteError("save snapshot", err)
	}
	return nil
}

func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error {
	return s.saveSnapshotWithQuerier(ctx, s.querier(), snapshot)
}

const snapshotColumns = `id, created_at, label, git_commit, git_branch, git_tag, project_root, config_hash, metadata`

// scanSnapshot scans one snapshots row
func scanSnapshot(row interface{ Scan(...interface{}) error }) (*types.Snapshot, error) {
	var snap types.Snapshot
	var label, commit, branch, tag, configHash sql.NullString
	var metadata string
	err := row.Scan(
		&snap.ID, &snap.CreatedAt, &label, &commit, &branch, &tag,
		&snap.ProjectRoot, &configHash, &metadata,
	)
	if err != nil {
		return nil, err
	}
	snap.Label = label.String
	snap.GitCommit = commit.String
	snap.GitBranch = branch.String
	snap.GitTag = tag.String
	snap.ConfigHash = configHash.String
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &snap.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt snapshot metadata: %w", err)
		}
	}
	return &snap, nil
}

func (s *SQLiteStorage) GetSnapshot(ctx context.Context, snapshotID string) (*types.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE id = ?`
	snap, err := scanSnapshot(s.db.QueryRowContext(ctx, query, snapshotID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.NewReadError("get snapshot", err)
	}
	return snap, nil
}

func (s *SQLiteStorage) ListSnapshots(ctx context.Context) ([]*types.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, types.NewReadError("list snapshots", err)
	}
	defer func() { _ = rows.Close() }()

	snapshots := make([]*types.Snapshot, 0)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, types.NewReadError("list snapshots", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewReadError("list snapshots", err)
	}
	return snapshots, nil
}

// UpdateSnapshotLabel enriches a snapshot with a human label. Labels and
// metadata are the only attributes mutable after creation.
func (s *SQLiteStorage) UpdateSnapshotLabel(ctx context.Context, snapshotID, label string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE snapshots SET label = ? WHERE id = ?`, label, snapshotID)
	if err != nil {
		return types.NewWriteError("update snapshot label", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.NewWriteError("update snapshot label", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// updateSnapshotMetadataWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) updateSnapshotMetadataWithQuerier(ctx context.Context, q querier, snapshotID string, meta types.SnapshotMetadata) error {
	metadata, err := json.Marshal(meta)
	if err != nil {
		return types.NewWriteError("update snapshot metadata", err)
	}
	result, err := q.ExecContext(ctx, `UPDATE snapshots SET metadata = ? WHERE id = ?`, string(metadata), snapshotID)
	if err != nil {
		return types.NewWriteError("update snapshot metadata", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.NewWriteError("update snapshot metadata", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) UpdateSnapshotMetadata(ctx context.Context, snapshotID string, meta types.SnapshotMetadata) error {
	return s.updateSnapshotMetadataWithQuerier(ctx, s.querier(), snapshotID, meta)
}

// DeleteSnapshot removes a snapshot and, through cascading foreign keys,
// every function, parameter, metric, call edge and file reference it owns.
// Deduplicated source content is retained even when its last reference
// disappears.
func (s *SQLiteStorage) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, snapshotID)
	if err != nil {
		return types.NewWriteError("delete snapshot", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.NewWriteError("delete snapshot", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Transaction view delegations

func (t *sqliteTx) SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error {
	return t.storage.saveSnapshotWithQuerier(ctx, t.querier(), snapshot)
}

func (t *sqliteTx) SaveFunctions(ctx context.Context, snapshotID string, functions []*types.FunctionRecord) error {
	return t.storage.saveFunctionsWithQuerier(ctx, t.querier(), snapshotID, functions)
}

func (t *sqliteTx) SaveSourceFiles(ctx context.Context, snapshotID string, files []*types.SourceFile) (map[string]string, error) {
	return t.storage.saveSourceFilesWithQuerier(ctx, t.querier(), snapshotID, files)
}

func (t *sqliteTx) InsertCallEdges(ctx context.Context, snapshotID string, edges []*types.CallEdge) (int, error) {
	return t.storage.insertCallEdgesWithQuerier(ctx, t.querier(), snapshotID, edges)
}

func (t *sqliteTx) UpdateSnapshotMetadata(ctx context.Context, snapshotID string, meta types.SnapshotMetadata) error {
	return t.storage.updateSnapshotMetadataWithQuerier(ctx, t.querier(), snapshotID, meta)
}
