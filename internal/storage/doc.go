// Package storage provides SQLite-based persistence for function catalog
// snapshots.
//
// The storage layer manages:
//   - Snapshots (point-in-time catalogs of every function in a codebase)
//   - Function records with parameters and quality metrics
//   - Deduplicated source file content, keyed by (hash, size)
//   - Call graph edges with referential filtering
//
// # Database Schema
//
// Tables:
//   - snapshots: snapshot metadata (git state, config hash, aggregates)
//   - source_contents: content-addressed file text, shared across snapshots
//   - source_file_refs: per-snapshot file references into source_contents
//   - functions: function records with three-part identity
//   - parameters: ordered parameter lists per function
//   - quality_metrics: complexity and size measures per function
//   - call_edges: caller→callee edges, internal or external
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("funcqc.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.SaveSnapshot(ctx, &types.Snapshot{
//	    ID:          uuid.NewString(),
//	    Label:       "pre-refactor",
//	    ProjectRoot: "/path/to/project",
//	})
//
// # Transactions
//
// Use ExecuteInTransaction for atomic multi-table writes. Snapshot,
// source files, functions and call edges of one import land together or
// not at all:
//
//	err := store.ExecuteInTransaction(ctx, func(tx storage.Tx) error {
//	    if err := tx.SaveSnapshot(ctx, snapshot); err != nil {
//	        return err
//	    }
//	    refIDs, err := tx.SaveSourceFiles(ctx, snapshot.ID, files)
//	    if err != nil {
//	        return err
//	    }
//	    if err := tx.SaveFunctions(ctx, snapshot.ID, functions); err != nil {
//	        return err
//	    }
//	    _, err = tx.InsertCallEdges(ctx, snapshot.ID, edges)
//	    return err
//	})
//
// Nested transactions are rejected with ErrNestedTransaction.
//
// # Bulk Writes
//
// Batch writes size themselves per table against the SQLite bind-parameter
// ceiling. Small inputs use per-row parameterized inserts; large inputs
// are serialized to JSON and expanded server-side via json_each, so one
// statement carries hundreds of rows with a single bound parameter.
//
// # Build Tags
//
// The package supports two build configurations:
//
// Pure Go build (default, or purego tag):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build
//
// CGO build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//     CGO_ENABLED=1 go build -tags "sqlite_cgo"
package storage
