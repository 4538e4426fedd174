package storage

import (
	"context"

	"github.com/akiramei/funcqc-sub004/pkg/types"
)

// Storage defines the interface for persisting and querying function
// catalog data across snapshots.
type Storage interface {
	// Snapshot operations
	SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error
	GetSnapshot(ctx context.Context, snapshotID string) (*types.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]*types.Snapshot, error)
	UpdateSnapshotLabel(ctx context.Context, snapshotID, label string) error
	UpdateSnapshotMetadata(ctx context.Context, snapshotID string, meta types.SnapshotMetadata) error
	DeleteSnapshot(ctx context.Context, snapshotID string) error

	// Function operations. SaveFunctions persists the records together
	// with their owned parameters and optional quality metrics through
	// the bulk pipeline.
	SaveFunctions(ctx context.Context, snapshotID string, functions []*types.FunctionRecord) error
	GetFunctions(ctx context.Context, snapshotID string, opts types.QueryOptions) ([]*types.FunctionRecord, error)
	GetFunction(ctx context.Context, functionID string) (*types.FunctionRecord, error)

	// Source content operations
	SaveSourceFiles(ctx context.Context, snapshotID string, files []*types.SourceFile) (map[string]string, error)
	GetSourceFilesBySnapshot(ctx context.Context, snapshotID string) ([]*types.SourceFile, error)
	ExtractFunctionSource(ctx context.Context, functionID string) (string, error)

	// Call graph operations
	InsertCallEdges(ctx context.Context, snapshotID string, edges []*types.CallEdge) (int, error)
	GetCallEdgesByCaller(ctx context.Context, callerFunctionID string) ([]*types.CallEdge, error)
	GetCallEdgesByCallee(ctx context.Context, calleeFunctionID string) ([]*types.CallEdge, error)
	GetCallGraphStats(ctx context.Context, snapshotID string) (*types.CallGraphStats, error)
	GetCallGraph(ctx context.Context, snapshotID string, opts CallGraphOptions) (*types.CallGraph, error)

	// ExecuteInTransaction runs fn inside one transaction; any error
	// rolls everything back and propagates unchanged. Nested invocation
	// is a programming error and fails fast.
	ExecuteInTransaction(ctx context.Context, fn func(tx Tx) error) error

	// Database operations
	Close() error
}

// Tx is the transactional view of the store. It carries the write
// operations that participate in a snapshot write; read operations go
// through Storage directly once the owning transaction has committed.
type Tx interface {
	SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error
	SaveFunctions(ctx context.Context, snapshotID string, functions []*types.FunctionRecord) error
	SaveSourceFiles(ctx context.Context, snapshotID string, files []*types.SourceFile) (map[string]string, error)
	InsertCallEdges(ctx context.Context, snapshotID string, edges []*types.CallEdge) (int, error)
	UpdateSnapshotMetadata(ctx context.Context, snapshotID string, meta types.SnapshotMetadata) error
}

// CallGraphOptions scopes a full-graph extraction.
type CallGraphOptions struct {
	// IncludeExternal keeps edges whose callee is an unresolved symbol.
	IncludeExternal bool
	// RootFunctionID, when set, restricts the graph to edges reachable
	// from this function (breadth-first over internal edges).
	RootFunctionID string
}
