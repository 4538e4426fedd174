// Package importer drives the snapshot persistence pipeline: snapshot row,
// deduplicated source files, bulk functions with parameters and metrics,
// then call edges, all inside one transaction. A failed import rolls back
// completely; a half-written snapshot is never visible to readers.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/akiramei/funcqc-sub004/internal/identity"
	"github.com/akiramei/funcqc-sub004/internal/storage"
	"github.com/akiramei/funcqc-sub004/pkg/types"
)

// ScanPayload is the wire form produced by analysis collaborators: one
// snapshot's worth of files, functions and call edges.
type ScanPayload struct {
	Snapshot  *types.Snapshot         `json:"snapshot"`
	Files     []*types.SourceFile     `json:"files"`
	Functions []*types.FunctionRecord `json:"functions"`
	CallEdges []*types.CallEdge       `json:"callEdges"`
}

// Result summarizes one completed import.
type Result struct {
	SnapshotID    string        `json:"snapshotId"`
	FilesStored   int           `json:"filesStored"`
	FunctionCount int           `json:"functionCount"`
	EdgesInserted int           `json:"edgesInserted"`
	EdgesDropped  int           `json:"edgesDropped"`
	Duration      time.Duration `json:"duration"`
}

// Importer coordinates the import pipeline against a storage backend.
type Importer struct {
	store  storage.Storage
	logger *slog.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the structured logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Importer) { i.logger = logger }
}

// New creates an Importer backed by store.
func New(store storage.Storage, opts ...Option) *Importer {
	imp := &Importer{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// ReadPayload decodes a scan payload from r.
func ReadPayload(r io.Reader) (*ScanPayload, error) {
	var payload ScanPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode scan payload: %w", err)
	}
	if payload.Snapshot == nil {
		return nil, fmt.Errorf("scan payload has no snapshot")
	}
	return &payload, nil
}

// Import persists one scan payload atomically and returns a summary. The
// snapshot id is only meaningful to the caller after Import returns
// successfully, because it is assigned before the transaction commits.
func (i *Importer) Import(ctx context.Context, payload *ScanPayload) (*Result, error) {
	if payload == nil || payload.Snapshot == nil {
		return nil, fmt.Errorf("scan payload has no snapshot")
	}

	start := time.Now()
	snapshot := payload.Snapshot
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}

	i.prepareFunctions(snapshot.ID, payload.Functions)
	for _, edge := range payload.CallEdges {
		edge.SnapshotID = snapshot.ID
	}

	result := &Result{SnapshotID: snapshot.ID}

	err := i.store.ExecuteInTransaction(ctx, func(tx storage.Tx) error {
		if err := tx.SaveSnapshot(ctx, snapshot); err != nil {
			return err
		}

		refIDs, err := tx.SaveSourceFiles(ctx, snapshot.ID, payload.Files)
		if err != nil {
			return err
		}
		result.FilesStored = len(refIDs)

		// Attach content-store references before the function rows land.
		for _, fn := range payload.Functions {
			if fn.SourceFileRefID == "" {
				fn.SourceFileRefID = refIDs[fn.FilePath]
			}
		}

		if err := tx.SaveFunctions(ctx, snapshot.ID, payload.Functions); err != nil {
			return err
		}
		result.FunctionCount = len(payload.Functions)

		inserted, err := tx.InsertCallEdges(ctx, snapshot.ID, payload.CallEdges)
		if err != nil {
			return err
		}
		result.EdgesInserted = inserted
		result.EdgesDropped = len(payload.CallEdges) - inserted

		meta := aggregateMetadata(payload, time.Since(start))
		return tx.UpdateSnapshotMetadata(ctx, snapshot.ID, meta)
	})
	if err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	i.logger.Info("snapshot imported",
		"snapshot", snapshot.ID,
		"functions", result.FunctionCount,
		"files", result.FilesStored,
		"edges", result.EdgesInserted,
		"dropped", result.EdgesDropped,
		"duration", result.Duration)
	return result, nil
}

// prepareFunctions assigns physical ids and derives identity hashes the
// collaborator left empty. Physical ids are unique per occurrence; the
// semantic and content hashes are deterministic over the record itself.
func (i *Importer) prepareFunctions(snapshotID string, functions []*types.FunctionRecord) {
	for _, fn := range functions {
		fn.SnapshotID = snapshotID
		if fn.ID == "" {
			fn.ID = uuid.NewString()
		}
		if fn.DisplayName == "" {
			fn.DisplayName = fn.Name
		}
		if fn.SemanticID == "" {
			fn.SemanticID = identity.SemanticID(fn.Name, fn.ContextPath, fn.Modifiers)
		}
		if fn.ContentID == "" {
			fn.ContentID = identity.ContentID(fn.SourceCode)
		}
		if fn.SignatureHash == "" {
			fn.SignatureHash = identity.SignatureHash(fn.Signature)
		}
		for p := range fn.Parameters {
			fn.Parameters[p].FunctionID = fn.ID
		}
		if fn.Metrics != nil {
			fn.Metrics.FunctionID = fn.ID
			fn.Metrics.SnapshotID = snapshotID
		}
	}
}

// complexityBucket places a cyclomatic complexity value into the
// distribution histogram used by snapshot metadata.
func complexityBucket(complexity int) string {
	switch {
	case complexity <= 5:
		return "1-5"
	case complexity <= 10:
		return "6-10"
	case complexity <= 20:
		return "11-20"
	default:
		return "20+"
	}
}

// aggregateMetadata computes the snapshot's summary counters from the
// payload itself, so the stored metadata always reflects what was written.
func aggregateMetadata(payload *ScanPayload, elapsed time.Duration) types.SnapshotMetadata {
	meta := payload.Snapshot.Metadata
	meta.TotalFunctions = len(payload.Functions)
	meta.TotalFiles = len(payload.Files)
	meta.AnalysisDurationMS = elapsed.Milliseconds()

	meta.TotalLines = 0
	for _, file := range payload.Files {
		meta.TotalLines += file.LineCount
	}

	meta.FileExtensions = make(map[string]int)
	for _, file := range payload.Files {
		ext := filepath.Ext(file.FilePath)
		if ext == "" {
			ext = "(none)"
		}
		meta.FileExtensions[ext]++
	}

	meta.ComplexityDistrib = make(map[string]int)
	meta.ExportedFunctions = 0
	meta.AsyncFunctions = 0
	meta.MaxComplexity = 0
	var complexitySum float64
	for _, fn := range payload.Functions {
		if fn.IsExported {
			meta.ExportedFunctions++
		}
		if fn.IsAsync {
			meta.AsyncFunctions++
		}
		complexity := 1
		if fn.Metrics != nil && fn.Metrics.CyclomaticComplexity > 0 {
			complexity = fn.Metrics.CyclomaticComplexity
		}
		complexitySum += float64(complexity)
		if complexity > meta.MaxComplexity {
			meta.MaxComplexity = complexity
		}
		meta.ComplexityDistrib[complexityBucket(complexity)]++
	}
	if len(payload.Functions) > 0 {
		meta.AvgComplexity = complexitySum / float64(len(payload.Functions))
	}
	return meta
}
