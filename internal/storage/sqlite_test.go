package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akiramei/funcqc-sub004/internal/identity"
	"github.com/akiramei/funcqc-sub004/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	return storage
}

// makeSnapshot builds a minimal snapshot fixture.
func makeSnapshot(label string) *types.Snapshot {
	return &types.Snapshot{
		ID:          uuid.NewString(),
		Label:       label,
		GitCommit:   "abc123",
		GitBranch:   "main",
		ProjectRoot: "/test/project",
		ConfigHash:  "cfg-hash",
		Metadata: types.SnapshotMetadata{
			TotalFunctions: 2,
			TotalFiles:     1,
		},
	}
}

// makeFunction builds a function fixture with derived identity hashes.
func makeFunction(snapshotID, name, filePath string, startLine int) *types.FunctionRecord {
	body := fmt.Sprintf("function %s() { return %d; }", name, startLine)
	signature := fmt.Sprintf("%s(): number", name)
	return &types.FunctionRecord{
		ID:            uuid.NewString(),
		SemanticID:    identity.SemanticID(name, []string{filePath}, []string{"exported"}),
		ContentID:     identity.ContentID(body),
		SnapshotID:    snapshotID,
		Name:          name,
		DisplayName:   name,
		Signature:     signature,
		SignatureHash: identity.SignatureHash(signature),
		ContextPath:   []string{filePath},
		Modifiers:     []string{"exported"},
		FilePath:      filePath,
		Start:         types.Position{Line: startLine, Column: 1},
		End:           types.Position{Line: startLine + 2, Column: 2},
		IsExported:    true,
		SourceCode:    body,
	}
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	assert.NotNil(t, storage)
	assert.NotNil(t, storage.db)
}

func TestSaveAndGetSnapshot(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	snap := makeSnapshot("baseline")
	require.NoError(t, storage.SaveSnapshot(ctx, snap))
	assert.False(t, snap.CreatedAt.IsZero(), "SaveSnapshot should stamp CreatedAt")

	got, err := storage.GetSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, "baseline", got.Label)
	assert.Equal(t, "abc123", got.GitCommit)
	assert.Equal(t, "main", got.GitBranch)
	assert.Equal(t, "/test/project", got.ProjectRoot)
	assert.Equal(t, "cfg-hash", got.ConfigHash)
	assert.Equal(t, 2, got.Metadata.TotalFunctions)
}

func TestGetSnapshot_NotFound(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	_, err := storage.GetSnapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSnapshots_NewestFirst(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	older := makeSnapshot("older")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := makeSnapshot("newer")
	newer.CreatedAt = time.Now()

	require.NoError(t, storage.SaveSnapshot(ctx, older))
	require.NoError(t, storage.SaveSnapshot(ctx, newer))

	list, err := storage.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Label)
	assert.Equal(t, "older", list[1].Label)
}

func TestUpdateSnapshotLabel(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	snap := makeSnapshot("before")
	require.NoError(t, storage.SaveSnapshot(ctx, snap))

	require.NoError(t, storage.UpdateSnapshotLabel(ctx, snap.ID, "after"))

	got, err := storage.GetSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Label)

	err = storage.UpdateSnapshotLabel(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateSnapshotMetadata(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	snap := makeSnapshot("meta")
	require.NoError(t, storage.SaveSnapshot(ctx, snap))

	meta := types.SnapshotMetadata{TotalFunctions: 42, TotalFiles: 7, AvgComplexity: 3.5}
	require.NoError(t, storage.UpdateSnapshotMetadata(ctx, snap.ID, meta))

	got, err := storage.GetSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, got.Metadata.TotalFunctions)
	assert.Equal(t, 7, got.Metadata.TotalFiles)
	assert.InDelta(t, 3.5, got.Metadata.AvgComplexity, 0.001)
}

func TestDeleteSnapshot_CascadesOwnedRows(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	snap := makeSnapshot("doomed")
	require.NoError(t, storage.SaveSnapshot(ctx, snap))

	fn := makeFunction(snap.ID, "handler", "src/app.ts", 10)
	fn.Parameters = []types.Parameter{{FunctionID: fn.ID, Name: "req", Type: "Request", Position: 0}}
	fn.Metrics = &types.QualityMetrics{FunctionID: fn.ID, SnapshotID: snap.ID, CyclomaticComplexity: 3, LinesOfCode: 12}
	require.NoError(t, storage.SaveFunctions(ctx, snap.ID, []*types.FunctionRecord{fn}))

	files := []*types.SourceFile{{SnapshotID: snap.ID, FilePath: "src/app.ts", Content: "export const x = 1;\n"}}
	_, err := storage.SaveSourceFiles(ctx, snap.ID, files)
	require.NoError(t, err)

	require.NoError(t, storage.DeleteSnapshot(ctx, snap.ID))

	for _, table := range []string{"functions", "parameters", "quality_metrics", "source_file_refs"} {
		var count int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		require.NoError(t, storage.db.QueryRowContext(ctx, query).Scan(&count))
		assert.Zero(t, count, "table %s should cascade", table)
	}

	// Deduplicated content is retained even when its last reference is gone
	var contents int
	require.NoError(t, storage.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM source_contents").Scan(&contents))
	assert.Equal(t, 1, contents)
}

func TestExecuteInTransaction_RollbackOnError(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	snap := makeSnapshot("rollback")
	wantErr := fmt.Errorf("import failed")

	err := storage.ExecuteInTransaction(ctx, func(tx Tx) error {
		if err := tx.SaveSnapshot(ctx, snap); err != nil {
			return err
		}
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	_, err = storage.GetSnapshot(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrNotFound, "rolled-back snapshot should not be visible")
}

func TestExecuteInTransaction_RejectsNesting(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	err := storage.ExecuteInTransaction(ctx, func(tx Tx) error {
		return storage.ExecuteInTransaction(ctx, func(tx Tx) error { return nil })
	})
	assert.ErrorIs(t, err, ErrNestedTransaction)

	// The guard must reset: a fresh transaction still works afterwards.
	err = storage.ExecuteInTransaction(ctx, func(tx Tx) error {
		return tx.SaveSnapshot(ctx, makeSnapshot("post-nesting"))
	})
	assert.NoError(t, err)
}
