package diff

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akiramei/funcqc-sub004/internal/identity"
	"github.com/akiramei/funcqc-sub004/internal/storage"
	"github.com/akiramei/funcqc-sub004/pkg/types"
)

func setupEngine(t *testing.T) (*Engine, *storage.SQLiteStorage) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewEngine(store), store
}

// seedSnapshot persists one snapshot with the given functions.
func seedSnapshot(t *testing.T, store *storage.SQLiteStorage, label string, functions []*types.FunctionRecord) string {
	t.Helper()
	ctx := context.Background()
	snap := &types.Snapshot{ID: uuid.NewString(), Label: label, ProjectRoot: "/p"}
	require.NoError(t, store.SaveSnapshot(ctx, snap))
	for _, fn := range functions {
		fn.SnapshotID = snap.ID
	}
	if len(functions) > 0 {
		require.NoError(t, store.SaveFunctions(ctx, snap.ID, functions))
	}
	return snap.ID
}

// fixture builds a function with identity derived from name and body.
func fixture(name, body string, complexity, lines int) *types.FunctionRecord {
	id := uuid.NewString()
	return &types.FunctionRecord{
		ID:            id,
		SemanticID:    identity.SemanticID(name, []string{"src/app.ts"}, nil),
		ContentID:     identity.ContentID(body),
		Name:          name,
		DisplayName:   name,
		Signature:     name + "()",
		SignatureHash: identity.SignatureHash(name + "()"),
		ContextPath:   []string{"src/app.ts"},
		FilePath:      "src/app.ts",
		Start:         types.Position{Line: 1},
		End:           types.Position{Line: lines},
		Metrics: &types.QualityMetrics{
			FunctionID:           id,
			CyclomaticComplexity: complexity,
			LinesOfCode:          lines,
		},
	}
}

func TestDiffSnapshots_PartitionProperty(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()

	fromID := seedSnapshot(t, store, "from", []*types.FunctionRecord{
		fixture("alpha", "body-a", 2, 10),
		fixture("beta", "body-b", 3, 15),
		fixture("gamma", "body-c", 1, 5),
	})
	toID := seedSnapshot(t, store, "to", []*types.FunctionRecord{
		fixture("alpha", "body-a", 2, 10),        // unchanged
		fixture("beta", "body-b-changed", 5, 20), // modified
		fixture("delta", "body-d", 1, 8),         // added; gamma removed
	})

	diff, err := engine.DiffSnapshots(ctx, fromID, toID)
	require.NoError(t, err)

	assert.Len(t, diff.Added, 1)
	assert.Len(t, diff.Removed, 1)
	assert.Len(t, diff.Modified, 1)
	assert.Len(t, diff.Unchanged, 1)

	// Every "to" function in exactly one of added/modified/unchanged,
	// every "from" function in exactly one of removed/modified/unchanged.
	assert.Equal(t, 3, len(diff.Added)+len(diff.Modified)+len(diff.Unchanged))
	assert.Equal(t, 3, len(diff.Removed)+len(diff.Modified)+len(diff.Unchanged))

	assert.Equal(t, "delta", diff.Added[0].Name)
	assert.Equal(t, "gamma", diff.Removed[0].Name)
	assert.Equal(t, "beta", diff.Modified[0].After.Name)
	assert.Equal(t, 3, diff.Statistics.TotalChanges)
}

func TestDiffSnapshots_RenameIsRemovePlusAdd(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()

	// Identical body, different name: the role hash changes, the
	// implementation hash does not. Strict role identity classifies this
	// as removed foo + added bar, never modified.
	fromID := seedSnapshot(t, store, "from", []*types.FunctionRecord{
		fixture("foo", "shared-body", 3, 10),
	})
	toID := seedSnapshot(t, store, "to", []*types.FunctionRecord{
		fixture("bar", "shared-body", 3, 10),
	})

	diff, err := engine.DiffSnapshots(ctx, fromID, toID)
	require.NoError(t, err)

	require.Len(t, diff.Removed, 1)
	require.Len(t, diff.Added, 1)
	assert.Empty(t, diff.Modified)
	assert.Equal(t, "foo", diff.Removed[0].Name)
	assert.Equal(t, "bar", diff.Added[0].Name)
	assert.Equal(t, diff.Removed[0].ContentID, diff.Added[0].ContentID)
}

func TestDiffSnapshots_ComplexityJumpIsHighImpact(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()

	fromID := seedSnapshot(t, store, "from", []*types.FunctionRecord{
		fixture("foo", "simple-body", 3, 10),
	})
	toID := seedSnapshot(t, store, "to", []*types.FunctionRecord{
		fixture("foo", "gnarly-body", 9, 10),
	})

	diff, err := engine.DiffSnapshots(ctx, fromID, toID)
	require.NoError(t, err)
	require.Len(t, diff.Modified, 1)

	var complexityChange *types.ChangeDetail
	for i := range diff.Modified[0].Changes {
		if diff.Modified[0].Changes[i].Field == "cyclomatic_complexity" {
			complexityChange = &diff.Modified[0].Changes[i]
		}
	}
	require.NotNil(t, complexityChange)
	assert.Equal(t, 3, complexityChange.OldValue)
	assert.Equal(t, 9, complexityChange.NewValue)
	assert.Equal(t, types.ImpactHigh, complexityChange.Impact)

	// avg(B) - avg(A) over the whole population
	assert.InDelta(t, 6.0, diff.Statistics.ComplexityChange, 0.001)
	assert.Equal(t, 0, diff.Statistics.LinesChange)
}

func TestDiffSnapshots_DisjointSnapshots(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()

	fromID := seedSnapshot(t, store, "from", []*types.FunctionRecord{
		fixture("old1", "o1", 1, 5),
		fixture("old2", "o2", 1, 5),
	})
	toID := seedSnapshot(t, store, "to", []*types.FunctionRecord{
		fixture("new1", "n1", 1, 5),
	})

	diff, err := engine.DiffSnapshots(ctx, fromID, toID)
	require.NoError(t, err)
	assert.Len(t, diff.Added, 1)
	assert.Len(t, diff.Removed, 2)
	assert.Empty(t, diff.Modified)
	assert.Empty(t, diff.Unchanged)
}

func TestDiffSnapshots_EmptySnapshots(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()

	fromID := seedSnapshot(t, store, "from", nil)
	toID := seedSnapshot(t, store, "to", nil)

	diff, err := engine.DiffSnapshots(ctx, fromID, toID)
	require.NoError(t, err)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.Zero(t, diff.Statistics.TotalChanges)
	assert.Zero(t, diff.Statistics.ComplexityChange)
}

func TestDiffSnapshots_UnknownSnapshot(t *testing.T) {
	engine, _ := setupEngine(t)
	_, err := engine.DiffSnapshots(context.Background(), "missing-a", "missing-b")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestImpactThresholds(t *testing.T) {
	cases := []struct {
		name     string
		score    func(int, int) types.ImpactLevel
		oldV     int
		newV     int
		expected types.ImpactLevel
	}{
		{"complexity abs high", complexityImpact, 3, 9, types.ImpactHigh},
		{"complexity rel high from zero", complexityImpact, 0, 1, types.ImpactHigh},
		{"complexity medium", complexityImpact, 10, 12, types.ImpactMedium},
		{"complexity low", complexityImpact, 10, 11, types.ImpactLow},
		{"lines abs high", lineImpact, 100, 160, types.ImpactHigh},
		{"lines medium", lineImpact, 100, 125, types.ImpactMedium},
		{"lines small abs still low", lineImpact, 100, 105, types.ImpactLow},
		{"relative high", relativeImpact, 2, 3, types.ImpactHigh},
		{"relative medium", relativeImpact, 10, 12, types.ImpactMedium},
		{"relative low", relativeImpact, 10, 11, types.ImpactLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.score(tc.oldV, tc.newV))
		})
	}
}
