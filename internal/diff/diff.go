// Package diff compares two snapshots' function catalogs.
//
// Functions are matched across snapshots by semantic id: same role, same
// function. A matched pair whose content id differs is modified; a role
// present on only one side is added or removed. Renames therefore surface
// as a removed+added pair, never as a modification.
package diff

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/akiramei/funcqc-sub004/internal/storage"
	"github.com/akiramei/funcqc-sub004/pkg/types"
)

// Engine computes snapshot diffs against a storage backend.
type Engine struct {
	store  storage.Storage
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a diff engine backed by store.
func NewEngine(store storage.Storage, opts ...Option) *Engine {
	e := &Engine{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// side is one snapshot's materialized function list.
type side struct {
	snapshot  *types.Snapshot
	functions []*types.FunctionRecord
}

// DiffSnapshots compares the "from" snapshot against the "to" snapshot.
// Both sides load concurrently; the comparison itself is in-memory.
func (e *Engine) DiffSnapshots(ctx context.Context, fromID, toID string) (*types.SnapshotDiff, error) {
	var from, to side

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		from, err = e.loadSide(gctx, fromID)
		return err
	})
	g.Go(func() error {
		var err error
		to, err = e.loadSide(gctx, toID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	diff := e.compare(from, to)
	e.logger.Debug("snapshot diff computed",
		"from", fromID, "to", toID,
		"added", len(diff.Added), "removed", len(diff.Removed),
		"modified", len(diff.Modified), "unchanged", len(diff.Unchanged))
	return diff, nil
}

// loadSide fetches one snapshot with its full function list and metrics.
func (e *Engine) loadSide(ctx context.Context, snapshotID string) (side, error) {
	snapshot, err := e.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return side{}, fmt.Errorf("load snapshot %s: %w", snapshotID, err)
	}
	functions, err := e.store.GetFunctions(ctx, snapshotID, types.QueryOptions{IncludeMetrics: true})
	if err != nil {
		return side{}, fmt.Errorf("load functions for %s: %w", snapshotID, err)
	}
	return side{snapshot: snapshot, functions: functions}, nil
}

// compare partitions both sides by semantic id and scores field changes.
func (e *Engine) compare(from, to side) *types.SnapshotDiff {
	fromBySemantic := make(map[string]*types.FunctionRecord, len(from.functions))
	for _, fn := range from.functions {
		fromBySemantic[fn.SemanticID] = fn
	}
	toBySemantic := make(map[string]*types.FunctionRecord, len(to.functions))
	for _, fn := range to.functions {
		toBySemantic[fn.SemanticID] = fn
	}

	diff := &types.SnapshotDiff{
		FromSnapshot: from.snapshot,
		ToSnapshot:   to.snapshot,
		Added:        make([]*types.FunctionRecord, 0),
		Removed:      make([]*types.FunctionRecord, 0),
		Modified:     make([]types.FunctionChange, 0),
		Unchanged:    make([]*types.FunctionRecord, 0),
	}

	for _, after := range to.functions {
		before, ok := fromBySemantic[after.SemanticID]
		switch {
		case !ok:
			diff.Added = append(diff.Added, after)
		case before.ContentID != after.ContentID:
			diff.Modified = append(diff.Modified, types.FunctionChange{
				Before:  before,
				After:   after,
				Changes: fieldChanges(before, after),
			})
		default:
			diff.Unchanged = append(diff.Unchanged, after)
		}
	}
	for _, before := range from.functions {
		if _, ok := toBySemantic[before.SemanticID]; !ok {
			diff.Removed = append(diff.Removed, before)
		}
	}

	diff.Statistics = statistics(diff, from.functions, to.functions)
	return diff
}

// fieldChanges computes the field-level change list for one modified pair.
func fieldChanges(before, after *types.FunctionRecord) []types.ChangeDetail {
	changes := make([]types.ChangeDetail, 0, 4)

	if before.Metrics != nil && after.Metrics != nil {
		b, a := before.Metrics, after.Metrics
		if b.CyclomaticComplexity != a.CyclomaticComplexity {
			changes = append(changes, types.ChangeDetail{
				Field: "cyclomatic_complexity", OldValue: b.CyclomaticComplexity, NewValue: a.CyclomaticComplexity,
				Impact: complexityImpact(b.CyclomaticComplexity, a.CyclomaticComplexity),
			})
		}
		if b.CognitiveComplexity != a.CognitiveComplexity {
			changes = append(changes, types.ChangeDetail{
				Field: "cognitive_complexity", OldValue: b.CognitiveComplexity, NewValue: a.CognitiveComplexity,
				Impact: complexityImpact(b.CognitiveComplexity, a.CognitiveComplexity),
			})
		}
		if b.LinesOfCode != a.LinesOfCode {
			changes = append(changes, types.ChangeDetail{
				Field: "lines_of_code", OldValue: b.LinesOfCode, NewValue: a.LinesOfCode,
				Impact: lineImpact(b.LinesOfCode, a.LinesOfCode),
			})
		}
		if b.ParameterCount != a.ParameterCount {
			changes = append(changes, types.ChangeDetail{
				Field: "parameter_count", OldValue: b.ParameterCount, NewValue: a.ParameterCount,
				Impact: relativeImpact(b.ParameterCount, a.ParameterCount),
			})
		}
	}

	if before.DisplayName != after.DisplayName {
		changes = append(changes, types.ChangeDetail{
			Field: "display_name", OldValue: before.DisplayName, NewValue: after.DisplayName, Impact: types.ImpactLow,
		})
	}
	if before.FilePath != after.FilePath {
		changes = append(changes, types.ChangeDetail{
			Field: "file_path", OldValue: before.FilePath, NewValue: after.FilePath, Impact: types.ImpactLow,
		})
	}
	if before.Start.Line != after.Start.Line || before.End.Line != after.End.Line {
		changes = append(changes, types.ChangeDetail{
			Field:    "line_bounds",
			OldValue: [2]int{before.Start.Line, before.End.Line},
			NewValue: [2]int{after.Start.Line, after.End.Line},
			Impact:   types.ImpactLow,
		})
	}
	return changes
}

// delta returns the absolute delta and the relative delta with the
// denominator floored at 1 so a prior value of 0 never divides by zero.
func delta(oldValue, newValue int) (abs int, rel float64) {
	abs = int(math.Abs(float64(newValue - oldValue)))
	floor := oldValue
	if floor < 1 {
		floor = 1
	}
	return abs, float64(abs) / float64(floor)
}

// complexityImpact scores complexity-family deltas. Thresholds are
// asymmetric with line counts: small absolute moves in complexity already
// matter.
func complexityImpact(oldValue, newValue int) types.ImpactLevel {
	abs, rel := delta(oldValue, newValue)
	switch {
	case abs >= 5 || rel >= 0.5:
		return types.ImpactHigh
	case abs >= 2 || rel >= 0.2:
		return types.ImpactMedium
	default:
		return types.ImpactLow
	}
}

// lineImpact scores line-count deltas; size changes are expected to be
// larger in magnitude than complexity changes.
func lineImpact(oldValue, newValue int) types.ImpactLevel {
	abs, rel := delta(oldValue, newValue)
	switch {
	case abs >= 50 || rel >= 0.5:
		return types.ImpactHigh
	case abs >= 20 || rel >= 0.2:
		return types.ImpactMedium
	default:
		return types.ImpactLow
	}
}

// relativeImpact scores fields with no meaningful absolute scale.
func relativeImpact(oldValue, newValue int) types.ImpactLevel {
	_, rel := delta(oldValue, newValue)
	switch {
	case rel >= 0.5:
		return types.ImpactHigh
	case rel >= 0.2:
		return types.ImpactMedium
	default:
		return types.ImpactLow
	}
}

// effectiveComplexity reads a function's cyclomatic complexity for
// aggregation. A function with no complexity-bearing metrics defaults to 1:
// an empty function still has one path through it.
func effectiveComplexity(fn *types.FunctionRecord) float64 {
	if fn.Metrics == nil || fn.Metrics.CyclomaticComplexity == 0 {
		return 1
	}
	return float64(fn.Metrics.CyclomaticComplexity)
}

// statistics computes population-level aggregates. Each side is averaged
// or summed independently and then differenced; averaging per-function
// deltas instead would double-count additions and removals.
func statistics(diff *types.SnapshotDiff, from, to []*types.FunctionRecord) types.DiffStatistics {
	stats := types.DiffStatistics{
		AddedCount:    len(diff.Added),
		RemovedCount:  len(diff.Removed),
		ModifiedCount: len(diff.Modified),
	}
	stats.TotalChanges = stats.AddedCount + stats.RemovedCount + stats.ModifiedCount

	stats.ComplexityChange = avgComplexity(to) - avgComplexity(from)
	stats.LinesChange = totalLines(to) - totalLines(from)
	return stats
}

func avgComplexity(functions []*types.FunctionRecord) float64 {
	if len(functions) == 0 {
		return 0
	}
	var sum float64
	for _, fn := range functions {
		sum += effectiveComplexity(fn)
	}
	return sum / float64(len(functions))
}

func totalLines(functions []*types.FunctionRecord) int {
	var sum int
	for _, fn := range functions {
		if fn.Metrics != nil {
			sum += fn.Metrics.LinesOfCode
		}
	}
	return sum
}
