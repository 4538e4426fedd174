package types

// ChangeType classifies one function's fate between two snapshots.
type ChangeType string

const (
	ChangeAdded     ChangeType = "added"
	ChangeRemoved   ChangeType = "removed"
	ChangeModified  ChangeType = "modified"
	ChangeUnchanged ChangeType = "unchanged"
)

// ImpactLevel grades the materiality of a single field change.
type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// ChangeDetail is one field-level delta on a modified function.
type ChangeDetail struct {
	Field    string
	OldValue any
	NewValue any
	Impact   ImpactLevel
}

// FunctionChange pairs the two versions of a modified function (matched by
// semantic id) with the field-level change list.
type FunctionChange struct {
	Before  *FunctionRecord
	After   *FunctionRecord
	Changes []ChangeDetail
}

// DiffStatistics aggregates a snapshot diff. Population-level shifts are
// computed by averaging or summing each side independently and then
// differencing, so additions and removals are not double-counted through
// per-function deltas.
type DiffStatistics struct {
	TotalChanges  int
	AddedCount    int
	RemovedCount  int
	ModifiedCount int

	// ComplexityChange is avg(to) - avg(from) cyclomatic complexity.
	ComplexityChange float64
	// LinesChange is sum(to) - sum(from) lines of code.
	LinesChange int
}

// SnapshotDiff is the complete comparison of two snapshots' function sets.
// Every function on the "from" side appears in exactly one of removed,
// modified or unchanged; every function on the "to" side in exactly one of
// added, modified or unchanged.
type SnapshotDiff struct {
	FromSnapshot *Snapshot
	ToSnapshot   *Snapshot
	Added        []*FunctionRecord
	Removed      []*FunctionRecord
	Modified     []FunctionChange
	Unchanged    []*FunctionRecord
	Statistics   DiffStatistics
}
