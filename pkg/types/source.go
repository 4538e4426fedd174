package types

import "time"

// SourceFile is a reconstituted view of one file within one snapshot:
// the per-snapshot reference joined back to its deduplicated content.
type SourceFile struct {
	// RefID identifies the snapshot-scoped reference row.
	RefID      string
	SnapshotID string
	FilePath   string

	// ContentID is the composite (hash, size) key of the shared content.
	ContentID string
	Content   string
	Hash      string
	SizeBytes int64
	LineCount int

	FileModTime   time.Time
	FunctionCount int
}
