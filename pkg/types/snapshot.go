package types

import "time"

// Snapshot is an immutable point-in-time catalog of a codebase. It is
// created once per scan and never mutated afterwards, except for label and
// metadata enrichment. Deleting a snapshot cascades to every row it owns.
type Snapshot struct {
	ID          string
	CreatedAt   time.Time
	Label       string
	GitCommit   string
	GitBranch   string
	GitTag      string
	ProjectRoot string
	ConfigHash  string
	Metadata    SnapshotMetadata
}

// SnapshotMetadata holds aggregate counts computed at scan time. It is
// free-form in the sense that missing values default to zero; it never
// participates in identity.
type SnapshotMetadata struct {
	TotalFunctions     int            `json:"totalFunctions"`
	TotalFiles         int            `json:"totalFiles"`
	TotalLines         int            `json:"totalLines"`
	AvgComplexity      float64        `json:"avgComplexity"`
	MaxComplexity      int            `json:"maxComplexity"`
	ExportedFunctions  int            `json:"exportedFunctions"`
	AsyncFunctions     int            `json:"asyncFunctions"`
	ComplexityDistrib  map[string]int `json:"complexityDistribution,omitempty"`
	FileExtensions     map[string]int `json:"fileExtensions,omitempty"`
	AnalysisDurationMS int64          `json:"analysisDurationMs,omitempty"`
}
