package types

// AccessModifier is the declared visibility of a function or method.
type AccessModifier string

const (
	AccessPublic    AccessModifier = "public"
	AccessPrivate   AccessModifier = "private"
	AccessProtected AccessModifier = "protected"
)

// Position represents a location in source code. Lines and columns are
// 1-based; a zero column means "whole line" on extraction paths.
type Position struct {
	Line   int
	Column int
}

// FunctionRecord is one function or method observed within one snapshot.
//
// Identity is split across three independent axes:
//
//   - ID (physical): unique per observed occurrence. Primary key and the
//     foreign-key target for parameters, metrics and call edges.
//   - SemanticID: hash of the function's role (name, context path,
//     modifiers). Stable across snapshots while the role is unchanged,
//     even if the body changes. Join key for diffing.
//   - ContentID: hash of the normalized implementation. Changes whenever
//     behavior changes, even if the signature does not.
//
// Two records with equal SemanticID but different ContentID are the same
// logical function, modified. Equal ContentID across snapshots means an
// unmodified implementation even after a rename; the diff engine matches
// on SemanticID only and uses ContentID purely as a change indicator.
//
// Records are created in bulk once per scan, never updated in place, and
// deleted only through snapshot deletion.
type FunctionRecord struct {
	// Identity
	ID         string
	SemanticID string
	ContentID  string
	SnapshotID string

	// Role
	Name          string
	DisplayName   string
	Signature     string
	SignatureHash string
	ContextPath   []string
	Modifiers     []string

	// Location
	FilePath     string
	Start        Position
	End          Position
	NestingLevel int

	// Trait flags
	IsExported    bool
	IsAsync       bool
	IsGenerator   bool
	IsArrowFunc   bool
	IsMethod      bool
	IsConstructor bool
	IsStatic      bool

	AccessModifier AccessModifier

	// ASTHash is the structural hash of the raw (non-normalized) AST.
	ASTHash string

	// SourceCode is the function's source text when carried inline;
	// SourceFileRefID points at the snapshot-scoped file reference when
	// the text lives in the content store instead.
	SourceCode      string
	SourceFileRefID string

	// Owned rows
	Parameters []Parameter
	Metrics    *QualityMetrics
}

// Parameter is one declared parameter of one function record. It is owned
// exclusively by its function and is created and deleted with it.
type Parameter struct {
	FunctionID   string
	Name         string
	Type         string
	TypeSimple   string
	Position     int
	IsOptional   bool
	IsRest       bool
	DefaultValue string
}

// QualityMetrics is a 1:1 extension of a function record holding computed
// measurements. It is produced by an external analyzer and persisted
// atomically with the function row. The optional derived scores are nil
// when the analyzer did not compute them.
type QualityMetrics struct {
	FunctionID           string
	SnapshotID           string
	LinesOfCode          int
	TotalLines           int
	CyclomaticComplexity int
	CognitiveComplexity  int
	MaxNestingLevel      int
	ParameterCount       int
	ReturnStatementCount int
	BranchCount          int
	LoopCount            int
	TryCatchCount        int
	AsyncAwaitCount      int
	CallbackCount        int
	CommentLines         int
	CodeToCommentRatio   float64
	HalsteadVolume       *float64
	HalsteadDifficulty   *float64
	MaintainabilityIndex *float64
}
