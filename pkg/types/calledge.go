package types

// CallType classifies how a call site invokes its callee.
type CallType string

const (
	CallTypeDirect      CallType = "direct"
	CallTypeConditional CallType = "conditional"
	CallTypeAsync       CallType = "async"
	CallTypeDynamic     CallType = "dynamic"
	CallTypeExternal    CallType = "external"
)

// CallContext is the stored, normalized execution context of a call site.
// The analyzer's internal resolution vocabulary is intentionally folded
// down to this closed set before persistence.
type CallContext string

const (
	ContextNormal      CallContext = "normal"
	ContextConditional CallContext = "conditional"
	ContextLoop        CallContext = "loop"
	ContextTry         CallContext = "try"
	ContextCatch       CallContext = "catch"
)

// CallEdge is a directed relation from a caller function record to either
// another function record (resolved callee) or an external symbol known
// only by name and signature. Both endpoints, when they reference function
// records, must belong to the same snapshot as the edge itself; edges
// violating this are dropped before persistence, never stored dangling.
type CallEdge struct {
	ID               string
	SnapshotID       string
	CallerFunctionID string

	// CalleeFunctionID is nil for unresolved/external callees.
	CalleeFunctionID *string
	CalleeName       string
	CalleeSignature  string
	CallerClassName  *string
	CalleeClassName  *string

	CallType    CallType
	CallContext CallContext
	Line        int
	Column      int
	IsAsync     bool
	IsChained   bool

	// ConfidenceScore is in [0,1] for heuristically resolved edges.
	ConfidenceScore float64
	Metadata        map[string]any
}

// IsExternal reports whether the edge targets a symbol outside the
// snapshot's function set.
func (e *CallEdge) IsExternal() bool {
	return e.CalleeFunctionID == nil
}

// CallGraphStats are aggregate statistics over one snapshot's call edges.
type CallGraphStats struct {
	TotalEdges        int
	InternalEdges     int
	ExternalEdges     int
	CallingFunctions  int
	AvgCallsPerCaller float64
	// UnreachedFunctions counts functions with zero incoming internal calls.
	UnreachedFunctions int
	TopCallers         []CallerCount
}

// CallerCount pairs a caller function id with its outgoing edge count.
type CallerCount struct {
	FunctionID string
	Name       string
	CallCount  int
}

// CallGraph is a full extraction of one snapshot's call graph for
// visualization. Nodes are function records; edges reference node ids.
type CallGraph struct {
	SnapshotID string
	Nodes      []CallGraphNode
	Edges      []CallEdge
}

// CallGraphNode is the minimal function projection carried by graph
// extraction.
type CallGraphNode struct {
	ID       string
	Name     string
	FilePath string
	Line     int
}
