package types

// FilterField enumerates the function attributes a caller may filter on.
// The set is closed: anything outside it is rejected before query building,
// so caller-supplied field names never reach SQL.
type FilterField string

const (
	FieldName                 FilterField = "name"
	FieldFilePath             FilterField = "file_path"
	FieldIsExported           FilterField = "is_exported"
	FieldIsAsync              FilterField = "is_async"
	FieldIsMethod             FilterField = "is_method"
	FieldCyclomaticComplexity FilterField = "cyclomatic_complexity"
	FieldCognitiveComplexity  FilterField = "cognitive_complexity"
	FieldLinesOfCode          FilterField = "lines_of_code"
	FieldParameterCount       FilterField = "parameter_count"
	FieldMaxNestingLevel      FilterField = "max_nesting_level"
)

// SortField enumerates the permitted sort keys for function listings.
type SortField string

const (
	SortByName                 SortField = "name"
	SortByFilePath             SortField = "file_path"
	SortByStartLine            SortField = "start_line"
	SortByCyclomaticComplexity SortField = "cyclomatic_complexity"
	SortByLinesOfCode          SortField = "lines_of_code"
)

// FilterOp is a comparison operator applied to a filter field.
type FilterOp string

const (
	OpEq   FilterOp = "="
	OpNe   FilterOp = "!="
	OpGt   FilterOp = ">"
	OpGte  FilterOp = ">="
	OpLt   FilterOp = "<"
	OpLte  FilterOp = "<="
	OpLike FilterOp = "like"
)

// FunctionFilter is one predicate over a whitelisted field.
type FunctionFilter struct {
	Field FilterField
	Op    FilterOp
	Value any
}

// QueryOptions narrows and pages a function listing. Zero value means
// "every function in the snapshot, storage order".
type QueryOptions struct {
	Filters  []FunctionFilter
	SortBy   SortField
	SortDesc bool
	Limit    int
	Offset   int

	// IncludeParameters and IncludeMetrics control whether owned rows are
	// loaded alongside each function.
	IncludeParameters bool
	IncludeMetrics    bool
}
