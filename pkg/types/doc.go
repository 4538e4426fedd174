// Package types provides shared type definitions for the funcqc storage
// engine.
//
// This package defines the domain types used across components: snapshots,
// function records, parameters, quality metrics, call edges, source files,
// query options, diff results and storage errors.
//
// # Core Types
//
// FunctionRecord represents one function or method observed in one
// snapshot, identified along three independent axes:
//
//	fn := &types.FunctionRecord{
//	    ID:         physicalID,          // unique per observed occurrence
//	    SemanticID: identity.SemanticID( // stable across body edits
//	        "parseFile", []string{"src/parser.ts"}, []string{"exported"}),
//	    ContentID:  identity.ContentID(normalizedBody), // stable across renames
//	}
//
// CallEdge represents a directed caller→callee relation, possibly
// referencing an unresolved external symbol:
//
//	edge := &types.CallEdge{
//	    CallerFunctionID: caller.ID,
//	    CalleeName:       "fetch",
//	    CallType:         types.CallTypeExternal,
//	    CallContext:      types.ContextTry,
//	    ConfidenceScore:  0.8,
//	}
//
// # Query Options
//
// Function listings are narrowed through a closed enumeration of filter
// and sort fields. Field names outside the enumeration are rejected before
// any SQL is built:
//
//	opts := types.QueryOptions{
//	    Filters: []types.FunctionFilter{
//	        {Field: types.FieldCyclomaticComplexity, Op: types.OpGte, Value: 10},
//	    },
//	    SortBy: types.SortByCyclomaticComplexity,
//	    Limit:  20,
//	}
//
// # Error Signaling
//
// StorageError wraps every failure crossing the storage boundary with an
// operation message and a kind code (connection, write, read):
//
//	var serr *types.StorageError
//	if errors.As(err, &serr) && serr.Kind == types.KindWrite {
//	    // constraint violation or serialization failure, already rolled back
//	}
//
// "Not found" is a distinct non-error outcome and never arrives as a
// StorageError.
package types
