package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/akiramei/funcqc-sub004/internal/storage"
	"github.com/akiramei/funcqc-sub004/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeSnapshotNotFound = -32001 // Referenced snapshot does not exist
	ErrorCodeFunctionNotFound = -32002 // Referenced function does not exist
	ErrorCodeNoSourceStored   = -32003 // Function has no stored source text
)

// handleListSnapshots handles the list_snapshots tool invocation
func (s *Server) handleListSnapshots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	limit := getIntDefault(args, "limit", 20)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	snapshots, err := s.storage.ListSnapshots(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list snapshots", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if len(snapshots) > limit {
		snapshots = snapshots[:limit]
	}

	entries := make([]map[string]interface{}, 0, len(snapshots))
	for _, snap := range snapshots {
		entries = append(entries, map[string]interface{}{
			"id":              snap.ID,
			"created_at":      snap.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			"label":           snap.Label,
			"git_commit":      snap.GitCommit,
			"git_branch":      snap.GitBranch,
			"total_functions": snap.Metadata.TotalFunctions,
			"total_files":     snap.Metadata.TotalFiles,
			"avg_complexity":  snap.Metadata.AvgComplexity,
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"snapshots": entries,
		"count":     len(entries),
	})), nil
}

// handleGetFunctions handles the get_functions tool invocation
func (s *Server) handleGetFunctions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	snapshotID, ok := args["snapshot_id"].(string)
	if !ok || snapshotID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "snapshot_id parameter is required", map[string]interface{}{
			"param":  "snapshot_id",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 50)
	if limit < 1 || limit > 500 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 500", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	opts := types.QueryOptions{
		Limit:             limit,
		Offset:            getIntDefault(args, "offset", 0),
		SortDesc:          getBoolDefault(args, "sort_desc", false),
		IncludeParameters: getBoolDefault(args, "include_parameters", false),
		IncludeMetrics:    getBoolDefault(args, "include_metrics", false),
	}
	if sortBy := getStringDefault(args, "sort_by", ""); sortBy != "" {
		opts.SortBy = types.SortField(sortBy)
	}
	if pattern := getStringDefault(args, "name_pattern", ""); pattern != "" {
		opts.Filters = append(opts.Filters, types.FunctionFilter{
			Field: types.FieldName, Op: types.OpLike, Value: pattern,
		})
	}
	if filePath := getStringDefault(args, "file_path", ""); filePath != "" {
		opts.Filters = append(opts.Filters, types.FunctionFilter{
			Field: types.FieldFilePath, Op: types.OpEq, Value: filePath,
		})
	}
	if minComplexity := getIntDefault(args, "min_complexity", 0); minComplexity > 0 {
		opts.Filters = append(opts.Filters, types.FunctionFilter{
			Field: types.FieldCyclomaticComplexity, Op: types.OpGte, Value: minComplexity,
		})
	}
	if getBoolDefault(args, "exported_only", false) {
		opts.Filters = append(opts.Filters, types.FunctionFilter{
			Field: types.FieldIsExported, Op: types.OpEq, Value: true,
		})
	}

	// Resolve the snapshot first so an unknown id is a distinct error,
	// not an empty result.
	if _, err := s.storage.GetSnapshot(ctx, snapshotID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newMCPError(ErrorCodeSnapshotNotFound, "snapshot not found", map[string]interface{}{
				"snapshot_id": snapshotID,
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to load snapshot", map[string]interface{}{
			"error": err.Error(),
		})
	}

	functions, err := s.storage.GetFunctions(ctx, snapshotID, opts)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "query failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"snapshot_id": snapshotID,
		"count":       len(functions),
		"functions":   functions,
	})), nil
}

// handleDiffSnapshots handles the diff_snapshots tool invocation
func (s *Server) handleDiffSnapshots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	fromID, ok := args["from"].(string)
	if !ok || fromID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "from parameter is required", map[string]interface{}{
			"param": "from", "reason": "missing or empty",
		})
	}
	toID, ok := args["to"].(string)
	if !ok || toID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "to parameter is required", map[string]interface{}{
			"param": "to", "reason": "missing or empty",
		})
	}

	result, err := s.differ.DiffSnapshots(ctx, fromID, toID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newMCPError(ErrorCodeSnapshotNotFound, "snapshot not found", map[string]interface{}{
				"from": fromID, "to": toID,
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "diff failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"from":       fromID,
		"to":         toID,
		"statistics": result.Statistics,
		"added":      functionSummaries(result.Added),
		"removed":    functionSummaries(result.Removed),
		"modified":   result.Modified,
	}
	if getBoolDefault(args, "include_unchanged", false) {
		response["unchanged"] = functionSummaries(result.Unchanged)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCallGraphStats handles the call_graph_stats tool invocation
func (s *Server) handleCallGraphStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	snapshotID, ok := args["snapshot_id"].(string)
	if !ok || snapshotID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "snapshot_id parameter is required", map[string]interface{}{
			"param": "snapshot_id", "reason": "missing or empty",
		})
	}

	if _, err := s.storage.GetSnapshot(ctx, snapshotID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newMCPError(ErrorCodeSnapshotNotFound, "snapshot not found", map[string]interface{}{
				"snapshot_id": snapshotID,
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to load snapshot", map[string]interface{}{
			"error": err.Error(),
		})
	}

	stats, err := s.storage.GetCallGraphStats(ctx, snapshotID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to compute call graph statistics", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"snapshot_id":          snapshotID,
		"total_edges":          stats.TotalEdges,
		"internal_edges":       stats.InternalEdges,
		"external_edges":       stats.ExternalEdges,
		"calling_functions":    stats.CallingFunctions,
		"avg_calls_per_caller": stats.AvgCallsPerCaller,
		"unreached_functions":  stats.UnreachedFunctions,
		"top_callers":          stats.TopCallers,
	})), nil
}

// handleExtractSource handles the extract_source tool invocation
func (s *Server) handleExtractSource(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	functionID, ok := args["function_id"].(string)
	if !ok || functionID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "function_id parameter is required", map[string]interface{}{
			"param": "function_id", "reason": "missing or empty",
		})
	}

	fn, err := s.storage.GetFunction(ctx, functionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newMCPError(ErrorCodeFunctionNotFound, "function not found", map[string]interface{}{
				"function_id": functionID,
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to load function", map[string]interface{}{
			"error": err.Error(),
		})
	}

	source, err := s.storage.ExtractFunctionSource(ctx, functionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newMCPError(ErrorCodeNoSourceStored, "no source stored for function", map[string]interface{}{
				"function_id": functionID,
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to extract source", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"function_id": functionID,
		"name":        fn.Name,
		"file_path":   fn.FilePath,
		"start_line":  fn.Start.Line,
		"end_line":    fn.End.Line,
		"source":      source,
	})), nil
}

// Helper functions

// functionSummaries flattens records to the fields a diff reader needs.
func functionSummaries(functions []*types.FunctionRecord) []map[string]interface{} {
	summaries := make([]map[string]interface{}, 0, len(functions))
	for _, fn := range functions {
		summaries = append(summaries, map[string]interface{}{
			"name":       fn.Name,
			"file_path":  fn.FilePath,
			"start_line": fn.Start.Line,
		})
	}
	return summaries
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
