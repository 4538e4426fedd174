package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// listSnapshotsTool returns the tool definition for list_snapshots
func listSnapshotsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_snapshots",
		Description: "List stored function-catalog snapshots, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of snapshots to return (1-100)",
					"default":     20,
					"minimum":     1,
					"maximum":     100,
				},
			},
		},
	}
}

// getFunctionsTool returns the tool definition for get_functions
func getFunctionsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_functions",
		Description: "Query a snapshot's function catalog with filtering, sorting and pagination",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"snapshot_id": map[string]interface{}{
					"type":        "string",
					"description": "Snapshot to query",
				},
				"name_pattern": map[string]interface{}{
					"type":        "string",
					"description": "SQL LIKE pattern on function name (e.g. 'handle%')",
				},
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Exact file path filter",
				},
				"min_complexity": map[string]interface{}{
					"type":        "integer",
					"description": "Only functions with cyclomatic complexity >= this value",
				},
				"exported_only": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, only exported functions",
					"default":     false,
				},
				"sort_by": map[string]interface{}{
					"type":        "string",
					"description": "Sort field",
					"enum":        []string{"name", "file_path", "start_line", "cyclomatic_complexity", "lines_of_code"},
				},
				"sort_desc": map[string]interface{}{
					"type":        "boolean",
					"description": "Sort descending",
					"default":     false,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of functions to return (1-500)",
					"default":     50,
					"minimum":     1,
					"maximum":     500,
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Pagination offset",
					"default":     0,
					"minimum":     0,
				},
				"include_parameters": map[string]interface{}{
					"type":        "boolean",
					"description": "Attach parameter lists",
					"default":     false,
				},
				"include_metrics": map[string]interface{}{
					"type":        "boolean",
					"description": "Attach quality metrics",
					"default":     false,
				},
			},
			Required: []string{"snapshot_id"},
		},
	}
}

// diffSnapshotsTool returns the tool definition for diff_snapshots
func diffSnapshotsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "diff_snapshots",
		Description: "Compare two snapshots: added, removed, modified and unchanged functions with impact-scored field changes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"from": map[string]interface{}{
					"type":        "string",
					"description": "Baseline snapshot id",
				},
				"to": map[string]interface{}{
					"type":        "string",
					"description": "Comparison snapshot id",
				},
				"include_unchanged": map[string]interface{}{
					"type":        "boolean",
					"description": "Include the unchanged function list in the response",
					"default":     false,
				},
			},
			Required: []string{"from", "to"},
		},
	}
}

// callGraphStatsTool returns the tool definition for call_graph_stats
func callGraphStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "call_graph_stats",
		Description: "Aggregate call-graph statistics for one snapshot: edge counts, top callers, unreached functions",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"snapshot_id": map[string]interface{}{
					"type":        "string",
					"description": "Snapshot to analyze",
				},
			},
			Required: []string{"snapshot_id"},
		},
	}
}

// extractSourceTool returns the tool definition for extract_source
func extractSourceTool() mcp.Tool {
	return mcp.Tool{
		Name:        "extract_source",
		Description: "Extract one function's source text from the content store",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"function_id": map[string]interface{}{
					"type":        "string",
					"description": "Physical function id",
				},
			},
			Required: []string{"function_id"},
		},
	}
}
