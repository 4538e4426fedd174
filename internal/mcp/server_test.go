package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akiramei/funcqc-sub004/internal/diff"
	"github.com/akiramei/funcqc-sub004/internal/identity"
	"github.com/akiramei/funcqc-sub004/internal/storage"
	"github.com/akiramei/funcqc-sub004/pkg/types"
)

func setupServer(t *testing.T) (*Server, *storage.SQLiteStorage) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return &Server{storage: store, differ: diff.NewEngine(store)}, store
}

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	var request mcp.CallToolRequest
	request.Params.Arguments = args
	return request
}

// resultText extracts the text payload of a tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return text.Text
}

func seedFunction(t *testing.T, store *storage.SQLiteStorage, snapshotID, name string, complexity int) *types.FunctionRecord {
	t.Helper()
	fn := &types.FunctionRecord{
		ID:            uuid.NewString(),
		SemanticID:    identity.SemanticID(name, []string{"src/a.ts"}, nil),
		ContentID:     identity.ContentID(name + "-body"),
		SnapshotID:    snapshotID,
		Name:          name,
		DisplayName:   name,
		Signature:     name + "()",
		SignatureHash: identity.SignatureHash(name + "()"),
		FilePath:      "src/a.ts",
		Start:         types.Position{Line: 1},
		End:           types.Position{Line: 4},
		SourceCode:    "function " + name + "() {}",
		IsExported:    true,
		Metrics: &types.QualityMetrics{
			FunctionID:           "",
			CyclomaticComplexity: complexity,
			LinesOfCode:          4,
		},
	}
	fn.Metrics.FunctionID = fn.ID
	require.NoError(t, store.SaveFunctions(context.Background(), snapshotID, []*types.FunctionRecord{fn}))
	return fn
}

func seedSnapshot(t *testing.T, store *storage.SQLiteStorage, label string) string {
	t.Helper()
	snap := &types.Snapshot{ID: uuid.NewString(), Label: label, ProjectRoot: "/p"}
	require.NoError(t, store.SaveSnapshot(context.Background(), snap))
	return snap.ID
}

func TestHandleListSnapshots(t *testing.T) {
	server, store := setupServer(t)
	seedSnapshot(t, store, "one")
	seedSnapshot(t, store, "two")

	result, err := server.handleListSnapshots(context.Background(), toolRequest(nil))
	require.NoError(t, err)

	var response struct {
		Count     int                      `json:"count"`
		Snapshots []map[string]interface{} `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, 2, response.Count)
	assert.Len(t, response.Snapshots, 2)
}

func TestHandleListSnapshots_LimitValidation(t *testing.T) {
	server, _ := setupServer(t)

	_, err := server.handleListSnapshots(context.Background(), toolRequest(map[string]interface{}{
		"limit": float64(500),
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleGetFunctions(t *testing.T) {
	server, store := setupServer(t)
	snapID := seedSnapshot(t, store, "query")
	seedFunction(t, store, snapID, "handleLogin", 12)
	seedFunction(t, store, snapID, "handleLogout", 2)
	seedFunction(t, store, snapID, "parseToken", 4)

	result, err := server.handleGetFunctions(context.Background(), toolRequest(map[string]interface{}{
		"snapshot_id":  snapID,
		"name_pattern": "handle%",
	}))
	require.NoError(t, err)

	var response struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, 2, response.Count)
}

func TestHandleGetFunctions_SnapshotNotFound(t *testing.T) {
	server, _ := setupServer(t)

	_, err := server.handleGetFunctions(context.Background(), toolRequest(map[string]interface{}{
		"snapshot_id": "missing",
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeSnapshotNotFound, mcpErr.Code)
}

func TestHandleGetFunctions_MissingSnapshotID(t *testing.T) {
	server, _ := setupServer(t)

	_, err := server.handleGetFunctions(context.Background(), toolRequest(map[string]interface{}{}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleDiffSnapshots(t *testing.T) {
	server, store := setupServer(t)
	fromID := seedSnapshot(t, store, "from")
	toID := seedSnapshot(t, store, "to")
	seedFunction(t, store, fromID, "stays", 2)
	seedFunction(t, store, toID, "stays", 2)
	seedFunction(t, store, toID, "fresh", 1)

	result, err := server.handleDiffSnapshots(context.Background(), toolRequest(map[string]interface{}{
		"from": fromID,
		"to":   toID,
	}))
	require.NoError(t, err)

	var response struct {
		Added      []map[string]interface{} `json:"added"`
		Removed    []map[string]interface{} `json:"removed"`
		Statistics types.DiffStatistics     `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Len(t, response.Added, 1)
	assert.Empty(t, response.Removed)
	assert.Equal(t, 1, response.Statistics.AddedCount)
}

func TestHandleCallGraphStats_EmptySnapshot(t *testing.T) {
	server, store := setupServer(t)
	snapID := seedSnapshot(t, store, "empty")

	result, err := server.handleCallGraphStats(context.Background(), toolRequest(map[string]interface{}{
		"snapshot_id": snapID,
	}))
	require.NoError(t, err)

	var response struct {
		TotalEdges int `json:"total_edges"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Zero(t, response.TotalEdges)
}

func TestHandleExtractSource(t *testing.T) {
	server, store := setupServer(t)
	snapID := seedSnapshot(t, store, "source")
	fn := seedFunction(t, store, snapID, "target", 1)

	result, err := server.handleExtractSource(context.Background(), toolRequest(map[string]interface{}{
		"function_id": fn.ID,
	}))
	require.NoError(t, err)

	var response struct {
		Name   string `json:"name"`
		Source string `json:"source"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, "target", response.Name)
	assert.Equal(t, "function target() {}", response.Source)
}

func TestHandleExtractSource_FunctionNotFound(t *testing.T) {
	server, _ := setupServer(t)

	_, err := server.handleExtractSource(context.Background(), toolRequest(map[string]interface{}{
		"function_id": "missing",
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeFunctionNotFound, mcpErr.Code)
}

func TestParamHelpers(t *testing.T) {
	args := map[string]interface{}{
		"flag":  true,
		"count": float64(7),
		"name":  "x",
	}
	assert.True(t, getBoolDefault(args, "flag", false))
	assert.False(t, getBoolDefault(args, "missing", false))
	assert.Equal(t, 7, getIntDefault(args, "count", 1))
	assert.Equal(t, 1, getIntDefault(args, "missing", 1))
	assert.Equal(t, "x", getStringDefault(args, "name", "d"))
	assert.Equal(t, "d", getStringDefault(args, "missing", "d"))
}
