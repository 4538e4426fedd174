package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/akiramei/funcqc-sub004/internal/identity"
	"github.com/akiramei/funcqc-sub004/pkg/types"
)

var callEdgeInsertSQL = `
	INSERT INTO call_edges (
		id, snapshot_id, caller_function_id, callee_function_id,
		callee_name, callee_signature, caller_class_name, callee_class_name,
		call_type, call_context, line_number, column_number,
		is_async, is_chained, confidence_score, metadata
	) VALUES (` + placeholderList(callEdgeBatch.columns) + `)
	ON CONFLICT(id) DO NOTHING
`

// Large edge sets are serialized as one payload of self-describing
// records and expanded server-side. Unlike the positional column arrays
// used for functions, named fields tolerate the heterogeneous optional
// columns (nullable callee id, nullable class names) gracefully.
const callEdgeInsertJSONSQL = `
	INSERT INTO call_edges (
		id, snapshot_id, caller_function_id, callee_function_id,
		callee_name, callee_signature, caller_class_name, callee_class_name,
		call_type, call_context, line_number, column_number,
		is_async, is_chained, confidence_score, metadata
	)
	SELECT
		json_extract(value, '$.id'),
		json_extract(value, '$.snapshotId'),
		json_extract(value, '$.callerFunctionId'),
		json_extract(value, '$.calleeFunctionId'),
		json_extract(value, '$.calleeName'),
		json_extract(value, '$.calleeSignature'),
		json_extract(value, '$.callerClassName'),
		json_extract(value, '$.calleeClassName'),
		json_extract(value, '$.callType'),
		json_extract(value, '$.callContext'),
		json_extract(value, '$.lineNumber'),
		json_extract(value, '$.columnNumber'),
		json_extract(value, '$.isAsync'),
		json_extract(value, '$.isChained'),
		json_extract(value, '$.confidenceScore'),
		json_extract(value, '$.metadata')
	FROM json_each(?) WHERE true
	ON CONFLICT(id) DO NOTHING
`

// callEdgeRecord is the self-describing wire form of one edge.
type callEdgeRecord struct {
	ID               string  `json:"id"`
	SnapshotID       string  `json:"snapshotId"`
	CallerFunctionID string  `json:"callerFunctionId"`
	CalleeFunctionID *string `json:"calleeFunctionId"`
	CalleeName       string  `json:"calleeName"`
	CalleeSignature  *string `json:"calleeSignature"`
	CallerClassName  *string `json:"callerClassName"`
	CalleeClassName  *string `json:"calleeClassName"`
	CallType         string  `json:"callType"`
	CallContext      string  `json:"callContext"`
	LineNumber       int     `json:"lineNumber"`
	ColumnNumber     int     `json:"columnNumber"`
	IsAsync          bool    `json:"isAsync"`
	IsChained        bool    `json:"isChained"`
	ConfidenceScore  float64 `json:"confidenceScore"`
	Metadata         string  `json:"metadata"`
}

// normalizeCallContext folds the analyzer's resolution vocabulary down to
// the store's closed context set. Unknown contexts default to normal.
func normalizeCallContext(raw types.CallContext) types.CallContext {
	switch raw {
	case types.ContextConditional, "if", "ternary", "switch":
		return types.ContextConditional
	case types.ContextLoop, "for", "while", "do-while":
		return types.ContextLoop
	case types.ContextTry, "finally":
		return types.ContextTry
	case types.ContextCatch:
		return types.ContextCatch
	default:
		return types.ContextNormal
	}
}

// insertCallEdgesWithQuerier validates and persists caller→callee edges.
// Edges referencing function ids outside the snapshot's function set are
// dropped with a diagnostic log rather than treated as fatal input: static
// analysis of dynamic call sites is inherently approximate, so dangling
// endpoints are an expected byproduct, not a defect. Returns the number of
// edges persisted.
func (s *SQLiteStorage) insertCallEdgesWithQuerier(ctx context.Context, q querier, snapshotID string, edges []*types.CallEdge) (int, error) {
	if len(edges) == 0 {
		return 0, nil
	}

	validIDs, err := s.functionIDSet(ctx, q, snapshotID)
	if err != nil {
		return 0, err
	}

	records := make([]callEdgeRecord, 0, len(edges))
	dropped := 0
	for _, edge := range edges {
		if !validIDs[edge.CallerFunctionID] {
			dropped++
			s.logger.Debug("dropping call edge with unknown caller",
				"caller", edge.CallerFunctionID, "callee", edge.CalleeName, "snapshot", snapshotID)
			continue
		}
		if edge.CalleeFunctionID != nil && !validIDs[*edge.CalleeFunctionID] {
			dropped++
			s.logger.Debug("dropping call edge with unknown callee",
				"caller", edge.CallerFunctionID, "callee", *edge.CalleeFunctionID, "snapshot", snapshotID)
			continue
		}

		record, err := buildEdgeRecord(edge, snapshotID)
		if err != nil {
			return 0, types.NewWriteError("insert call edges", err)
		}
		records = append(records, record)
	}

	if dropped > 0 {
		s.logger.Debug("filtered dangling call edges",
			"snapshot", snapshotID, "dropped", dropped, "kept", len(records))
	}
	if len(records) == 0 {
		return 0, nil
	}

	if len(records) < smallBatchThreshold {
		for _, r := range records {
			_, err := q.ExecContext(ctx, callEdgeInsertSQL,
				r.ID, r.SnapshotID, r.CallerFunctionID, r.CalleeFunctionID,
				r.CalleeName, r.CalleeSignature, r.CallerClassName, r.CalleeClassName,
				r.CallType, r.CallContext, r.LineNumber, r.ColumnNumber,
				r.IsAsync, r.IsChained, r.ConfidenceScore, r.Metadata)
			if err != nil {
				return 0, types.NewWriteError("insert call edges", err)
			}
		}
	} else {
		limit := callEdgeBatch.maxRowsPerBatch()
		for start := 0; start < len(records); start += limit {
			end := start + limit
			if end > len(records) {
				end = len(records)
			}
			payload, err := json.Marshal(records[start:end])
			if err != nil {
				return 0, types.NewWriteError("insert call edges", err)
			}
			if _, err := q.ExecContext(ctx, callEdgeInsertJSONSQL, string(payload)); err != nil {
				return 0, types.NewWriteError("insert call edges", err)
			}
		}
	}

	s.verifyRowCount(ctx, q, "call_edges", snapshotID, len(records))
	return len(records), nil
}

// buildEdgeRecord normalizes, sanitizes and keys one edge for persistence.
func buildEdgeRecord(edge *types.CallEdge, snapshotID string) (callEdgeRecord, error) {
	calleeKey := identity.ExternalCalleeKey(edge.CalleeName)
	if edge.CalleeFunctionID != nil {
		calleeKey = *edge.CalleeFunctionID
	}
	id := edge.ID
	if id == "" {
		id = identity.EdgeID(edge.CallerFunctionID, calleeKey, snapshotID, edge.Line, edge.Column)
		edge.ID = id
	}

	metadata := "{}"
	if edge.Metadata != nil {
		encoded, err := json.Marshal(edge.Metadata)
		if err != nil {
			return callEdgeRecord{}, fmt.Errorf("encode edge metadata: %w", err)
		}
		metadata = sanitizeText(string(encoded))
	}

	sanitizePtr := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := sanitizeText(*p)
		return &v
	}

	callType := string(edge.CallType)
	if callType == "" {
		callType = string(types.CallTypeDirect)
	}

	var calleeSignature *string
	if edge.CalleeSignature != "" {
		v := sanitizeText(edge.CalleeSignature)
		calleeSignature = &v
	}

	return callEdgeRecord{
		ID:               id,
		SnapshotID:       snapshotID,
		CallerFunctionID: edge.CallerFunctionID,
		CalleeFunctionID: edge.CalleeFunctionID,
		CalleeName:       sanitizeText(edge.CalleeName),
		CalleeSignature:  calleeSignature,
		CallerClassName:  sanitizePtr(edge.CallerClassName),
		CalleeClassName:  sanitizePtr(edge.CalleeClassName),
		CallType:         callType,
		CallContext:      string(normalizeCallContext(edge.CallContext)),
		LineNumber:       edge.Line,
		ColumnNumber:     edge.Column,
		IsAsync:          edge.IsAsync,
		IsChained:        edge.IsChained,
		ConfidenceScore:  edge.ConfidenceScore,
		Metadata:         metadata,
	}, nil
}

// functionIDSet loads the snapshot's live function id set for referential
// filtering.
func (s *SQLiteStorage) functionIDSet(ctx context.Context, q querier, snapshotID string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM functions WHERE snapshot_id = ?`, snapshotID)
	if err != nil {
		return nil, types.NewReadError("load function ids", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewReadError("load function ids", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// InsertCallEdges filters and persists edges atomically.
func (s *SQLiteStorage) InsertCallEdges(ctx context.Context, snapshotID string, edges []*types.CallEdge) (int, error) {
	var inserted int
	err := s.ExecuteInTransaction(ctx, func(tx Tx) error {
		var txErr error
		inserted, txErr = tx.InsertCallEdges(ctx, snapshotID, edges)
		return txErr
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

const callEdgeSelectColumns = `
	id, snapshot_id, caller_function_id, callee_function_id, callee_name,
	callee_signature, caller_class_name, callee_class_name, call_type,
	call_context, line_number, column_number, is_async, is_chained,
	confidence_score, metadata`

// scanCallEdge scans one call_edges row.
func scanCallEdge(row interface{ Scan(...interface{}) error }) (*types.CallEdge, error) {
	var edge types.CallEdge
	var calleeID, calleeSignature, callerClass, calleeClass sql.NullString
	var callType, callContext, metadata string
	err := row.Scan(
		&edge.ID, &edge.SnapshotID, &edge.CallerFunctionID, &calleeID,
		&edge.CalleeName, &calleeSignature, &callerClass, &calleeClass,
		&callType, &callContext, &edge.Line, &edge.Column,
		&edge.IsAsync, &edge.IsChained, &edge.ConfidenceScore, &metadata,
	)
	if err != nil {
		return nil, err
	}
	if calleeID.Valid {
		edge.CalleeFunctionID = &calleeID.String
	}
	edge.CalleeSignature = calleeSignature.String
	if callerClass.Valid {
		edge.CallerClassName = &callerClass.String
	}
	if calleeClass.Valid {
		edge.CalleeClassName = &calleeClass.String
	}
	edge.CallType = types.CallType(callType)
	edge.CallContext = types.CallContext(callContext)
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &edge.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt edge metadata: %w", err)
		}
	}
	return &edge, nil
}

// queryCallEdges runs one edge query and scans all rows.
func (s *SQLiteStorage) queryCallEdges(ctx context.Context, op, query string, args ...any) ([]*types.CallEdge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.NewReadError(op, err)
	}
	defer func() { _ = rows.Close() }()

	edges := make([]*types.CallEdge, 0)
	for rows.Next() {
		edge, err := scanCallEdge(rows)
		if err != nil {
			return nil, types.NewReadError(op, err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewReadError(op, err)
	}
	return edges, nil
}

func (s *SQLiteStorage) GetCallEdgesByCaller(ctx context.Context, callerFunctionID string) ([]*types.CallEdge, error) {
	query := `SELECT ` + callEdgeSelectColumns + ` FROM call_edges WHERE caller_function_id = ? ORDER BY line_number, column_number`
	return s.queryCallEdges(ctx, "get call edges by caller", query, callerFunctionID)
}

func (s *SQLiteStorage) GetCallEdgesByCallee(ctx context.Context, calleeFunctionID string) ([]*types.CallEdge, error) {
	query := `SELECT ` + callEdgeSelectColumns + ` FROM call_edges WHERE callee_function_id = ? ORDER BY caller_function_id, line_number`
	return s.queryCallEdges(ctx, "get call edges by callee", query, calleeFunctionID)
}

// GetCallGraphStats computes aggregate statistics over one snapshot's
// call edges.
func (s *SQLiteStorage) GetCallGraphStats(ctx context.Context, snapshotID string) (*types.CallGraphStats, error) {
	stats := &types.CallGraphStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(callee_function_id),
		       COUNT(*) - COUNT(callee_function_id),
		       COUNT(DISTINCT caller_function_id)
		FROM call_edges
		WHERE snapshot_id = ?
	`, snapshotID).Scan(&stats.TotalEdges, &stats.InternalEdges, &stats.ExternalEdges, &stats.CallingFunctions)
	if err != nil {
		return nil, types.NewReadError("get call graph stats", err)
	}

	var totalFunctions int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM functions WHERE snapshot_id = ?`, snapshotID).Scan(&totalFunctions)
	if err != nil {
		return nil, types.NewReadError("get call graph stats", err)
	}
	if totalFunctions > 0 {
		stats.AvgCallsPerCaller = float64(stats.TotalEdges) / float64(totalFunctions)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM functions f
		WHERE f.snapshot_id = ?
		  AND NOT EXISTS (
			SELECT 1 FROM call_edges e
			WHERE e.snapshot_id = f.snapshot_id AND e.callee_function_id = f.id
		  )
	`, snapshotID).Scan(&stats.UnreachedFunctions)
	if err != nil {
		return nil, types.NewReadError("get call graph stats", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.caller_function_id, f.name, COUNT(*) AS call_count
		FROM call_edges e
		JOIN functions f ON f.id = e.caller_function_id
		WHERE e.snapshot_id = ?
		GROUP BY e.caller_function_id, f.name
		ORDER BY call_count DESC, f.name
		LIMIT 10
	`, snapshotID)
	if err != nil {
		return nil, types.NewReadError("get call graph stats", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var top types.CallerCount
		if err := rows.Scan(&top.FunctionID, &top.Name, &top.CallCount); err != nil {
			return nil, types.NewReadError("get call graph stats", err)
		}
		stats.TopCallers = append(stats.TopCallers, top)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewReadError("get call graph stats", err)
	}
	return stats, nil
}

// GetCallGraph extracts a snapshot's full call graph for visualization.
// With a root function set, the graph is restricted to edges reachable
// from it via breadth-first traversal over internal edges.
func (s *SQLiteStorage) GetCallGraph(ctx context.Context, snapshotID string, opts CallGraphOptions) (*types.CallGraph, error) {
	query := `SELECT ` + callEdgeSelectColumns + ` FROM call_edges WHERE snapshot_id = ?`
	if !opts.IncludeExternal {
		query += ` AND callee_function_id IS NOT NULL`
	}
	edges, err := s.queryCallEdges(ctx, "get call graph", query, snapshotID)
	if err != nil {
		return nil, err
	}

	if opts.RootFunctionID != "" {
		edges = reachableEdges(edges, opts.RootFunctionID)
	}

	nodeIDs := make(map[string]bool)
	for _, edge := range edges {
		nodeIDs[edge.CallerFunctionID] = true
		if edge.CalleeFunctionID != nil {
			nodeIDs[*edge.CalleeFunctionID] = true
		}
	}
	if opts.RootFunctionID != "" {
		nodeIDs[opts.RootFunctionID] = true
	}

	graph := &types.CallGraph{SnapshotID: snapshotID, Edges: make([]types.CallEdge, 0, len(edges))}
	for _, edge := range edges {
		graph.Edges = append(graph.Edges, *edge)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, file_path, start_line
		FROM functions
		WHERE snapshot_id = ?
		ORDER BY file_path, start_line
	`, snapshotID)
	if err != nil {
		return nil, types.NewReadError("get call graph", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var node types.CallGraphNode
		if err := rows.Scan(&node.ID, &node.Name, &node.FilePath, &node.Line); err != nil {
			return nil, types.NewReadError("get call graph", err)
		}
		if opts.RootFunctionID == "" || nodeIDs[node.ID] {
			graph.Nodes = append(graph.Nodes, node)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewReadError("get call graph", err)
	}
	return graph, nil
}

// reachableEdges keeps edges reachable from root via internal callees.
func reachableEdges(edges []*types.CallEdge, root string) []*types.CallEdge {
	outgoing := make(map[string][]*types.CallEdge)
	for _, edge := range edges {
		outgoing[edge.CallerFunctionID] = append(outgoing[edge.CallerFunctionID], edge)
	}

	visited := map[string]bool{root: true}
	queue := []string{root}
	kept := make([]*types.CallEdge, 0)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, edge := range outgoing[current] {
			kept = append(kept, edge)
			if edge.CalleeFunctionID != nil && !visited[*edge.CalleeFunctionID] {
				visited[*edge.CalleeFunctionID] = true
				queue = append(queue, *edge.CalleeFunctionID)
			}
		}
	}
	return kept
}
