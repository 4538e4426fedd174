package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// maxBindParameters is SQLITE_MAX_VARIABLE_NUMBER for both drivers.
	maxBindParameters = 32766

	// batchSafetyFraction leaves headroom below the bind-parameter
	// ceiling for driver-level overhead. Must stay strictly below 1.
	batchSafetyFraction = 0.9

	// hardRowCap bounds memory regardless of how narrow a table is.
	hardRowCap = 1000

	// smallBatchThreshold selects the per-row write strategy: below it,
	// building a set-based payload costs more than it saves.
	smallBatchThreshold = 10
)

// batchConfig derives the batching parameters for one table. The
// calculation is per table rather than global: sizing narrow tables by the
// widest table's limit would waste batching efficiency.
type batchConfig struct {
	table   string
	columns int
}

// maxRowsPerBatch computes how many rows fit in one write statement while
// keeping batchSafetyFraction headroom under the bind-parameter ceiling.
func (c batchConfig) maxRowsPerBatch() int {
	n := int(batchSafetyFraction * maxBindParameters / float64(c.columns))
	if n > hardRowCap {
		n = hardRowCap
	}
	if n < 1 {
		n = 1
	}
	return n
}

var (
	functionBatch  = batchConfig{table: "functions", columns: 27}
	parameterBatch = batchConfig{table: "parameters", columns: 9}
	metricsBatch   = batchConfig{table: "quality_metrics", columns: 19}
	callEdgeBatch  = batchConfig{table: "call_edges", columns: 16}
)

// bulkInsert writes rows to one table using the strategy appropriate for
// the batch size: below smallBatchThreshold, one parameterized insert per
// row; otherwise a single set-based insert that expands a JSON payload
// back into rows server-side, cutting per-row parameter binding by an
// order of magnitude.
//
// rowSQL is the per-row INSERT with positional placeholders; jsonSQL is
// the equivalent INSERT ... SELECT json_extract(...) FROM json_each(?).
// Both carry the table's conflict-resolution clause, so retried writes
// are idempotent either way.
func (s *SQLiteStorage) bulkInsert(ctx context.Context, q querier, cfg batchConfig, rowSQL, jsonSQL string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	if len(rows) < smallBatchThreshold {
		for _, row := range rows {
			if _, err := q.ExecContext(ctx, rowSQL, row...); err != nil {
				return fmt.Errorf("insert %s row: %w", cfg.table, err)
			}
		}
		return nil
	}

	limit := cfg.maxRowsPerBatch()
	for start := 0; start < len(rows); start += limit {
		end := start + limit
		if end > len(rows) {
			end = len(rows)
		}
		payload, err := json.Marshal(rows[start:end])
		if err != nil {
			return fmt.Errorf("encode %s batch: %w", cfg.table, err)
		}
		if _, err := q.ExecContext(ctx, jsonSQL, string(payload)); err != nil {
			return fmt.Errorf("insert %s batch: %w", cfg.table, err)
		}
	}
	return nil
}

// jsonExtractList builds the SELECT list for a positional-array payload:
// json_extract(value, '$[0]'), json_extract(value, '$[1]'), ...
func jsonExtractList(columns int) string {
	parts := make([]string, columns)
	for i := range parts {
		parts[i] = fmt.Sprintf("json_extract(value, '$[%d]')", i)
	}
	return strings.Join(parts, ", ")
}

// placeholderList builds "?, ?, ..., ?" for n columns.
func placeholderList(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ", ")
}

// verifyRowCount re-counts persisted rows for one snapshot and compares
// against the expected input count. This is a diagnostic safety net, not a
// correctness gate: mismatches are logged and never returned, since
// throwing here would turn an observability check into an availability
// risk. Only runs when write verification is enabled.
func (s *SQLiteStorage) verifyRowCount(ctx context.Context, q querier, table, snapshotID string, expected int) {
	if !s.verifyWrites {
		return
	}
	// table names come from the fixed batchConfig set, never from callers
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE snapshot_id = ?", table) //nolint:gosec
	if err := q.QueryRowContext(ctx, query, snapshotID).Scan(&count); err != nil {
		s.logger.Warn("row-count verification failed", "table", table, "error", err)
		return
	}
	if count != expected {
		s.logger.Warn("row-count mismatch after bulk write",
			"table", table, "snapshot", snapshotID,
			"expected", expected, "persisted", count)
	}
}

// sanitizeText replaces embedded NUL bytes with the visible replacement
// character; NULs are rejected outright by the text wire protocol. The
// scan cost is only paid when a NUL is actually present.
func sanitizeText(s string) string {
	if !strings.ContainsRune(s, 0) {
		return s
	}
	return strings.ReplaceAll(s, "\x00", "�")
}
