package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxRowsPerBatch_StaysUnderParameterCeiling(t *testing.T) {
	for _, cfg := range []batchConfig{functionBatch, parameterBatch, metricsBatch, callEdgeBatch} {
		t.Run(cfg.table, func(t *testing.T) {
			limit := cfg.maxRowsPerBatch()
			assert.Greater(t, limit, 0)
			assert.LessOrEqual(t, limit, hardRowCap)
			// The property the sizing exists for: a full batch never
			// exceeds the bind-parameter ceiling, with headroom.
			assert.LessOrEqual(t, float64(limit*cfg.columns), batchSafetyFraction*maxBindParameters)
		})
	}
}

func TestMaxRowsPerBatch_NarrowTablesBatchMoreRows(t *testing.T) {
	// Per-table sizing: the 9-column table packs more rows per statement
	// than the 27-column one (both may hit the hard cap).
	assert.GreaterOrEqual(t, parameterBatch.maxRowsPerBatch(), functionBatch.maxRowsPerBatch())
}

func TestJSONExtractList(t *testing.T) {
	list := jsonExtractList(3)
	assert.Equal(t, "json_extract(value, '$[0]'), json_extract(value, '$[1]'), json_extract(value, '$[2]')", list)
}

func TestPlaceholderList(t *testing.T) {
	assert.Equal(t, "?, ?, ?", placeholderList(3))
	assert.Equal(t, 27, strings.Count(placeholderList(27), "?"))
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "clean", sanitizeText("clean"))
	assert.Equal(t, "a�b", sanitizeText("a\x00b"))
	assert.Equal(t, "��", sanitizeText("\x00\x00"))

	// No allocation path: unchanged strings come back identical.
	s := "no nulls here"
	assert.Equal(t, s, sanitizeText(s))
}
