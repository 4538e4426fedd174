package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/akiramei/funcqc-sub004/internal/identity"
	"github.com/akiramei/funcqc-sub004/pkg/types"
)

// saveSourceFilesWithQuerier deduplicates whole-file text across snapshots.
// Content rows are insert-or-skip, never overwritten: content is immutable
// under its (hash, size) key. A snapshot-scoped reference row is written
// for every file; re-running the same snapshot reuses the existing
// reference instead of accumulating duplicates.
//
// Returns a map from file path to reference id so the caller can attach
// SourceFileRefID onto function records.
func (s *SQLiteStorage) saveSourceFilesWithQuerier(ctx context.Context, q querier, snapshotID string, files []*types.SourceFile) (map[string]string, error) {
	refIDs := make(map[string]string, len(files))

	contentSQL := `
		INSERT INTO source_contents (id, content, file_hash, file_size_bytes, line_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	refSQL := `
		INSERT INTO source_file_refs (id, snapshot_id, file_path, content_id, file_modified_time, function_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(snapshot_id, file_path) DO UPDATE SET
			content_id = excluded.content_id,
			file_modified_time = excluded.file_modified_time,
			function_count = excluded.function_count
		RETURNING id
	`

	for _, file := range files {
		content := sanitizeText(file.Content)
		hash := file.Hash
		if hash == "" {
			hash = identity.FileHash(content)
		}
		size := file.SizeBytes
		if size == 0 {
			size = int64(len(content))
		}
		lineCount := file.LineCount
		if lineCount == 0 && content != "" {
			lineCount = strings.Count(content, "\n") + 1
		}
		contentID := identity.ContentKey(hash, size)

		if _, err := q.ExecContext(ctx, contentSQL, contentID, content, hash, size, lineCount); err != nil {
			return nil, types.NewWriteError("save source content", err)
		}

		var refID string
		err := q.QueryRowContext(ctx, refSQL,
			uuid.NewString(), snapshotID, file.FilePath, contentID,
			file.FileModTime, file.FunctionCount).Scan(&refID)
		if err != nil {
			return nil, types.NewWriteError("save source file reference", err)
		}

		file.RefID = refID
		file.ContentID = contentID
		file.Hash = hash
		file.SizeBytes = size
		file.LineCount = lineCount
		refIDs[file.FilePath] = refID
	}

	return refIDs, nil
}

// SaveSourceFiles stores deduplicated file content and snapshot-scoped
// references atomically.
func (s *SQLiteStorage) SaveSourceFiles(ctx context.Context, snapshotID string, files []*types.SourceFile) (map[string]string, error) {
	var refIDs map[string]string
	err := s.ExecuteInTransaction(ctx, func(tx Tx) error {
		var txErr error
		refIDs, txErr = tx.SaveSourceFiles(ctx, snapshotID, files)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return refIDs, nil
}

// GetSourceFilesBySnapshot reconstitutes full file records for one
// snapshot by joining references back to shared content.
func (s *SQLiteStorage) GetSourceFilesBySnapshot(ctx context.Context, snapshotID string) ([]*types.SourceFile, error) {
	query := `
		SELECT r.id, r.snapshot_id, r.file_path, r.content_id,
		       r.file_modified_time, r.function_count,
		       c.content, c.file_hash, c.file_size_bytes, c.line_count
		FROM source_file_refs r
		JOIN source_contents c ON c.id = r.content_id
		WHERE r.snapshot_id = ?
		ORDER BY r.file_path
	`
	rows, err := s.db.QueryContext(ctx, query, snapshotID)
	if err != nil {
		return nil, types.NewReadError("get source files", err)
	}
	defer func() { _ = rows.Close() }()

	files := make([]*types.SourceFile, 0)
	for rows.Next() {
		var file types.SourceFile
		var modTime sql.NullTime
		err := rows.Scan(
			&file.RefID, &file.SnapshotID, &file.FilePath, &file.ContentID,
			&modTime, &file.FunctionCount,
			&file.Content, &file.Hash, &file.SizeBytes, &file.LineCount,
		)
		if err != nil {
			return nil, types.NewReadError("get source files", err)
		}
		if modTime.Valid {
			file.FileModTime = modTime.Time
		}
		files = append(files, &file)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewReadError("get source files", err)
	}
	return files, nil
}

// ExtractFunctionSource slices a function's source text out of the
// content store by its stored line/column range. Functions carrying
// inline source text return it directly.
func (s *SQLiteStorage) ExtractFunctionSource(ctx context.Context, functionID string) (string, error) {
	query := `
		SELECT f.start_line, f.start_column, f.end_line, f.end_column,
		       f.source_code, c.content
		FROM functions f
		LEFT JOIN source_file_refs r ON r.id = f.source_file_ref_id
		LEFT JOIN source_contents c ON c.id = r.content_id
		WHERE f.id = ?
	`
	var startLine, startCol, endLine, endCol int
	var sourceCode, content sql.NullString
	err := s.db.QueryRowContext(ctx, query, functionID).Scan(
		&startLine, &startCol, &endLine, &endCol, &sourceCode, &content)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", types.NewReadError("extract function source", err)
	}

	if sourceCode.Valid && sourceCode.String != "" {
		return sourceCode.String, nil
	}
	if !content.Valid {
		return "", ErrNotFound
	}

	return sliceSource(content.String, startLine, startCol, endLine, endCol)
}

// sliceSource extracts the text between two positions. Columns of zero on
// both ends signal whole-line extraction; otherwise both columns are
// 1-based offsets into their respective lines. A line range outside the
// file indicates stored coordinates inconsistent with the content and is
// an error, never a silent truncation.
func sliceSource(content string, startLine, startCol, endLine, endCol int) (string, error) {
	lines := strings.Split(content, "\n")

	if startLine < 1 || endLine > len(lines) || startLine > endLine {
		return "", fmt.Errorf("line range %d-%d out of bounds for %d-line file", startLine, endLine, len(lines))
	}

	selected := lines[startLine-1 : endLine]

	// Whole-line extraction
	if startCol == 0 && endCol == 0 {
		return strings.Join(selected, "\n"), nil
	}

	clamp := func(col, max int) int {
		if col < 1 {
			return 1
		}
		if col > max {
			return max
		}
		return col
	}

	if len(selected) == 1 {
		line := selected[0]
		if line == "" {
			return "", nil
		}
		from := clamp(startCol, len(line)) - 1
		to := clamp(endCol, len(line))
		if from > to {
			return "", fmt.Errorf("column range %d-%d inverted on line %d", startCol, endCol, startLine)
		}
		return line[from:to], nil
	}

	// Partial first line, whole middle lines, partial last line
	parts := make([]string, 0, len(selected))
	first := selected[0]
	if first != "" {
		parts = append(parts, first[clamp(startCol, len(first))-1:])
	} else {
		parts = append(parts, "")
	}
	parts = append(parts, selected[1:len(selected)-1]...)
	last := selected[len(selected)-1]
	if last != "" {
		parts = append(parts, last[:clamp(endCol, len(last))])
	} else {
		parts = append(parts, "")
	}
	return strings.Join(parts, "\n"), nil
}
