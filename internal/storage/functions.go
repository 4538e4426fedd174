package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/akiramei/funcqc-sub004/pkg/types"
)

var functionInsertSQL = `
	INSERT INTO functions (
		id, semantic_id, content_id, snapshot_id, name, display_name,
		signature, signature_hash, context_path, modifiers, file_path,
		start_line, start_column, end_line, end_column, nesting_level,
		is_exported, is_async, is_generator, is_arrow_function, is_method,
		is_constructor, is_static, access_modifier, ast_hash, source_code,
		source_file_ref_id
	) VALUES (` + placeholderList(functionBatch.columns) + `)
	ON CONFLICT(id) DO NOTHING
`

// The WHERE true disambiguates the upsert clause from a join when the
// insert source is a SELECT.
var functionInsertJSONSQL = `
	INSERT INTO functions (
		id, semantic_id, content_id, snapshot_id, name, display_name,
		signature, signature_hash, context_path, modifiers, file_path,
		start_line, start_column, end_line, end_column, nesting_level,
		is_exported, is_async, is_generator, is_arrow_function, is_method,
		is_constructor, is_static, access_modifier, ast_hash, source_code,
		source_file_ref_id
	)
	SELECT ` + jsonExtractList(functionBatch.columns) + `
	FROM json_each(?) WHERE true
	ON CONFLICT(id) DO NOTHING
`

const parameterUpsertClause = `
	ON CONFLICT(function_id, snapshot_id, position) DO UPDATE SET
		name = excluded.name,
		type = excluded.type,
		type_simple = excluded.type_simple,
		is_optional = excluded.is_optional,
		is_rest = excluded.is_rest,
		default_value = excluded.default_value
`

var parameterInsertSQL = `
	INSERT INTO parameters (
		function_id, snapshot_id, name, type, type_simple, position,
		is_optional, is_rest, default_value
	) VALUES (` + placeholderList(parameterBatch.columns) + `)` + parameterUpsertClause

var parameterInsertJSONSQL = `
	INSERT INTO parameters (
		function_id, snapshot_id, name, type, type_simple, position,
		is_optional, is_rest, default_value
	)
	SELECT ` + jsonExtractList(parameterBatch.columns) + `
	FROM json_each(?) WHERE true` + parameterUpsertClause

const metricsUpsertClause = `
	ON CONFLICT(function_id, snapshot_id) DO UPDATE SET
		lines_of_code = excluded.lines_of_code,
		total_lines = excluded.total_lines,
		cyclomatic_complexity = excluded.cyclomatic_complexity,
		cognitive_complexity = excluded.cognitive_complexity,
		max_nesting_level = excluded.max_nesting_level,
		parameter_count = excluded.parameter_count,
		return_statement_count = excluded.return_statement_count,
		branch_count = excluded.branch_count,
		loop_count = excluded.loop_count,
		try_catch_count = excluded.try_catch_count,
		async_await_count = excluded.async_await_count,
		callback_count = excluded.callback_count,
		comment_lines = excluded.comment_lines,
		code_to_comment_ratio = excluded.code_to_comment_ratio,
		halstead_volume = excluded.halstead_volume,
		halstead_difficulty = excluded.halstead_difficulty,
		maintainability_index = excluded.maintainability_index
`

var metricsInsertSQL = `
	INSERT INTO quality_metrics (
		function_id, snapshot_id, lines_of_code, total_lines,
		cyclomatic_complexity, cognitive_complexity, max_nesting_level,
		parameter_count, return_statement_count, branch_count, loop_count,
		try_catch_count, async_await_count, callback_count, comment_lines,
		code_to_comment_ratio, halstead_volume, halstead_difficulty,
		maintainability_index
	) VALUES (` + placeholderList(metricsBatch.columns) + `)` + metricsUpsertClause

var metricsInsertJSONSQL = `
	INSERT INTO quality_metrics (
		function_id, snapshot_id, lines_of_code, total_lines,
		cyclomatic_complexity, cognitive_complexity, max_nesting_level,
		parameter_count, return_statement_count, branch_count, loop_count,
		try_catch_count, async_await_count, callback_count, comment_lines,
		code_to_comment_ratio, halstead_volume, halstead_difficulty,
		maintainability_index
	)
	SELECT ` + jsonExtractList(metricsBatch.columns) + `
	FROM json_each(?) WHERE true` + metricsUpsertClause

// nullable maps the empty string to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// functionRow flattens a record into insert-column order.
func functionRow(fn *types.FunctionRecord) ([]any, error) {
	contextPath, err := json.Marshal(fn.ContextPath)
	if err != nil {
		return nil, fmt.Errorf("encode context path: %w", err)
	}
	modifiers, err := json.Marshal(fn.Modifiers)
	if err != nil {
		return nil, fmt.Errorf("encode modifiers: %w", err)
	}
	return []any{
		fn.ID, fn.SemanticID, fn.ContentID, fn.SnapshotID,
		fn.Name, fn.DisplayName, fn.Signature, fn.SignatureHash,
		string(contextPath), string(modifiers), fn.FilePath,
		fn.Start.Line, fn.Start.Column, fn.End.Line, fn.End.Column,
		fn.NestingLevel,
		fn.IsExported, fn.IsAsync, fn.IsGenerator, fn.IsArrowFunc,
		fn.IsMethod, fn.IsConstructor, fn.IsStatic,
		nullable(string(fn.AccessModifier)), nullable(fn.ASTHash),
		nullable(sanitizeText(fn.SourceCode)), nullable(fn.SourceFileRefID),
	}, nil
}

// saveFunctionsWithQuerier persists a scan's function output with its
// owned parameters and optional metrics. All three tables go through the
// adaptive bulk pipeline; the caller supplies the enclosing transaction.
func (s *SQLiteStorage) saveFunctionsWithQuerier(ctx context.Context, q querier, snapshotID string, functions []*types.FunctionRecord) error {
	if len(functions) == 0 {
		return nil
	}

	functionRows := make([][]any, 0, len(functions))
	var parameterRows [][]any
	var metricsRows [][]any

	for _, fn := range functions {
		if fn.SnapshotID == "" {
			fn.SnapshotID = snapshotID
		}
		if fn.SnapshotID != snapshotID {
			return types.NewWriteError("save functions",
				fmt.Errorf("function %s belongs to snapshot %s, not %s", fn.ID, fn.SnapshotID, snapshotID))
		}

		row, err := functionRow(fn)
		if err != nil {
			return types.NewWriteError("save functions", err)
		}
		functionRows = append(functionRows, row)

		for _, p := range fn.Parameters {
			parameterRows = append(parameterRows, []any{
				fn.ID, snapshotID, p.Name, nullable(p.Type), nullable(p.TypeSimple),
				p.Position, p.IsOptional, p.IsRest, nullable(p.DefaultValue),
			})
		}

		if m := fn.Metrics; m != nil {
			metricsRows = append(metricsRows, []any{
				fn.ID, snapshotID, m.LinesOfCode, m.TotalLines,
				m.CyclomaticComplexity, m.CognitiveComplexity, m.MaxNestingLevel,
				m.ParameterCount, m.ReturnStatementCount, m.BranchCount,
				m.LoopCount, m.TryCatchCount, m.AsyncAwaitCount, m.CallbackCount,
				m.CommentLines, m.CodeToCommentRatio,
				m.HalsteadVolume, m.HalsteadDifficulty, m.MaintainabilityIndex,
			})
		}
	}

	if err := s.bulkInsert(ctx, q, functionBatch, functionInsertSQL, functionInsertJSONSQL, functionRows); err != nil {
		return types.NewWriteError("save functions", err)
	}
	if err := s.bulkInsert(ctx, q, parameterBatch, parameterInsertSQL, parameterInsertJSONSQL, parameterRows); err != nil {
		return types.NewWriteError("save parameters", err)
	}
	if err := s.bulkInsert(ctx, q, metricsBatch, metricsInsertSQL, metricsInsertJSONSQL, metricsRows); err != nil {
		return types.NewWriteError("save quality metrics", err)
	}

	s.verifyRowCount(ctx, q, "functions", snapshotID, len(functionRows))
	s.verifyRowCount(ctx, q, "quality_metrics", snapshotID, len(metricsRows))
	return nil
}

// SaveFunctions persists functions, parameters and metrics atomically.
func (s *SQLiteStorage) SaveFunctions(ctx context.Context, snapshotID string, functions []*types.FunctionRecord) error {
	return s.ExecuteInTransaction(ctx, func(tx Tx) error {
		return tx.SaveFunctions(ctx, snapshotID, functions)
	})
}

// Query surface

const functionSelectColumns = `
	f.id, f.semantic_id, f.content_id, f.snapshot_id, f.name,
	f.display_name, f.signature, f.signature_hash, f.context_path,
	f.modifiers, f.file_path, f.start_line, f.start_column, f.end_line,
	f.end_column, f.nesting_level, f.is_exported, f.is_async,
	f.is_generator, f.is_arrow_function, f.is_method, f.is_constructor,
	f.is_static, f.access_modifier, f.ast_hash, f.source_code,
	f.source_file_ref_id`

// filterColumns maps the closed filter-field enumeration to safe column
// references. Caller-supplied field names are never concatenated into SQL;
// anything outside this map is rejected.
var filterColumns = map[types.FilterField]string{
	types.FieldName:                 "f.name",
	types.FieldFilePath:             "f.file_path",
	types.FieldIsExported:           "f.is_exported",
	types.FieldIsAsync:              "f.is_async",
	types.FieldIsMethod:             "f.is_method",
	types.FieldCyclomaticComplexity: "m.cyclomatic_complexity",
	types.FieldCognitiveComplexity:  "m.cognitive_complexity",
	types.FieldLinesOfCode:          "m.lines_of_code",
	types.FieldParameterCount:       "m.parameter_count",
	types.FieldMaxNestingLevel:      "m.max_nesting_level",
}

var sortColumns = map[types.SortField]string{
	types.SortByName:                 "f.name",
	types.SortByFilePath:             "f.file_path",
	types.SortByStartLine:            "f.start_line",
	types.SortByCyclomaticComplexity: "m.cyclomatic_complexity",
	types.SortByLinesOfCode:          "m.lines_of_code",
}

var filterOps = map[types.FilterOp]string{
	types.OpEq:   "=",
	types.OpNe:   "!=",
	types.OpGt:   ">",
	types.OpGte:  ">=",
	types.OpLt:   "<",
	types.OpLte:  "<=",
	types.OpLike: "LIKE",
}

// buildFunctionQuery assembles the filtered, sorted, paged listing query.
func buildFunctionQuery(snapshotID string, opts types.QueryOptions) (string, []any, error) {
	query := `SELECT ` + functionSelectColumns + `
		FROM functions f
		LEFT JOIN quality_metrics m ON m.function_id = f.id AND m.snapshot_id = f.snapshot_id
		WHERE f.snapshot_id = ?`
	args := []any{snapshotID}

	for _, filter := range opts.Filters {
		col, ok := filterColumns[filter.Field]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter field %q", filter.Field)
		}
		op, ok := filterOps[filter.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter operator %q", filter.Op)
		}
		query += fmt.Sprintf(" AND %s %s ?", col, op)
		args = append(args, filter.Value)
	}

	if opts.SortBy != "" {
		col, ok := sortColumns[opts.SortBy]
		if !ok {
			return "", nil, fmt.Errorf("unsupported sort field %q", opts.SortBy)
		}
		dir := "ASC"
		if opts.SortDesc {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s, f.id", col, dir)
	} else {
		query += " ORDER BY f.file_path, f.start_line"
	}

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	} else if opts.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, opts.Offset)
	}

	return query, args, nil
}

// scanFunction scans one functions row.
func scanFunction(row interface{ Scan(...interface{}) error }) (*types.FunctionRecord, error) {
	var fn types.FunctionRecord
	var contextPath, modifiers string
	var accessModifier, astHash, sourceCode, sourceFileRefID sql.NullString
	err := row.Scan(
		&fn.ID, &fn.SemanticID, &fn.ContentID, &fn.SnapshotID, &fn.Name,
		&fn.DisplayName, &fn.Signature, &fn.SignatureHash, &contextPath,
		&modifiers, &fn.FilePath, &fn.Start.Line, &fn.Start.Column,
		&fn.End.Line, &fn.End.Column, &fn.NestingLevel, &fn.IsExported,
		&fn.IsAsync, &fn.IsGenerator, &fn.IsArrowFunc, &fn.IsMethod,
		&fn.IsConstructor, &fn.IsStatic, &accessModifier, &astHash,
		&sourceCode, &sourceFileRefID,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(contextPath), &fn.ContextPath); err != nil {
		return nil, fmt.Errorf("corrupt context path: %w", err)
	}
	if err := json.Unmarshal([]byte(modifiers), &fn.Modifiers); err != nil {
		return nil, fmt.Errorf("corrupt modifiers: %w", err)
	}
	fn.AccessModifier = types.AccessModifier(accessModifier.String)
	fn.ASTHash = astHash.String
	fn.SourceCode = sourceCode.String
	fn.SourceFileRefID = sourceFileRefID.String
	return &fn, nil
}

func (s *SQLiteStorage) GetFunctions(ctx context.Context, snapshotID string, opts types.QueryOptions) ([]*types.FunctionRecord, error) {
	query, args, err := buildFunctionQuery(snapshotID, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.NewReadError("get functions", err)
	}
	defer func() { _ = rows.Close() }()

	functions := make([]*types.FunctionRecord, 0)
	for rows.Next() {
		fn, err := scanFunction(rows)
		if err != nil {
			return nil, types.NewReadError("get functions", err)
		}
		functions = append(functions, fn)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewReadError("get functions", err)
	}

	if opts.IncludeParameters {
		if err := s.attachParameters(ctx, snapshotID, functions); err != nil {
			return nil, err
		}
	}
	if opts.IncludeMetrics {
		if err := s.attachMetrics(ctx, snapshotID, functions); err != nil {
			return nil, err
		}
	}
	return functions, nil
}

func (s *SQLiteStorage) GetFunction(ctx context.Context, functionID string) (*types.FunctionRecord, error) {
	query := `SELECT ` + functionSelectColumns + ` FROM functions f WHERE f.id = ?`
	fn, err := scanFunction(s.db.QueryRowContext(ctx, query, functionID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.NewReadError("get function", err)
	}

	single := []*types.FunctionRecord{fn}
	if err := s.attachParameters(ctx, fn.SnapshotID, single); err != nil {
		return nil, err
	}
	if err := s.attachMetrics(ctx, fn.SnapshotID, single); err != nil {
		return nil, err
	}
	return fn, nil
}

// attachParameters loads the snapshot's parameter rows and distributes
// them onto the given functions by owner id.
func (s *SQLiteStorage) attachParameters(ctx context.Context, snapshotID string, functions []*types.FunctionRecord) error {
	if len(functions) == 0 {
		return nil
	}
	query := `
		SELECT function_id, name, type, type_simple, position, is_optional, is_rest, default_value
		FROM parameters
		WHERE snapshot_id = ?
		ORDER BY function_id, position
	`
	rows, err := s.db.QueryContext(ctx, query, snapshotID)
	if err != nil {
		return types.NewReadError("get parameters", err)
	}
	defer func() { _ = rows.Close() }()

	byFunction := make(map[string][]types.Parameter)
	for rows.Next() {
		var p types.Parameter
		var typ, typeSimple, defaultValue sql.NullString
		if err := rows.Scan(&p.FunctionID, &p.Name, &typ, &typeSimple, &p.Position, &p.IsOptional, &p.IsRest, &defaultValue); err != nil {
			return types.NewReadError("get parameters", err)
		}
		p.Type = typ.String
		p.TypeSimple = typeSimple.String
		p.DefaultValue = defaultValue.String
		byFunction[p.FunctionID] = append(byFunction[p.FunctionID], p)
	}
	if err := rows.Err(); err != nil {
		return types.NewReadError("get parameters", err)
	}

	for _, fn := range functions {
		fn.Parameters = byFunction[fn.ID]
	}
	return nil
}

// attachMetrics loads the snapshot's metric rows and distributes them onto
// the given functions by owner id.
func (s *SQLiteStorage) attachMetrics(ctx context.Context, snapshotID string, functions []*types.FunctionRecord) error {
	if len(functions) == 0 {
		return nil
	}
	query := `
		SELECT function_id, snapshot_id, lines_of_code, total_lines,
		       cyclomatic_complexity, cognitive_complexity, max_nesting_level,
		       parameter_count, return_statement_count, branch_count, loop_count,
		       try_catch_count, async_await_count, callback_count, comment_lines,
		       code_to_comment_ratio, halstead_volume, halstead_difficulty,
		       maintainability_index
		FROM quality_metrics
		WHERE snapshot_id = ?
	`
	rows, err := s.db.QueryContext(ctx, query, snapshotID)
	if err != nil {
		return types.NewReadError("get quality metrics", err)
	}
	defer func() { _ = rows.Close() }()

	byFunction := make(map[string]*types.QualityMetrics)
	for rows.Next() {
		var m types.QualityMetrics
		var volume, difficulty, maintainability sql.NullFloat64
		err := rows.Scan(
			&m.FunctionID, &m.SnapshotID, &m.LinesOfCode, &m.TotalLines,
			&m.CyclomaticComplexity, &m.CognitiveComplexity, &m.MaxNestingLevel,
			&m.ParameterCount, &m.ReturnStatementCount, &m.BranchCount,
			&m.LoopCount, &m.TryCatchCount, &m.AsyncAwaitCount, &m.CallbackCount,
			&m.CommentLines, &m.CodeToCommentRatio,
			&volume, &difficulty, &maintainability,
		)
		if err != nil {
			return types.NewReadError("get quality metrics", err)
		}
		if volume.Valid {
			v := volume.Float64
			m.HalsteadVolume = &v
		}
		if difficulty.Valid {
			v := difficulty.Float64
			m.HalsteadDifficulty = &v
		}
		if maintainability.Valid {
			v := maintainability.Float64
			m.MaintainabilityIndex = &v
		}
		byFunction[m.FunctionID] = &m
	}
	if err := rows.Err(); err != nil {
		return types.NewReadError("get quality metrics", err)
	}

	for _, fn := range functions {
		fn.Metrics = byFunction[fn.ID]
	}
	return nil
}
