package database

import (
	"context"
	"database/sql"
	"fmt"
)

// runStatement executes one statement against a database/sql handle, routing
// through Query or Exec based on the backend's result-set prefixes.
func runStatement(ctx context.Context, db *sql.DB, backend BackendType, stmt string, maxRows int) (*QueryResult, error) {
	if returnsRows(backend, stmt) {
		return queryRows(ctx, db, stmt, maxRows)
	}

	res, err := db.ExecContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report an affected count for every statement.
		affected = 0
	}
	return &QueryResult{
		Columns:      []string{},
		Rows:         []map[string]any{},
		RowsAffected: affected,
	}, nil
}

func queryRows(ctx context.Context, db *sql.DB, stmt string, maxRows int) (*QueryResult, error) {
	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	dbTypes := make([]string, len(columns))
	if colTypes, err := rows.ColumnTypes(); err == nil {
		for i, ct := range colTypes {
			dbTypes[i] = ct.DatabaseTypeName()
		}
	}

	resultRows := make([]map[string]any, 0)
	truncated := false
	for rows.Next() {
		if maxRows > 0 && len(resultRows) >= maxRows {
			truncated = true
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i], dbTypes[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &QueryResult{
		Columns:   columns,
		Rows:      resultRows,
		Truncated: truncated,
	}, nil
}
