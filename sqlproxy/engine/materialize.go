package engine

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

// Materialize drains rows into a QueryResult and closes them. Rows is never
// nil, so an empty result encodes as [] rather than null.
func Materialize(rows *sqlx.Rows) (types.QueryResult, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return types.QueryResult{}, fmt.Errorf("failed to get columns: %w", err)
	}

	result := types.QueryResult{
		Columns: columns,
		Rows:    make([][]types.Value, 0),
	}
	for rows.Next() {
		cells, err := rows.SliceScan()
		if err != nil {
			return types.QueryResult{}, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make([]types.Value, len(cells))
		for i, cell := range cells {
			row[i] = types.ValueOf(cell)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return types.QueryResult{}, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}
