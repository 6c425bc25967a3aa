package sqlgen

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"tyre-assistant/internal/util"

	"github.com/jmoiron/sqlx"
)

// NoResultsSentinel is the context string for an empty or failed result
// set. The answer stage treats it as "nothing relational to show".
const NoResultsSentinel = "No results found."

// Executor runs guarded statements and flattens rows for prompting.
type Executor struct {
	db *sqlx.DB
}

// NewExecutor creates an executor over the shared connection pool.
func NewExecutor(db *sqlx.DB) *Executor {
	return &Executor{db: db}
}

// Execute runs a generated statement after the safety guard. Rejected
// statements return an error without touching the database.
func (e *Executor) Execute(ctx context.Context, sql string) ([]map[string]interface{}, error) {
	if !IsSafeSelect(sql) {
		util.UnsafeSQLRejectedTotal.Inc()
		return nil, fmt.Errorf("only single SELECT statements are allowed")
	}

	rows, err := e.db.QueryxContext(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("statement produced no result columns")
	}

	var results []map[string]interface{}
	for rows.Next() {
		row := map[string]interface{}{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// Contextualize renders result rows as key: value lines, rows separated
// by blank lines, nil values omitted. Keys are sorted for stable output.
func Contextualize(results []map[string]interface{}) string {
	if len(results) == 0 {
		return NoResultsSentinel
	}

	blocks := make([]string, 0, len(results))
	for _, row := range results {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			if row[k] == nil {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s: %v", k, row[k]))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}
