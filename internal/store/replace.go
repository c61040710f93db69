package store

import (
	"context"
	"fmt"
	"strings"
)

// ReplaceTable 整表替换：同一事务内先 DELETE 再批量 INSERT。
// 表名与列名必须出现在 catalog 中，返回写入行数。
func (s *Store) ReplaceTable(ctx context.Context, table string, columns []string, rows [][]any) (int, error) {
	def, ok := LookupTable(table)
	if !ok {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("no columns given for %s", table)
	}
	for _, col := range columns {
		if _, ok := def.Column(col); !ok {
			return 0, fmt.Errorf("unknown column %q in %s", col, table)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", table, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), placeholders,
	))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert for %s: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("row %d of %s has %d values, want %d", i, table, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s: %w", table, err)
	}

	return len(rows), nil
}
