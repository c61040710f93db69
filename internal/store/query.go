package store

import (
	"context"
	"fmt"
)

// QueryMaps 执行查询并以 列名→值 的形式返回全部行。
// TEXT 列的 []byte 转为 string，NULL 保持为 nil。
func (s *Store) QueryMaps(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

// Sample 取表中前 limit 行
func (s *Store) Sample(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	if _, ok := LookupTable(table); !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	if limit <= 0 {
		limit = 5
	}
	return s.QueryMaps(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT ?", table), limit)
}

// CountRows 统计表行数
func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	if _, ok := LookupTable(table); !ok {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// TableCounts 全部数仓表的行数
func (s *Store) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(catalog))
	for _, t := range catalog {
		n, err := s.CountRows(ctx, t.Name)
		if err != nil {
			return nil, err
		}
		counts[t.Name] = n
	}
	return counts, nil
}
