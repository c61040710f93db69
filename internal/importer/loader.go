package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/logging"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/parser"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/store"
)

// ErrMissingColumn Sheet 缺少装载所需的列
var ErrMissingColumn = errors.New("missing required column")

// Warehouse 装载目标（*store.Store 实现）
type Warehouse interface {
	ReplaceTable(ctx context.Context, table string, columns []string, rows [][]any) (int, error)
}

// Loader 把读取结果整表替换进数仓
type Loader struct {
	wh Warehouse
}

// NewLoader 创建装载器
func NewLoader(wh Warehouse) *Loader {
	return &Loader{wh: wh}
}

// LoadResult 装载结果
type LoadResult struct {
	Dates  int            `json:"dates"`
	Plants int            `json:"plants"`
	Tables map[string]int `json:"tables"` // 表名 → 写入行数
}

// TotalRows 事实表写入总行数
func (r *LoadResult) TotalRows() int {
	n := 0
	for table, rows := range r.Tables {
		if table == store.TableDimDate || table == store.TableDimPlant {
			continue
		}
		n += rows
	}
	return n
}

// FactTables 写入的事实表数量
func (r *LoadResult) FactTables() int {
	n := 0
	for table := range r.Tables {
		if table != store.TableDimDate && table != store.TableDimPlant {
			n++
		}
	}
	return n
}

// Load 先重建维度表，再按固定顺序替换每个出现的事实表。
// 任一表失败即中止并返回错误；此前已替换的表不回滚。
func (l *Loader) Load(ctx context.Context, sheets map[string]*parser.SheetData) (*LoadResult, error) {
	result := &LoadResult{Tables: make(map[string]int)}

	dates := DimDateRows(sheets)
	if len(dates) > 0 {
		n, err := l.wh.ReplaceTable(ctx, store.TableDimDate, dimDateColumns, dates)
		if err != nil {
			return result, fmt.Errorf("load %s: %w", store.TableDimDate, err)
		}
		result.Dates = n
		result.Tables[store.TableDimDate] = n
	}

	plants := DimPlantRows(sheets)
	if len(plants) > 0 {
		n, err := l.wh.ReplaceTable(ctx, store.TableDimPlant, dimPlantColumns, plants)
		if err != nil {
			return result, fmt.Errorf("load %s: %w", store.TableDimPlant, err)
		}
		result.Plants = n
		result.Tables[store.TableDimPlant] = n
	}

	for _, target := range sheetTargets {
		sheet, ok := sheets[target.Sheet]
		if !ok {
			continue
		}

		columns, rows, err := factRows(target, sheet)
		if err != nil {
			return result, fmt.Errorf("load %s: %w", target.Table, err)
		}

		n, err := l.wh.ReplaceTable(ctx, target.Table, columns, rows)
		if err != nil {
			return result, fmt.Errorf("load %s: %w", target.Table, err)
		}
		result.Tables[target.Table] = n

		logging.Info().Str("table", target.Table).Int("rows", n).Msg("fact table replaced")
	}

	return result, nil
}

var (
	dimDateColumns  = []string{"date", "year", "month", "day", "month_name", "quarter"}
	dimPlantColumns = []string{"plant_id", "plant_name", "region"}
)

// DimDateRows 全部 Sheet 日期并集，按日期升序
func DimDateRows(sheets map[string]*parser.SheetData) [][]any {
	seen := make(map[string]time.Time)
	for _, sheet := range sheets {
		for _, row := range sheet.Rows {
			seen[parser.FormatDate(row.Date)] = row.Date
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]any, 0, len(keys))
	for _, k := range keys {
		d := seen[k]
		month := int(d.Month())
		rows = append(rows, []any{
			k, d.Year(), month, d.Day(), d.Month().String(), Quarter(month),
		})
	}
	return rows
}

// Quarter 月份所在季度
func Quarter(month int) int {
	return (month-1)/3 + 1
}

// DimPlantRows 全部 Sheet 工厂名并集，按名称排序后从 1 编号
func DimPlantRows(sheets map[string]*parser.SheetData) [][]any {
	seen := make(map[string]struct{})
	for _, sheet := range sheets {
		if !sheet.HasHeader(parser.HeaderPlant) {
			continue
		}
		for _, row := range sheet.Rows {
			if p := row.Value(parser.HeaderPlant); p != "" {
				seen[p] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for p := range seen {
		names = append(names, p)
	}
	sort.Strings(names)

	rows := make([][]any, 0, len(names))
	for i, p := range names {
		rows = append(rows, []any{i + 1, p, RegionFor(p)})
	}
	return rows
}

// factRows 按列映射与 catalog 类型转换一个 Sheet
func factRows(target sheetTarget, sheet *parser.SheetData) ([]string, [][]any, error) {
	table, ok := store.LookupTable(target.Table)
	if !ok {
		return nil, nil, fmt.Errorf("unknown table %q", target.Table)
	}

	columns := make([]string, len(target.Columns))
	kinds := make([]store.ColumnKind, len(target.Columns))
	for i, m := range target.Columns {
		if !sheet.HasHeader(m.Source) {
			return nil, nil, fmt.Errorf("%w: sheet '%s' has no '%s'", ErrMissingColumn, sheet.Name, m.Source)
		}
		col, ok := table.Column(m.Target)
		if !ok {
			return nil, nil, fmt.Errorf("unknown column %q in %s", m.Target, target.Table)
		}
		columns[i] = m.Target
		kinds[i] = col.Kind
	}

	rows := make([][]any, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		values := make([]any, len(columns))
		for i, m := range target.Columns {
			values[i] = convertCell(kinds[i], row, m.Source)
		}
		rows = append(rows, values)
	}
	return columns, rows, nil
}

func convertCell(kind store.ColumnKind, row parser.Row, header string) any {
	if kind == store.KindDate {
		return parser.FormatDate(row.Date)
	}

	raw := row.Value(header)
	if raw == "" {
		return nil
	}

	switch kind {
	case store.KindReal, store.KindInteger:
		v, ok := parser.ParseNumber(raw)
		if !ok {
			return nil
		}
		if kind == store.KindInteger {
			return int64(v)
		}
		return v
	default:
		return raw
	}
}
