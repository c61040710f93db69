// Package exporter 将角色看板指标导出为 Excel 工作簿
package exporter

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/kpi"
)

// 工作簿中的固定 Sheet
const (
	SheetSummary     = "Summary"
	SheetComparisons = "Plant Comparison"

	defaultSheet = "Sheet1"
)

// Computer 指标计算
type Computer interface {
	Compute(ctx context.Context, q kpi.Query) (*kpi.Result, error)
}

// Exporter 指标导出器
type Exporter struct {
	kpis Computer
}

// NewExporter 创建导出器
func NewExporter(kpis Computer) *Exporter {
	return &Exporter{kpis: kpis}
}

// ExportOptions 导出选项；Roles 为空时导出全部角色
type ExportOptions struct {
	Start string
	End   string
	Plant string
	Roles []kpi.Role
}

// Export 生成工作簿：汇总表、每个角色一张趋势表、工厂对比表
func (e *Exporter) Export(ctx context.Context, opts ExportOptions, progress ProgressFunc) (*excelize.File, error) {
	roles := opts.Roles
	if len(roles) == 0 {
		roles = kpi.Roles()
	}
	st := newSteps(progress, len(roles))

	results := make([]*kpi.Result, 0, len(roles))
	for _, role := range roles {
		res, err := e.kpis.Compute(ctx, kpi.Query{
			Role:  string(role),
			Start: opts.Start,
			End:   opts.End,
			Plant: opts.Plant,
		})
		if err != nil {
			return nil, fmt.Errorf("compute %s kpis: %w", role, err)
		}
		results = append(results, res)
		st.advance(fmt.Sprintf("computed %s", role), "")
	}

	f := excelize.NewFile()
	if err := e.fill(f, results, st); err != nil {
		_ = f.Close()
		return nil, err
	}

	return f, nil
}

func (e *Exporter) fill(f *excelize.File, results []*kpi.Result, st *steps) error {
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}
	if err := writeSummary(f, header, results); err != nil {
		return err
	}
	st.advance("summary written", SheetSummary)

	for _, res := range results {
		if err := writeTrend(f, header, res); err != nil {
			return err
		}
		st.advance("trend written", TrendSheetName(res.Role))
	}

	if err := writeComparisons(f, header, results[len(results)-1].Comparisons); err != nil {
		return err
	}
	st.advance("comparison written", SheetComparisons)

	if err := f.DeleteSheet(defaultSheet); err != nil {
		return err
	}
	f.SetActiveSheet(0)
	return nil
}

func writeSummary(f *excelize.File, header int, results []*kpi.Result) error {
	if err := writeHeader(f, SheetSummary, header, "Role", "Metric", "Value"); err != nil {
		return err
	}

	row := 2
	for _, res := range results {
		for _, name := range kpi.MetricNames(res.Role) {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(SheetSummary, cell, &[]any{string(res.Role), name, res.KPIs[name]}); err != nil {
				return err
			}
			row++
		}
	}
	return f.SetColWidth(SheetSummary, "A", "C", 22)
}

// TrendSheetName 角色趋势表名
func TrendSheetName(role kpi.Role) string {
	return string(role) + " Trend"
}

func writeTrend(f *excelize.File, header int, res *kpi.Result) error {
	sheet := TrendSheetName(res.Role)
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	cols := append([]string{"date"}, res.Series.Keys...)
	if err := writeHeader(f, sheet, header, cols...); err != nil {
		return err
	}

	for i, p := range res.Series.Trends {
		values := make([]any, 0, len(cols))
		values = append(values, p.Date)
		for _, k := range res.Series.Keys {
			values = append(values, p.Values[k])
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func writeComparisons(f *excelize.File, header int, comparisons []kpi.PlantComparison) error {
	if _, err := f.NewSheet(SheetComparisons); err != nil {
		return err
	}
	if err := writeHeader(f, SheetComparisons, header, "Plant", "EBITDA Rs/t", "Weighted EBITDA"); err != nil {
		return err
	}
	for i, c := range comparisons {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetComparisons, cell, &[]any{c.PlantName, c.EbitdaTon, c.WeightedEbitda}); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetComparisons, "A", "C", 20)
}

func writeHeader(f *excelize.File, sheet string, style int, cols ...string) error {
	values := make([]any, len(cols))
	for i, c := range cols {
		values[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &values); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(cols), 1)
	return f.SetCellStyle(sheet, "A1", last, style)
}

// Filename 导出文件名
func Filename(opts ExportOptions) string {
	start, end := opts.Start, opts.End
	if start == "" {
		start = "default"
	}
	if end == "" {
		end = "default"
	}
	plant := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		case r == ' ' || r == '_':
			return '_'
		}
		return -1
	}, strings.TrimSpace(opts.Plant))
	if plant == "" {
		plant = kpi.PlantAll
	}
	return fmt.Sprintf("star_cement_kpis_%s_%s_%s.xlsx", plant, start, end)
}
