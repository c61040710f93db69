// Package sample 生成演示用水泥运营工作簿
package sample

import (
	"fmt"
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/xuri/excelize/v2"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/parser"
)

// Plant 演示工厂
type Plant struct {
	Name   string
	Region string
	Lines  []string
}

// Options 生成选项
type Options struct {
	Start  time.Time
	Days   int
	Plants []Plant
	Seed   uint64
}

// DefaultOptions 五个工厂、2024 年上半年
func DefaultOptions() Options {
	return Options{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:  182,
		Plants: []Plant{
			{Name: "Lumshnong", Region: "Northeast", Lines: []string{"L1", "L2"}},
			{Name: "Sonapur", Region: "Northeast", Lines: []string{"L1"}},
			{Name: "Siliguri", Region: "East", Lines: []string{"L1"}},
			{Name: "Jalpaiguri", Region: "East", Lines: []string{"L1"}},
			{Name: "Guwahati", Region: "Northeast", Lines: []string{"L1"}},
		},
		Seed: 42,
	}
}

var equipment = []string{"Kiln", "Raw Mill", "Cement Mill", "Coal Mill", "Crusher", "Packer"}

// Generate 生成包含全部预期 Sheet 的工作簿；相同 Seed 生成相同数据
func Generate(opts Options) (*excelize.File, error) {
	if opts.Days <= 0 {
		return nil, fmt.Errorf("days must be positive")
	}
	if len(opts.Plants) == 0 {
		return nil, fmt.Errorf("at least one plant is required")
	}

	faker := gofakeit.New(opts.Seed)
	wb := excelize.NewFile()
	defaultSheet := wb.GetSheetName(wb.GetActiveSheetIndex())

	rows := make(map[string][][]any)
	for _, spec := range parser.ExpectedSheets() {
		header := make([]any, len(spec.Headers))
		for i, h := range spec.Headers {
			header[i] = h
		}
		rows[spec.Name] = [][]any{header}
	}

	for d := 0; d < opts.Days; d++ {
		date := opts.Start.AddDate(0, 0, d)
		for _, p := range opts.Plants {
			lines := p.Lines
			if len(lines) == 0 {
				lines = []string{"L1"}
			}

			dayCement := 0.0
			for _, line := range lines {
				cement := round(faker.Float64Range(2500, 4200))
				dayCement += cement
				rows[parser.SheetProduction] = append(rows[parser.SheetProduction], []any{
					date, p.Name, line,
					cement,
					round(cement * faker.Float64Range(0.68, 0.76)),
					round(faker.Float64Range(72, 96)),
					round(faker.Float64Range(0, 6)),
				})
			}

			rows[parser.SheetEnergy] = append(rows[parser.SheetEnergy], []any{
				date, p.Name,
				round(faker.Float64Range(68, 82)),
				round(faker.Float64Range(700, 780)),
				round(faker.Float64Range(1400, 1900)),
				round(faker.Float64Range(4, 18)),
			})

			mtbf := round(faker.Float64Range(120, 480))
			rows[parser.SheetMaintenance] = append(rows[parser.SheetMaintenance], []any{
				date, p.Name,
				faker.RandomString(equipment),
				round(faker.Float64Range(0, 8)),
				mtbf,
				round(faker.Float64Range(1, 10)),
			})

			rows[parser.SheetQuality] = append(rows[parser.SheetQuality], []any{
				date, p.Name,
				round(faker.Float64Range(3200, 3600)),
				round(faker.Float64Range(50, 58)),
				math.Round(faker.Float64Range(0.68, 0.76)*1000) / 1000,
			})

			realization := round(faker.Float64Range(5200, 6400))
			rows[parser.SheetSales] = append(rows[parser.SheetSales], []any{
				date, p.Name, p.Region,
				round(dayCement * faker.Float64Range(0.9, 1.05)),
				realization,
				round(faker.Float64Range(450, 900)),
				round(faker.Float64Range(82, 99)),
			})

			cost := round(faker.Float64Range(3900, 4700))
			ebitda := round(realization - cost - faker.Float64Range(0, 300))
			rows[parser.SheetFinance] = append(rows[parser.SheetFinance], []any{
				date, p.Name,
				cost,
				ebitda,
				round(ebitda / realization * 100),
			})
		}
	}

	for _, spec := range parser.ExpectedSheets() {
		if _, err := wb.NewSheet(spec.Name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", spec.Name, err)
		}
		if err := writeRows(wb, spec.Name, rows[spec.Name]); err != nil {
			return nil, err
		}
	}
	if err := wb.DeleteSheet(defaultSheet); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	return wb, nil
}

// WriteFile 生成工作簿并保存
func WriteFile(path string, opts Options) error {
	wb, err := Generate(opts)
	if err != nil {
		return err
	}
	defer wb.Close()

	if err := wb.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// WriteSheets 按 sheet → 行（首行为表头）写出工作簿，测试与 CLI 共用
func WriteSheets(path string, sheets map[string][][]any) error {
	wb := excelize.NewFile()
	defer wb.Close()
	defaultSheet := wb.GetSheetName(wb.GetActiveSheetIndex())

	for name, rows := range sheets {
		if _, err := wb.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		if err := writeRows(wb, name, rows); err != nil {
			return err
		}
	}
	if _, ok := sheets[defaultSheet]; !ok && len(sheets) > 0 {
		if err := wb.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("failed to remove default sheet: %w", err)
		}
	}

	if err := wb.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeRows(wb *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		row := row
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
