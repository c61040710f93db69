package parser

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/logging"
)

// ErrNoWorkbook 文件无法作为 xlsx 工作簿打开
var ErrNoWorkbook = errors.New("not a readable workbook")

// Workbook 上传工作簿读取器
type Workbook struct {
	file     *excelize.File
	date1904 bool

	data     map[string]*SheetData
	errs     []string
	mappings map[string]map[string]string // sheet → 实际表头 → 规范表头
}

// OpenWorkbook 打开工作簿文件
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoWorkbook, err)
	}
	return newWorkbook(f), nil
}

// OpenWorkbookReader 从流中打开工作簿
func OpenWorkbookReader(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoWorkbook, err)
	}
	return newWorkbook(f), nil
}

func newWorkbook(f *excelize.File) *Workbook {
	w := &Workbook{file: f, mappings: make(map[string]map[string]string)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		w.date1904 = *props.Date1904
	}
	return w
}

// Close 关闭工作簿
func (w *Workbook) Close() error {
	return w.file.Close()
}

// SheetNames 工作簿中全部 Sheet 名称
func (w *Workbook) SheetNames() []string {
	return w.file.GetSheetList()
}

// Errors 读取过程中记录的错误
func (w *Workbook) Errors() []string {
	out := make([]string, len(w.errs))
	copy(out, w.errs)
	return out
}

// Read 读取全部预期 Sheet。结果在首次调用后缓存。
// 工作簿中不存在的 Sheet 直接省略；日期为空或无法解析的行被丢弃。
func (w *Workbook) Read() map[string]*SheetData {
	if w.data != nil {
		return w.data
	}

	present := make(map[string]bool)
	for _, name := range w.file.GetSheetList() {
		present[name] = true
	}

	w.data = make(map[string]*SheetData)
	for _, spec := range ExpectedSheets() {
		if !present[spec.Name] {
			continue
		}
		sheet, err := w.readSheet(spec)
		if err != nil {
			logging.Error().Err(err).Str("sheet", spec.Name).Msg("failed to read sheet")
			w.errs = append(w.errs, fmt.Sprintf("Sheet '%s': %v", spec.Name, err))
			continue
		}
		logging.Info().
			Str("sheet", spec.Name).
			Int("rows", len(sheet.Rows)).
			Int("dropped", sheet.Dropped).
			Msg("sheet loaded")
		w.data[spec.Name] = sheet
	}

	return w.data
}

func (w *Workbook) readSheet(spec SheetSpec) (*SheetData, error) {
	rows, err := w.file.GetRows(spec.Name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet is empty")
	}

	headers := w.canonicalHeaders(spec, rows[0])

	dateIdx := -1
	for i, h := range headers {
		if h == HeaderDate {
			dateIdx = i
			break
		}
	}
	if dateIdx < 0 {
		return nil, fmt.Errorf("missing '%s' column", HeaderDate)
	}

	sheet := &SheetData{Name: spec.Name, Headers: headers}
	for _, raw := range rows[1:] {
		if isBlankRow(raw) {
			continue
		}

		cells := make(map[string]string, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(raw) {
				cells[h] = strings.TrimSpace(raw[i])
			} else {
				cells[h] = ""
			}
		}

		date, ok := ParseDate(cells[HeaderDate], w.date1904)
		if !ok {
			sheet.Dropped++
			continue
		}
		sheet.Rows = append(sheet.Rows, Row{Date: date, Cells: cells})
	}

	return sheet, nil
}

// canonicalHeaders 去除表头空白；与预期表头宽松匹配的改写为规范名称
func (w *Workbook) canonicalHeaders(spec SheetSpec, raw []string) []string {
	byNorm := make(map[string]string, len(spec.Headers))
	for _, h := range spec.Headers {
		byNorm[NormalizeColumnName(h)] = h
	}

	headers := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		headers[i] = h
		if h == "" || containsString(spec.Headers, h) {
			continue
		}
		if canonical, ok := byNorm[NormalizeColumnName(h)]; ok && !containsString(raw, canonical) {
			headers[i] = canonical
			if w.mappings[spec.Name] == nil {
				w.mappings[spec.Name] = make(map[string]string)
			}
			w.mappings[spec.Name][h] = canonical
		}
	}
	return headers
}

// ValidateStructure 结构校验：缺失的 Sheet 与表头只记为告警
func (w *Workbook) ValidateStructure() ValidationResult {
	data := w.Read()

	result := ValidationResult{
		Status:             "ok",
		Errors:             w.Errors(),
		Warnings:           []string{},
		SheetsFound:        w.SheetNames(),
		MappingSuggestions: make(map[string]map[string]string),
	}

	for _, spec := range ExpectedSheets() {
		sheet, ok := data[spec.Name]
		if !ok {
			if !containsString(result.SheetsFound, spec.Name) {
				result.Warnings = append(result.Warnings, fmt.Sprintf("Sheet '%s' not found", spec.Name))
			}
			continue
		}
		for _, h := range spec.Headers {
			if !sheet.HasHeader(h) {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("Sheet '%s' is missing column '%s'", spec.Name, h))
			}
		}
	}

	for sheet, m := range w.mappings {
		result.MappingSuggestions[sheet] = m
	}

	return result
}

// Preview 每个 Sheet 的前 maxRows 行（日期格式化，数值转为数字，空值为 nil）
func (w *Workbook) Preview(maxRows int) map[string][]map[string]any {
	preview := make(map[string][]map[string]any)
	for name, sheet := range w.Read() {
		n := len(sheet.Rows)
		if maxRows >= 0 && n > maxRows {
			n = maxRows
		}

		records := make([]map[string]any, 0, n)
		for _, row := range sheet.Rows[:n] {
			rec := make(map[string]any, len(sheet.Headers))
			for _, h := range sheet.Headers {
				if h == "" {
					continue
				}
				rec[h] = previewValue(row.Cells[h])
			}
			rec[HeaderDate] = FormatDate(row.Date)
			records = append(records, rec)
		}
		preview[name] = records
	}
	return preview
}

func previewValue(raw string) any {
	if raw == "" {
		return nil
	}
	if v, ok := ParseNumber(raw); ok {
		return v
	}
	return raw
}

// Stats 每个 Sheet 的行数、日期范围，以及全部工厂名称
func (w *Workbook) Stats() Stats {
	stats := Stats{
		RowsPerSheet: make(map[string]int),
		DateRange:    make(map[string]DateRange),
		Plants:       []string{},
	}

	plants := make(map[string]struct{})
	for name, sheet := range w.Read() {
		stats.RowsPerSheet[name] = len(sheet.Rows)

		if len(sheet.Rows) > 0 {
			minDate, maxDate := sheet.Rows[0].Date, sheet.Rows[0].Date
			for _, row := range sheet.Rows[1:] {
				if row.Date.Before(minDate) {
					minDate = row.Date
				}
				if row.Date.After(maxDate) {
					maxDate = row.Date
				}
			}
			stats.DateRange[name] = DateRange{Start: FormatDate(minDate), End: FormatDate(maxDate)}
		}

		if sheet.HasHeader(HeaderPlant) {
			for _, row := range sheet.Rows {
				if p := row.Value(HeaderPlant); p != "" {
					plants[p] = struct{}{}
				}
			}
		}
	}

	for p := range plants {
		stats.Plants = append(stats.Plants, p)
	}
	sort.Strings(stats.Plants)
	return stats
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
