package parser

import "time"

// Row 一行数据：已解析的日期 + 表头→原始单元格文本
type Row struct {
	Date  time.Time
	Cells map[string]string
}

// Value 取单元格原始文本（已去首尾空白）
func (r Row) Value(header string) string {
	return r.Cells[header]
}

// SheetData 单个 Sheet 的读取结果
type SheetData struct {
	Name    string
	Headers []string
	Rows    []Row
	Dropped int // 日期为空或无法解析而被丢弃的行数
}

// HasHeader 是否包含指定表头
func (s *SheetData) HasHeader(header string) bool {
	for _, h := range s.Headers {
		if h == header {
			return true
		}
	}
	return false
}

// ValidationResult 结构校验结果（仅告警，不阻断导入）
type ValidationResult struct {
	Status             string                       `json:"status"`
	Errors             []string                     `json:"errors"`
	Warnings           []string                     `json:"warnings"`
	SheetsFound        []string                     `json:"sheets_found"`
	MappingSuggestions map[string]map[string]string `json:"mapping_suggestions"`
}

// DateRange 日期范围
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Stats 工作簿统计
type Stats struct {
	RowsPerSheet map[string]int       `json:"rowsPerSheet"`
	DateRange    map[string]DateRange `json:"dateRange"`
	Plants       []string             `json:"plants"`
}
