package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DateLayout 数仓中日期的规范格式
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006/01/02",
	"2006/1/2",
	"2006/01/02 15:04:05",
	"1/2/2006",
	"01/02/2006",
	"1/2/2006 15:04:05",
	"1/2/06",
	"2006.01.02",
	"2006-1-2",
	"02-Jan-2006",
	"2-Jan-2006",
	"02-Jan-06",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"20060102",
}

// Excel 序列日期的合理范围（1900-01-01 到 9999-12-31）
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// ParseDate 宽松解析日期：常见文本格式或 Excel 序列号。
// 无法解析时 ok 为 false，调用方据此丢弃该行。
func ParseDate(raw string, date1904 bool) (t time.Time, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return truncateDay(parsed), true
		}
	}

	// 纯数字：按 Excel 序列号处理（8 位 yyyymmdd 已在上面匹配）
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if v < minExcelSerial || v > maxExcelSerial {
			return time.Time{}, false
		}
		parsed, err := excelize.ExcelDateToTime(v, date1904)
		if err != nil {
			return time.Time{}, false
		}
		return truncateDay(parsed), true
	}

	return time.Time{}, false
}

// FormatDate 格式化为 YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
