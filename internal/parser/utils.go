package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var headerNoise = regexp.MustCompile(`[\s_%\-\.]+`)

// NormalizeColumnName 规范化列名：去除空白、下划线、百分号等并转小写，
// 用于宽松匹配 "Capacity Util %" 与 "Capacity_Util_%"
func NormalizeColumnName(name string) string {
	name = strings.TrimSpace(name)
	name = headerNoise.ReplaceAllString(name, "")
	return strings.ToLower(name)
}

// ParseNumber 解析数值单元格，允许千分位逗号；空串或无法解析返回 false
func ParseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
