package util

import (
	"fmt"
	"math"
	"strings"
)

// FormatIndian 按印度计数法分组（最后三位一组，其余两位一组），保留 decimals 位小数
func FormatIndian(value float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	s := fmt.Sprintf("%.*f", decimals, math.Abs(value))

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	if value < 0 && strings.Trim(s, "0.") != "" {
		b.WriteByte('-')
	}
	if len(intPart) <= 3 {
		b.WriteString(intPart)
	} else {
		head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
		groups := make([]string, 0, len(head)/2+1)
		if lead := len(head) % 2; lead > 0 {
			groups = append(groups, head[:lead])
			head = head[lead:]
		}
		for ; len(head) > 0; head = head[2:] {
			groups = append(groups, head[:2])
		}
		b.WriteString(strings.Join(groups, ","))
		b.WriteByte(',')
		b.WriteString(tail)
	}
	b.WriteString(frac)
	return b.String()
}

// FormatMetric 指标展示：金额类用印度分组，百分比加 % 后缀，其余保留两位小数
func FormatMetric(name string, value float64) string {
	switch {
	case strings.HasSuffix(name, "_pct") || strings.HasSuffix(name, "_util"):
		return fmt.Sprintf("%.2f%%", value)
	case strings.HasSuffix(name, "_factor"):
		return fmt.Sprintf("%.3f", value)
	case strings.Contains(name, "revenue") || strings.Contains(name, "cost") ||
		strings.Contains(name, "ebitda") || strings.Contains(name, "realization"):
		return "₹" + FormatIndian(value, 2)
	default:
		return FormatIndian(value, 2)
	}
}
