package insight

import (
	"fmt"
	"math"
	"strconv"
)

// Metrics 由证据行计算出的关键指标
type Metrics map[string]any

// ComputeMetrics 按类别从证据行派生关键指标；数据不足时返回空表
func ComputeMetrics(c Category, rows []map[string]any) Metrics {
	m := Metrics{}
	if len(rows) == 0 {
		return m
	}

	switch c {
	case CategoryEbitdaDrop:
		if len(rows) < 2 {
			return m
		}
		latest, previous := rows[len(rows)-1], rows[len(rows)-2]
		m["ebitda_delta"] = round2(number(latest["avg_ebitda"]) - number(previous["avg_ebitda"]))
		m["cost_delta"] = round2(number(latest["avg_cost"]) - number(previous["avg_cost"]))
		m["margin_delta"] = round2(number(latest["avg_margin"]) - number(previous["avg_margin"]))
		m["latest_month"] = text(latest["month"])
		m["previous_month"] = text(previous["month"])

	case CategoryPlantPerformance:
		best, worst := rows[0], rows[0]
		for _, r := range rows[1:] {
			if number(r["avg_ebitda"]) > number(best["avg_ebitda"]) {
				best = r
			}
			if number(r["avg_ebitda"]) < number(worst["avg_ebitda"]) {
				worst = r
			}
		}
		m["best_plant"] = text(best["plant_name"])
		m["best_ebitda"] = round2(number(best["avg_ebitda"]))
		m["worst_plant"] = text(worst["plant_name"])
		m["worst_ebitda"] = round2(number(worst["avg_ebitda"]))
		m["performance_gap"] = round2(number(best["avg_ebitda"]) - number(worst["avg_ebitda"]))

	case CategoryDowntimeRootCause:
		top := rows[0]
		m["top_equipment"] = text(top["equipment"])
		m["top_plant"] = text(top["plant_name"])
		m["avg_breakdown_hrs"] = round2(number(top["avg_breakdown"]))
		m["mtbf_hrs"] = round2(number(top["avg_mtbf"]))
		m["mttr_hrs"] = round2(number(top["avg_mttr"]))
	}

	return m
}

// number NULL 与无法解析的值按 0 处理
func number(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int64:
		f = float64(x)
	case int:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
