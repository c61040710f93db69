// Package insight 问题分类、证据查询与分析叙述生成
package insight

import "strings"

// Category 问题类别
type Category string

const (
	CategoryEbitdaDrop        Category = "ebitda_drop"
	CategoryEnergyAnomaly     Category = "energy_anomaly"
	CategoryPlantPerformance  Category = "plant_performance"
	CategoryMarginLeak        Category = "margin_leak"
	CategoryDowntimeRootCause Category = "downtime_root_cause"
)

// DefaultCategory 无规则命中时的类别
const DefaultCategory = CategoryPlantPerformance

type rule struct {
	match    func(q string) bool
	category Category
}

// rules 按顺序匹配，首个命中生效
var rules = []rule{
	{match: allOf(has("ebitda"), anyOf("drop", "decrease", "fall", "decline")), category: CategoryEbitdaDrop},
	{match: anyOf("energy", "power", "fuel"), category: CategoryEnergyAnomaly},
	{match: allOf(has("plant"), anyOf("performance", "comparison")), category: CategoryPlantPerformance},
	{match: allOf(has("margin"), anyOf("leak", "loss")), category: CategoryMarginLeak},
	{match: anyOf("downtime", "breakdown", "maintenance"), category: CategoryDowntimeRootCause},
}

// Classify 按关键词将问题归入类别（不区分大小写）
func Classify(question string) Category {
	q := strings.ToLower(question)
	for _, r := range rules {
		if r.match(q) {
			return r.category
		}
	}
	return DefaultCategory
}

// Categories 全部类别（规则顺序）
func Categories() []Category {
	return []Category{
		CategoryEbitdaDrop,
		CategoryEnergyAnomaly,
		CategoryPlantPerformance,
		CategoryMarginLeak,
		CategoryDowntimeRootCause,
	}
}

func has(word string) func(string) bool {
	return func(q string) bool { return strings.Contains(q, word) }
}

func anyOf(words ...string) func(string) bool {
	return func(q string) bool {
		for _, w := range words {
			if strings.Contains(q, w) {
				return true
			}
		}
		return false
	}
}

func allOf(preds ...func(string) bool) func(string) bool {
	return func(q string) bool {
		for _, p := range preds {
			if !p(q) {
				return false
			}
		}
		return true
	}
}
