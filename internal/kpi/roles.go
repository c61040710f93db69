package kpi

import "strings"

// Role 看板角色
type Role string

const (
	RoleCXO       Role = "CXO"
	RolePlantHead Role = "Plant Head"
	RoleEnergy    Role = "Energy Manager"
	RoleSales     Role = "Sales"
)

// metric 输出指标及保留小数位
type metric struct {
	Name     string
	Decimals int
}

// trendKey 趋势序列中的一个键
type trendKey struct {
	Key    string
	Column string
}

// roleSpec 一个角色的查询形状
type roleSpec struct {
	Role    Role
	Aliases []string
	SQL     string   // 聚合查询，参数依次为 start, end, plant, plant
	Metrics []metric // 查询列 + 派生列，按输出顺序
	Table   string   // 趋势查询所用事实表
	Trend   []trendKey
	Derive  func(values map[string]float64, tariff float64)
}

var roleSpecs = []roleSpec{
	{
		Role:    RoleCXO,
		Aliases: []string{"cxo", "executive", "strategic"},
		SQL:     cxoSQL,
		Metrics: []metric{
			{"total_cement_mt", 2}, {"avg_ebitda_ton", 2}, {"avg_power_kwh_ton", 2},
			{"avg_clinker_factor", 3}, {"avg_capacity_util", 2}, {"avg_downtime_hrs", 2},
			{"avg_otif_pct", 2}, {"avg_margin_pct", 2}, {"avg_cost_ton", 2},
		},
		Table: "fact_finance",
		Trend: []trendKey{{"ebitda", "ebitda_rs_ton"}, {"margin", "margin_pct"}},
	},
	{
		Role:    RolePlantHead,
		Aliases: []string{"plant head", "plant_head", "plant", "operations"},
		SQL:     plantHeadSQL,
		Metrics: []metric{
			{"total_cement_mt", 2}, {"total_clinker_mt", 2}, {"avg_daily_cement", 2},
			{"avg_capacity_util", 2}, {"avg_downtime_hrs", 2}, {"uptime_pct", 2},
			{"avg_breakdown_hrs", 2}, {"avg_mtbf_hrs", 2}, {"avg_mttr_hrs", 2},
			{"avg_blaine", 2}, {"avg_strength_28d", 2}, {"avg_clinker_factor", 3},
		},
		Table: "fact_production",
		Trend: []trendKey{{"capacity", "capacity_util_pct"}, {"downtime", "downtime_hrs"}},
		Derive: func(v map[string]float64, _ float64) {
			if v["production_rows"] == 0 {
				v["uptime_pct"] = 0
				return
			}
			uptime := 100 - v["avg_downtime_hrs"]/24*100
			if uptime < 0 {
				uptime = 0
			}
			v["uptime_pct"] = uptime
		},
	},
	{
		Role:    RoleEnergy,
		Aliases: []string{"energy manager", "energy_manager", "energy"},
		SQL:     energySQL,
		Metrics: []metric{
			{"avg_power_kwh_ton", 2}, {"min_power_kwh_ton", 2}, {"max_power_kwh_ton", 2},
			{"best_power", 2}, {"worst_power", 2}, {"power_variance", 2},
			{"avg_heat_kcal_kg", 2}, {"min_heat_kcal_kg", 2}, {"max_heat_kcal_kg", 2},
			{"avg_fuel_cost_ton", 2}, {"avg_afr_pct", 2}, {"total_cement_mt", 2},
			{"savings_potential", 2},
		},
		Table: "fact_energy",
		Trend: []trendKey{{"power", "power_kwh_ton"}, {"afr", "afr_pct"}},
		Derive: func(v map[string]float64, tariff float64) {
			v["best_power"] = v["min_power_kwh_ton"]
			v["worst_power"] = v["max_power_kwh_ton"]
			v["power_variance"] = v["max_power_kwh_ton"] - v["min_power_kwh_ton"]
			v["savings_potential"] = (v["avg_power_kwh_ton"] - v["min_power_kwh_ton"]) * v["total_cement_mt"] * tariff
		},
	},
	{
		Role:    RoleSales,
		Aliases: []string{"sales"},
		SQL:     salesSQL,
		Metrics: []metric{
			{"total_dispatch_mt", 2}, {"avg_realization_ton", 2},
			{"min_realization_ton", 2}, {"max_realization_ton", 2}, {"price_variance", 2},
			{"avg_freight_ton", 2}, {"net_realization", 2}, {"avg_otif_pct", 2},
			{"total_revenue", 2}, {"revenue_per_ton", 2},
			{"avg_margin_pct", 2}, {"avg_ebitda_ton", 2},
		},
		Table: "fact_sales",
		Trend: []trendKey{{"realization", "realization_rs_ton"}, {"otif", "otif_pct"}},
		Derive: func(v map[string]float64, _ float64) {
			v["price_variance"] = v["max_realization_ton"] - v["min_realization_ton"]
			if v["total_dispatch_mt"] != 0 {
				v["revenue_per_ton"] = v["total_revenue"] / v["total_dispatch_mt"]
			} else {
				v["revenue_per_ton"] = 0
			}
		},
	},
}

// NormalizeRole 角色名（大小写不敏感，支持别名）；无法识别时回退为 CXO
func NormalizeRole(name string) Role {
	spec, _ := lookupRole(name)
	return spec.Role
}

// lookupRole 返回角色定义；ok 为 false 表示使用了回退角色
func lookupRole(name string) (roleSpec, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, spec := range roleSpecs {
		if strings.ToLower(string(spec.Role)) == key {
			return spec, true
		}
		for _, alias := range spec.Aliases {
			if alias == key {
				return spec, true
			}
		}
	}
	return roleSpecs[0], false
}

// Roles 全部角色
func Roles() []Role {
	out := make([]Role, len(roleSpecs))
	for i, s := range roleSpecs {
		out[i] = s.Role
	}
	return out
}

// MetricNames 角色的指标名，按输出顺序
func MetricNames(role Role) []string {
	spec, _ := lookupRole(string(role))
	names := make([]string, len(spec.Metrics))
	for i, m := range spec.Metrics {
		names[i] = m.Name
	}
	return names
}
