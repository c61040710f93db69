package importer

import (
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/parser"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/store"
)

// columnMapping 源表头 → 数仓列
type columnMapping struct {
	Source string
	Target string
}

// sheetTarget 一个 Sheet 的装载目标
type sheetTarget struct {
	Sheet   string
	Table   string
	Columns []columnMapping
}

// 装载顺序即此处顺序
var sheetTargets = []sheetTarget{
	{parser.SheetProduction, store.TableFactProduction, []columnMapping{
		{"Date", "date"}, {"Plant", "plant_name"}, {"Line", "line"},
		{"Cement_MT", "cement_mt"}, {"Clinker_MT", "clinker_mt"},
		{"Capacity_Util_%", "capacity_util_pct"}, {"Downtime_Hrs", "downtime_hrs"},
	}},
	{parser.SheetEnergy, store.TableFactEnergy, []columnMapping{
		{"Date", "date"}, {"Plant", "plant_name"},
		{"Power_kWh_Ton", "power_kwh_ton"}, {"Heat_kcal_kg", "heat_kcal_kg"},
		{"Fuel_Cost_Rs_Ton", "fuel_cost_rs_ton"}, {"AFR_%", "afr_pct"},
	}},
	{parser.SheetMaintenance, store.TableFactMaintenance, []columnMapping{
		{"Date", "date"}, {"Plant", "plant_name"}, {"Equipment", "equipment"},
		{"Breakdown_Hrs", "breakdown_hrs"}, {"MTBF_Hrs", "mtbf_hrs"}, {"MTTR_Hrs", "mttr_hrs"},
	}},
	{parser.SheetQuality, store.TableFactQuality, []columnMapping{
		{"Date", "date"}, {"Plant", "plant_name"},
		{"Blaine", "blaine"}, {"Strength_28D", "strength_28d"}, {"Clinker_Factor", "clinker_factor"},
	}},
	{parser.SheetSales, store.TableFactSales, []columnMapping{
		{"Date", "date"}, {"Plant", "plant_name"}, {"Region", "region"},
		{"Dispatch_MT", "dispatch_mt"}, {"Realization_Rs_Ton", "realization_rs_ton"},
		{"Freight_Rs_Ton", "freight_rs_ton"}, {"OTIF_%", "otif_pct"},
	}},
	{parser.SheetFinance, store.TableFactFinance, []columnMapping{
		{"Date", "date"}, {"Plant", "plant_name"},
		{"Cost_Rs_Ton", "cost_rs_ton"}, {"EBITDA_Rs_Ton", "ebitda_rs_ton"}, {"Margin_%", "margin_pct"},
	}},
}

// plantRegions 工厂 → 区域，未收录的为 Unknown
var plantRegions = map[string]string{
	"Lumshnong":  "Northeast",
	"Sonapur":    "Northeast",
	"Siliguri":   "East",
	"Jalpaiguri": "East",
	"Guwahati":   "Northeast",
}

// UnknownRegion 未收录工厂的区域
const UnknownRegion = "Unknown"

// RegionFor 按工厂名精确查找区域
func RegionFor(plant string) string {
	if r, ok := plantRegions[plant]; ok {
		return r
	}
	return UnknownRegion
}

// TargetTable Sheet 对应的事实表
func TargetTable(sheet string) (string, bool) {
	for _, t := range sheetTargets {
		if t.Sheet == sheet {
			return t.Table, true
		}
	}
	return "", false
}

// ColumnMappings Sheet → 源表头 → 数仓列（副本）
func ColumnMappings() map[string]map[string]string {
	out := make(map[string]map[string]string, len(sheetTargets))
	for _, t := range sheetTargets {
		m := make(map[string]string, len(t.Columns))
		for _, c := range t.Columns {
			m[c.Source] = c.Target
		}
		out[t.Sheet] = m
	}
	return out
}
