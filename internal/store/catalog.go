package store

// ColumnKind 列的数据类别
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindReal
	KindInteger
	KindDate // 规范化为 YYYY-MM-DD 文本
)

// Column 列定义
type Column struct {
	Name string
	Kind ColumnKind
}

// Table 表定义
type Table struct {
	Name    string
	Columns []Column
}

// ColumnNames 返回列名列表（按建表顺序）
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column 按名称查找列
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// 表名常量
const (
	TableDimDate         = "dim_date"
	TableDimPlant        = "dim_plant"
	TableFactProduction  = "fact_production"
	TableFactEnergy      = "fact_energy"
	TableFactMaintenance = "fact_maintenance"
	TableFactQuality     = "fact_quality"
	TableFactSales       = "fact_sales"
	TableFactFinance     = "fact_finance"
)

// catalog 与 schema.sql 保持一致；只读，通过访问函数返回副本
var catalog = []Table{
	{Name: TableDimDate, Columns: []Column{
		{"date", KindDate}, {"year", KindInteger}, {"month", KindInteger},
		{"day", KindInteger}, {"month_name", KindText}, {"quarter", KindInteger},
	}},
	{Name: TableDimPlant, Columns: []Column{
		{"plant_id", KindInteger}, {"plant_name", KindText}, {"region", KindText},
	}},
	{Name: TableFactProduction, Columns: []Column{
		{"date", KindDate}, {"plant_name", KindText}, {"line", KindText},
		{"cement_mt", KindReal}, {"clinker_mt", KindReal},
		{"capacity_util_pct", KindReal}, {"downtime_hrs", KindReal},
	}},
	{Name: TableFactEnergy, Columns: []Column{
		{"date", KindDate}, {"plant_name", KindText},
		{"power_kwh_ton", KindReal}, {"heat_kcal_kg", KindReal},
		{"fuel_cost_rs_ton", KindReal}, {"afr_pct", KindReal},
	}},
	{Name: TableFactMaintenance, Columns: []Column{
		{"date", KindDate}, {"plant_name", KindText}, {"equipment", KindText},
		{"breakdown_hrs", KindReal}, {"mtbf_hrs", KindReal}, {"mttr_hrs", KindReal},
	}},
	{Name: TableFactQuality, Columns: []Column{
		{"date", KindDate}, {"plant_name", KindText},
		{"blaine", KindReal}, {"strength_28d", KindReal}, {"clinker_factor", KindReal},
	}},
	{Name: TableFactSales, Columns: []Column{
		{"date", KindDate}, {"plant_name", KindText}, {"region", KindText},
		{"dispatch_mt", KindReal}, {"realization_rs_ton", KindReal},
		{"freight_rs_ton", KindReal}, {"otif_pct", KindReal},
	}},
	{Name: TableFactFinance, Columns: []Column{
		{"date", KindDate}, {"plant_name", KindText},
		{"cost_rs_ton", KindReal}, {"ebitda_rs_ton", KindReal}, {"margin_pct", KindReal},
	}},
}

// Tables 返回全部数仓表定义（维度在前，事实在后）
func Tables() []Table {
	out := make([]Table, len(catalog))
	for i, t := range catalog {
		cols := make([]Column, len(t.Columns))
		copy(cols, t.Columns)
		out[i] = Table{Name: t.Name, Columns: cols}
	}
	return out
}

// LookupTable 按表名查找定义
func LookupTable(name string) (Table, bool) {
	for _, t := range Tables() {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// SchemaColumns 表名 → 列名列表，用于 schema 接口
func SchemaColumns() map[string][]string {
	out := make(map[string][]string, len(catalog))
	for _, t := range catalog {
		out[t.Name] = t.ColumnNames()
	}
	return out
}
