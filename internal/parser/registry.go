package parser

// SheetSpec 预期 Sheet 定义
type SheetSpec struct {
	Name    string
	Headers []string
}

// 通用表头
const (
	HeaderDate  = "Date"
	HeaderPlant = "Plant"
)

// 预期 Sheet 名称
const (
	SheetProduction  = "Production"
	SheetEnergy      = "Energy"
	SheetMaintenance = "Maintenance"
	SheetQuality     = "Quality"
	SheetSales       = "Sales_Logistics"
	SheetFinance     = "Finance"
)

var expectedSheets = []SheetSpec{
	{SheetProduction, []string{"Date", "Plant", "Line", "Cement_MT", "Clinker_MT", "Capacity_Util_%", "Downtime_Hrs"}},
	{SheetEnergy, []string{"Date", "Plant", "Power_kWh_Ton", "Heat_kcal_kg", "Fuel_Cost_Rs_Ton", "AFR_%"}},
	{SheetMaintenance, []string{"Date", "Plant", "Equipment", "Breakdown_Hrs", "MTBF_Hrs", "MTTR_Hrs"}},
	{SheetQuality, []string{"Date", "Plant", "Blaine", "Strength_28D", "Clinker_Factor"}},
	{SheetSales, []string{"Date", "Plant", "Region", "Dispatch_MT", "Realization_Rs_Ton", "Freight_Rs_Ton", "OTIF_%"}},
	{SheetFinance, []string{"Date", "Plant", "Cost_Rs_Ton", "EBITDA_Rs_Ton", "Margin_%"}},
}

// ExpectedSheets 返回预期 Sheet 列表（副本，按固定顺序）
func ExpectedSheets() []SheetSpec {
	out := make([]SheetSpec, len(expectedSheets))
	for i, s := range expectedSheets {
		headers := make([]string, len(s.Headers))
		copy(headers, s.Headers)
		out[i] = SheetSpec{Name: s.Name, Headers: headers}
	}
	return out
}

// LookupSheet 按名称查找预期 Sheet
func LookupSheet(name string) (SheetSpec, bool) {
	for _, s := range ExpectedSheets() {
		if s.Name == name {
			return s, true
		}
	}
	return SheetSpec{}, false
}
