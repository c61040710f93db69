package insight

// 证据查询模板。参数顺序固定：start, end, plant, plant
const (
	ebitdaDropSQL = `
SELECT strftime('%Y-%m', date) AS month,
       AVG(ebitda_rs_ton) AS avg_ebitda,
       AVG(cost_rs_ton)   AS avg_cost,
       AVG(margin_pct)    AS avg_margin
FROM fact_finance
WHERE date BETWEEN ? AND ?
  AND (? = 'all' OR plant_name = ?)
GROUP BY month
ORDER BY month`

	energyAnomalySQL = `
SELECT plant_name,
       AVG(power_kwh_ton)    AS avg_power,
       AVG(heat_kcal_kg)     AS avg_heat,
       AVG(fuel_cost_rs_ton) AS avg_fuel_cost,
       AVG(afr_pct)          AS avg_afr
FROM fact_energy
WHERE date BETWEEN ? AND ?
  AND (? = 'all' OR plant_name = ?)
GROUP BY plant_name
ORDER BY avg_power DESC, plant_name`

	plantPerformanceSQL = `
SELECT p.plant_name,
       SUM(p.cement_mt)         AS total_cement,
       AVG(p.capacity_util_pct) AS avg_capacity,
       AVG(p.downtime_hrs)      AS avg_downtime,
       AVG(f.ebitda_rs_ton)     AS avg_ebitda
FROM fact_production p
LEFT JOIN fact_finance f ON p.date = f.date AND p.plant_name = f.plant_name
WHERE p.date BETWEEN ? AND ?
  AND (? = 'all' OR p.plant_name = ?)
GROUP BY p.plant_name
ORDER BY avg_ebitda DESC, p.plant_name`

	marginLeakSQL = `
SELECT f.plant_name,
       AVG(f.margin_pct)         AS avg_margin,
       AVG(f.cost_rs_ton)        AS avg_cost,
       AVG(s.realization_rs_ton) AS avg_realization,
       AVG(s.freight_rs_ton)     AS avg_freight,
       AVG(e.fuel_cost_rs_ton)   AS avg_fuel_cost
FROM fact_finance f
LEFT JOIN fact_sales s  ON f.date = s.date AND f.plant_name = s.plant_name
LEFT JOIN fact_energy e ON f.date = e.date AND f.plant_name = e.plant_name
WHERE f.date BETWEEN ? AND ?
  AND (? = 'all' OR f.plant_name = ?)
GROUP BY f.plant_name
ORDER BY avg_margin ASC, f.plant_name`

	downtimeRootCauseSQL = `
SELECT m.plant_name,
       m.equipment,
       AVG(m.breakdown_hrs) AS avg_breakdown,
       AVG(m.mtbf_hrs)      AS avg_mtbf,
       AVG(m.mttr_hrs)      AS avg_mttr,
       COUNT(*)             AS incident_count
FROM fact_maintenance m
WHERE m.date BETWEEN ? AND ?
  AND (? = 'all' OR m.plant_name = ?)
GROUP BY m.plant_name, m.equipment
HAVING avg_breakdown > 0
ORDER BY avg_breakdown DESC, m.plant_name, m.equipment
LIMIT 10`
)

var templates = map[Category]string{
	CategoryEbitdaDrop:        ebitdaDropSQL,
	CategoryEnergyAnomaly:     energyAnomalySQL,
	CategoryPlantPerformance:  plantPerformanceSQL,
	CategoryMarginLeak:        marginLeakSQL,
	CategoryDowntimeRootCause: downtimeRootCauseSQL,
}

// Template 返回类别对应的查询语句
func Template(c Category) (string, bool) {
	q, ok := templates[c]
	return q, ok
}

func templateArgs(f Filters) []any {
	return []any{f.Start, f.End, f.Plant, f.Plant}
}
