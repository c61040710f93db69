package kpi

// 所有查询的日期与工厂过滤均为绑定参数：start, end, plant, plant

// 被连接的事实表先按 (date, plant_name) 聚合，一天多行时不放大驱动表的 SUM
const (
	financeDaily = `
		SELECT date, plant_name,
		       AVG(ebitda_rs_ton) AS ebitda_rs_ton,
		       AVG(margin_pct)    AS margin_pct,
		       AVG(cost_rs_ton)   AS cost_rs_ton
		FROM fact_finance
		GROUP BY date, plant_name`
	energyDaily = `
		SELECT date, plant_name, AVG(power_kwh_ton) AS power_kwh_ton
		FROM fact_energy
		GROUP BY date, plant_name`
	qualityDaily = `
		SELECT date, plant_name,
		       AVG(blaine)         AS blaine,
		       AVG(strength_28d)   AS strength_28d,
		       AVG(clinker_factor) AS clinker_factor
		FROM fact_quality
		GROUP BY date, plant_name`
	salesDaily = `
		SELECT date, plant_name, AVG(otif_pct) AS otif_pct
		FROM fact_sales
		GROUP BY date, plant_name`
)

const cxoSQL = `
	SELECT
		SUM(p.cement_mt)          AS total_cement_mt,
		AVG(f.ebitda_rs_ton)      AS avg_ebitda_ton,
		AVG(e.power_kwh_ton)      AS avg_power_kwh_ton,
		AVG(q.clinker_factor)     AS avg_clinker_factor,
		AVG(p.capacity_util_pct)  AS avg_capacity_util,
		AVG(p.downtime_hrs)       AS avg_downtime_hrs,
		AVG(s.otif_pct)           AS avg_otif_pct,
		AVG(f.margin_pct)         AS avg_margin_pct,
		AVG(f.cost_rs_ton)        AS avg_cost_ton
	FROM fact_production p
	LEFT JOIN (` + financeDaily + `) f ON p.date = f.date AND p.plant_name = f.plant_name
	LEFT JOIN (` + energyDaily + `) e ON p.date = e.date AND p.plant_name = e.plant_name
	LEFT JOIN (` + qualityDaily + `) q ON p.date = q.date AND p.plant_name = q.plant_name
	LEFT JOIN (` + salesDaily + `) s ON p.date = s.date AND p.plant_name = s.plant_name
	WHERE p.date >= ? AND p.date <= ? AND (? = 'all' OR p.plant_name = ?)`

const plantHeadSQL = `
	SELECT
		SUM(p.cement_mt)                                    AS total_cement_mt,
		SUM(p.clinker_mt)                                   AS total_clinker_mt,
		SUM(p.cement_mt) / NULLIF(COUNT(DISTINCT p.date), 0) AS avg_daily_cement,
		AVG(p.capacity_util_pct)                            AS avg_capacity_util,
		AVG(p.downtime_hrs)                                 AS avg_downtime_hrs,
		AVG(m.breakdown_hrs)                                AS avg_breakdown_hrs,
		AVG(m.mtbf_hrs)                                     AS avg_mtbf_hrs,
		AVG(m.mttr_hrs)                                     AS avg_mttr_hrs,
		AVG(q.blaine)                                       AS avg_blaine,
		AVG(q.strength_28d)                                 AS avg_strength_28d,
		AVG(q.clinker_factor)                               AS avg_clinker_factor,
		COUNT(p.date)                                       AS production_rows
	FROM fact_production p
	LEFT JOIN (
		SELECT date, plant_name,
		       SUM(breakdown_hrs) AS breakdown_hrs,
		       AVG(mtbf_hrs)      AS mtbf_hrs,
		       AVG(mttr_hrs)      AS mttr_hrs
		FROM fact_maintenance
		GROUP BY date, plant_name
	) m ON p.date = m.date AND p.plant_name = m.plant_name
	LEFT JOIN (` + qualityDaily + `) q ON p.date = q.date AND p.plant_name = q.plant_name
	WHERE p.date >= ? AND p.date <= ? AND (? = 'all' OR p.plant_name = ?)`

const energySQL = `
	SELECT
		AVG(e.power_kwh_ton)    AS avg_power_kwh_ton,
		MIN(e.power_kwh_ton)    AS min_power_kwh_ton,
		MAX(e.power_kwh_ton)    AS max_power_kwh_ton,
		AVG(e.heat_kcal_kg)     AS avg_heat_kcal_kg,
		MIN(e.heat_kcal_kg)     AS min_heat_kcal_kg,
		MAX(e.heat_kcal_kg)     AS max_heat_kcal_kg,
		AVG(e.fuel_cost_rs_ton) AS avg_fuel_cost_ton,
		AVG(e.afr_pct)          AS avg_afr_pct,
		SUM(p.cement_mt)        AS total_cement_mt
	FROM fact_energy e
	LEFT JOIN (
		SELECT date, plant_name, SUM(cement_mt) AS cement_mt
		FROM fact_production
		GROUP BY date, plant_name
	) p ON e.date = p.date AND e.plant_name = p.plant_name
	WHERE e.date >= ? AND e.date <= ? AND (? = 'all' OR e.plant_name = ?)`

const salesSQL = `
	SELECT
		SUM(s.dispatch_mt)                          AS total_dispatch_mt,
		AVG(s.realization_rs_ton)                   AS avg_realization_ton,
		MIN(s.realization_rs_ton)                   AS min_realization_ton,
		MAX(s.realization_rs_ton)                   AS max_realization_ton,
		AVG(s.freight_rs_ton)                       AS avg_freight_ton,
		AVG(s.realization_rs_ton - s.freight_rs_ton) AS net_realization,
		AVG(s.otif_pct)                             AS avg_otif_pct,
		SUM(s.dispatch_mt * s.realization_rs_ton)   AS total_revenue,
		AVG(f.margin_pct)                           AS avg_margin_pct,
		AVG(f.ebitda_rs_ton)                        AS avg_ebitda_ton
	FROM fact_sales s
	LEFT JOIN (` + financeDaily + `) f ON s.date = f.date AND s.plant_name = f.plant_name
	WHERE s.date >= ? AND s.date <= ? AND (? = 'all' OR s.plant_name = ?)`

// 趋势查询模板：表名与列名来自固定角色定义
const trendSQL = `
	SELECT date, AVG(%s) AS %s, AVG(%s) AS %s
	FROM %s
	WHERE date >= ? AND date <= ? AND (? = 'all' OR plant_name = ?)
	GROUP BY date
	ORDER BY date`

// 工厂对比与角色、工厂过滤无关，仅按日期过滤
const comparisonSQL = `
	SELECT
		f.plant_name                                        AS plant_name,
		AVG(f.ebitda_rs_ton)                                AS ebitda_ton,
		SUM(f.ebitda_rs_ton * p.cement_mt) / SUM(p.cement_mt) AS weighted_ebitda
	FROM fact_finance f
	LEFT JOIN (
		SELECT date, plant_name, SUM(cement_mt) AS cement_mt
		FROM fact_production
		GROUP BY date, plant_name
	) p ON f.date = p.date AND f.plant_name = p.plant_name
	WHERE f.date >= ? AND f.date <= ? AND f.plant_name IS NOT NULL
	GROUP BY f.plant_name
	ORDER BY ebitda_ton DESC, f.plant_name`
