package kpi

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/store"
)

func seedWarehouse(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "warehouse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	load := func(table string, cols []string, rows [][]any) {
		_, err := st.ReplaceTable(ctx, table, cols, rows)
		require.NoError(t, err, table)
	}

	load(store.TableFactProduction,
		[]string{"date", "plant_name", "line", "cement_mt", "clinker_mt", "capacity_util_pct", "downtime_hrs"},
		[][]any{
			{"2024-01-01", "Lumshnong", "L1", 1000.0, 700.0, 80.0, 2.0},
			{"2024-01-01", "Sonapur", "L1", 500.0, 350.0, 90.0, 4.0},
			{"2024-01-02", "Lumshnong", "L1", 1200.0, 800.0, 85.0, 0.0},
		})
	load(store.TableFactFinance,
		[]string{"date", "plant_name", "cost_rs_ton", "ebitda_rs_ton", "margin_pct"},
		[][]any{
			{"2024-01-01", "Lumshnong", 4000.0, 1000.0, 20.0},
			{"2024-01-01", "Sonapur", 4200.0, 800.0, 15.0},
			{"2024-01-02", "Lumshnong", 4100.0, 1100.0, 21.0},
		})
	load(store.TableFactQuality,
		[]string{"date", "plant_name", "blaine", "strength_28d", "clinker_factor"},
		[][]any{
			{"2024-01-01", "Lumshnong", 3300.0, 54.0, 0.7234},
			{"2024-01-02", "Lumshnong", 3400.0, 55.0, 0.7111},
		})
	load(store.TableFactEnergy,
		[]string{"date", "plant_name", "power_kwh_ton", "heat_kcal_kg", "fuel_cost_rs_ton", "afr_pct"},
		[][]any{
			{"2024-01-01", "Lumshnong", 70.0, 720.0, 1500.0, 10.0},
			{"2024-01-01", "Sonapur", 80.0, 760.0, 1700.0, 5.0},
			{"2024-01-02", "Lumshnong", 72.0, 730.0, 1550.0, 12.0},
		})
	load(store.TableFactMaintenance,
		[]string{"date", "plant_name", "equipment", "breakdown_hrs", "mtbf_hrs", "mttr_hrs"},
		[][]any{
			{"2024-01-01", "Lumshnong", "Kiln", 3.0, 200.0, 4.0},
			{"2024-01-01", "Lumshnong", "Packer", 1.0, 300.0, 2.0},
		})
	load(store.TableFactSales,
		[]string{"date", "plant_name", "region", "dispatch_mt", "realization_rs_ton", "freight_rs_ton", "otif_pct"},
		[][]any{
			{"2024-01-01", "Lumshnong", "Northeast", 900.0, 6000.0, 600.0, 95.0},
			{"2024-01-02", "Lumshnong", "Northeast", 1100.0, 5800.0, 700.0, 91.0},
		})

	return st
}

func TestCompute_CXO(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(seedWarehouse(t))
	res, err := agg.Compute(context.Background(), Query{Role: "CXO", Start: "2024-01-01", End: "2024-01-31", Plant: "all"})
	require.NoError(t, err)

	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, RoleCXO, res.Role)
	assert.Equal(t, 2700.0, res.KPIs["total_cement_mt"])
	assert.Equal(t, 966.67, res.KPIs["avg_ebitda_ton"])
	assert.Equal(t, 74.0, res.KPIs["avg_power_kwh_ton"])
	assert.Equal(t, 0.717, res.KPIs["avg_clinker_factor"])
	assert.Equal(t, 85.0, res.KPIs["avg_capacity_util"])
	assert.Equal(t, 2.0, res.KPIs["avg_downtime_hrs"])
	assert.Equal(t, 93.0, res.KPIs["avg_otif_pct"])
	assert.Equal(t, 18.67, res.KPIs["avg_margin_pct"])
	assert.Equal(t, 4100.0, res.KPIs["avg_cost_ton"])

	assert.Equal(t, []string{"ebitda", "margin"}, res.Series.Keys)
	require.Len(t, res.Series.Trends, 2)
	assert.Equal(t, TrendPoint{Date: "2024-01-01", Values: map[string]float64{"ebitda": 900, "margin": 17.5}}, res.Series.Trends[0])
	assert.Equal(t, TrendPoint{Date: "2024-01-02", Values: map[string]float64{"ebitda": 1100, "margin": 21}}, res.Series.Trends[1])

	assert.Equal(t, []PlantComparison{
		{PlantName: "Lumshnong", EbitdaTon: 1050, WeightedEbitda: 1054.55},
		{PlantName: "Sonapur", EbitdaTon: 800, WeightedEbitda: 800},
	}, res.Comparisons)
}

func TestCompute_PlantFilterIsBound(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(seedWarehouse(t))
	ctx := context.Background()

	res, err := agg.Compute(ctx, Query{Role: "CXO", Start: "2024-01-01", End: "2024-01-31", Plant: "Sonapur"})
	require.NoError(t, err)
	assert.Equal(t, 500.0, res.KPIs["total_cement_mt"])
	assert.Equal(t, 800.0, res.KPIs["avg_ebitda_ton"])
	require.Len(t, res.Series.Trends, 1)
	// 对比不受工厂过滤影响
	assert.Len(t, res.Comparisons, 2)

	res, err = agg.Compute(ctx, Query{Role: "CXO", Start: "2024-01-01", End: "2024-01-31", Plant: "x' OR '1'='1"})
	require.NoError(t, err)
	assert.Zero(t, res.KPIs["total_cement_mt"])
	assert.Empty(t, res.Series.Trends)
}

func TestCompute_EmptyRangeReturnsZeros(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(seedWarehouse(t))
	for _, role := range Roles() {
		res, err := agg.Compute(context.Background(), Query{Role: string(role), Start: "2030-01-01", End: "2030-12-31", Plant: "all"})
		require.NoError(t, err, role)
		require.NotEmpty(t, res.KPIs, role)
		for name, v := range res.KPIs {
			assert.Zero(t, v, "%s %s", role, name)
		}
		assert.Empty(t, res.Series.Trends, role)
		assert.Empty(t, res.Comparisons, role)
	}
}

func TestCompute_PlantHead(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(seedWarehouse(t))
	res, err := agg.Compute(context.Background(), Query{Role: "plant head", Start: "2024-01-01", End: "2024-01-31"})
	require.NoError(t, err)

	assert.Equal(t, RolePlantHead, res.Role)
	assert.Equal(t, 1350.0, res.KPIs["avg_daily_cement"])
	assert.Equal(t, 1850.0, res.KPIs["total_clinker_mt"])
	assert.Equal(t, 91.67, res.KPIs["uptime_pct"])
	// 维修按 (日期, 工厂) 预聚合：只有 Lumshnong 01-01 一组，4 小时
	assert.Equal(t, 4.0, res.KPIs["avg_breakdown_hrs"])
	assert.Equal(t, 250.0, res.KPIs["avg_mtbf_hrs"])
	assert.Equal(t, []string{"capacity", "downtime"}, res.Series.Keys)
}

func TestCompute_EnergyDerivedMetrics(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(seedWarehouse(t), WithPowerTariff(8))
	res, err := agg.Compute(context.Background(), Query{Role: "Energy Manager", Start: "2024-01-01", End: "2024-01-31"})
	require.NoError(t, err)

	assert.Equal(t, 74.0, res.KPIs["avg_power_kwh_ton"])
	assert.Equal(t, 70.0, res.KPIs["best_power"])
	assert.Equal(t, 80.0, res.KPIs["worst_power"])
	assert.Equal(t, 10.0, res.KPIs["power_variance"])
	assert.Equal(t, 2700.0, res.KPIs["total_cement_mt"])
	assert.Equal(t, (74.0-70.0)*2700*8, res.KPIs["savings_potential"])
}

func TestCompute_SalesDerivedMetrics(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(seedWarehouse(t))
	res, err := agg.Compute(context.Background(), Query{Role: "sales", Start: "2024-01-01", End: "2024-01-31"})
	require.NoError(t, err)

	assert.Equal(t, 2000.0, res.KPIs["total_dispatch_mt"])
	assert.Equal(t, 200.0, res.KPIs["price_variance"])
	assert.Equal(t, 900.0*6000+1100.0*5800, res.KPIs["total_revenue"])
	assert.Equal(t, 5890.0, res.KPIs["revenue_per_ton"])
	assert.Equal(t, 5250.0, res.KPIs["net_realization"])
}

func TestNormalizeRole(t *testing.T) {
	t.Parallel()

	tests := map[string]Role{
		"CXO":            RoleCXO,
		"executive":      RoleCXO,
		"Plant Head":     RolePlantHead,
		"operations":     RolePlantHead,
		"ENERGY MANAGER": RoleEnergy,
		"energy":         RoleEnergy,
		"Sales":          RoleSales,
		"Janitor":        RoleCXO,
		"":               RoleCXO,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeRole(in), in)
	}
}

func TestCompute_InvalidRange(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(seedWarehouse(t))
	for _, q := range []Query{
		{Start: "2024-02-01", End: "2024-01-01"},
		{Start: "01/01/2024", End: "2024-12-31"},
		{Start: "2024-01-01", End: "tomorrow"},
	} {
		_, err := agg.Compute(context.Background(), q)
		assert.True(t, errors.Is(err, ErrInvalidRange), "%+v: %v", q, err)
	}
}

func TestCompute_IsIdempotent(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(seedWarehouse(t))
	q := Query{Role: "Sales", Start: "2024-01-01", End: "2024-12-31", Plant: "Lumshnong"}

	first, err := agg.Compute(context.Background(), q)
	require.NoError(t, err)
	second, err := agg.Compute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

type failingQuerier struct{}

func (failingQuerier) QueryMaps(context.Context, string, ...any) ([]map[string]any, error) {
	return nil, errors.New("no such table: fact_production")
}

func TestCompute_QueryFailure(t *testing.T) {
	t.Parallel()

	_, err := NewAggregator(failingQuerier{}).Compute(context.Background(), Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such table")
}

func TestTrendPoint_MarshalJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(TrendPoint{Date: "2024-01-01", Values: map[string]float64{"power": 71.5, "afr": 9}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-01-01","power":71.5,"afr":9}`, string(b))
}

func TestToFloat(t *testing.T) {
	t.Parallel()

	assert.Zero(t, toFloat(nil))
	assert.Zero(t, toFloat("abc"))
	assert.Equal(t, 3.5, toFloat("3.5"))
	assert.Equal(t, 4.0, toFloat(int64(4)))
}

func TestMetricNames(t *testing.T) {
	t.Parallel()

	names := MetricNames(RoleCXO)
	assert.Equal(t, "total_cement_mt", names[0])
	assert.Len(t, names, 9)
	assert.Equal(t, MetricNames(RoleCXO), MetricNames("Janitor"))
}

func TestCompute_MultiRowJoinedFactsDoNotInflate(t *testing.T) {
	t.Parallel()

	st, err := store.New(filepath.Join(t.TempDir(), "warehouse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	_, err = st.ReplaceTable(ctx, store.TableFactProduction,
		[]string{"date", "plant_name", "line", "cement_mt", "clinker_mt", "capacity_util_pct", "downtime_hrs"},
		[][]any{{"2024-06-01", "Lumshnong", "L1", 1000.0, 700.0, 80.0, 2.0}})
	require.NoError(t, err)
	_, err = st.ReplaceTable(ctx, store.TableFactSales,
		[]string{"date", "plant_name", "region", "dispatch_mt", "realization_rs_ton", "freight_rs_ton", "otif_pct"},
		[][]any{
			{"2024-06-01", "Lumshnong", "Northeast", 400.0, 6000.0, 600.0, 90.0},
			{"2024-06-01", "Lumshnong", "East", 500.0, 5900.0, 650.0, 96.0},
		})
	require.NoError(t, err)
	_, err = st.ReplaceTable(ctx, store.TableFactQuality,
		[]string{"date", "plant_name", "blaine", "strength_28d", "clinker_factor"},
		[][]any{
			{"2024-06-01", "Lumshnong", 3300.0, 54.0, 0.70},
			{"2024-06-01", "Lumshnong", 3500.0, 56.0, 0.74},
		})
	require.NoError(t, err)

	agg := NewAggregator(st)
	q := Query{Start: "2024-06-01", End: "2024-06-30", Plant: "all"}

	q.Role = "CXO"
	res, err := agg.Compute(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, res.KPIs["total_cement_mt"])
	assert.Equal(t, 93.0, res.KPIs["avg_otif_pct"])
	assert.Equal(t, 0.72, res.KPIs["avg_clinker_factor"])

	q.Role = "Plant Head"
	res, err = agg.Compute(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, res.KPIs["total_cement_mt"])
	assert.Equal(t, 700.0, res.KPIs["total_clinker_mt"])
	assert.Equal(t, 3400.0, res.KPIs["avg_blaine"])
}
