package insight

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/insight/llm"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/store"
)

func TestMain(m *testing.M) {
	// genai 经 cloud auth 引入 opencensus，其 init 启动常驻 worker
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
	system string
}

func (g *fakeGenerator) Generate(_ context.Context, system, prompt string) (string, error) {
	g.system = system
	g.prompt = prompt
	return g.reply, g.err
}

type failingQuerier struct{}

func (failingQuerier) QueryMaps(context.Context, string, ...any) ([]map[string]any, error) {
	return nil, errors.New("no such table: fact_finance")
}

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

	load(store.TableFactFinance,
		[]string{"date", "plant_name", "cost_rs_ton", "ebitda_rs_ton", "margin_pct"},
		[][]any{
			{"2024-01-10", "Lumshnong", 4000.0, 90.0, 20.0},
			{"2024-01-10", "Sonapur", 4000.0, 110.0, 20.0},
			{"2024-02-10", "Lumshnong", 3900.0, 120.0, 22.0},
			{"2024-02-10", "Sonapur", 3900.0, 120.0, 22.0},
		})
	load(store.TableFactProduction,
		[]string{"date", "plant_name", "line", "cement_mt", "clinker_mt", "capacity_util_pct", "downtime_hrs"},
		[][]any{
			{"2024-01-10", "Lumshnong", "L1", 1000.0, 700.0, 80.0, 2.0},
			{"2024-01-10", "Sonapur", "L1", 500.0, 350.0, 90.0, 4.0},
			{"2024-02-10", "Lumshnong", "L1", 1100.0, 750.0, 82.0, 1.0},
			{"2024-02-10", "Sonapur", "L1", 600.0, 400.0, 88.0, 3.0},
		})
	load(store.TableFactEnergy,
		[]string{"date", "plant_name", "power_kwh_ton", "heat_kcal_kg", "fuel_cost_rs_ton", "afr_pct"},
		[][]any{
			{"2024-01-10", "Lumshnong", 70.0, 720.0, 1500.0, 10.0},
			{"2024-01-10", "Sonapur", 82.0, 760.0, 1700.0, 5.0},
		})
	load(store.TableFactMaintenance,
		[]string{"date", "plant_name", "equipment", "breakdown_hrs", "mtbf_hrs", "mttr_hrs"},
		[][]any{
			{"2024-01-10", "Lumshnong", "Kiln", 6.0, 150.0, 5.0},
			{"2024-02-10", "Lumshnong", "Kiln", 4.0, 170.0, 3.0},
			{"2024-01-10", "Sonapur", "Packer", 1.0, 400.0, 1.0},
			{"2024-01-10", "Sonapur", "Crusher", 0.0, 500.0, 0.0},
		})
	load(store.TableFactSales,
		[]string{"date", "plant_name", "region", "dispatch_mt", "realization_rs_ton", "freight_rs_ton", "otif_pct"},
		[][]any{
			{"2024-01-10", "Lumshnong", "Northeast", 900.0, 6000.0, 600.0, 95.0},
			{"2024-01-10", "Sonapur", "Northeast", 450.0, 5800.0, 650.0, 90.0},
		})

	return st
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		question string
		want     Category
	}{
		{"Why did EBITDA drop in the recent month?", CategoryEbitdaDrop},
		{"ebitda decline at Sonapur", CategoryEbitdaDrop},
		{"Which plants have energy consumption anomalies?", CategoryEnergyAnomaly},
		{"Is fuel cost rising?", CategoryEnergyAnomaly},
		{"Compare plant performance across regions", CategoryPlantPerformance},
		{"Show the margin leak by plant", CategoryMarginLeak},
		{"What are the root causes of downtime?", CategoryDowntimeRootCause},
		{"maintenance backlog", CategoryDowntimeRootCause},
		// 规则按顺序匹配
		{"EBITDA fall due to power costs", CategoryEbitdaDrop},
		{"power plant comparison", CategoryEnergyAnomaly},
		{"compare plant downtime", CategoryDowntimeRootCause},
		// 缺少组合条件时不命中
		{"EBITDA trend", DefaultCategory},
		{"hello", DefaultCategory},
		{"", DefaultCategory},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.question))
			assert.Equal(t, Classify(tt.question), Classify(strings.ToUpper(tt.question)))
		})
	}
}

func TestTemplatesCoverEveryCategory(t *testing.T) {
	t.Parallel()

	st := seedWarehouse(t)
	args := templateArgs(DefaultFilters())
	for _, c := range Categories() {
		q, ok := Template(c)
		require.True(t, ok, c)
		_, err := st.QueryMaps(context.Background(), q, args...)
		require.NoError(t, err, c)
	}
}

func TestComputeMetrics_EbitdaDrop(t *testing.T) {
	t.Parallel()

	rows := []map[string]any{
		{"month": "2024-01", "avg_ebitda": 100.0, "avg_cost": 4000.0, "avg_margin": 20.0},
		{"month": "2024-02", "avg_ebitda": 120.0, "avg_cost": 3900.5, "avg_margin": nil},
	}
	m := ComputeMetrics(CategoryEbitdaDrop, rows)

	assert.Equal(t, 20.0, m["ebitda_delta"])
	assert.Equal(t, -99.5, m["cost_delta"])
	assert.Equal(t, -20.0, m["margin_delta"])
	assert.Equal(t, "2024-02", m["latest_month"])
	assert.Equal(t, "2024-01", m["previous_month"])

	assert.Empty(t, ComputeMetrics(CategoryEbitdaDrop, rows[:1]))
	assert.Empty(t, ComputeMetrics(CategoryEbitdaDrop, nil))
}

func TestComputeMetrics_PlantPerformanceAndDowntime(t *testing.T) {
	t.Parallel()

	perf := ComputeMetrics(CategoryPlantPerformance, []map[string]any{
		{"plant_name": "Sonapur", "avg_ebitda": 900.0},
		{"plant_name": "Lumshnong", "avg_ebitda": 1050.456},
		{"plant_name": "Siliguri", "avg_ebitda": nil},
	})
	assert.Equal(t, Metrics{
		"best_plant":      "Lumshnong",
		"best_ebitda":     1050.46,
		"worst_plant":     "Siliguri",
		"worst_ebitda":    0.0,
		"performance_gap": 1050.46,
	}, perf)

	down := ComputeMetrics(CategoryDowntimeRootCause, []map[string]any{
		{"plant_name": "Lumshnong", "equipment": "Kiln", "avg_breakdown": 5.0, "avg_mtbf": 160.0, "avg_mttr": 4.0},
		{"plant_name": "Sonapur", "equipment": "Packer", "avg_breakdown": 1.0, "avg_mtbf": 400.0, "avg_mttr": 1.0},
	})
	assert.Equal(t, "Kiln", down["top_equipment"])
	assert.Equal(t, "Lumshnong", down["top_plant"])
	assert.Equal(t, 5.0, down["avg_breakdown_hrs"])
	assert.Equal(t, 160.0, down["mtbf_hrs"])
	assert.Equal(t, 4.0, down["mttr_hrs"])

	assert.Empty(t, ComputeMetrics(CategoryEnergyAnomaly, []map[string]any{{"plant_name": "Sonapur"}}))
	assert.Empty(t, ComputeMetrics(CategoryMarginLeak, []map[string]any{{"plant_name": "Sonapur"}}))
}

func TestParseNarrative(t *testing.T) {
	t.Parallel()

	fenced := "Here you go:\n```json\n{\"summary\":\"EBITDA fell\",\"causes\":[\"a\",\"b\",\"c\"],\"recommendedActions\":[\"x\",\"y\",\"z\"]}\n```"
	n := ParseNarrative(fenced)
	assert.Equal(t, "EBITDA fell", n.Summary)
	assert.Equal(t, []string{"a", "b", "c"}, n.Causes)
	assert.Equal(t, []string{"x", "y", "z"}, n.RecommendedActions)

	plainFence := "```\n{\"summary\":\"ok\"}\n```"
	n = ParseNarrative(plainFence)
	assert.Equal(t, "ok", n.Summary)
	assert.NotNil(t, n.Causes)
	assert.NotNil(t, n.RecommendedActions)
}

func TestParseNarrative_FallbackOnNonJSON(t *testing.T) {
	t.Parallel()

	raw := strings.Repeat("₹", 600)
	n := ParseNarrative(raw)

	assert.Equal(t, 500, len([]rune(n.Summary)))
	assert.Equal(t, []string{"Data analysis completed"}, n.Causes)
	assert.Equal(t, []string{"Review detailed metrics", "Consult with operations team", "Monitor trends"}, n.RecommendedActions)

	short := ParseNarrative("Margins are thin at Sonapur.")
	assert.Equal(t, "Margins are thin at Sonapur.", short.Summary)
	assert.NotEmpty(t, short.Causes)
	assert.NotEmpty(t, short.RecommendedActions)
}

func TestParseNarrative_FallbackOnEmptyJSON(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"null", "{}", "```json\n{\"summary\":\"  \"}\n```"} {
		n := ParseNarrative(raw)
		assert.NotEmpty(t, n.Summary, raw)
		assert.Equal(t, []string{"Data analysis completed"}, n.Causes, raw)
		assert.Len(t, n.RecommendedActions, 3, raw)
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	rows := make([]map[string]any, 8)
	for i := range rows {
		rows[i] = map[string]any{"plant_name": "P", "idx": i}
	}
	p := BuildPrompt("Where is margin leaking?", Metrics{"best_plant": "Lumshnong"}, rows)

	assert.Contains(t, p, "User Question: Where is margin leaking?")
	assert.Contains(t, p, `"best_plant": "Lumshnong"`)
	assert.Contains(t, p, "Indian Rupee format (₹)")
	assert.Contains(t, p, `"idx": 4`)
	assert.NotContains(t, p, `"idx": 5`)
}

func TestAnswer_EbitdaDrop(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "```json\n{\"summary\":\"EBITDA improved by ₹20/t\",\"causes\":[\"c1\",\"c2\",\"c3\"],\"recommendedActions\":[\"a1\",\"a2\",\"a3\"]}\n```"}
	svc := NewService(seedWarehouse(t), gen)

	res := svc.Answer(context.Background(), Request{Question: "Why did EBITDA drop in the recent month?"})
	require.Equal(t, StatusSuccess, res.Status, res.Error)
	assert.Equal(t, CategoryEbitdaDrop, res.QueryType)
	assert.Equal(t, "EBITDA improved by ₹20/t", res.Summary)
	assert.Equal(t, []string{"c1", "c2", "c3"}, res.Causes)

	require.NotNil(t, res.Evidence)
	assert.Equal(t, 20.0, res.Evidence.ComputedMetrics["ebitda_delta"])
	assert.Equal(t, -100.0, res.Evidence.ComputedMetrics["cost_delta"])
	assert.Equal(t, 2.0, res.Evidence.ComputedMetrics["margin_delta"])
	assert.Equal(t, "2024-02", res.Evidence.ComputedMetrics["latest_month"])
	assert.Contains(t, res.Evidence.SQLQuery, "FROM fact_finance")
	assert.Len(t, res.Evidence.TopData, 2)

	assert.Equal(t, SystemPrompt, gen.system)
	assert.Contains(t, gen.prompt, `"ebitda_delta": 20`)
}

func TestAnswer_DowntimeTopData(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: `{"summary":"Kiln","causes":[],"recommendedActions":[]}`}
	svc := NewService(seedWarehouse(t), gen)

	res := svc.Answer(context.Background(), Request{
		Question:       "What are the root causes of downtime?",
		ContextFilters: Filters{Start: "2024-01-01", End: "2024-12-31", Plant: "all"},
	})
	require.Equal(t, StatusSuccess, res.Status, res.Error)
	assert.Equal(t, CategoryDowntimeRootCause, res.QueryType)
	assert.Equal(t, "Kiln", res.Evidence.ComputedMetrics["top_equipment"])
	assert.Equal(t, 5.0, res.Evidence.ComputedMetrics["avg_breakdown_hrs"])
	// Crusher 无停机，被 HAVING 排除
	assert.Len(t, res.Evidence.TopData, 2)
}

func TestAnswer_PlantFilterIsBound(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "not json at all"}
	svc := NewService(seedWarehouse(t), gen)

	res := svc.Answer(context.Background(), Request{
		Question:       "Compare plant performance",
		ContextFilters: Filters{Plant: "x' OR '1'='1"},
	})
	require.Equal(t, StatusSuccess, res.Status)
	assert.Empty(t, res.Evidence.ComputedMetrics)
	assert.Empty(t, res.Evidence.TopData)
	assert.Equal(t, "not json at all", res.Summary)
	assert.NotEmpty(t, res.Causes)

	res = svc.Answer(context.Background(), Request{
		Question:       "Compare plant performance",
		ContextFilters: Filters{Plant: "Sonapur"},
	})
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "Sonapur", res.Evidence.ComputedMetrics["best_plant"])
	assert.Len(t, res.Evidence.TopData, 1)
}

func TestAnswer_Failures(t *testing.T) {
	t.Parallel()

	t.Run("query failure", func(t *testing.T) {
		res := NewService(failingQuerier{}, &fakeGenerator{}).Answer(context.Background(), Request{Question: "energy"})
		assert.Equal(t, StatusError, res.Status)
		assert.Equal(t, MessageQueryFailed, res.Message)
		assert.Contains(t, res.Error, "no such table")
		assert.Nil(t, res.Evidence)
	})

	t.Run("no generator", func(t *testing.T) {
		res := NewService(seedWarehouse(t), nil).Answer(context.Background(), Request{Question: "energy"})
		assert.Equal(t, StatusError, res.Status)
		assert.Equal(t, MessageLLMFailed, res.Message)
		assert.Equal(t, llm.ErrNotConfigured.Error(), res.Error)
	})

	t.Run("malformed dates", func(t *testing.T) {
		gen := &fakeGenerator{reply: `{"summary":"s","causes":["c"]}`}
		svc := NewService(seedWarehouse(t), gen)
		for _, f := range []Filters{
			{Start: "2024-1-1", End: "2024-12-31"},
			{Start: "2024-01-01", End: "2024-2-28"},
			{Start: "2024-03-01", End: "2024-01-01"},
		} {
			res := svc.Answer(context.Background(), Request{Question: "Why did EBITDA drop?", ContextFilters: f})
			assert.Equal(t, StatusError, res.Status, f)
			assert.Equal(t, MessageQueryFailed, res.Message, f)
			assert.Contains(t, res.Error, ErrInvalidFilters.Error(), f)
			assert.Nil(t, res.Evidence, f)
		}
		assert.Empty(t, gen.prompt)
	})

	t.Run("generator failure", func(t *testing.T) {
		gen := &fakeGenerator{err: &llm.StatusError{StatusCode: 503, Body: "busy"}}
		res := NewService(seedWarehouse(t), gen).Answer(context.Background(), Request{Question: "energy"})
		assert.Equal(t, StatusError, res.Status)
		assert.Equal(t, MessageLLMFailed, res.Message)
		assert.Contains(t, res.Error, "503")
	})
}

func TestSamplePrompts(t *testing.T) {
	t.Parallel()

	prompts := SamplePrompts()
	assert.Len(t, prompts, 5)
	prompts[0] = "mutated"
	assert.Equal(t, "Why did EBITDA drop in the recent month?", SamplePrompts()[0])
}
