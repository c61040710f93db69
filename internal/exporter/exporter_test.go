package exporter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/kpi"
)

type fakeComputer struct {
	queries []kpi.Query
	err     error
}

func (f *fakeComputer) Compute(_ context.Context, q kpi.Query) (*kpi.Result, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	role := kpi.NormalizeRole(q.Role)
	kpis := map[string]float64{}
	for i, name := range kpi.MetricNames(role) {
		kpis[name] = float64(i + 1)
	}
	return &kpi.Result{
		Status: "ok",
		Role:   role,
		KPIs:   kpis,
		Series: kpi.Series{
			Keys: []string{"ebitda"},
			Trends: []kpi.TrendPoint{
				{Date: "2024-01-31", Values: map[string]float64{"ebitda": 900}},
				{Date: "2024-02-29", Values: map[string]float64{"ebitda": 950}},
			},
		},
		Comparisons: []kpi.PlantComparison{
			{PlantName: "Lumshnong", EbitdaTon: 1200, WeightedEbitda: 3600000},
			{PlantName: "Sonapur", EbitdaTon: 800, WeightedEbitda: 1200000},
		},
	}, nil
}

func TestExport_AllRoles(t *testing.T) {
	fc := &fakeComputer{}
	var events []ProgressEvent

	f, err := NewExporter(fc).Export(context.Background(),
		ExportOptions{Start: "2024-01-01", End: "2024-02-29", Plant: "all"},
		func(e ProgressEvent) { events = append(events, e) })
	require.NoError(t, err)
	defer f.Close()

	require.Len(t, fc.queries, len(kpi.Roles()))
	assert.Equal(t, "2024-01-01", fc.queries[0].Start)
	assert.Equal(t, "all", fc.queries[0].Plant)

	sheets := f.GetSheetList()
	assert.Equal(t, SheetSummary, sheets[0])
	assert.Contains(t, sheets, TrendSheetName(kpi.RoleEnergy))
	assert.Contains(t, sheets, SheetComparisons)

	rows, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Role", "Metric", "Value"}, rows[0])
	assert.Equal(t, []string{"CXO", "total_cement_mt", "1"}, rows[1])

	rows, err = f.GetRows(TrendSheetName(kpi.RoleCXO))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"date", "ebitda"}, {"2024-01-31", "900"}, {"2024-02-29", "950"}}, rows)

	rows, err = f.GetRows(SheetComparisons)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Lumshnong", rows[1][0])

	total := 2*len(kpi.Roles()) + 2
	require.Len(t, events, total)
	for i, e := range events {
		assert.Equal(t, i+1, e.Done)
		assert.Equal(t, total, e.Total)
	}
	assert.Equal(t, "", events[0].Sheet)
	assert.Equal(t, SheetSummary, events[len(kpi.Roles())].Sheet)
	assert.Equal(t, SheetComparisons, events[total-1].Sheet)
	assert.Equal(t, 100, events[total-1].Percent())
}

func TestProgressEvent_Percent(t *testing.T) {
	assert.Equal(t, 0, ProgressEvent{}.Percent())
	assert.Equal(t, 50, ProgressEvent{Done: 2, Total: 4}.Percent())
	assert.Equal(t, 100, ProgressEvent{Done: 5, Total: 4}.Percent())
}

func TestExport_SingleRoleAndError(t *testing.T) {
	fc := &fakeComputer{}
	f, err := NewExporter(fc).Export(context.Background(), ExportOptions{Roles: []kpi.Role{kpi.RoleSales}}, nil)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetSummary, TrendSheetName(kpi.RoleSales), SheetComparisons}, f.GetSheetList())

	_, err = NewExporter(&fakeComputer{err: kpi.ErrInvalidRange}).Export(context.Background(), ExportOptions{}, nil)
	assert.True(t, errors.Is(err, kpi.ErrInvalidRange))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "star_cement_kpis_all_2024-01-01_2024-06-30.xlsx",
		Filename(ExportOptions{Start: "2024-01-01", End: "2024-06-30", Plant: "all"}))
	assert.Equal(t, "star_cement_kpis_New_Plant_default_default.xlsx",
		Filename(ExportOptions{Plant: "New Plant/.."}))
}
