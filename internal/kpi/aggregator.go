// Package kpi 按角色聚合看板指标
package kpi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrInvalidRange 日期格式错误或起止颠倒
var ErrInvalidRange = errors.New("invalid date range")

// PlantAll 不按工厂过滤
const PlantAll = "all"

const dateLayout = "2006-01-02"

// Querier 只读查询（*store.Store 实现）
type Querier interface {
	QueryMaps(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

// Query 指标查询参数
type Query struct {
	Role  string
	Start string // YYYY-MM-DD，含
	End   string // YYYY-MM-DD，含
	Plant string // "all" 或工厂名
}

// Result 指标结果
type Result struct {
	Status      string             `json:"status"`
	Role        Role               `json:"role"`
	KPIs        map[string]float64 `json:"kpis"`
	Series      Series             `json:"series"`
	Comparisons []PlantComparison  `json:"comparisons"`
}

// Series 趋势序列
type Series struct {
	Trends []TrendPoint `json:"trends"`
	Keys   []string     `json:"keys"`
}

// TrendPoint 某日的趋势值，序列化为 {"date": ..., key: value, ...}
type TrendPoint struct {
	Date   string
	Values map[string]float64
}

// MarshalJSON 展平为图表直接可用的对象
func (p TrendPoint) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Values)+1)
	for k, v := range p.Values {
		m[k] = v
	}
	m["date"] = p.Date
	return json.Marshal(m)
}

// PlantComparison 工厂 EBITDA 对比
type PlantComparison struct {
	PlantName      string  `json:"plant_name"`
	EbitdaTon      float64 `json:"ebitda_ton"`
	WeightedEbitda float64 `json:"weighted_ebitda"`
}

// Option 聚合器选项
type Option func(*Aggregator)

// WithPowerTariff 电价（₹/kWh），用于节能潜力估算
func WithPowerTariff(rsPerKWh float64) Option {
	return func(a *Aggregator) { a.tariff = rsPerKWh }
}

// WithDefaultRange 未指定起止日期时使用的范围
func WithDefaultRange(start, end string) Option {
	return func(a *Aggregator) {
		a.defaultStart = start
		a.defaultEnd = end
	}
}

// Aggregator 指标聚合器
type Aggregator struct {
	db           Querier
	tariff       float64
	defaultStart string
	defaultEnd   string
}

// NewAggregator 创建聚合器
func NewAggregator(db Querier, opts ...Option) *Aggregator {
	a := &Aggregator{
		db:           db,
		tariff:       7.0,
		defaultStart: "2024-01-01",
		defaultEnd:   "2025-12-31",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compute 计算角色指标、趋势与工厂对比。三条查询并发执行，任一失败则整体失败。
func (a *Aggregator) Compute(ctx context.Context, q Query) (*Result, error) {
	start, end, plant, err := a.normalize(q)
	if err != nil {
		return nil, err
	}

	spec, _ := lookupRole(q.Role)
	args := []any{start, end, plant, plant}

	var (
		kpis        map[string]float64
		trends      []TrendPoint
		comparisons []PlantComparison
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		kpis, err = a.headline(gctx, spec, args)
		return err
	})
	g.Go(func() error {
		var err error
		trends, err = a.trend(gctx, spec, args)
		return err
	})
	g.Go(func() error {
		var err error
		comparisons, err = a.comparisons(gctx, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	keys := make([]string, len(spec.Trend))
	for i, k := range spec.Trend {
		keys[i] = k.Key
	}

	return &Result{
		Status:      "ok",
		Role:        spec.Role,
		KPIs:        kpis,
		Series:      Series{Trends: trends, Keys: keys},
		Comparisons: comparisons,
	}, nil
}

func (a *Aggregator) normalize(q Query) (start, end, plant string, err error) {
	start, end, plant = q.Start, q.End, q.Plant
	if start == "" {
		start = a.defaultStart
	}
	if end == "" {
		end = a.defaultEnd
	}
	if plant == "" {
		plant = PlantAll
	}

	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return "", "", "", fmt.Errorf("%w: start %q", ErrInvalidRange, start)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return "", "", "", fmt.Errorf("%w: end %q", ErrInvalidRange, end)
	}
	if s.After(e) {
		return "", "", "", fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, start, end)
	}
	return start, end, plant, nil
}

func (a *Aggregator) headline(ctx context.Context, spec roleSpec, args []any) (map[string]float64, error) {
	rows, err := a.db.QueryMaps(ctx, spec.SQL, args...)
	if err != nil {
		return nil, fmt.Errorf("kpi query for %s: %w", spec.Role, err)
	}

	values := make(map[string]float64)
	if len(rows) > 0 {
		for k, v := range rows[0] {
			values[k] = toFloat(v)
		}
	}
	if spec.Derive != nil {
		spec.Derive(values, a.tariff)
	}

	kpis := make(map[string]float64, len(spec.Metrics))
	for _, m := range spec.Metrics {
		kpis[m.Name] = round(values[m.Name], m.Decimals)
	}
	return kpis, nil
}

func (a *Aggregator) trend(ctx context.Context, spec roleSpec, args []any) ([]TrendPoint, error) {
	first, second := spec.Trend[0], spec.Trend[1]
	query := fmt.Sprintf(trendSQL, first.Column, first.Key, second.Column, second.Key, spec.Table)

	rows, err := a.db.QueryMaps(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("trend query for %s: %w", spec.Role, err)
	}

	points := make([]TrendPoint, 0, len(rows))
	for _, row := range rows {
		date, _ := row["date"].(string)
		values := make(map[string]float64, len(spec.Trend))
		for _, k := range spec.Trend {
			values[k.Key] = round(toFloat(row[k.Key]), 2)
		}
		points = append(points, TrendPoint{Date: date, Values: values})
	}
	return points, nil
}

func (a *Aggregator) comparisons(ctx context.Context, start, end string) ([]PlantComparison, error) {
	rows, err := a.db.QueryMaps(ctx, comparisonSQL, start, end)
	if err != nil {
		return nil, fmt.Errorf("plant comparison query: %w", err)
	}

	out := make([]PlantComparison, 0, len(rows))
	for _, row := range rows {
		name, _ := row["plant_name"].(string)
		out = append(out, PlantComparison{
			PlantName:      name,
			EbitdaTon:      round(toFloat(row["ebitda_ton"]), 2),
			WeightedEbitda: round(toFloat(row["weighted_ebitda"]), 2),
		})
	}
	return out, nil
}

// toFloat 聚合值转 float64；NULL、NaN 与无法解析的值为 0
func toFloat(v any) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int64:
		f = float64(x)
	case int:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
