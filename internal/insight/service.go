package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/insight/llm"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/logging"
)

// 结果状态
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// 错误消息
const (
	MessageQueryFailed = "Unable to analyze data"
	MessageLLMFailed   = "AI service temporarily unavailable"
)

// ErrInvalidFilters 过滤日期格式错误或起止颠倒
var ErrInvalidFilters = errors.New("invalid date filters")

// Querier 只读查询（*store.Store 实现）
type Querier interface {
	QueryMaps(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

// Filters 上下文过滤条件
type Filters struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Plant string `json:"plant"`
}

// Request 提问请求
type Request struct {
	Question       string  `json:"question"`
	ContextFilters Filters `json:"contextFilters"`
}

// Evidence 支撑结论的数据
type Evidence struct {
	ComputedMetrics Metrics          `json:"computed_metrics"`
	SQLQuery        string           `json:"sql_query"`
	TopData         []map[string]any `json:"top_data"`
}

// Result 分析结果；失败时只带 message 与 error
type Result struct {
	Status             string    `json:"status"`
	QueryType          Category  `json:"queryType,omitempty"`
	Summary            string    `json:"summary,omitempty"`
	Causes             []string  `json:"causes,omitempty"`
	RecommendedActions []string  `json:"recommendedActions,omitempty"`
	Evidence           *Evidence `json:"evidence,omitempty"`
	Message            string    `json:"message,omitempty"`
	Error              string    `json:"error,omitempty"`
}

// SamplePrompts 示例问题
func SamplePrompts() []string {
	return []string{
		"Why did EBITDA drop in the recent month?",
		"Which plants have energy consumption anomalies?",
		"What are the root causes of downtime?",
		"Where are we losing margin?",
		"Compare plant performance across regions",
	}
}

// DefaultFilters 未指定过滤条件时的取值
func DefaultFilters() Filters {
	return Filters{Start: "2024-01-01", End: "2025-12-31", Plant: "all"}
}

// Service 问答服务
type Service struct {
	db       Querier
	gen      llm.Generator
	defaults Filters
	log      zerolog.Logger
}

// Option 服务选项
type Option func(*Service)

// WithDefaultFilters 覆盖默认日期范围
func WithDefaultFilters(f Filters) Option {
	return func(s *Service) { s.defaults = f }
}

// NewService 创建服务；gen 为 nil 时所有提问返回文本生成不可用
func NewService(db Querier, gen llm.Generator, opts ...Option) *Service {
	s := &Service{
		db:       db,
		gen:      gen,
		defaults: DefaultFilters(),
		log:      logging.Component("insight"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer 分类 → 证据查询 → 指标派生 → 生成叙述。失败以结构化结果返回，不返回 error。
func (s *Service) Answer(ctx context.Context, req Request) Result {
	category := Classify(req.Question)
	query, _ := Template(category)
	filters, err := s.resolve(req.ContextFilters)
	if err != nil {
		s.log.Warn().Err(err).Str("query_type", string(category)).Msg("rejected insight filters")
		return Result{Status: StatusError, Message: MessageQueryFailed, Error: err.Error()}
	}

	rows, err := s.db.QueryMaps(ctx, query, templateArgs(filters)...)
	if err != nil {
		s.log.Error().Err(err).Str("query_type", string(category)).Msg("evidence query failed")
		return Result{Status: StatusError, Message: MessageQueryFailed, Error: err.Error()}
	}

	metrics := ComputeMetrics(category, rows)

	if s.gen == nil {
		return Result{Status: StatusError, Message: MessageLLMFailed, Error: llm.ErrNotConfigured.Error()}
	}

	raw, err := s.gen.Generate(ctx, SystemPrompt, BuildPrompt(req.Question, metrics, rows))
	if err != nil {
		s.log.Error().Err(err).Str("query_type", string(category)).Msg("text generation failed")
		return Result{Status: StatusError, Message: MessageLLMFailed, Error: err.Error()}
	}

	narrative := ParseNarrative(raw)
	s.log.Info().
		Str("query_type", string(category)).
		Int("evidence_rows", len(rows)).
		Msg("insight generated")

	return Result{
		Status:             StatusSuccess,
		QueryType:          category,
		Summary:            narrative.Summary,
		Causes:             narrative.Causes,
		RecommendedActions: narrative.RecommendedActions,
		Evidence: &Evidence{
			ComputedMetrics: metrics,
			SQLQuery:        strings.TrimSpace(query),
			TopData:         head(rows, resultEvidenceRows),
		},
	}
}

// resolve 填充默认值并校验日期；日期以文本比较，必须是 YYYY-MM-DD
func (s *Service) resolve(f Filters) (Filters, error) {
	out := Filters{
		Start: strings.TrimSpace(f.Start),
		End:   strings.TrimSpace(f.End),
		Plant: strings.TrimSpace(f.Plant),
	}
	if out.Start == "" {
		out.Start = s.defaults.Start
	}
	if out.End == "" {
		out.End = s.defaults.End
	}
	if out.Plant == "" {
		out.Plant = "all"
	}

	start, err := time.Parse("2006-01-02", out.Start)
	if err != nil {
		return out, fmt.Errorf("%w: start %q", ErrInvalidFilters, out.Start)
	}
	end, err := time.Parse("2006-01-02", out.End)
	if err != nil {
		return out, fmt.Errorf("%w: end %q", ErrInvalidFilters, out.End)
	}
	if start.After(end) {
		return out, fmt.Errorf("%w: start %s after end %s", ErrInvalidFilters, out.Start, out.End)
	}
	return out, nil
}
