// Package llm 文本生成服务客户端（OpenAI 兼容接口 / Gemini）
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotConfigured 未配置 API Key
var ErrNotConfigured = errors.New("text generation not configured")

// Generator 文本生成
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Config 客户端配置
type Config struct {
	Provider   string // openai / gemini
	Model      string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration // 单次调用超时
	MaxRetries int           // 瞬时失败后的重试次数
}

// StatusError 服务端返回非 200
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// Temporary 限流与服务端错误可重试
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// New 按配置创建带超时与重试的生成器。未配置 API Key 时返回 ErrNotConfigured。
func New(cfg Config) (Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}

	var (
		inner Generator
		err   error
	)
	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		inner, err = NewGeminiClient(cfg.APIKey, cfg.Model)
	case "openai", "":
		inner = NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewResilient(inner, cfg.Timeout, cfg.MaxRetries), nil
}
