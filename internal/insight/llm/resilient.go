package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/genai"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/logging"
)

const (
	defaultAttemptTimeout = 60 * time.Second
	defaultRetryBackoff   = 500 * time.Millisecond
)

// Resilient 为每次调用加超时，并对瞬时失败重试
type Resilient struct {
	next       Generator
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

// NewResilient 包装生成器；timeout <= 0 时使用 60s，maxRetries < 0 视为 0
func NewResilient(next Generator, timeout time.Duration, maxRetries int) *Resilient {
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Resilient{
		next:       next,
		timeout:    timeout,
		maxRetries: maxRetries,
		backoff:    defaultRetryBackoff,
	}
}

// WithBackoff 设置重试间隔（测试用）
func (r *Resilient) WithBackoff(d time.Duration) *Resilient {
	r.backoff = d
	return r
}

// Generate 实现 Generator
func (r *Resilient) Generate(ctx context.Context, system, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, r.backoff); err != nil {
				return "", err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		out, err := r.next.Generate(attemptCtx, system, prompt)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err

		// 调用方取消或超时，不再重试
		if ctx.Err() != nil {
			return "", fmt.Errorf("text generation aborted: %w", ctx.Err())
		}
		if !IsTransient(err) {
			return "", err
		}

		logging.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", r.maxRetries+1).
			Msg("text generation attempt failed")
	}

	return "", fmt.Errorf("text generation failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

// IsTransient 网络错误、单次超时、429/5xx 视为瞬时失败
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrNotConfigured) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
