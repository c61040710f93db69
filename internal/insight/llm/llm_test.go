package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedGenerator struct {
	calls atomic.Int32
	fn    func(ctx context.Context, call int) (string, error)
}

func (g *scriptedGenerator) Generate(ctx context.Context, _, _ string) (string, error) {
	n := int(g.calls.Add(1))
	return g.fn(ctx, n)
}

func TestOpenAIClient_Generate(t *testing.T) {
	t.Parallel()

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  {\"summary\":\"ok\"}  "}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", srv.URL+"/", "")
	out, err := c.Generate(context.Background(), "sys", "question")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, out)

	assert.Equal(t, DefaultOpenAIModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "sys", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "question", got.Messages[1].Content)
}

func TestOpenAIClient_StatusErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, transient: true},
		{name: "server error", status: http.StatusBadGateway, transient: true},
		{name: "bad request", status: http.StatusBadRequest, transient: false},
		{name: "unauthorized", status: http.StatusUnauthorized, transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			_, err := NewOpenAIClient("k", srv.URL, "m").Generate(context.Background(), "", "q")
			require.Error(t, err)

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, tt.transient, IsTransient(err))
		})
	}
}

func TestOpenAIClient_APIErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("k", srv.URL, "m").Generate(context.Background(), "", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestOpenAIClient_MissingKey(t *testing.T) {
	t.Parallel()

	_, err := NewOpenAIClient("", "http://127.0.0.1:1", "").Generate(context.Background(), "", "q")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNew_NotConfigured(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Provider: "openai"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(Config{Provider: "bard", APIKey: "k"})
	assert.Error(t, err)
}

func TestResilient_RetriesTransientOnce(t *testing.T) {
	t.Parallel()

	g := &scriptedGenerator{fn: func(ctx context.Context, call int) (string, error) {
		if call == 1 {
			return "", &StatusError{StatusCode: 503, Body: "busy"}
		}
		return "second", nil
	}}

	out, err := NewResilient(g, time.Second, 1).WithBackoff(0).Generate(context.Background(), "", "q")
	require.NoError(t, err)
	assert.Equal(t, "second", out)
	assert.EqualValues(t, 2, g.calls.Load())
}

func TestResilient_DoesNotRetryPermanent(t *testing.T) {
	t.Parallel()

	g := &scriptedGenerator{fn: func(ctx context.Context, call int) (string, error) {
		return "", &StatusError{StatusCode: 400, Body: "bad"}
	}}

	_, err := NewResilient(g, time.Second, 3).WithBackoff(0).Generate(context.Background(), "", "q")
	require.Error(t, err)
	assert.EqualValues(t, 1, g.calls.Load())
}

func TestResilient_AttemptTimeout(t *testing.T) {
	t.Parallel()

	g := &scriptedGenerator{fn: func(ctx context.Context, call int) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}

	start := time.Now()
	_, err := NewResilient(g, 20*time.Millisecond, 1).WithBackoff(0).Generate(context.Background(), "", "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 2, g.calls.Load())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestResilient_CallerCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	g := &scriptedGenerator{fn: func(c context.Context, call int) (string, error) {
		cancel()
		return "", &StatusError{StatusCode: 503}
	}}

	_, err := NewResilient(g, time.Second, 5).WithBackoff(0).Generate(ctx, "", "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, g.calls.Load())
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(ErrNotConfigured))
	assert.False(t, IsTransient(errors.New("plain")))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(&StatusError{StatusCode: 429}))
}
