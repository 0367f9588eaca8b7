package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aeo-platform/aeo/backend/internal/metrics"
	"github.com/aeo-platform/aeo/backend/pkg/logger"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned while the model backend is considered down.
var ErrCircuitOpen = errors.New("ai: circuit breaker open")

// GuardedClient wraps a GraphAIClient with a per-call timeout, a request
// rate limit and a circuit breaker. Calls rejected by the breaker fail fast
// with ErrCircuitOpen.
//
// A GuardedClient should be created using NewGuardedClient.
type GuardedClient struct {
	next    GraphAIClient
	name    string
	timeout time.Duration
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[any]
}

// GuardParams configures a GuardedClient.
//
// Timeout bounds every call and defaults to 60 seconds. RatePerSecond
// limits calls per second; zero disables the limit. The breaker opens after
// MaxFailures consecutive failures (default 5) and probes again after
// OpenTimeout (default 30 seconds).
type GuardParams struct {
	Name          string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	MaxFailures   uint32
	OpenTimeout   time.Duration
}

// NewGuardedClient wraps next according to params.
func NewGuardedClient(next GraphAIClient, params GuardParams) *GuardedClient {
	name := params.Name
	if name == "" {
		name = "ai"
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxFailures := params.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := params.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if params.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(params.RatePerSecond), max(params.Burst, 1))
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// A cancelled caller says nothing about the backend.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[AI] Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &GuardedClient{
		next:    next,
		name:    name,
		timeout: timeout,
		limiter: limiter,
		cb:      cb,
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (g *GuardedClient) execute(ctx context.Context, kind string, fn func(ctx context.Context) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	_, err := g.cb.Execute(func() (any, error) {
		return nil, fn(callCtx)
	})

	status := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.ModelCallDuration.WithLabelValues(kind, "rejected").Observe(0)
		return fmt.Errorf("%s: %w", g.name, ErrCircuitOpen)
	case errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	metrics.ModelCallDuration.WithLabelValues(kind, status).Observe(time.Since(start).Seconds())

	return err
}

func (g *GuardedClient) GenerateCompletion(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	var out string
	err := g.execute(ctx, "completion", func(ctx context.Context) error {
		var err error
		out, err = g.next.GenerateCompletion(ctx, prompt, opts...)
		return err
	})
	return out, err
}

func (g *GuardedClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...GenerateOption,
) error {
	return g.execute(ctx, "structured", func(ctx context.Context) error {
		return g.next.GenerateCompletionWithFormat(ctx, name, description, prompt, out, opts...)
	})
}

func (g *GuardedClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	var out []float32
	err := g.execute(ctx, "embedding", func(ctx context.Context) error {
		var err error
		out, err = g.next.GenerateEmbedding(ctx, input)
		return err
	})
	return out, err
}

// LoadModel is passed through without rate limiting or breaker accounting.
func (g *GuardedClient) LoadModel(ctx context.Context, opts ...GenerateOption) error {
	return g.next.LoadModel(ctx, opts...)
}

func (g *GuardedClient) ResetMetrics() {
	g.next.ResetMetrics()
}

func (g *GuardedClient) GetMetrics() ModelMetrics {
	return g.next.GetMetrics()
}
