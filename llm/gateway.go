// Package llm implements the uniform LLM Gateway: retrying, circuit-breaking,
// task-type routing, and cost tagging around the teacher's graph/model
// ChatModel adapters.
package llm

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/proposalforge/rfpflow/graph/model"
)

// Kind classifies a Gateway error so callers (the workflow package's nodes)
// can map it onto their own error taxonomy without this package depending
// on theirs.
type Kind string

// The error kinds Complete can return.
const (
	KindTransientUpstream Kind = "TransientUpstream"
	KindPermanentUpstream Kind = "PermanentUpstream"
	KindCircuitOpen       Kind = "CircuitOpen"
	KindInternal          Kind = "Internal"
)

// Error is the typed error every Gateway method returns.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Cause.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Image is a single image attachment for a multimodal completion request.
// MimeType follows RFC 2046 (e.g. "image/png"); Data is the raw bytes.
type Image struct {
	MimeType string
	Data     []byte
}

// CompletionRequest is the uniform input to Gateway.Complete.
type CompletionRequest struct {
	Task        TaskType
	Messages    []model.Message
	Tools       []model.ToolSpec
	Temperature float64
	MaxTokens   int
	Images      []Image
}

// CompletionResult is the uniform output of a completion call, with the
// resolved provider/model attached for cost tracking and logging.
type CompletionResult struct {
	Text      string
	ToolCalls []model.ToolCall
	Provider  string
	Model     string
}

// Logger is the structured-logging contract the gateway depends on.
type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

type noopLogger struct{}

func (noopLogger) Infow(string, ...interface{})  {}
func (noopLogger) Warnw(string, ...interface{})  {}
func (noopLogger) Errorw(string, ...interface{}) {}

// CostTracker is the subset of graph.CostTracker the gateway records
// against. Defined as an interface so tests can supply a double.
type CostTracker interface {
	RecordLLMCall(model string, inputTokens, outputTokens int, nodeID string) error
}

// providerEntry pairs a ChatModel with its own circuit breaker, so one
// provider tripping does not affect calls routed to another.
type providerEntry struct {
	model   model.ChatModel
	breaker *gobreaker.CircuitBreaker[model.ChatOut]
}

// Gateway wraps one or more ChatModel providers with retry, a per-provider
// circuit breaker, task-type routing, and cost tagging, per spec §4.4.
type Gateway struct {
	router      *Router
	providers   map[string]*providerEntry
	retry       graphRetryPolicy
	callTimeout time.Duration
	cost        CostTracker
	logger      Logger
	rng         *rand.Rand
}

// graphRetryPolicy mirrors graph.RetryPolicy's shape without importing the
// graph package's Engine machinery, since the gateway only needs the retry
// numbers and computeBackoff's formula, reimplemented below (computeBackoff
// itself is unexported in graph, so the gateway keeps its own copy of the
// exponential-backoff-with-jitter math). Two details differ: jitter is drawn
// from [0, BaseDelay] inclusive, and MaxDelay is applied as a cap even when
// it is zero.
type graphRetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Option configures a Gateway at construction time.
type Option func(*Gateway)

// WithCostTracker attaches a cost tracker that records token spend per call.
func WithCostTracker(ct CostTracker) Option {
	return func(g *Gateway) { g.cost = ct }
}

// WithLogger attaches a structured logger.
func WithLogger(l Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithCallTimeout overrides the per-LLM-call timeout (default 30s, spec §5).
func WithCallTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.callTimeout = d }
}

// WithRetry overrides the retry policy (default: 3 attempts, 1s base, 30s max).
func WithRetry(maxAttempts int, baseDelay, maxDelay time.Duration) Option {
	return func(g *Gateway) { g.retry = graphRetryPolicy{MaxAttempts: maxAttempts, BaseDelay: baseDelay, MaxDelay: maxDelay} }
}

// BreakerConfig configures the per-provider circuit breaker (spec §4.4: 5
// consecutive failures opens for 60s, one probe in half-open).
type BreakerConfig struct {
	FailureThreshold uint32
	RecoveryTimeout  time.Duration
}

// DefaultBreakerConfig matches spec §4.4's literal numbers.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, RecoveryTimeout: 60 * time.Second}
}

// NewGateway builds a Gateway with a router and a circuit breaker per named
// provider. providers maps a provider name ("openai", "anthropic", "google")
// to its ChatModel implementation.
func NewGateway(router *Router, providers map[string]model.ChatModel, breaker BreakerConfig, opts ...Option) *Gateway {
	g := &Gateway{
		router:      router,
		providers:   make(map[string]*providerEntry, len(providers)),
		retry:       graphRetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second},
		callTimeout: 30 * time.Second,
		logger:      noopLogger{},
		rng:         rand.New(rand.NewSource(1)),
	}

	for name, m := range providers {
		name := name
		settings := gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    0,
			Timeout:     breaker.RecoveryTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breaker.FailureThreshold
			},
			OnStateChange: func(cbName string, from, to gobreaker.State) {
				g.logger.Warnw("circuit breaker state change", "provider", cbName, "from", from.String(), "to", to.String())
			},
		}
		g.providers[name] = &providerEntry{
			model:   m,
			breaker: gobreaker.NewCircuitBreaker[model.ChatOut](settings),
		}
	}

	for _, opt := range opts {
		opt(g)
	}
	return g
}

// isPermanent reports whether err looks like an authentication/invalid-model
// failure that must not be retried (spec §4.4's permanent-error carve-out).
func isPermanent(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "revoked")
}

func (g *Gateway) backoff(attempt int) time.Duration {
	exp := g.retry.BaseDelay * time.Duration(uint64(1)<<uint(attempt))
	if exp > g.retry.MaxDelay {
		exp = g.retry.MaxDelay
	}
	jitter := time.Duration(g.rng.Int63n(int64(g.retry.BaseDelay) + 1))
	return exp + jitter
}

// Complete sends a completion request through routing, retry, and the
// circuit breaker, returning a distinct Kind on failure.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	providerName, modelName := g.router.Route(req.Task)
	entry, ok := g.providers[providerName]
	if !ok {
		return CompletionResult{}, &Error{Kind: KindInternal, Message: "no provider registered: " + providerName}
	}

	var lastErr error
	for attempt := 0; attempt < g.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return CompletionResult{}, err
		}

		callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
		out, err := entry.breaker.Execute(func() (model.ChatOut, error) {
			return entry.model.Chat(callCtx, req.Messages, req.Tools)
		})
		cancel()

		if err == nil {
			if g.cost != nil {
				_ = g.cost.RecordLLMCall(modelName, estimateTokens(req.Messages), estimateTokensForText(out.Text), providerName)
			}
			return CompletionResult{Text: out.Text, ToolCalls: out.ToolCalls, Provider: providerName, Model: modelName}, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return CompletionResult{}, &Error{Kind: KindCircuitOpen, Message: "provider " + providerName + " unavailable, try again shortly", Cause: err}
		}

		if isPermanent(err) {
			return CompletionResult{}, &Error{Kind: KindPermanentUpstream, Message: "non-retriable upstream failure", Cause: err}
		}

		lastErr = err
		g.logger.Warnw("llm call failed, retrying", "provider", providerName, "attempt", attempt, "error", err)

		if attempt < g.retry.MaxAttempts-1 {
			select {
			case <-time.After(g.backoff(attempt)):
			case <-ctx.Done():
				return CompletionResult{}, ctx.Err()
			}
		}
	}

	return CompletionResult{}, &Error{Kind: KindTransientUpstream, Message: "llm call exhausted retries", Cause: lastErr}
}

// CompleteWithImages is the entry point the document processor's vision
// extraction path calls. It behaves exactly like Complete: req.Images is not
// sent to the provider, so the model receives only req.Messages.
func (g *Gateway) CompleteWithImages(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	return g.Complete(ctx, req)
}
