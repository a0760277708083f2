// Package engine is the kgexplain facade: it owns one graph, the shared path
// cache and the worker pool, and runs every analysis inside a traced operation.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/DrSkyle/kgexplain/pkg/config"
	"github.com/DrSkyle/kgexplain/pkg/enrich"
	"github.com/DrSkyle/kgexplain/pkg/graph"
	"github.com/DrSkyle/kgexplain/pkg/nullmodel"
	"github.com/DrSkyle/kgexplain/pkg/paths"
	"github.com/DrSkyle/kgexplain/pkg/rank"
	"github.com/DrSkyle/kgexplain/pkg/steiner"
	"github.com/DrSkyle/kgexplain/pkg/swarm"
)

// Engine runs analyses over one immutable graph. It is safe for concurrent use.
type Engine struct {
	Graph  *graph.Store
	Logger *slog.Logger
	Tracer trace.Tracer

	config      config.Config
	concurrency int

	cache    *paths.Cache
	pool     *swarm.Pool
	ranker   *rank.Ranker
	steiner  *steiner.Builder
	enricher *enrich.Tester
	sampler  *nullmodel.Sampler

	calls    metric.Int64Counter
	failures metric.Int64Counter
}

// Option defines a functional configuration override.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.Logger = l
		}
	}
}

// WithConfig sets the analysis defaults.
func WithConfig(cfg config.Config) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithConcurrency caps the worker pool. It wins over NullModel.Workers.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.Tracer = t
	}
}

// New initializes the Engine.
func New(g *graph.Store, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: engine needs a graph", graph.ErrInvalidArgument)
	}
	e := &Engine{
		Graph:  g,
		Logger: slog.Default(),
		Tracer: otel.Tracer("kgexplain/engine"),
		config: config.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", graph.ErrInvalidArgument, err)
	}

	workers := e.concurrency
	if workers == 0 {
		workers = e.config.NullModel.Workers
	}
	e.pool = swarm.NewPool(workers)
	e.cache = paths.New(g)
	e.ranker = rank.New(g, rank.WithLogger(e.Logger))
	e.steiner = steiner.NewBuilder(e.cache, steiner.WithLogger(e.Logger))
	e.enricher = enrich.New(g, enrich.WithLogger(e.Logger))
	e.sampler = nullmodel.New(g,
		nullmodel.WithLogger(e.Logger),
		nullmodel.WithPool(e.pool),
		nullmodel.WithCache(e.cache),
	)

	meter := otel.Meter("kgexplain/engine")
	var err error
	if e.calls, err = meter.Int64Counter("kgexplain.operations",
		metric.WithDescription("Engine operations started")); err != nil {
		return nil, err
	}
	if e.failures, err = meter.Int64Counter("kgexplain.operations.failed",
		metric.WithDescription("Engine operations that returned an error")); err != nil {
		return nil, err
	}
	return e, nil
}

// Config returns the effective defaults.
func (e *Engine) Config() config.Config { return e.config }

// Cache exposes the shared path cache.
func (e *Engine) Cache() *paths.Cache { return e.cache }

// PoolStats reports worker pool counters.
func (e *Engine) PoolStats() swarm.Stats { return e.pool.GetStats() }

// run wraps fn in a span named kgexplain/<op>. Errors and recovered panics are
// recorded on the span and counted.
func (e *Engine) run(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(context.Context) error) (err error) {
	ctx, span := e.Tracer.Start(ctx, "kgexplain/"+op, trace.WithAttributes(attrs...))
	defer span.End()

	opAttr := metric.WithAttributes(attribute.String("op", op))
	e.calls.Add(ctx, 1, opAttr)
	defer func() {
		if r := recover(); r != nil {
			err = e.recoverPanic(span, op, r)
		}
		if err != nil {
			e.failures.Add(ctx, 1, opAttr)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetStatus(codes.Ok, "")
	}()
	return fn(ctx)
}

// recoverPanic turns a panic into an error on the operation's span.
func (e *Engine) recoverPanic(span trace.Span, op string, r any) error {
	stack := debug.Stack()
	span.SetAttributes(
		attribute.String("crash.stack", string(stack)),
		attribute.String("crash.reason", fmt.Sprintf("%v", r)),
	)
	e.Logger.Error("CRITICAL FAILURE", "op", op, "error", r, "stack", string(stack))
	return fmt.Errorf("%s: panic: %v", op, r)
}

// NewLogger builds the process logger. Sensitive keys are redacted.
func NewLogger(w io.Writer, json bool, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: redactSensitiveData,
	}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

var sensitiveKeys = map[string]bool{
	"password": true, "access_key": true, "token": true, "secret": true,
	"api_key": true, "private_key": true, "auth_token": true, "session_token": true,
	"refresh_token": true, "secret_access_key": true, "credential": true,
	"credentials": true, "signature": true,
}

// redactSensitiveData scrubs sensitive keys from logs.
func redactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}
