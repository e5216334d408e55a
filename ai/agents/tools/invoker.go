package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/time/rate"

	"github.com/hrygo/lexisense/ai/core/llm"
	"github.com/hrygo/lexisense/ai/observability/logging"
)

const defaultCallTimeout = 30 * time.Second

// CallObserver receives the outcome of every dispatched tool call.
// Satisfied by the metrics exporter.
type CallObserver interface {
	RecordToolCall(toolName string, latency time.Duration, success bool, errorType string)
}

// Invoker dispatches named capability calls with a per-call timeout,
// panic containment, and an optional rate limit. Every failure mode
// becomes a Result error: nothing escapes the invoker boundary except
// caller cancellation.
type Invoker struct {
	registry *Registry
	timeout  time.Duration
	limiter  *rate.Limiter // nil disables rate limiting
	observer CallObserver  // nil disables call metrics
	logger   *slog.Logger
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithTimeout overrides the default 30s per-call timeout.
func WithTimeout(d time.Duration) InvokerOption {
	return func(inv *Invoker) {
		if d > 0 {
			inv.timeout = d
		}
	}
}

// WithRateLimit bounds tool dispatch to limit calls/sec with the
// given burst. Protects downstream search/compute backends when a
// think phase fans out many calls at once.
func WithRateLimit(limit rate.Limit, burst int) InvokerOption {
	return func(inv *Invoker) {
		inv.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithObserver records every call's outcome on the given observer.
func WithObserver(obs CallObserver) InvokerOption {
	return func(inv *Invoker) {
		inv.observer = obs
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) InvokerOption {
	return func(inv *Invoker) {
		if logger != nil {
			inv.logger = logger
		}
	}
}

// NewInvoker creates an Invoker over the given registry.
func NewInvoker(registry *Registry, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		registry: registry,
		timeout:  defaultCallTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Timeout returns the configured per-call timeout.
func (inv *Invoker) Timeout() time.Duration { return inv.timeout }

// Invoke dispatches one tool call and always returns exactly one
// Result. Unknown tools, tool errors, panics, and timeouts are all
// recorded as Result errors. The underlying call's context is
// cancelled on timeout so the tool can release its resources; a
// straggler goroutine that ignores cancellation is abandoned, never
// waited on.
func (inv *Invoker) Invoke(ctx context.Context, call llm.ToolCall) Result {
	result := Result{CallID: call.ID, Name: call.Function.Name}
	start := time.Now()
	// Request-scoped logger when present, so call lines carry trace IDs.
	logger := logging.FromContextOr(ctx, inv.logger)

	if inv.limiter != nil {
		if err := inv.limiter.Wait(ctx); err != nil {
			result.Err = fmt.Sprintf("rate limit wait: %v", err)
			result.Duration = time.Since(start)
			return inv.observe(result, "rate_limit")
		}
	}

	tool, ok := inv.registry.Get(call.Function.Name)
	if !ok {
		logger.Warn("tool: unknown tool requested", "tool", call.Function.Name)
		result.Err = fmt.Sprintf("unknown tool: %s", call.Function.Name)
		result.Duration = time.Since(start)
		return inv.observe(result, "unknown_tool")
	}

	callCtx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	type outcome struct {
		content  string
		err      error
		panicked bool
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("tool: panic recovered",
					"tool", call.Function.Name,
					"panic", r,
					"stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r), panicked: true}
			}
		}()
		content, err := tool.Run(callCtx, call.Function.Arguments)
		done <- outcome{content: content, err: err}
	}()

	select {
	case out := <-done:
		result.Duration = time.Since(start)
		if out.err != nil {
			result.Err = out.err.Error()
			logger.Warn("tool: call failed",
				"tool", call.Function.Name,
				"error", out.err,
				"duration_ms", result.Duration.Milliseconds())
			errType := "tool_error"
			if out.panicked {
				errType = "panic"
			}
			return inv.observe(result, errType)
		}
		result.Content = out.content
		logger.Debug("tool: call completed",
			"tool", call.Function.Name,
			"duration_ms", result.Duration.Milliseconds())
		return inv.observe(result, "")

	case <-callCtx.Done():
		result.Duration = time.Since(start)
		errType := "timeout"
		if ctx.Err() != nil {
			// Caller cancellation, not a tool fault.
			result.Err = fmt.Sprintf("cancelled: %v", ctx.Err())
			errType = "cancelled"
		} else {
			result.Err = fmt.Sprintf("tool timed out after %s", inv.timeout)
		}
		logger.Warn("tool: call aborted",
			"tool", call.Function.Name,
			"error", result.Err)
		return inv.observe(result, errType)
	}
}

// observe reports the call outcome to the configured observer.
func (inv *Invoker) observe(result Result, errType string) Result {
	if inv.observer != nil {
		inv.observer.RecordToolCall(result.Name, result.Duration, result.Err == "", errType)
	}
	return result
}
