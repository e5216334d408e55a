package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/lexisense/ai/agents/events"
	"github.com/hrygo/lexisense/ai/agents/tools"
	"github.com/hrygo/lexisense/ai/core/llm"
	"github.com/hrygo/lexisense/ai/legal"
)

// ExecutionState tracks one task execution through its lifecycle.
type ExecutionState string

const (
	StateIdle     ExecutionState = "idle"
	StateRunning  ExecutionState = "running"
	StateFinished ExecutionState = "finished"
	StateFailed   ExecutionState = "failed"
)

const (
	defaultMaxSteps = 5
	// fan-out bound for concurrent tool calls within one cycle
	maxConcurrentToolCalls = 4
)

// Task is one unit of work for the executor.
type Task struct {
	SessionID  string
	Message    string
	Domain     legal.Domain
	Intent     legal.Intent
	Plan       Plan
	KnownFacts []legal.Entity
	History    []llm.Message
}

// ExecutionResult is the outcome of one executor run.
type ExecutionResult struct {
	FinalAnswer string
	Transcript  []llm.Message
	StepsUsed   int
	State       ExecutionState
	Forced      bool // budget-forced synthesis
	Stats       llm.LLMCallStats
}

/*
ReActExecutor - think/act/observe loop over a tool-calling model

ALGORITHM:
 1. think: ChatWithTools over the transcript; the response is either a
    final answer (no tool calls) or one-or-more requested calls.
 2. act: dispatch the cycle's tool calls concurrently through the
    Invoker; results land in a slice indexed by request position so
    transcript insertion order matches request order regardless of
    completion timing.
 3. observe: append the results as tool messages, count the step, loop.

Termination: a final answer finishes the run; hitting the step budget
forces a best-effort synthesis from the transcript instead of empty
output; an inference fault or caller cancellation is terminal (Failed).
Tool failures are never terminal, they surface as error observations.
*/
type ReActExecutor struct {
	llm      llm.Service
	registry *tools.Registry
	invoker  *tools.Invoker
	maxSteps int
	logger   *slog.Logger
}

// ExecutorOption configures a ReActExecutor.
type ExecutorOption func(*ReActExecutor)

// WithMaxSteps overrides the default step budget of 5.
func WithMaxSteps(n int) ExecutorOption {
	return func(e *ReActExecutor) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithExecutorLogger overrides the default logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *ReActExecutor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewReActExecutor creates an executor over the given model, tool
// registry, and invoker.
func NewReActExecutor(service llm.Service, registry *tools.Registry, invoker *tools.Invoker, opts ...ExecutorOption) *ReActExecutor {
	e := &ReActExecutor{
		llm:      service,
		registry: registry,
		invoker:  invoker,
		maxSteps: defaultMaxSteps,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the loop for one task. The returned result's State is
// Finished on any answer path (including forced synthesis); a non-nil
// error always pairs with State Failed.
func (e *ReActExecutor) Execute(ctx context.Context, task Task, callback events.SafeCallback) (*ExecutionResult, error) {
	result := &ExecutionResult{State: StateRunning}
	startTime := time.Now()

	messages := e.buildMessages(task)
	descriptors := e.registry.Descriptors()

	for step := 0; step < e.maxSteps; step++ {
		select {
		case <-ctx.Done():
			result.State = StateFailed
			result.Transcript = messages
			return result, fmt.Errorf("execution cancelled: %w", ctx.Err())
		default:
		}

		callback(events.PhaseExecuting, map[string]any{
			"step":      step + 1,
			"max_steps": e.maxSteps,
		})

		llmStart := time.Now()
		e.logger.Debug("react: LLM chat started",
			"step", step+1,
			"message_count", len(messages))

		response, llmStats, err := e.llm.ChatWithTools(ctx, messages, descriptors)
		if err != nil {
			// Inference unavailable with no fallback: unrecoverable.
			result.State = StateFailed
			result.Transcript = messages
			return result, fmt.Errorf("LLM chat with tools failed: %w", err)
		}
		result.Stats.Accumulate(llmStats)

		e.logger.Info("react: LLM response",
			"step", step+1,
			"tool_calls", len(response.ToolCalls),
			"content_length", len(response.Content),
			"duration_ms", time.Since(llmStart).Milliseconds())

		result.StepsUsed = step + 1

		// No tool calls = final answer.
		if response.IsFinalAnswer() {
			messages = append(messages, llm.AssistantMessage(response.Content))
			result.FinalAnswer = response.Content
			result.Transcript = messages
			result.State = StateFinished
			e.logger.Info("react: final answer produced",
				"steps_used", result.StepsUsed,
				"duration_ms", time.Since(startTime).Milliseconds())
			return result, nil
		}

		// Record the assistant turn carrying the requests, then
		// dispatch and observe in request order.
		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		results := e.dispatchCalls(ctx, response.ToolCalls, callback)
		for i, call := range response.ToolCalls {
			messages = append(messages, llm.ToolMessage(
				results[i].Observation(), call.ID, call.Function.Name))
		}
	}

	// Step budget reached without a final answer: synthesize a
	// best-effort one from the transcript instead of returning empty.
	result.Forced = true
	answer := e.synthesize(ctx, messages, &result.Stats)
	messages = append(messages, llm.AssistantMessage(answer))
	result.FinalAnswer = answer
	result.Transcript = messages
	result.State = StateFinished

	e.logger.Warn("react: step budget reached, forced synthesis",
		"max_steps", e.maxSteps,
		"duration_ms", time.Since(startTime).Milliseconds())
	return result, nil
}

// dispatchCalls runs one cycle's tool calls concurrently. The result
// slice is indexed by request position: transcript ordering never
// depends on completion order.
func (e *ReActExecutor) dispatchCalls(ctx context.Context, calls []llm.ToolCall, callback events.SafeCallback) []tools.Result {
	results := make([]tools.Result, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentToolCalls)
	for i, call := range calls {
		g.Go(func() error {
			callback(events.PhaseExecuting, map[string]any{
				"tool":  call.Function.Name,
				"input": call.Function.Arguments,
			})
			results[i] = e.invoker.Invoke(gctx, call)
			e.logger.Info("react: tool execution completed",
				"tool", call.Function.Name,
				"error", results[i].Err,
				"duration_ms", results[i].Duration.Milliseconds())
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // invoker never returns errors, failures are Results

	return results
}

// synthesize produces the forced best-effort answer at budget. If the
// model call itself fails, the answer is assembled from the transcript
// rather than left empty.
func (e *ReActExecutor) synthesize(ctx context.Context, messages []llm.Message, stats *llm.LLMCallStats) string {
	prompt := "已达到最大执行步数。请基于以上全部信息，生成当前能给出的最佳回答。" +
		"如有信息缺口或未完成的核验，请在回答中明确说明不确定之处。"

	content, llmStats, err := e.llm.Chat(ctx, append(messages, llm.UserMessage(prompt)))
	stats.Accumulate(llmStats)
	if err == nil && strings.TrimSpace(content) != "" {
		return content
	}
	if err != nil {
		e.logger.Warn("react: synthesis call failed, assembling from transcript", "error", err)
	}

	// Last resort: the most recent substantive assistant content.
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" && len([]rune(messages[i].Content)) > 20 {
			return messages[i].Content
		}
	}
	return "抱歉，在处理您的问题时遇到了一些困难。建议您咨询专业律师获取更详细的法律意见。"
}

// buildMessages assembles the initial transcript: system prompt with
// domain expertise, plan, and known facts, then history, then the
// user message.
func (e *ReActExecutor) buildMessages(task Task) []llm.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "你是%s。当前任务类型：%s。\n\n", task.Domain.Description(), task.Intent.Description())
	b.WriteString(task.Plan.Prompt())

	if len(task.KnownFacts) > 0 {
		b.WriteString("\n当前案件已知事实：\n")
		for _, fact := range task.KnownFacts {
			text := fact.Text
			if text == "" {
				text = fact.Value
			}
			fmt.Fprintf(&b, "- [%s] %s\n", fact.Kind, text)
		}
	}

	b.WriteString("\n回答要求：引用具体法条编号，使用肯定明确的表述，采用分点分析结构。")

	return llm.FormatMessages(b.String(), task.Message, task.History)
}
