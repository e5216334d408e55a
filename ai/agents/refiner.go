package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hrygo/lexisense/ai/agents/events"
	"github.com/hrygo/lexisense/ai/agents/tools"
	"github.com/hrygo/lexisense/ai/core/llm"
	"github.com/hrygo/lexisense/ai/legal"
)

const defaultMaxRefineRounds = 2

// PhaseEvent is one entry of the execution log surfaced to callers.
type PhaseEvent struct {
	Phase  string `json:"phase"`
	Detail any    `json:"detail"`
}

// Outcome is the result of a full execute-evaluate-refine pass.
type Outcome struct {
	FinalAnswer     string
	Log             []PhaseEvent
	StepsUsed       int
	Forced          bool
	Evaluations     int
	Refinements     int
	BudgetExhausted bool
	LastFeedback    string
	Stats           llm.LLMCallStats
}

// RefinementController runs the executor once, then drives up to
// maxRounds evaluate-refine cycles. The round budget bounds both
// evaluations (maxRounds+1) and refinement tool calls (maxRounds);
// when it runs out the last candidate ships with a review note
// rather than looping further.
type RefinementController struct {
	executor  *ReActExecutor
	critic    *CriticEvaluator
	invoker   *tools.Invoker
	llm       llm.Service
	maxRounds int
	logger    *slog.Logger
}

// ControllerOption customizes a RefinementController.
type ControllerOption func(*RefinementController)

// WithMaxRounds overrides the refinement round budget.
func WithMaxRounds(n int) ControllerOption {
	return func(c *RefinementController) {
		if n >= 0 {
			c.maxRounds = n
		}
	}
}

// WithControllerLogger overrides the default logger.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *RefinementController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewRefinementController(executor *ReActExecutor, critic *CriticEvaluator, invoker *tools.Invoker, service llm.Service, opts ...ControllerOption) *RefinementController {
	c := &RefinementController{
		executor:  executor,
		critic:    critic,
		invoker:   invoker,
		llm:       service,
		maxRounds: defaultMaxRefineRounds,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the task and polishes its answer until the critic
// accepts it or the round budget runs out. Cancellation is terminal
// and propagates as an error.
func (c *RefinementController) Run(ctx context.Context, task Task, callback events.SafeCallback) (*Outcome, error) {
	out := &Outcome{}
	emit := func(phase string, detail any) {
		out.Log = append(out.Log, PhaseEvent{Phase: phase, Detail: detail})
		callback(phase, detail)
	}

	emit(events.PhaseExecuting, map[string]any{"intent": string(task.Intent)})
	// The executor emits per-step events; routing them through emit
	// keeps the execution log and the callback carrying the same
	// sequence.
	exec, err := c.executor.Execute(ctx, task, emit)
	if err != nil {
		return nil, err
	}
	answer := exec.FinalAnswer
	out.StepsUsed = exec.StepsUsed
	out.Forced = exec.Forced
	out.Stats.Accumulate(&exec.Stats)

	transcript := exec.Transcript
	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("refinement cancelled: %w", err)
		}

		verdict := c.critic.Evaluate(ctx, task.Message, answer, task.Intent)
		out.Evaluations++
		out.LastFeedback = verdict.Feedback
		emit(events.PhaseEvaluating, map[string]any{
			"round":      round,
			"acceptable": verdict.Acceptable,
			"feedback":   verdict.Feedback,
		})

		if verdict.Acceptable {
			out.FinalAnswer = answer
			return out, nil
		}
		if round >= c.maxRounds {
			out.BudgetExhausted = true
			out.FinalAnswer = answer + "\n\n（注：本回答经过多轮优化仍可能不够完善，建议咨询专业律师复核。）"
			c.logger.Info("refiner: round budget exhausted",
				"rounds", round, "feedback", verdict.Feedback)
			return out, nil
		}

		refined, injection, regenerated, stats, err := c.refine(ctx, task, transcript, answer, verdict.Feedback)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("refinement cancelled: %w", err)
			}
			// Refinement itself is best-effort: keep the last candidate.
			c.logger.Warn("refiner: refinement round failed, keeping candidate", "error", err)
			out.FinalAnswer = answer
			return out, nil
		}
		out.Stats.Accumulate(stats)
		out.Refinements++
		emit(events.PhaseRefining, map[string]any{
			"round":         round + 1,
			"refined_query": refined,
		})
		// Later rounds must see this round's injected passages and the
		// candidate they produced.
		transcript = append(transcript, injection, llm.AssistantMessage(regenerated))
		answer = regenerated
	}
}

// refine builds a sharper retrieval query from the critic feedback,
// re-invokes law_search directly, and regenerates the answer with the
// fresh passages injected into the transcript. Returns the refined
// query, the injected user message (for the caller to append to its
// transcript), and the new candidate answer.
func (c *RefinementController) refine(ctx context.Context, task Task, transcript []llm.Message, answer, feedback string) (string, llm.Message, string, *llm.LLMCallStats, error) {
	query := c.refinedQuery(ctx, task, feedback)

	args, _ := json.Marshal(map[string]any{"query": query})
	result := c.invoker.Invoke(ctx, llm.ToolCall{
		ID:   "refine-law-search",
		Type: "function",
		Function: llm.FunctionCall{
			Name:      tools.LawSearchToolName,
			Arguments: string(args),
		},
	})
	if result.IsError() && ctx.Err() != nil {
		return "", llm.Message{}, "", nil, ctx.Err()
	}

	injection := llm.UserMessage(fmt.Sprintf(
		"上一版回答未通过质量评估。\n评估反馈：%s\n\n补充检索到的法条资料：\n%s\n\n请依据反馈和补充资料重写回答，引用具体法条，使用肯定明确的表述，采用分点结构。",
		feedback, result.Observation()))

	messages := make([]llm.Message, 0, len(transcript)+1)
	messages = append(messages, transcript...)
	messages = append(messages, injection)

	content, stats, err := c.llm.Chat(ctx, messages)
	if err != nil {
		return "", llm.Message{}, "", nil, fmt.Errorf("regenerate answer: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return query, injection, answer, stats, nil
	}
	return query, injection, content, stats, nil
}

// refinedQuery asks the model for a focused retrieval query, falling
// back to a deterministic concatenation of the case's core concept,
// scenario keywords, and statute markers when the model is down.
func (c *RefinementController) refinedQuery(ctx context.Context, task Task, feedback string) string {
	prompt := fmt.Sprintf(
		"根据评估反馈，为以下法律问题生成一个更精准的法条检索查询（只输出查询词，不要解释）：\n问题：%s\n领域：%s\n反馈：%s",
		task.Message, task.Domain.Description(), feedback)

	content, _, err := c.llm.ChatDeterministic(ctx, []llm.Message{llm.UserMessage(prompt)})
	if err == nil {
		if q := strings.TrimSpace(strings.Trim(content, "\"“”`")); q != "" && len([]rune(q)) <= 60 {
			return q
		}
	}

	parts := []string{task.Domain.Description()}
	for _, e := range task.KnownFacts {
		if e.Kind == legal.EntityLawRef {
			parts = append(parts, e.Value)
		}
	}
	if scenario := scenarioKeywords(task.Message); scenario != "" {
		parts = append(parts, scenario)
	}
	parts = append(parts, "规定 法条")
	return strings.Join(parts, " ")
}

// scenarioKeywords picks the message's leading clause as the scenario
// signal, trimmed to keep the query focused.
func scenarioKeywords(message string) string {
	message = strings.TrimSpace(message)
	for _, sep := range []string{"，", "。", "？", ",", "?"} {
		if idx := strings.Index(message, sep); idx > 0 {
			message = message[:idx]
			break
		}
	}
	runes := []rune(message)
	if len(runes) > 20 {
		runes = runes[:20]
	}
	return string(runes)
}
