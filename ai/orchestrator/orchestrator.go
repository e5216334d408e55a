// Package orchestrator is the top-level consultation pipeline:
// classify, route, execute, evaluate, refine, respond.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/lexisense/ai/agents"
	"github.com/hrygo/lexisense/ai/agents/events"
	"github.com/hrygo/lexisense/ai/core/llm"
	"github.com/hrygo/lexisense/ai/legal"
	"github.com/hrygo/lexisense/ai/metrics"
	"github.com/hrygo/lexisense/ai/observability/logging"
	"github.com/hrygo/lexisense/ai/routing"
	"github.com/hrygo/lexisense/ai/session"
	"github.com/hrygo/lexisense/ai/workflow"
)

// Result is one finished consultation turn.
type Result struct {
	TraceID     string              `json:"trace_id"`
	SessionID   string              `json:"session_id"`
	FinalAnswer string              `json:"final_answer"`
	Domain      legal.Domain        `json:"domain"`
	Intent      legal.Intent        `json:"intent"`
	Log         []agents.PhaseEvent `json:"execution_log"`
	Stats       llm.LLMCallStats    `json:"stats"`
}

// nonLegalGuidance steers off-topic users back to the supported
// legal domains.
const nonLegalGuidance = "\n\n---\n\n💡 **提示**：我是专业的法律助手，可以为您提供法律咨询服务。我可以帮助您处理以下法律领域的问题：\n\n" +
	"- 📋 **劳动法**：裁员、工资、劳动合同、试用期等\n" +
	"- 👨‍👩‍👧 **婚姻家事**：离婚、抚养权、财产分割、继承等\n" +
	"- 📝 **合同纠纷**：合同违约、合同审查、合同签订等\n" +
	"- 🏢 **公司法**：公司治理、股权纠纷、公司设立等\n" +
	"- ⚖️ **刑法**：刑事案件、量刑、处罚等\n" +
	"- 📍 **程序性问题**：法院管辖、诉讼费、诉讼流程等\n\n" +
	"如果您有法律相关的问题，请随时告诉我，我会尽力帮助您！"

const nonLegalFallback = "我理解您的问题，但我主要专注于法律咨询服务。"

// Orchestrator drives one message through the full pipeline while
// holding the session's exclusive lock.
type Orchestrator struct {
	classifier *routing.IntentClassifier
	registry   *agents.AgentRegistry
	sessions   *session.Manager
	llm        llm.Service
	workflows  *workflow.Selector
	exporter   *metrics.PrometheusExporter // nil disables metrics
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics enables Prometheus metrics recording.
func WithMetrics(exporter *metrics.PrometheusExporter) Option {
	return func(o *Orchestrator) { o.exporter = exporter }
}

// WithWorkflows overrides the off-pipeline synthesis selector. The
// default selector answers everything with the small-talk workflow.
func WithWorkflows(selector *workflow.Selector) Option {
	return func(o *Orchestrator) {
		if selector != nil {
			o.workflows = selector
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an Orchestrator.
func New(classifier *routing.IntentClassifier, registry *agents.AgentRegistry, sessions *session.Manager, service llm.Service, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		classifier: classifier,
		registry:   registry,
		sessions:   sessions,
		llm:        service,
		workflows:  workflow.NewSelector(workflow.NewSmallTalk(service)),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process handles one user message end to end. The callback is
// advisory: nil is fine and callback errors never affect the result.
// Requests for the same session serialize on the session lock.
func (o *Orchestrator) Process(ctx context.Context, sessionID, message string, callback events.Callback) (*Result, error) {
	traceID := uuid.NewString()
	start := time.Now()
	safe := events.WrapSafe(callback)

	result := &Result{TraceID: traceID, SessionID: sessionID}
	emit := func(phase string, detail any) {
		result.Log = append(result.Log, agents.PhaseEvent{Phase: phase, Detail: detail})
		safe(phase, detail)
	}

	logger := o.logger.With("trace_id", traceID, "session_id", sessionID)
	// Downstream components (tool invoker) log through the request
	// logger so their lines carry the trace ID.
	ctx = logging.ToContext(ctx, logger)

	state := o.sessions.GetOrCreate(ctx, sessionID)
	state.Lock()
	defer state.Unlock()
	state.Touch()

	emit(events.PhaseClassifying, map[string]any{"message_length": len([]rune(message))})
	cls := o.classifier.Classify(ctx, message, state.RecentHistory(5))
	result.Domain = cls.Domain
	result.Intent = cls.Intent
	logger.Info("orchestrator: classified",
		"domain", cls.Domain, "intent", cls.Intent, "entities", len(cls.Entities))
	if o.exporter != nil {
		o.exporter.RecordClassification(string(cls.Domain), string(cls.Intent), "classifier")
	}

	if !cls.Domain.IsLegal() {
		answer := o.nonLegalAnswer(ctx, message, state, cls.Intent)
		o.recordTurn(state, message, answer)
		emit(events.PhaseCompleted, map[string]any{"short_circuit": "non_legal"})
		result.FinalAnswer = answer
		o.finishMetrics(result, start, true)
		return result, nil
	}

	state.Memory.SetClassification(cls.Domain, cls.Intent)
	state.Memory.MergeEntities(cls.Entities)

	key := legal.AgentKey{Domain: cls.Domain, Intent: cls.Intent}
	emit(events.PhaseRouting, map[string]any{"agent_key": key.String()})
	if hint := legal.MissingFactsQuestion(key, state.Memory.Entities()); hint != "" {
		// Advisory: the specialist's plan decides whether to clarify.
		emit(events.PhaseRouting, map[string]any{"missing_facts": hint})
	}

	agent, err := o.registry.Resolve(state, key)
	if err != nil {
		logger.Error("orchestrator: agent resolution failed", "agent_key", key.String(), "error", err)
		o.finishMetrics(result, start, false)
		return nil, fmt.Errorf("resolve agent %s: %w", key, err)
	}

	outcome, err := agent.Handle(ctx, state, message, safe)
	if err != nil {
		logger.Error("orchestrator: execution failed", "agent_key", key.String(), "error", err)
		o.finishMetrics(result, start, false)
		return nil, err
	}

	result.Log = append(result.Log, outcome.Log...)
	result.FinalAnswer = outcome.FinalAnswer
	result.Stats = outcome.Stats

	o.recordTurn(state, message, outcome.FinalAnswer)
	emit(events.PhaseCompleted, map[string]any{
		"steps_used":  outcome.StepsUsed,
		"evaluations": outcome.Evaluations,
		"refinements": outcome.Refinements,
	})

	logger.Info("orchestrator: turn completed",
		"domain", cls.Domain, "intent", cls.Intent,
		"steps_used", outcome.StepsUsed,
		"forced", outcome.Forced,
		"evaluations", outcome.Evaluations,
		"refinements", outcome.Refinements,
		"total_tokens", outcome.Stats.TotalTokens,
		"duration_ms", time.Since(start).Milliseconds())

	if o.exporter != nil {
		o.exporter.RecordExecution(string(cls.Intent), outcome.StepsUsed, outcome.Forced)
		o.exporter.RecordVerdict(!outcome.BudgetExhausted)
		for i := 0; i < outcome.Refinements; i++ {
			o.exporter.RecordRefinement()
		}
		o.exporter.RecordLLMTokens("prompt", outcome.Stats.PromptTokens)
		o.exporter.RecordLLMTokens("completion", outcome.Stats.CompletionTokens)
	}
	o.finishMetrics(result, start, true)

	return result, nil
}

// nonLegalAnswer briefly answers an off-topic message and appends the
// domain guidance. Inference failure degrades to the canned text.
// Caller holds the session lock.
func (o *Orchestrator) nonLegalAnswer(ctx context.Context, message string, state *session.State, intent legal.Intent) string {
	w := o.workflows.Select(intent)
	content, err := w.Execute(ctx, message, state)
	if err != nil || content == "" {
		o.logger.Warn("orchestrator: non-legal simple answer failed", "workflow", w.Name(), "error", err)
		content = nonLegalFallback
	}
	return content + nonLegalGuidance
}

// recordTurn appends the turn to session history. Caller holds the
// session lock.
func (o *Orchestrator) recordTurn(state *session.State, message, answer string) {
	state.AppendHistory(llm.UserMessage(message))
	state.AppendHistory(llm.AssistantMessage(answer))
}

func (o *Orchestrator) finishMetrics(result *Result, start time.Time, success bool) {
	if o.exporter == nil {
		return
	}
	o.exporter.RecordRequest(string(result.Domain), string(result.Intent), time.Since(start), success)
	o.exporter.SetActiveSessions(o.sessions.ActiveCount())
}
