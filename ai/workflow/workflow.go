// Package workflow defines the pluggable answer-synthesis seam. The
// orchestration core selects a Workflow by intent; everything domain
// internal (prompting, retrieval mix, templates) stays behind this
// contract so specialties can evolve independently.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/hrygo/lexisense/ai/core/llm"
	"github.com/hrygo/lexisense/ai/legal"
	"github.com/hrygo/lexisense/ai/session"
)

// Workflow synthesizes one answer for a message given the session's
// accumulated state. Implementations must be safe for concurrent use
// across sessions.
type Workflow interface {
	// Name identifies the workflow in logs and metrics.
	Name() string

	// Execute produces an answer. The caller holds the session lock.
	Execute(ctx context.Context, message string, state *session.State) (string, error)
}

// Selector picks the workflow for an intent, falling back to a
// default when no specific one is registered.
type Selector struct {
	mu       sync.RWMutex
	byIntent map[legal.Intent]Workflow
	fallback Workflow
}

// NewSelector creates a selector with the given fallback workflow.
func NewSelector(fallback Workflow) *Selector {
	return &Selector{
		byIntent: make(map[legal.Intent]Workflow),
		fallback: fallback,
	}
}

// Register binds a workflow to an intent, replacing any previous one.
func (s *Selector) Register(intent legal.Intent, w Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byIntent[intent] = w
}

// Select returns the workflow for intent, or the fallback.
func (s *Selector) Select(intent legal.Intent) Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if w, ok := s.byIntent[intent]; ok {
		return w
	}
	return s.fallback
}

// SmallTalk handles messages outside the legal domains: a brief
// friendly reply with no legal framing.
type SmallTalk struct {
	llm llm.Service
}

// NewSmallTalk creates the off-topic workflow.
func NewSmallTalk(service llm.Service) *SmallTalk {
	return &SmallTalk{llm: service}
}

func (w *SmallTalk) Name() string { return "small_talk" }

func (w *SmallTalk) Execute(ctx context.Context, message string, state *session.State) (string, error) {
	content, _, err := w.llm.Chat(ctx, llm.FormatMessages(
		"你是一个友好的助手。请简洁地回答用户的问题。", message, state.RecentHistory(5)))
	if err != nil {
		return "", fmt.Errorf("workflow %s: %w", w.Name(), err)
	}
	return content, nil
}

// LLMWorkflow is the default synthesis: one plain chat turn seeded
// with the session's classification and known facts.
type LLMWorkflow struct {
	llm llm.Service
}

// NewLLMWorkflow creates the default LLM-backed workflow.
func NewLLMWorkflow(service llm.Service) *LLMWorkflow {
	return &LLMWorkflow{llm: service}
}

func (w *LLMWorkflow) Name() string { return "llm_default" }

func (w *LLMWorkflow) Execute(ctx context.Context, message string, state *session.State) (string, error) {
	system := fmt.Sprintf("你是%s。当前任务类型：%s。请结合已知事实，给出引用具体法条的回答。",
		state.Memory.Domain.Description(), state.Memory.Intent.Description())
	if facts := state.Memory.Entities(); len(facts) > 0 {
		system += "\n已知事实："
		for _, fact := range facts {
			text := fact.Text
			if text == "" {
				text = fact.Value
			}
			system += fmt.Sprintf("\n- [%s] %s", fact.Kind, text)
		}
	}

	content, _, err := w.llm.Chat(ctx, llm.FormatMessages(system, message, state.RecentHistory(10)))
	if err != nil {
		return "", fmt.Errorf("workflow %s: %w", w.Name(), err)
	}
	return content, nil
}
