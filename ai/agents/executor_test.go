package agents

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/lexisense/ai/agents/events"
	"github.com/hrygo/lexisense/ai/agents/tools"
	"github.com/hrygo/lexisense/ai/core/llm"
	"github.com/hrygo/lexisense/ai/legal"
)

// mockLLM implements llm.Service with configurable function fields.
type mockLLM struct {
	chatFunc              func(ctx context.Context, messages []llm.Message) (string, *llm.LLMCallStats, error)
	chatDeterministicFunc func(ctx context.Context, messages []llm.Message) (string, *llm.LLMCallStats, error)
	chatWithToolsFunc     func(ctx context.Context, messages []llm.Message, tools []llm.ToolDescriptor) (*llm.ChatResponse, *llm.LLMCallStats, error)
}

func (m *mockLLM) Chat(ctx context.Context, messages []llm.Message) (string, *llm.LLMCallStats, error) {
	if m.chatFunc != nil {
		return m.chatFunc(ctx, messages)
	}
	return "", &llm.LLMCallStats{}, nil
}

func (m *mockLLM) ChatDeterministic(ctx context.Context, messages []llm.Message) (string, *llm.LLMCallStats, error) {
	if m.chatDeterministicFunc != nil {
		return m.chatDeterministicFunc(ctx, messages)
	}
	return "", &llm.LLMCallStats{}, nil
}

func (m *mockLLM) ChatWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolDescriptor) (*llm.ChatResponse, *llm.LLMCallStats, error) {
	if m.chatWithToolsFunc != nil {
		return m.chatWithToolsFunc(ctx, messages, tools)
	}
	return &llm.ChatResponse{}, &llm.LLMCallStats{}, nil
}

func (m *mockLLM) Warmup(_ context.Context) {}

// funcTool is a minimal Tool whose behavior is one injected function.
type funcTool struct {
	name    string
	runFunc func(ctx context.Context, inputJSON string) (string, error)
}

func (t *funcTool) Name() string        { return t.name }
func (t *funcTool) Description() string { return "test tool " + t.name }
func (t *funcTool) InputType() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (t *funcTool) Run(ctx context.Context, inputJSON string) (string, error) {
	return t.runFunc(ctx, inputJSON)
}

func newTestTask() Task {
	return Task{
		SessionID: "sess-1",
		Message:   "公司要裁员，我应该得到多少赔偿？",
		Domain:    legal.DomainLabor,
		Intent:    legal.IntentCalculation,
		Plan:      Plan{Intent: legal.IntentCalculation, Steps: []string{"提取参数", "执行计算"}},
	}
}

func toolCallOf(id, name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:       id,
		Type:     "function",
		Function: llm.FunctionCall{Name: name, Arguments: args},
	}
}

func newExecutorWith(svc llm.Service, toolList ...tools.Tool) *ReActExecutor {
	registry := tools.NewRegistry()
	for _, t := range toolList {
		registry.Register(t)
	}
	invoker := tools.NewInvoker(registry, tools.WithTimeout(2*time.Second))
	return NewReActExecutor(svc, registry, invoker)
}

func TestExecuteFinalAnswerWithoutTools(t *testing.T) {
	svc := &mockLLM{
		chatWithToolsFunc: func(_ context.Context, _ []llm.Message, _ []llm.ToolDescriptor) (*llm.ChatResponse, *llm.LLMCallStats, error) {
			return &llm.ChatResponse{Content: "请补充说明您的工作年限。"}, &llm.LLMCallStats{}, nil
		},
	}
	exec := newExecutorWith(svc)

	result, err := exec.Execute(context.Background(), newTestTask(), events.WrapSafe(nil))
	require.NoError(t, err)
	assert.Equal(t, StateFinished, result.State)
	assert.Equal(t, 1, result.StepsUsed)
	assert.False(t, result.Forced)
	assert.Equal(t, "请补充说明您的工作年限。", result.FinalAnswer)
}

func TestExecuteToolCycleThenAnswer(t *testing.T) {
	var step int
	svc := &mockLLM{
		chatWithToolsFunc: func(_ context.Context, messages []llm.Message, _ []llm.ToolDescriptor) (*llm.ChatResponse, *llm.LLMCallStats, error) {
			step++
			if step == 1 {
				return &llm.ChatResponse{
					ToolCalls: []llm.ToolCall{toolCallOf("c1", "law_search", `{"query":"经济补偿金"}`)},
				}, &llm.LLMCallStats{}, nil
			}
			// The observation from the previous cycle must be visible.
			last := messages[len(messages)-1]
			if last.Role != "tool" || !strings.Contains(last.Content, "第四十七条") {
				return nil, nil, fmt.Errorf("tool observation missing from transcript")
			}
			return &llm.ChatResponse{Content: "依据《劳动合同法》第四十七条，每满一年支付一个月工资。"}, &llm.LLMCallStats{}, nil
		},
	}
	search := &funcTool{name: "law_search", runFunc: func(_ context.Context, _ string) (string, error) {
		return "《劳动合同法》第四十七条：经济补偿按劳动者在本单位工作的年限计算。", nil
	}}
	exec := newExecutorWith(svc, search)

	result, err := exec.Execute(context.Background(), newTestTask(), events.WrapSafe(nil))
	require.NoError(t, err)
	assert.Equal(t, StateFinished, result.State)
	assert.Equal(t, 2, result.StepsUsed)
	assert.Contains(t, result.FinalAnswer, "第四十七条")
}

func TestExecuteResultsFollowRequestOrder(t *testing.T) {
	var answered atomic.Bool
	svc := &mockLLM{
		chatWithToolsFunc: func(_ context.Context, messages []llm.Message, _ []llm.ToolDescriptor) (*llm.ChatResponse, *llm.LLMCallStats, error) {
			if answered.Swap(true) {
				return &llm.ChatResponse{Content: "完成。"}, &llm.LLMCallStats{}, nil
			}
			return &llm.ChatResponse{
				ToolCalls: []llm.ToolCall{
					toolCallOf("slow", "slow_tool", `{}`),
					toolCallOf("fast", "fast_tool", `{}`),
				},
			}, &llm.LLMCallStats{}, nil
		},
	}
	slow := &funcTool{name: "slow_tool", runFunc: func(_ context.Context, _ string) (string, error) {
		time.Sleep(100 * time.Millisecond)
		return "slow result", nil
	}}
	fast := &funcTool{name: "fast_tool", runFunc: func(_ context.Context, _ string) (string, error) {
		return "fast result", nil
	}}
	exec := newExecutorWith(svc, slow, fast)

	result, err := exec.Execute(context.Background(), newTestTask(), events.WrapSafe(nil))
	require.NoError(t, err)

	// The slow call was requested first, so its observation appears
	// first even though the fast one completed first.
	var toolMessages []llm.Message
	for _, msg := range result.Transcript {
		if msg.Role == "tool" {
			toolMessages = append(toolMessages, msg)
		}
	}
	require.Len(t, toolMessages, 2)
	assert.Equal(t, "slow", toolMessages[0].ToolCallID)
	assert.Equal(t, "slow result", toolMessages[0].Content)
	assert.Equal(t, "fast", toolMessages[1].ToolCallID)
	assert.Equal(t, "fast result", toolMessages[1].Content)
}

func TestExecuteToolFailureIsNotTerminal(t *testing.T) {
	var step int
	svc := &mockLLM{
		chatWithToolsFunc: func(_ context.Context, messages []llm.Message, _ []llm.ToolDescriptor) (*llm.ChatResponse, *llm.LLMCallStats, error) {
			step++
			if step == 1 {
				return &llm.ChatResponse{
					ToolCalls: []llm.ToolCall{toolCallOf("c1", "broken", `{}`)},
				}, &llm.LLMCallStats{}, nil
			}
			last := messages[len(messages)-1]
			if last.Role != "tool" || !strings.Contains(last.Content, "failed") {
				return nil, nil, fmt.Errorf("expected error observation, got %q", last.Content)
			}
			return &llm.ChatResponse{Content: "工具不可用，基于已知信息回答。"}, &llm.LLMCallStats{}, nil
		},
	}
	broken := &funcTool{name: "broken", runFunc: func(_ context.Context, _ string) (string, error) {
		return "", fmt.Errorf("backend unavailable")
	}}
	exec := newExecutorWith(svc, broken)

	result, err := exec.Execute(context.Background(), newTestTask(), events.WrapSafe(nil))
	require.NoError(t, err)
	assert.Equal(t, StateFinished, result.State)
}

func TestExecuteForcedSynthesisAtBudget(t *testing.T) {
	svc := &mockLLM{
		// Never produces a final answer.
		chatWithToolsFunc: func(_ context.Context, _ []llm.Message, _ []llm.ToolDescriptor) (*llm.ChatResponse, *llm.LLMCallStats, error) {
			return &llm.ChatResponse{
				ToolCalls: []llm.ToolCall{toolCallOf("c", "echo", `{}`)},
			}, &llm.LLMCallStats{}, nil
		},
		chatFunc: func(_ context.Context, _ []llm.Message) (string, *llm.LLMCallStats, error) {
			return "基于目前掌握的信息：可能适用经济补偿金规定，具体金额尚待确认。", &llm.LLMCallStats{}, nil
		},
	}
	echo := &funcTool{name: "echo", runFunc: func(_ context.Context, in string) (string, error) {
		return in, nil
	}}
	exec := newExecutorWith(svc, echo)

	result, err := exec.Execute(context.Background(), newTestTask(), events.WrapSafe(nil))
	require.NoError(t, err)
	assert.Equal(t, StateFinished, result.State)
	assert.True(t, result.Forced)
	assert.Equal(t, defaultMaxSteps, result.StepsUsed)
	assert.Contains(t, result.FinalAnswer, "尚待确认")
}

func TestExecuteForcedSynthesisFallbackWhenModelDown(t *testing.T) {
	svc := &mockLLM{
		chatWithToolsFunc: func(_ context.Context, _ []llm.Message, _ []llm.ToolDescriptor) (*llm.ChatResponse, *llm.LLMCallStats, error) {
			return &llm.ChatResponse{
				Content:   "我需要再查一下相关法条才能给出准确的补偿金计算结果。",
				ToolCalls: []llm.ToolCall{toolCallOf("c", "echo", `{}`)},
			}, &llm.LLMCallStats{}, nil
		},
		chatFunc: func(_ context.Context, _ []llm.Message) (string, *llm.LLMCallStats, error) {
			return "", nil, fmt.Errorf("model down")
		},
	}
	echo := &funcTool{name: "echo", runFunc: func(_ context.Context, in string) (string, error) {
		return in, nil
	}}
	exec := newExecutorWith(svc, echo)

	result, err := exec.Execute(context.Background(), newTestTask(), events.WrapSafe(nil))
	require.NoError(t, err)
	assert.True(t, result.Forced)
	// Falls back to the most recent substantive assistant thought.
	assert.Contains(t, result.FinalAnswer, "补偿金")
}

func TestExecuteCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := &mockLLM{}
	exec := newExecutorWith(svc)

	result, err := exec.Execute(ctx, newTestTask(), events.WrapSafe(nil))
	require.Error(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteInferenceFaultIsTerminal(t *testing.T) {
	svc := &mockLLM{
		chatWithToolsFunc: func(_ context.Context, _ []llm.Message, _ []llm.ToolDescriptor) (*llm.ChatResponse, *llm.LLMCallStats, error) {
			return nil, nil, fmt.Errorf("503 from provider")
		},
	}
	exec := newExecutorWith(svc)

	result, err := exec.Execute(context.Background(), newTestTask(), events.WrapSafe(nil))
	require.Error(t, err)
	assert.Equal(t, StateFailed, result.State)
}

func TestExecuteEmitsStepEvents(t *testing.T) {
	svc := &mockLLM{
		chatWithToolsFunc: func(_ context.Context, _ []llm.Message, _ []llm.ToolDescriptor) (*llm.ChatResponse, *llm.LLMCallStats, error) {
			return &llm.ChatResponse{Content: "答复。"}, &llm.LLMCallStats{}, nil
		},
	}
	exec := newExecutorWith(svc)

	var phases []string
	cb := events.WrapSafe(func(phase string, _ any) error {
		phases = append(phases, phase)
		return nil
	})
	_, err := exec.Execute(context.Background(), newTestTask(), cb)
	require.NoError(t, err)
	assert.Equal(t, []string{events.PhaseExecuting}, phases)
}
