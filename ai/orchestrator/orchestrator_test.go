package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/lexisense/ai/agents"
	"github.com/hrygo/lexisense/ai/agents/events"
	"github.com/hrygo/lexisense/ai/agents/tools"
	"github.com/hrygo/lexisense/ai/core/llm"
	"github.com/hrygo/lexisense/ai/legal"
	"github.com/hrygo/lexisense/ai/routing"
	"github.com/hrygo/lexisense/ai/session"
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

const compliantAnswer = `根据《劳动合同法》第四十七条的规定：

1. 经济补偿按劳动者在本单位工作的年限计算，每满一年支付一个月工资。
2. 六个月以上不满一年的，按一年计算。
3. 建议先与公司协商，协商不成可申请劳动仲裁。`

// newPipeline wires a full orchestrator over one scripted model. The
// deterministic channel serves both the classifier and the critic, so
// the script keys off the message content.
func newPipeline(t *testing.T, svc llm.Service) (*Orchestrator, *session.Manager) {
	t.Helper()

	registry := tools.NewRegistry()
	registry.Register(tools.NewLawSearchTool(stubRetriever{}))
	invoker := tools.NewInvoker(registry, tools.WithTimeout(2*time.Second))

	executor := agents.NewReActExecutor(svc, registry, invoker)
	critic, err := agents.NewCriticEvaluator(svc, nil)
	require.NoError(t, err)
	controller := agents.NewRefinementController(executor, critic, invoker, svc)
	agentRegistry := agents.NewAgentRegistry(agents.NewPlanner(), controller, nil)

	classifier := routing.NewIntentClassifier(svc)
	manager := session.NewManager(nil)
	t.Cleanup(func() { manager.Shutdown(context.Background()) })

	return New(classifier, agentRegistry, manager, svc), manager
}

type stubRetriever struct{}

func (stubRetriever) Search(_ context.Context, _ string, _ int) ([]tools.Passage, error) {
	return []tools.Passage{{
		Source:  "《中华人民共和国劳动合同法》",
		Article: "第四十七条",
		Content: "经济补偿按劳动者在本单位工作的年限，每满一年支付一个月工资的标准向劳动者支付。",
		Score:   0.93,
	}}, nil
}

// scriptedSvc answers classification requests with a labor/calculation
// verdict, critic requests with acceptance, and everything else with a
// compliant final answer.
func scriptedSvc() *mockLLM {
	return &mockLLM{
		chatDeterministicFunc: func(_ context.Context, messages []llm.Message) (string, *llm.LLMCallStats, error) {
			system := messages[0].Content
			if strings.Contains(system, "评估") {
				return `{"is_acceptable": true, "feedback": "可以返回"}`, &llm.LLMCallStats{}, nil
			}
			return `{"domain": "Labor_Law", "intent": "Calculation", "entities": []}`, &llm.LLMCallStats{}, nil
		},
		chatWithToolsFunc: func(_ context.Context, _ []llm.Message, _ []llm.ToolDescriptor) (*llm.ChatResponse, *llm.LLMCallStats, error) {
			return &llm.ChatResponse{Content: compliantAnswer}, &llm.LLMCallStats{PromptTokens: 100, CompletionTokens: 60, TotalTokens: 160}, nil
		},
	}
}

func TestProcessLayoffCompensationScenario(t *testing.T) {
	o, _ := newPipeline(t, scriptedSvc())

	var phases []string
	cb := func(phase string, _ any) error {
		phases = append(phases, phase)
		return nil
	}

	result, err := o.Process(context.Background(), "sess-layoff", "公司要裁员，我应该得到多少赔偿？", cb)
	require.NoError(t, err)

	assert.Equal(t, legal.DomainLabor, result.Domain)
	assert.Equal(t, legal.IntentCalculation, result.Intent)
	assert.Contains(t, result.FinalAnswer, "第四十七条")
	assert.NotEmpty(t, result.TraceID)
	assert.Equal(t, 160, result.Stats.TotalTokens)

	assert.Equal(t, events.PhaseClassifying, phases[0])
	assert.Contains(t, phases, events.PhaseRouting)
	assert.Contains(t, phases, events.PhaseExecuting)
	assert.Contains(t, phases, events.PhaseEvaluating)
	assert.Equal(t, events.PhaseCompleted, phases[len(phases)-1])

	// The execution log mirrors the callback phases.
	var logPhases []string
	for _, ev := range result.Log {
		logPhases = append(logPhases, ev.Phase)
	}
	assert.Contains(t, logPhases, events.PhaseEvaluating)
	assert.Equal(t, events.PhaseCompleted, logPhases[len(logPhases)-1])
}

func TestProcessNonLegalShortCircuit(t *testing.T) {
	svc := scriptedSvc()
	svc.chatDeterministicFunc = func(_ context.Context, _ []llm.Message) (string, *llm.LLMCallStats, error) {
		return `{"domain": "Non_Legal", "intent": "QA_Retrieval", "entities": []}`, &llm.LLMCallStats{}, nil
	}
	svc.chatFunc = func(_ context.Context, _ []llm.Message) (string, *llm.LLMCallStats, error) {
		return "今天多云，气温23度。", &llm.LLMCallStats{}, nil
	}
	o, manager := newPipeline(t, svc)

	result, err := o.Process(context.Background(), "sess-weather", "今天天气怎么样？", nil)
	require.NoError(t, err)

	assert.Equal(t, legal.DomainNonLegal, result.Domain)
	assert.Contains(t, result.FinalAnswer, "今天多云")
	assert.Contains(t, result.FinalAnswer, "法律咨询服务")

	// No specialist agent was constructed.
	state, ok := manager.Get("sess-weather")
	require.True(t, ok)
	state.Lock()
	defer state.Unlock()
	assert.Equal(t, 0, state.AgentCount())
	assert.Equal(t, 2, state.HistoryLen(), "the turn still lands in history")
}

func TestProcessNonLegalGuidanceSurvivesModelFault(t *testing.T) {
	svc := scriptedSvc()
	svc.chatDeterministicFunc = func(_ context.Context, _ []llm.Message) (string, *llm.LLMCallStats, error) {
		return `{"domain": "Non_Legal", "intent": "QA_Retrieval", "entities": []}`, &llm.LLMCallStats{}, nil
	}
	svc.chatFunc = func(_ context.Context, _ []llm.Message) (string, *llm.LLMCallStats, error) {
		return "", nil, fmt.Errorf("provider down")
	}
	o, _ := newPipeline(t, svc)

	result, err := o.Process(context.Background(), "sess-offline", "推荐一部电影", nil)
	require.NoError(t, err)
	assert.Contains(t, result.FinalAnswer, "专注于法律咨询服务")
	assert.Contains(t, result.FinalAnswer, "劳动法")
}

func TestProcessAccumulatesSessionFacts(t *testing.T) {
	o, manager := newPipeline(t, scriptedSvc())

	_, err := o.Process(context.Background(), "sess-facts", "我月薪8000元，2021年3月入职。公司要裁员，赔偿怎么算？", nil)
	require.NoError(t, err)

	state, ok := manager.Get("sess-facts")
	require.True(t, ok)
	state.Lock()
	entitiesAfterFirst := state.Memory.Len()
	state.Unlock()
	assert.Greater(t, entitiesAfterFirst, 0, "rule extraction fills memory")

	_, err = o.Process(context.Background(), "sess-facts", "如果公司只赔1个月工资合理吗？", nil)
	require.NoError(t, err)

	state.Lock()
	defer state.Unlock()
	assert.GreaterOrEqual(t, state.Memory.Len(), entitiesAfterFirst, "memory never shrinks across turns")
	assert.Equal(t, legal.DomainLabor, state.Memory.Domain)
	assert.Equal(t, 4, state.HistoryLen())
	assert.Equal(t, 1, state.AgentCount(), "same specialty reuses the pooled agent")
}

func TestProcessUnknownIntentIsFatal(t *testing.T) {
	svc := scriptedSvc()
	o, _ := newPipeline(t, svc)

	// Force an intent with no plan through a custom registry entry.
	reg := routing.NewIntentRegistry()
	reg.Register(routing.IntentConfig{
		Intent:   legal.Intent("divination"),
		Keywords: []string{"占卜"},
		Priority: 200,
	})
	svc.chatDeterministicFunc = func(_ context.Context, _ []llm.Message) (string, *llm.LLMCallStats, error) {
		return `{"domain": "Labor_Law", "intent": "divination", "entities": []}`, &llm.LLMCallStats{}, nil
	}

	classifier := routing.NewIntentClassifier(svc, routing.WithRegistry(reg))
	registry := tools.NewRegistry()
	invoker := tools.NewInvoker(registry)
	executor := agents.NewReActExecutor(svc, registry, invoker)
	critic, err := agents.NewCriticEvaluator(svc, nil)
	require.NoError(t, err)
	controller := agents.NewRefinementController(executor, critic, invoker, svc)
	manager := session.NewManager(nil)
	defer manager.Shutdown(context.Background())

	o = New(classifier, agents.NewAgentRegistry(agents.NewPlanner(), controller, nil), manager, svc)

	_, err = o.Process(context.Background(), "sess-bad", "帮我占卜一下官司输赢", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no plan registered")
}

func TestProcessCallbackErrorsAreAdvisory(t *testing.T) {
	o, _ := newPipeline(t, scriptedSvc())

	cb := func(string, any) error { return fmt.Errorf("listener gone") }
	result, err := o.Process(context.Background(), "sess-cb", "公司要裁员，我应该得到多少赔偿？", cb)
	require.NoError(t, err)
	assert.NotEmpty(t, result.FinalAnswer)
}
