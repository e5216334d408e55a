package agents

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/lexisense/ai/core/llm"
	"github.com/hrygo/lexisense/ai/legal"
)

const goodAnswer = `根据《劳动合同法》第四十七条的规定：

1. 经济补偿按劳动者在本单位工作的年限计算，每满一年支付一个月工资。
2. 六个月以上不满一年的，按一年计算；不满六个月的，支付半个月工资的经济补偿。
3. 月工资指劳动者在劳动合同解除前十二个月的平均工资。

您工作三年，月薪八千元，应得经济补偿为两万四千元。`

func acceptingLLM() *mockLLM {
	return &mockLLM{
		chatDeterministicFunc: func(_ context.Context, _ []llm.Message) (string, *llm.LLMCallStats, error) {
			return `{"is_acceptable": true, "feedback": "可以返回"}`, &llm.LLMCallStats{}, nil
		},
	}
}

func newCritic(t *testing.T, svc llm.Service) *CriticEvaluator {
	t.Helper()
	critic, err := NewCriticEvaluator(svc, nil)
	require.NoError(t, err)
	return critic
}

func TestEvaluateAcceptsCompliantAnswer(t *testing.T) {
	critic := newCritic(t, acceptingLLM())

	verdict := critic.Evaluate(context.Background(), "裁员赔偿怎么算？", goodAnswer, legal.IntentCalculation)
	assert.True(t, verdict.Acceptable)
}

func TestEvaluateRejectsMissingCitation(t *testing.T) {
	critic := newCritic(t, acceptingLLM())

	answer := "1. 您有权获得经济补偿。\n2. 补偿按工作年限计算，每满一年支付一个月工资，总计两万四千元左右。"
	verdict := critic.Evaluate(context.Background(), "裁员赔偿怎么算？", answer, legal.IntentCalculation)
	assert.False(t, verdict.Acceptable)
	assert.Contains(t, verdict.Feedback, "法条")
}

func TestEvaluateRejectsExcessiveHedging(t *testing.T) {
	critic := newCritic(t, acceptingLLM())

	answer := "根据《劳动合同法》第四十七条，您可能可以获得补偿，大概是一个月工资，或许更多，也许需要仲裁确认，具体金额可能因地区而异。"
	verdict := critic.Evaluate(context.Background(), "裁员赔偿怎么算？", answer, legal.IntentCalculation)
	assert.False(t, verdict.Acceptable)
	assert.Contains(t, verdict.Feedback, "不确定表述")
}

func TestEvaluateRequiresStructureForAnalyticalIntents(t *testing.T) {
	critic := newCritic(t, acceptingLLM())

	flat := "根据《民法典》第一千零七十九条，夫妻一方要求离婚的可以向人民法院提起离婚诉讼，调解无效的应当准予离婚，您的情形符合感情破裂的认定标准。"

	verdict := critic.Evaluate(context.Background(), "帮我分析这个离婚案件", flat, legal.IntentCaseAnalysis)
	assert.False(t, verdict.Acceptable, "case analysis without structure must fail")
	assert.Contains(t, verdict.Feedback, "分点")

	// The same flat answer is fine for plain retrieval.
	verdict = critic.Evaluate(context.Background(), "离婚诉讼的法律依据是什么", flat, legal.IntentQARetrieval)
	assert.True(t, verdict.Acceptable)
}

func TestEvaluateMarkdownStructureCounts(t *testing.T) {
	critic := newCritic(t, acceptingLLM())

	// Structure via a markdown list, no 1./首先 markers.
	answer := "根据《民法典》第一千零七十九条：\n\n- 感情确已破裂且调解无效的，应当准予离婚\n- 重婚或与他人同居属于法定准予离婚情形\n- 您描述的分居满二年同样符合认定标准"
	verdict := critic.Evaluate(context.Background(), "帮我分析", answer, legal.IntentCaseAnalysis)
	assert.True(t, verdict.Acceptable)
}

func TestEvaluateRejectsTooShortAnswer(t *testing.T) {
	critic := newCritic(t, acceptingLLM())

	verdict := critic.Evaluate(context.Background(), "裁员赔偿怎么算？", "见《劳动合同法》第四十七条。", legal.IntentQARetrieval)
	assert.False(t, verdict.Acceptable)
	assert.Contains(t, verdict.Feedback, "简略")
}

func TestEvaluateRejectsUnbalancedFence(t *testing.T) {
	critic := newCritic(t, acceptingLLM())

	answer := goodAnswer + "\n```\n补偿 = 8000 * 3"
	verdict := critic.Evaluate(context.Background(), "裁员赔偿怎么算？", answer, legal.IntentCalculation)
	assert.False(t, verdict.Acceptable)
	assert.Contains(t, verdict.Feedback, "格式")
}

func TestEvaluateModelVerdictRejects(t *testing.T) {
	svc := &mockLLM{
		chatDeterministicFunc: func(_ context.Context, _ []llm.Message) (string, *llm.LLMCallStats, error) {
			return "```json\n{\"is_acceptable\": false, \"feedback\": \"未说明补偿金的计算基数\"}\n```", &llm.LLMCallStats{}, nil
		},
	}
	critic := newCritic(t, svc)

	verdict := critic.Evaluate(context.Background(), "裁员赔偿怎么算？", goodAnswer, legal.IntentCalculation)
	assert.False(t, verdict.Acceptable)
	assert.Equal(t, "未说明补偿金的计算基数", verdict.Feedback)
}

func TestEvaluateFailsOpenOnInferenceFault(t *testing.T) {
	svc := &mockLLM{
		chatDeterministicFunc: func(_ context.Context, _ []llm.Message) (string, *llm.LLMCallStats, error) {
			return "", nil, fmt.Errorf("provider timeout")
		},
	}
	critic := newCritic(t, svc)

	verdict := critic.Evaluate(context.Background(), "裁员赔偿怎么算？", goodAnswer, legal.IntentCalculation)
	assert.True(t, verdict.Acceptable)
}

func TestEvaluateFailsOpenOnGarbageVerdict(t *testing.T) {
	svc := &mockLLM{
		chatDeterministicFunc: func(_ context.Context, _ []llm.Message) (string, *llm.LLMCallStats, error) {
			return "这个回答还行吧", &llm.LLMCallStats{}, nil
		},
	}
	critic := newCritic(t, svc)

	verdict := critic.Evaluate(context.Background(), "裁员赔偿怎么算？", goodAnswer, legal.IntentCalculation)
	assert.True(t, verdict.Acceptable)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	critic := newCritic(t, acceptingLLM())

	first := critic.Evaluate(context.Background(), "裁员赔偿怎么算？", goodAnswer, legal.IntentCalculation)
	for i := 0; i < 5; i++ {
		again := critic.Evaluate(context.Background(), "裁员赔偿怎么算？", goodAnswer, legal.IntentCalculation)
		assert.Equal(t, first, again)
	}
}
