package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/lexisense/ai/legal"
)

type stubRetriever struct {
	passages []Passage
	err      error
	lastQ    string
}

func (s *stubRetriever) Search(_ context.Context, query string, _ int) ([]Passage, error) {
	s.lastQ = query
	return s.passages, s.err
}

func TestLawSearchTool(t *testing.T) {
	retriever := &stubRetriever{passages: []Passage{
		{Source: "《中华人民共和国劳动合同法》", Article: "第四十七条", Content: "经济补偿按劳动者在本单位工作的年限，每满一年支付一个月工资的标准向劳动者支付。", Score: 0.92},
	}}
	tool := NewLawSearchTool(retriever)

	out, err := tool.Run(context.Background(), `{"query":"经济补偿金 裁员 规定"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "第四十七条")
	assert.Equal(t, "经济补偿金 裁员 规定", retriever.lastQ)
}

func TestLawSearchToolEmptyQuery(t *testing.T) {
	tool := NewLawSearchTool(&stubRetriever{})
	_, err := tool.Run(context.Background(), `{"query":"  "}`)
	assert.Error(t, err)
}

func TestLawSearchToolNoHits(t *testing.T) {
	tool := NewLawSearchTool(&stubRetriever{})
	out, err := tool.Run(context.Background(), `{"query":"玄学"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "No relevant")
}

func TestExtractEntities(t *testing.T) {
	entities := ExtractEntities("我2023-05-01入职，月薪8000元，2024年3月被裁员，想了解劳动合同法的规定")

	kinds := make(map[legal.EntityKind][]string)
	for _, e := range entities {
		kinds[e.Kind] = append(kinds[e.Kind], e.Value)
	}

	assert.Contains(t, kinds[legal.EntityDate], "2023-05-01")
	assert.Contains(t, kinds[legal.EntityDate], "2024年3月")
	assert.Contains(t, kinds[legal.EntityAmount], "8000元")
	assert.Contains(t, kinds[legal.EntityLawRef], "法")

	for _, e := range entities {
		assert.InDelta(t, 0.6, e.Confidence, 1e-9)
	}
}

func TestExtractParamsTool(t *testing.T) {
	tool := NewExtractParamsTool()
	out, err := tool.Run(context.Background(), `{"text":"月薪8000元，工作3年"}`)
	require.NoError(t, err)

	var entities []legal.Entity
	require.NoError(t, json.Unmarshal([]byte(out), &entities))
	require.NotEmpty(t, entities)
}

func TestExtractParamsToolNothingFound(t *testing.T) {
	tool := NewExtractParamsTool()
	out, err := tool.Run(context.Background(), `{"text":"你好"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "No parameters")
}

func TestCalculatorTool(t *testing.T) {
	tool := NewCalculatorTool()

	out, err := tool.Run(context.Background(),
		`{"expression":"monthly_salary * years_of_service","variables":{"monthly_salary":8000,"years_of_service":3}}`)
	require.NoError(t, err)
	assert.Equal(t, "24000", out)
}

func TestCalculatorToolInvalidExpression(t *testing.T) {
	tool := NewCalculatorTool()
	_, err := tool.Run(context.Background(), `{"expression":"monthly_salary *"}`)
	assert.Error(t, err)
}

func TestCalculatorToolUnknownVariable(t *testing.T) {
	tool := NewCalculatorTool()
	_, err := tool.Run(context.Background(), `{"expression":"undeclared + 1.0"}`)
	assert.Error(t, err)
}

func TestDatetimeTool(t *testing.T) {
	tool := NewDatetimeTool()
	tool.now = func() time.Time {
		return time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	}

	out, err := tool.Run(context.Background(), "{}")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-08-29 10:30:00")
	assert.Contains(t, out, "Friday")
}
