package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Passage is one ranked retrieval hit from the legal knowledge base.
type Passage struct {
	Source  string  `json:"source"`            // e.g. 《中华人民共和国劳动合同法》
	Article string  `json:"article,omitempty"` // e.g. 第四十七条
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// KnowledgeRetriever searches the legal corpus. Implemented by the
// RAG backend; the orchestration core only needs this contract.
type KnowledgeRetriever interface {
	Search(ctx context.Context, query string, topK int) ([]Passage, error)
}

// LawSearchToolName is referenced by the refinement loop to re-invoke
// retrieval directly.
const LawSearchToolName = "law_search"

const defaultSearchTopK = 5

// LawSearchTool retrieves statutes, regulations, and case passages
// relevant to a query.
type LawSearchTool struct {
	retriever KnowledgeRetriever
	topK      int
}

// NewLawSearchTool creates a law search tool over the given retriever.
func NewLawSearchTool(retriever KnowledgeRetriever) *LawSearchTool {
	return &LawSearchTool{retriever: retriever, topK: defaultSearchTopK}
}

func (t *LawSearchTool) Name() string { return LawSearchToolName }

func (t *LawSearchTool) Description() string {
	return `Search statutes, regulations, and similar cases.

USAGE: Build the query as legal concept + scenario keywords, e.g.
"经济补偿金 裁员 劳动合同法 规定".

Input: {"query": "..."}
Output: ranked passages with source and article number.`
}

func (t *LawSearchTool) InputType() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "description": "法律概念 + 场景关键词"},
		},
		"required": []string{"query"},
	}
}

func (t *LawSearchTool) Run(ctx context.Context, inputJSON string) (string, error) {
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if strings.TrimSpace(input.Query) == "" {
		return "", fmt.Errorf("query is required")
	}

	passages, err := t.retriever.Search(ctx, input.Query, t.topK)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}

	if len(passages) == 0 {
		return "No relevant statutes or cases found.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d passage(s):\n", len(passages))
	for i, p := range passages {
		fmt.Fprintf(&b, "%d. %s", i+1, p.Source)
		if p.Article != "" {
			fmt.Fprintf(&b, " %s", p.Article)
		}
		fmt.Fprintf(&b, ": %s\n", p.Content)
	}
	return b.String(), nil
}
