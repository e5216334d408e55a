// Package knowledge provides the built-in legal corpus and keyword
// retriever behind the law_search tool. Queries are scored by keyword
// overlap; an external vector backend can replace this by implementing
// tools.KnowledgeRetriever.
package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hrygo/lexisense/ai/agents/tools"
)

// Document is one indexed statute article or case passage.
type Document struct {
	Source   string   // statute or case collection title
	Article  string   // article number, empty for case passages
	Content  string
	Keywords []string // index terms beyond the content text
}

// Retriever is a keyword-overlap retriever over an in-memory corpus.
// Safe for concurrent use.
type Retriever struct {
	mu   sync.RWMutex
	docs []Document
}

// NewRetriever creates a retriever seeded with the built-in corpus.
func NewRetriever() *Retriever {
	r := &Retriever{}
	r.Add(builtinCorpus...)
	return r
}

// Add indexes additional documents.
func (r *Retriever) Add(docs ...Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, docs...)
}

// Len reports the corpus size.
func (r *Retriever) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Search ranks documents by query-term overlap and returns the topK
// hits. A document with no matching term is never returned.
func (r *Retriever) Search(_ context.Context, query string, topK int) ([]tools.Passage, error) {
	if topK <= 0 {
		topK = 5
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	passages := make([]tools.Passage, 0, topK)
	for _, doc := range r.docs {
		score := doc.score(terms)
		if score <= 0 {
			continue
		}
		passages = append(passages, tools.Passage{
			Source:  doc.Source,
			Article: doc.Article,
			Content: doc.Content,
			Score:   score,
		})
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
	if len(passages) > topK {
		passages = passages[:topK]
	}
	return passages, nil
}

func (d Document) score(terms []string) float64 {
	haystack := d.Source + " " + d.Article + " " + d.Content + " " + strings.Join(d.Keywords, " ")
	matched := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return float64(matched) / float64(len(terms))
}

// tokenize splits a query on whitespace and common punctuation.
// Chinese legal queries arrive as space-joined concept keywords
// ("经济补偿金 裁员 规定"), so term-level splitting is enough.
func tokenize(query string) []string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', ',', '，', '、', '。', '？', '?', '：', ':':
			return true
		}
		return false
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

var _ tools.KnowledgeRetriever = (*Retriever)(nil)
