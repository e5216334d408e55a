package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/hrygo/lexisense/ai/agents/tools"
	"github.com/hrygo/lexisense/ai/core/llm"
	"github.com/hrygo/lexisense/ai/legal"
)

const classifySystemPrompt = `你是法律咨询系统的意图识别模块。分析用户问题，识别法律领域和意图，并提取关键实体。

法律领域（domain）取值：
- Labor_Law：劳动法（裁员、工资、劳动合同、试用期、工伤）
- Family_Law：婚姻家事（离婚、抚养、继承、财产分割）
- Contract_Law：合同法（违约、履行、签订）
- Corporate_Law：公司法（股权、治理、设立）
- Criminal_Law：刑法（犯罪、量刑、处罚）
- Procedural_Query：程序性问题（法院管辖、诉讼费、流程）
- Non_Legal：与法律无关的问题

意图（intent）取值：
- QA_Retrieval：查询法律法规、法条、类似案例
- Case_Analysis：案情分析（用户描述了一个故事）
- Doc_Drafting：起草文书（合同、起诉状、律师函）
- Calculation：计算赔偿金、刑期、诉讼费
- Review_Contract：审查合同风险
- Clarification：信息严重不足，需要反问用户

实体（entities）：从问题中提取人名(person)、金额(amount)、时间(date)、地点(location)。

只返回JSON，格式：
{"domain": "...", "intent": "...", "entities": [{"kind": "...", "value": "...", "text": "..."}]}`

var (
	fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	bareJSONRe   = regexp.MustCompile(`(?s)\{.*\}`)
)

// Classification is the result of one classify pass.
type Classification struct {
	Domain   legal.Domain
	Intent   legal.Intent
	Entities []legal.Entity
}

// IntentClassifier maps raw input plus history to (domain, intent,
// entities). The model does the heavy lifting; a fuzzy-label matcher,
// a keyword detector, and the rule registry back it up in that order.
// A total classification failure degrades to the configured default
// pair rather than an error, so the pipeline never stalls here.
type IntentClassifier struct {
	llm      llm.Service
	registry *IntentRegistry
	logger   *slog.Logger

	fallbackDomain legal.Domain
	fallbackIntent legal.Intent

	historyWindow int
}

// ClassifierOption configures an IntentClassifier.
type ClassifierOption func(*IntentClassifier)

// WithFallback overrides the default (labor_law, qa_retrieval) pair
// substituted on classification failure.
func WithFallback(domain legal.Domain, intent legal.Intent) ClassifierOption {
	return func(c *IntentClassifier) {
		if domain != "" {
			c.fallbackDomain = domain
		}
		if intent != "" {
			c.fallbackIntent = intent
		}
	}
}

// WithRegistry overrides the default rule registry.
func WithRegistry(registry *IntentRegistry) ClassifierOption {
	return func(c *IntentClassifier) {
		if registry != nil {
			c.registry = registry
		}
	}
}

// WithClassifierLogger overrides the default logger.
func WithClassifierLogger(logger *slog.Logger) ClassifierOption {
	return func(c *IntentClassifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewIntentClassifier creates a classifier over the given LLM service.
func NewIntentClassifier(service llm.Service, opts ...ClassifierOption) *IntentClassifier {
	c := &IntentClassifier{
		llm:            service,
		registry:       DefaultRegistry(),
		logger:         slog.Default(),
		fallbackDomain: legal.DomainLabor,
		fallbackIntent: legal.IntentQARetrieval,
		historyWindow:  5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify determines the (domain, intent) of a message and extracts
// entities. History provides disambiguation context; may be empty.
// Never returns an error: inference faults fall back to rule-based
// detection and finally to the configured default pair.
func (c *IntentClassifier) Classify(ctx context.Context, message string, history []llm.Message) Classification {
	result, err := c.classifyWithModel(ctx, message, history)
	if err != nil {
		c.logger.Warn("classify: model classification failed, using rule fallback",
			"error", err)
		result = c.classifyByRules(message)
	}

	// The model sometimes labels plainly legal questions non_legal.
	// Keyword evidence in the raw message overrides that verdict.
	if result.Domain == legal.DomainNonLegal {
		if kwDomain := legal.DetectDomainByKeyword(message); kwDomain.IsLegal() {
			c.logger.Debug("classify: non_legal overridden by keyword evidence",
				"domain", kwDomain)
			result.Domain = kwDomain
		} else if legal.LooksLegal(message) {
			result.Domain = c.fallbackDomain
		}
	}

	// Rule-extracted entities union with whatever the model found.
	result.Entities = append(result.Entities, tools.ExtractEntities(message)...)

	c.logger.Info("classify: resolved",
		"domain", result.Domain,
		"intent", result.Intent,
		"entities", len(result.Entities))
	return result
}

func (c *IntentClassifier) classifyWithModel(ctx context.Context, message string, history []llm.Message) (Classification, error) {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("对话历史：\n")
		start := len(history) - c.historyWindow
		if start < 0 {
			start = 0
		}
		for _, msg := range history[start:] {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "当前用户问题：%s\n\n请识别法律领域和意图，返回JSON格式结果。", message)

	content, _, err := c.llm.ChatDeterministic(ctx, []llm.Message{
		llm.SystemPrompt(classifySystemPrompt),
		llm.UserMessage(b.String()),
	})
	if err != nil {
		return Classification{}, fmt.Errorf("classification inference: %w", err)
	}

	raw, err := extractJSON(content)
	if err != nil {
		return Classification{}, err
	}

	var payload struct {
		Domain   string `json:"domain"`
		Intent   string `json:"intent"`
		Entities []struct {
			Kind  string `json:"kind"`
			Value string `json:"value"`
			Text  string `json:"text"`
		} `json:"entities"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Classification{}, fmt.Errorf("parse classification JSON: %w", err)
	}

	domain, ok := legal.ParseDomain(payload.Domain)
	if !ok {
		// Malformed label: try fuzzy hints on the label, then the
		// message keywords.
		domain = legal.FuzzyMatchDomain(payload.Domain)
		if domain == legal.DomainNonLegal {
			domain = legal.DetectDomainByKeyword(message)
		}
	}

	intent, ok := legal.ParseIntent(payload.Intent)
	if !ok {
		if matched, _, found := c.registry.Match(message); found {
			intent = matched
		}
	}

	const modelConfidence = 0.8
	entities := make([]legal.Entity, 0, len(payload.Entities))
	for _, e := range payload.Entities {
		if e.Value == "" {
			continue
		}
		entities = append(entities, legal.Entity{
			Kind:       legal.EntityKind(e.Kind),
			Value:      e.Value,
			Text:       e.Text,
			Confidence: modelConfidence,
		})
	}

	return Classification{Domain: domain, Intent: intent, Entities: entities}, nil
}

// classifyByRules is the no-model tier: keyword domain detection plus
// registry intent matching, degrading to the configured defaults.
func (c *IntentClassifier) classifyByRules(message string) Classification {
	domain := legal.DetectDomainByKeyword(message)
	if !domain.IsLegal() {
		if legal.LooksLegal(message) {
			domain = c.fallbackDomain
		} else if fuzzy := legal.FuzzyMatchDomain(message); fuzzy.IsLegal() {
			domain = fuzzy
		} else {
			domain = c.fallbackDomain
		}
	}

	intent := c.fallbackIntent
	if matched, _, found := c.registry.Match(message); found {
		intent = matched
	}

	return Classification{Domain: domain, Intent: intent}
}

// extractJSON pulls the first JSON object out of a model response,
// tolerating code fences and surrounding prose.
func extractJSON(content string) (string, error) {
	content = strings.TrimSpace(content)
	if m := fencedJSONRe.FindStringSubmatch(content); m != nil {
		return m[1], nil
	}
	if m := bareJSONRe.FindString(content); m != "" {
		return m, nil
	}
	return "", fmt.Errorf("no JSON object in response: %.80s", content)
}
