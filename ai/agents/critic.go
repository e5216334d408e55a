package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/hrygo/lexisense/ai/core/llm"
	"github.com/hrygo/lexisense/ai/legal"
)

// EvaluationResult is one critic verdict. Produced once per pass,
// never mutated afterward.
type EvaluationResult struct {
	Acceptable bool
	Feedback   string
}

var (
	statuteTitleRe   = regexp.MustCompile(`《[^》]+》`)
	statuteArticleRe = regexp.MustCompile(`第[一二三四五六七八九十百千零〇0-9]+条`)
	structureMarkRe  = regexp.MustCompile(`(?m)^\s*(?:\d+[.、）)]|[一二三四五六]、|[-*•]\s)`)
)

var hedgingPhrases = []string{"可能", "大概", "或许", "也许", "应该是", "不太确定", "似乎"}

// criterion is one fixed acceptance rule: a compiled CEL predicate
// over the answer's extracted features, plus the feedback returned
// when the predicate fails.
type criterion struct {
	name     string
	program  cel.Program
	feedback string
}

// criterionSpec declares a rule before compilation.
type criterionSpec struct {
	name     string
	expr     string
	feedback string
}

// The fixed criteria set. Expressions see the feature variables bound
// in answerFeatures. Hedging is tolerated up to twice: legal answers
// legitimately flag genuine uncertainty, unfounded hedging is the
// pattern of leaning on it everywhere.
var criteriaSpecs = []criterionSpec{
	{
		name:     "citation",
		expr:     "has_citation",
		feedback: "缺少具体法条引用，必须引用法律名称和条文编号（如《民法典》第一千零七十九条）",
	},
	{
		name:     "hedging",
		expr:     "hedging_count <= 2",
		feedback: "使用了过多不确定表述（可能、大概、或许等），应改为肯定、明确的法律意见",
	},
	{
		name:     "structured_analysis",
		expr:     "!analytical || has_structure",
		feedback: "缺少分点分析结构，请使用 1. 2. 3. 或 首先、其次 的结构化格式",
	},
	{
		name:     "completeness",
		expr:     "answer_chars >= 50",
		feedback: "回答过于简略，未覆盖问题的必要方面",
	},
	{
		name:     "formatting",
		expr:     "markup_ok",
		feedback: "回答格式有误（未闭合的代码块或无法渲染的标记），请修正格式",
	},
}

const criticSystemPrompt = `你是法律回答质量评估器。对照以下硬性标准严格评估：
1. 必须引用具体法条（法律名称+条文编号）
2. 不得使用无依据的不确定表述
3. 分析类回答必须分点论述
4. 必须覆盖用户问题的全部要点（完整性）
5. 格式规范

只返回JSON：{"is_acceptable": true/false, "feedback": "不通过时指出违反了哪条标准及修改指令"}`

// CriticEvaluator judges a candidate answer against the fixed
// acceptance criteria. Rule criteria run first and are fully
// deterministic; a zero-temperature model pass then covers the
// completeness judgment rules cannot make. A model fault fails open:
// a transient evaluator outage must never block a response.
type CriticEvaluator struct {
	llm      llm.Service
	criteria []criterion
	markdown goldmark.Markdown
	logger   *slog.Logger
}

// NewCriticEvaluator compiles the criteria set. Compilation errors are
// programming errors and surface immediately.
func NewCriticEvaluator(service llm.Service, logger *slog.Logger) (*CriticEvaluator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	env, err := cel.NewEnv(
		cel.Variable("has_citation", cel.BoolType),
		cel.Variable("hedging_count", cel.IntType),
		cel.Variable("has_structure", cel.BoolType),
		cel.Variable("answer_chars", cel.IntType),
		cel.Variable("markup_ok", cel.BoolType),
		cel.Variable("analytical", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("critic: build CEL env: %w", err)
	}

	criteria := make([]criterion, 0, len(criteriaSpecs))
	for _, spec := range criteriaSpecs {
		ast, issues := env.Compile(spec.expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("critic: compile criterion %s: %w", spec.name, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("critic: program criterion %s: %w", spec.name, err)
		}
		criteria = append(criteria, criterion{name: spec.name, program: prg, feedback: spec.feedback})
	}

	return &CriticEvaluator{
		llm:      service,
		criteria: criteria,
		markdown: goldmark.New(),
		logger:   logger,
	}, nil
}

// Evaluate judges a candidate answer. Same request/answer pair yields
// the same verdict: rules are pure and the model pass runs at
// temperature zero.
func (c *CriticEvaluator) Evaluate(ctx context.Context, request, answer string, intent legal.Intent) EvaluationResult {
	features := c.answerFeatures(answer, intent)

	for _, crit := range c.criteria {
		out, _, err := crit.program.Eval(features)
		if err != nil {
			c.logger.Warn("critic: criterion evaluation error, skipping",
				"criterion", crit.name, "error", err)
			continue
		}
		passed, ok := out.Value().(bool)
		if ok && !passed {
			c.logger.Info("critic: criterion failed", "criterion", crit.name)
			return EvaluationResult{
				Acceptable: false,
				Feedback:   fmt.Sprintf("[%s] %s", crit.name, crit.feedback),
			}
		}
	}

	return c.modelVerdict(ctx, request, answer)
}

// answerFeatures extracts the deterministic features the criteria
// evaluate. Structure and formatting come from the rendered markdown
// tree, not just surface text.
func (c *CriticEvaluator) answerFeatures(answer string, intent legal.Intent) map[string]any {
	hedging := 0
	for _, phrase := range hedgingPhrases {
		hedging += strings.Count(answer, phrase)
	}

	hasStructure := structureMarkRe.MatchString(answer) ||
		strings.Contains(answer, "首先") || strings.Contains(answer, "其次")

	markupOK := strings.Count(answer, "```")%2 == 0
	if markupOK {
		doc := c.markdown.Parser().Parse(gmtext.NewReader([]byte(answer)))
		_ = gmast.Walk(doc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
			if !entering {
				return gmast.WalkContinue, nil
			}
			switch n.Kind() {
			case gmast.KindList, gmast.KindHeading:
				hasStructure = true
			}
			return gmast.WalkContinue, nil
		})
		if err := c.markdown.Convert([]byte(answer), io.Discard); err != nil {
			markupOK = false
		}
	}

	analytical := intent == legal.IntentCaseAnalysis || intent == legal.IntentReviewContract

	return map[string]any{
		"has_citation":  statuteTitleRe.MatchString(answer) || statuteArticleRe.MatchString(answer),
		"hedging_count": hedging,
		"has_structure": hasStructure,
		"answer_chars":  len([]rune(answer)),
		"markup_ok":     markupOK,
		"analytical":    analytical,
	}
}

// modelVerdict is the completeness pass. Fails open on any fault.
func (c *CriticEvaluator) modelVerdict(ctx context.Context, request, answer string) EvaluationResult {
	truncated := answer
	if runes := []rune(answer); len(runes) > 2000 {
		truncated = string(runes[:2000])
	}
	prompt := fmt.Sprintf("用户问题：%s\n当前回答：\n%s\n\n请严格按照硬性标准评估这个回答。", request, truncated)

	content, _, err := c.llm.ChatDeterministic(ctx, []llm.Message{
		llm.SystemPrompt(criticSystemPrompt),
		llm.UserMessage(prompt),
	})
	if err != nil {
		c.logger.Warn("critic: model verdict failed, failing open", "error", err)
		return EvaluationResult{Acceptable: true, Feedback: "评估失败，默认通过"}
	}

	raw, err := extractCriticJSON(content)
	if err != nil {
		c.logger.Warn("critic: unparseable verdict, failing open", "error", err)
		return EvaluationResult{Acceptable: true, Feedback: "评估失败，默认通过"}
	}

	var verdict struct {
		IsAcceptable bool   `json:"is_acceptable"`
		Feedback     string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		c.logger.Warn("critic: verdict JSON parse failed, failing open", "error", err)
		return EvaluationResult{Acceptable: true, Feedback: "评估失败，默认通过"}
	}

	if verdict.Feedback == "" {
		verdict.Feedback = "可以返回"
	}
	return EvaluationResult{Acceptable: verdict.IsAcceptable, Feedback: verdict.Feedback}
}

var (
	criticFencedRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	criticBareRe   = regexp.MustCompile(`(?s)\{.*\}`)
)

func extractCriticJSON(content string) (string, error) {
	content = strings.TrimSpace(content)
	if m := criticFencedRe.FindStringSubmatch(content); m != nil {
		return m[1], nil
	}
	if m := criticBareRe.FindString(content); m != "" {
		return m, nil
	}
	return "", fmt.Errorf("no JSON object in verdict: %.80s", content)
}
