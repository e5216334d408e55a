package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/hrygo/lexisense/ai/legal"
)

var (
	isoDateRe = regexp.MustCompile(`\d{4}[-/]\d{1,2}[-/]\d{1,2}`)
	cnDateRe  = regexp.MustCompile(`\d{4}年\d{1,2}月(?:\d{1,2}日)?|\d{1,2}月\d{1,2}日`)
	amountRe  = regexp.MustCompile(`\d+(?:\.\d+)?\s*(?:万元|万|元|块钱|块)`)
	numberRe  = regexp.MustCompile(`\d{2,}(?:\.\d+)?`)
)

// law phrases worth recording verbatim as facts
var lawMarkers = []string{"法", "条例", "规定", "条款", "合同", "协议", "诉讼", "律师", "法院"}

// ExtractEntities pulls typed facts (dates, amounts, numbers, law
// references) out of free text with regex rules. Rule-extracted facts
// carry a moderate fixed confidence so a later model-extracted fact
// for the same key can supersede them.
func ExtractEntities(text string) []legal.Entity {
	const ruleConfidence = 0.6
	var out []legal.Entity
	seen := make(map[string]struct{})

	add := func(e legal.Entity) {
		e.Confidence = ruleConfidence
		if _, dup := seen[e.Key()]; dup {
			return
		}
		seen[e.Key()] = struct{}{}
		out = append(out, e)
	}

	for _, m := range isoDateRe.FindAllString(text, -1) {
		add(legal.Entity{Kind: legal.EntityDate, Value: m, Text: m})
	}
	for _, m := range cnDateRe.FindAllString(text, -1) {
		add(legal.Entity{Kind: legal.EntityDate, Value: m, Text: m})
	}
	for _, m := range amountRe.FindAllString(text, -1) {
		add(legal.Entity{Kind: legal.EntityAmount, Value: strings.TrimSpace(m), Text: m})
	}
	for _, m := range numberRe.FindAllString(text, -1) {
		add(legal.Entity{Kind: legal.EntityNumber, Value: m, Text: m})
	}

	runes := []rune(text)
	for _, marker := range lawMarkers {
		idx := strings.Index(text, marker)
		if idx < 0 {
			continue
		}
		// surrounding phrase, ±10 runes around the marker
		pos := len([]rune(text[:idx]))
		start := pos - 10
		if start < 0 {
			start = 0
		}
		end := pos + 10
		if end > len(runes) {
			end = len(runes)
		}
		add(legal.Entity{Kind: legal.EntityLawRef, Value: marker, Text: string(runes[start:end])})
	}

	return out
}

// ExtractParamsTool extracts structured parameters (dates, amounts,
// numbers, law references) from case text so downstream calculation
// and drafting steps receive typed inputs.
type ExtractParamsTool struct{}

// NewExtractParamsTool creates the parameter extraction tool.
func NewExtractParamsTool() *ExtractParamsTool { return &ExtractParamsTool{} }

func (t *ExtractParamsTool) Name() string { return "extract_params" }

func (t *ExtractParamsTool) Description() string {
	return `Extract structured parameters from case text: dates, monetary
amounts, bare numbers (years of service, headcount), and legal references.

Input: {"text": "..."}
Output: JSON list of {kind, value, text} entities.`
}

func (t *ExtractParamsTool) InputType() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"text": map[string]interface{}{"type": "string", "description": "案情描述文本"},
		},
		"required": []string{"text"},
	}
}

func (t *ExtractParamsTool) Run(_ context.Context, inputJSON string) (string, error) {
	var input struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if strings.TrimSpace(input.Text) == "" {
		return "", fmt.Errorf("text is required")
	}

	entities := ExtractEntities(input.Text)
	if len(entities) == 0 {
		return "No parameters found in the text.", nil
	}

	data, err := json.Marshal(entities)
	if err != nil {
		return "", fmt.Errorf("marshal entities: %w", err)
	}
	return string(data), nil
}
