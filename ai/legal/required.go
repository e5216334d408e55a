package legal

import (
	"fmt"
	"strings"
)

// requirement names one entity kind a (domain, intent) pairing cannot
// proceed without, with the hint shown when it is missing.
type requirement struct {
	Kind EntityKind
	Hint string
}

// requiredFacts lists the entity kinds that must be known before a
// specialty can produce a substantive answer. Pairings not listed
// have no hard requirements.
var requiredFacts = map[AgentKey][]requirement{
	{Domain: DomainFamily, Intent: IntentCaseAnalysis}: {
		{Kind: EntityPerson, Hint: "至少需要知道涉及的人员姓名"},
		{Kind: EntityDate, Hint: "需要知道关键时间点（如结婚时间、分居时间等）"},
	},
	{Domain: DomainLabor, Intent: IntentCalculation}: {
		{Kind: EntityAmount, Hint: "需要知道工资、工龄等金额信息"},
		{Kind: EntityDate, Hint: "需要知道工作时间、离职时间等"},
	},
}

// RequiredFacts returns the entity kinds the pairing needs. An empty
// result means no hard requirements.
func RequiredFacts(key AgentKey) []EntityKind {
	reqs := requiredFacts[key]
	kinds := make([]EntityKind, 0, len(reqs))
	for _, r := range reqs {
		kinds = append(kinds, r.Kind)
	}
	return kinds
}

// MissingFactsQuestion builds a clarification question for the facts
// the pairing still lacks. Returns "" when nothing is missing.
func MissingFactsQuestion(key AgentKey, known []Entity) string {
	reqs := requiredFacts[key]
	if len(reqs) == 0 {
		return ""
	}

	have := make(map[EntityKind]bool, len(known))
	for _, e := range known {
		have[e.Kind] = true
	}

	var missing []string
	for _, r := range reqs {
		if !have[r.Kind] {
			missing = append(missing, r.Hint)
		}
	}
	if len(missing) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("为了更好地帮助您，我需要了解以下信息：\n")
	for i, hint := range missing {
		fmt.Fprintf(&b, "%d. %s\n", i+1, hint)
	}
	b.WriteString("\n请您提供这些信息，谢谢！")
	return b.String()
}
