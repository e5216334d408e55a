package legal

import "strings"

// ParseDomain converts a free-form domain label (model output or config
// value) into a Domain. Labels are matched case-insensitively with
// spaces and hyphens treated as underscores. Unrecognized labels return
// (DomainNonLegal, false).
func ParseDomain(s string) (Domain, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	switch normalized {
	case "labor_law", "labor", "labour_law":
		return DomainLabor, true
	case "family_law", "family":
		return DomainFamily, true
	case "contract_law", "contract":
		return DomainContract, true
	case "corporate_law", "corporate", "company_law":
		return DomainCorporate, true
	case "criminal_law", "criminal":
		return DomainCriminal, true
	case "procedural_query", "procedural", "procedural_law", "procedure":
		return DomainProcedural, true
	case "non_legal", "nonlegal", "none":
		return DomainNonLegal, true
	}
	return DomainNonLegal, false
}

// ParseIntent converts a free-form intent label into an Intent.
// Unrecognized labels return (IntentQARetrieval, false): retrieval is
// the safest task to run when the model's label is garbage.
func ParseIntent(s string) (Intent, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	switch normalized {
	case "qa_retrieval", "qa", "retrieval":
		return IntentQARetrieval, true
	case "case_analysis", "analysis":
		return IntentCaseAnalysis, true
	case "doc_drafting", "drafting", "document_drafting":
		return IntentDocDrafting, true
	case "calculation", "calc":
		return IntentCalculation, true
	case "review_contract", "contract_review":
		return IntentReviewContract, true
	case "clarification", "clarify":
		return IntentClarification, true
	}
	return IntentQARetrieval, false
}

// fuzzyDomainHints maps substrings that may appear in a model's
// domain label (English or Chinese) to a Domain. Checked in order.
var fuzzyDomainHints = []struct {
	domain Domain
	hints  []string
}{
	{DomainLabor, []string{"labor", "劳动", "工资", "裁员", "试用期", "加班"}},
	{DomainFamily, []string{"family", "婚姻", "家事", "离婚", "抚养", "继承"}},
	{DomainContract, []string{"contract", "合同", "违约"}},
	{DomainCorporate, []string{"corporate", "公司", "股权", "治理"}},
	{DomainCriminal, []string{"criminal", "刑事", "刑法", "犯罪", "量刑", "处罚", "抢劫", "盗窃", "诈骗", "嫌疑人"}},
	{DomainProcedural, []string{"procedural", "程序", "法院", "起诉", "诉讼", "诉讼费"}},
}

// FuzzyMatchDomain matches a malformed domain label against substring
// hints. Returns DomainNonLegal when nothing matches.
func FuzzyMatchDomain(label string) Domain {
	lower := strings.ToLower(label)
	for _, entry := range fuzzyDomainHints {
		for _, hint := range entry.hints {
			if strings.Contains(lower, hint) {
				return entry.domain
			}
		}
	}
	return DomainNonLegal
}

// domainKeywords maps user-message keywords to a Domain for the loose
// second-chance detection pass. Ordering matters: criminal terms are
// checked before the broader civil categories.
var domainKeywords = []struct {
	domain   Domain
	keywords []string
}{
	{DomainCriminal, []string{"抢", "偷", "盗", "骗", "杀", "伤害", "处罚", "判刑", "量刑", "罪", "嫌疑人", "被告人"}},
	{DomainFamily, []string{"婚姻", "离婚", "结婚", "抚养", "赡养", "继承", "财产分割", "夫妻"}},
	{DomainLabor, []string{"工资", "加班", "裁员", "解雇", "劳动合同", "试用期", "五险一金", "工伤"}},
	{DomainContract, []string{"合同", "协议", "违约", "履行", "解除", "签订"}},
	{DomainCorporate, []string{"公司", "企业", "股东", "股权", "董事会", "法人"}},
	{DomainProcedural, []string{"法院", "起诉", "诉讼", "仲裁", "上诉", "执行", "管辖"}},
}

// DetectDomainByKeyword scans the raw user message for domain keywords.
// This is the loosest matching tier: it fires on any single keyword hit
// and is used to override a non_legal verdict when the message plainly
// concerns a legal topic. Returns DomainNonLegal when nothing matches.
func DetectDomainByKeyword(message string) Domain {
	lower := strings.ToLower(message)
	for _, entry := range domainKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.domain
			}
		}
	}

	// A bare "法" strongly suggests a legal question even without a
	// category keyword. Try narrower cues before giving up.
	if strings.Contains(message, "法") {
		switch {
		case strings.Contains(message, "婚姻") || strings.Contains(message, "离婚"):
			return DomainFamily
		case strings.Contains(message, "刑") || strings.Contains(message, "犯罪"):
			return DomainCriminal
		case strings.Contains(message, "劳动"):
			return DomainLabor
		case strings.Contains(message, "合同"):
			return DomainContract
		case strings.Contains(message, "公司"):
			return DomainCorporate
		default:
			return DomainFamily
		}
	}

	return DomainNonLegal
}

// LooksLegal reports whether the message carries any obvious legal
// marker, used to veto a non_legal classification.
func LooksLegal(message string) bool {
	for _, kw := range []string{"法", "法律", "婚姻", "离婚", "合同", "劳动", "公司", "刑事", "犯罪", "法院", "诉讼"} {
		if strings.Contains(message, kw) {
			return true
		}
	}
	return false
}
