// Package legal defines the core classification vocabulary shared by the
// routing, planning, and execution layers: domains, intents, extracted
// entities, and the composite key used to pool specialist agents.
package legal

import "fmt"

// Domain is the subject-matter category of a request.
// Immutable once assigned for a turn.
type Domain string

const (
	DomainLabor      Domain = "labor_law"
	DomainFamily     Domain = "family_law"
	DomainContract   Domain = "contract_law"
	DomainCorporate  Domain = "corporate_law"
	DomainCriminal   Domain = "criminal_law"
	DomainProcedural Domain = "procedural_query"
	DomainNonLegal   Domain = "non_legal"
)

// Intent is the task-type classification within a domain.
// Immutable once assigned for a turn.
type Intent string

const (
	IntentQARetrieval    Intent = "qa_retrieval"
	IntentCaseAnalysis   Intent = "case_analysis"
	IntentDocDrafting    Intent = "doc_drafting"
	IntentCalculation    Intent = "calculation"
	IntentReviewContract Intent = "review_contract"
	IntentClarification  Intent = "clarification"
)

// Domains lists every legal domain, non_legal excluded.
func Domains() []Domain {
	return []Domain{
		DomainLabor, DomainFamily, DomainContract,
		DomainCorporate, DomainCriminal, DomainProcedural,
	}
}

// Intents lists every recognized intent.
func Intents() []Intent {
	return []Intent{
		IntentQARetrieval, IntentCaseAnalysis, IntentDocDrafting,
		IntentCalculation, IntentReviewContract, IntentClarification,
	}
}

// IsLegal reports whether the domain requires a specialist agent.
func (d Domain) IsLegal() bool {
	return d != DomainNonLegal && d != ""
}

// Description returns the expertise blurb injected into a specialist
// agent's system prompt.
func (d Domain) Description() string {
	switch d {
	case DomainLabor:
		return "劳动法专家，擅长处理裁员、工资、劳动合同等劳动法相关问题"
	case DomainFamily:
		return "婚姻家事法专家，擅长处理离婚、抚养权、财产分割等婚姻家事相关问题"
	case DomainContract:
		return "合同法专家，擅长处理合同纠纷、合同审查等合同法相关问题"
	case DomainCorporate:
		return "公司法专家，擅长处理公司治理、股权纠纷等公司法相关问题"
	case DomainCriminal:
		return "刑法专家，擅长处理刑事案件、量刑等刑法相关问题"
	case DomainProcedural:
		return "程序法专家，擅长处理诉讼程序、法院管辖、诉讼费等程序性问题"
	default:
		return "法律专家"
	}
}

// Description returns the task blurb for an intent.
func (i Intent) Description() string {
	switch i {
	case IntentQARetrieval:
		return "法律法规、法条、类似案例查询"
	case IntentCaseAnalysis:
		return "案情分析（用户描述了一个故事）"
	case IntentDocDrafting:
		return "起草文书（合同、起诉状、律师函）"
	case IntentCalculation:
		return "计算赔偿金、刑期、诉讼费"
	case IntentReviewContract:
		return "审查合同风险"
	case IntentClarification:
		return "信息不足，需要反问"
	default:
		return "处理法律任务"
	}
}

// AgentKey identifies a pooled specialist agent within a session.
// Two requests with the same key resolve to the same agent instance
// for the session's lifetime.
type AgentKey struct {
	Domain Domain
	Intent Intent
}

func (k AgentKey) String() string {
	return fmt.Sprintf("%s_%s", k.Domain, k.Intent)
}

// EntityKind classifies an extracted fact.
type EntityKind string

const (
	EntityPerson   EntityKind = "person"
	EntityAmount   EntityKind = "amount"
	EntityDate     EntityKind = "date"
	EntityLocation EntityKind = "location"
	EntityNumber   EntityKind = "number"
	EntityLawRef   EntityKind = "law_ref"
)

// Entity is a typed fact extracted from user text. Entities accumulate
// per session, deduplicated by kind+value.
type Entity struct {
	Kind       EntityKind `json:"kind"`
	Value      string     `json:"value"`
	Text       string     `json:"text,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
}

// Key returns the dedup key for entity merging.
func (e Entity) Key() string {
	return string(e.Kind) + ":" + e.Value
}
