// Package agents contains the execution core: the intent planner, the
// think/act/observe executor, the critic gate, the refinement loop,
// and the per-session specialist registry that ties them together.
package agents

import (
	"fmt"
	"strings"

	"github.com/hrygo/lexisense/ai/legal"
)

// Plan is the ordered procedural guidance seeding one execution.
// Immutable once built; steps are contextual instructions for the
// model, not literal code.
type Plan struct {
	Intent legal.Intent
	Steps  []string
}

// Prompt renders the plan as system-prompt guidance.
func (p Plan) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "执行计划（%s）：\n", p.Intent.Description())
	for i, step := range p.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	return b.String()
}

// intentPlans maps each intent to its standard operating procedure.
// Every plan has 2-6 steps.
var intentPlans = map[legal.Intent][]string{
	legal.IntentQARetrieval: {
		"【案情分析与关键词提取】详细分析用户描述，提取核心事实、法律诉求以及关键实体（人名、金额、时间）",
		"【关键词生成】生成3-5个准确的法律专业术语或法条名称",
		"【法条检索】使用law_search搜索生成的关键词（如\"民法典 离婚 赔偿\"），寻找精确的法律条文",
		"【总结回答】结合案情和检索到的法条，生成专业回答",
		"【自我检查】检查是否引用了具体法条，如果没有，重新检索",
	},
	legal.IntentCaseAnalysis: {
		"【事实梳理与实体提取】分析用户描述，梳理时间线，提取关键实体（人名、金额、时间、地点）",
		"【法律定性】判断属于什么法律关系",
		"【缺口分析】识别缺失的关键信息，如果严重缺失，生成澄清问题",
		"【检索验证】针对争议焦点，使用law_search搜索相关法条和类案",
		"【综合分析】结合法条和事实，输出法律分析报告",
	},
	legal.IntentDocDrafting: {
		"识别文书类型",
		"使用extract_params提取所需字段",
		"检查必填字段是否完整",
		"如果缺失，生成澄清问题",
		"使用模板生成文书",
	},
	legal.IntentCalculation: {
		"识别计算类型",
		"使用extract_params提取计算参数",
		"检查必需参数",
		"构建计算公式",
		"使用calculator执行计算",
		"结合法律依据格式化结果",
	},
	legal.IntentReviewContract: {
		"提取合同文本",
		"解析合同结构",
		"识别风险点，必要时使用law_search核对强制性规定",
		"生成审查报告",
	},
	legal.IntentClarification: {
		"识别缺失信息",
		"生成友好的澄清问题",
	},
}

// Planner converts an intent into its standard operating procedure.
// Pure given fixed configuration: deterministic, no side effects.
type Planner struct{}

// NewPlanner creates a Planner.
func NewPlanner() *Planner { return &Planner{} }

// BuildPlan returns the plan for an intent. An unrecognized intent is
// a missing mapping, a programming error the caller must surface, not
// retry.
func (p *Planner) BuildPlan(intent legal.Intent) (Plan, error) {
	steps, ok := intentPlans[intent]
	if !ok {
		return Plan{}, fmt.Errorf("planner: no plan registered for intent %q", intent)
	}
	return Plan{Intent: intent, Steps: steps}, nil
}
