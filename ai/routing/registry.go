// Package routing classifies user requests into (domain, intent) and
// extracts entities. Classification is model-driven with a rule-based
// fallback ladder so a model fault never stalls the pipeline.
package routing

import (
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/hrygo/lexisense/ai/legal"
)

// IntentConfig holds configuration for a single intent type.
type IntentConfig struct {
	Intent   legal.Intent
	Keywords []string         // Keywords for rule-based matching
	Patterns []*regexp.Regexp // Regex patterns for matching
	Priority int              // Higher = checked first
}

// IntentRegistry manages intent configurations for rule-based matching.
// Used as the fallback tier when model classification fails or returns
// an unparseable intent label.
type IntentRegistry struct {
	mu          sync.RWMutex
	configs     map[legal.Intent]IntentConfig
	sortedByPri []IntentConfig // Cache for matching order
}

// NewIntentRegistry creates a new empty registry.
func NewIntentRegistry() *IntentRegistry {
	return &IntentRegistry{
		configs: make(map[legal.Intent]IntentConfig),
	}
}

// Register adds or updates an intent configuration.
func (r *IntentRegistry) Register(cfg IntentConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[cfg.Intent] = cfg
	r.rebuildSortedCache()
}

// rebuildSortedCache rebuilds the priority-sorted config slice.
// Must be called with lock held.
func (r *IntentRegistry) rebuildSortedCache() {
	configs := make([]IntentConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		configs = append(configs, cfg)
	}
	// Sort by priority descending (higher priority first)
	slices.SortFunc(configs, func(a, b IntentConfig) int {
		return b.Priority - a.Priority
	})
	r.sortedByPri = configs
}

// Match performs rule-based intent matching.
// Returns: matched intent, confidence (0-1), whether match was found.
func (r *IntentRegistry) Match(input string) (legal.Intent, float32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lowerInput := strings.ToLower(input)

	for _, cfg := range r.sortedByPri {
		// Check regex patterns first (higher precision)
		for _, pattern := range cfg.Patterns {
			if pattern.MatchString(input) {
				return cfg.Intent, 0.9, true
			}
		}

		// Check keywords
		for _, kw := range cfg.Keywords {
			if strings.Contains(lowerInput, strings.ToLower(kw)) {
				return cfg.Intent, 0.7, true
			}
		}
	}

	return legal.IntentQARetrieval, 0, false
}

// RegisterDefaults registers built-in intent configurations.
func (r *IntentRegistry) RegisterDefaults() {
	r.Register(IntentConfig{
		Intent:   legal.IntentCalculation,
		Keywords: []string{"计算", "多少钱", "多少赔偿", "赔偿金", "补偿金", "诉讼费", "刑期多久", "算一下"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(得到|获得|拿到)多少`),
		},
		Priority: 110, // Amount questions beat plain retrieval
	})
	r.Register(IntentConfig{
		Intent:   legal.IntentDocDrafting,
		Keywords: []string{"起草", "代写", "写一份", "拟一份", "起诉状", "律师函", "合同模板"},
		Priority: 100,
	})
	r.Register(IntentConfig{
		Intent:   legal.IntentReviewContract,
		Keywords: []string{"审查合同", "看看合同", "合同有没有问题", "合同风险", "审核合同"},
		Priority: 100,
	})
	r.Register(IntentConfig{
		Intent:   legal.IntentCaseAnalysis,
		Keywords: []string{"分析", "怎么办", "有没有责任", "能不能胜诉", "我的情况"},
		Priority: 90,
	})
	r.Register(IntentConfig{
		Intent:   legal.IntentQARetrieval,
		Keywords: []string{"规定", "法条", "条文", "是什么", "怎么规定", "查一下"},
		Priority: 50, // Lowest tier, retrieval is the safe default
	})
}

// Global default registry instance
var defaultRegistry = NewIntentRegistry()

func init() {
	defaultRegistry.RegisterDefaults()
}

// DefaultRegistry returns the global default registry.
func DefaultRegistry() *IntentRegistry {
	return defaultRegistry
}
