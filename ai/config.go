// Package ai assembles the consultation pipeline configuration from
// the runtime profile.
package ai

import (
	"errors"
	"time"

	"github.com/hrygo/lexisense/ai/core/llm"
	"github.com/hrygo/lexisense/ai/legal"
	"github.com/hrygo/lexisense/internal/profile"
)

// Config represents the AI pipeline configuration.
type Config struct {
	// LLM is the main inference model used by executors and critics.
	LLM llm.Config

	// Intent is the classification model. Defaults to the main LLM
	// credentials with a lighter model so routing stays cheap.
	Intent llm.Config

	// Orchestration budgets.
	MaxSteps        int
	MaxCriticRounds int
	ToolTimeout     time.Duration

	// Fallback classification applied when inference fails.
	FallbackDomain legal.Domain
	FallbackIntent legal.Intent

	// Session bounds.
	SessionHistorySize int
	SessionIdleTimeout time.Duration

	Enabled bool
}

// NewConfigFromProfile creates the AI config from a validated profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled: p.IsAIEnabled(),
	}
	if !cfg.Enabled {
		return cfg
	}

	cfg.LLM = llm.Config{
		Provider:    p.LLMProvider,
		Model:       p.LLMModel,
		APIKey:      p.LLMAPIKey,
		BaseURL:     p.LLMBaseURL,
		MaxTokens:   2048,
		Temperature: 0.7,
		Timeout:     p.LLMTimeout,
	}

	cfg.Intent = llm.Config{
		Provider:    p.IntentProvider,
		Model:       p.IntentModel,
		APIKey:      p.IntentAPIKey,
		BaseURL:     p.IntentBaseURL,
		MaxTokens:   1024,
		Temperature: 0,
		Timeout:     p.LLMTimeout,
	}

	cfg.MaxSteps = p.MaxSteps
	cfg.MaxCriticRounds = p.MaxCriticRounds
	cfg.ToolTimeout = time.Duration(p.ToolTimeout) * time.Second

	// Unparseable fallback labels degrade to the documented defaults.
	if d, ok := legal.ParseDomain(p.FallbackDomain); ok && d.IsLegal() {
		cfg.FallbackDomain = d
	} else {
		cfg.FallbackDomain = legal.DomainLabor
	}
	if i, ok := legal.ParseIntent(p.FallbackIntent); ok {
		cfg.FallbackIntent = i
	} else {
		cfg.FallbackIntent = legal.IntentQARetrieval
	}

	cfg.SessionHistorySize = p.SessionHistorySize
	cfg.SessionIdleTimeout = time.Duration(p.SessionIdleMinutes) * time.Minute

	return cfg
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.LLM.Provider == "" || c.LLM.Model == "" {
		return errors.New("ai: LLM provider and model are required")
	}
	if c.MaxSteps <= 0 {
		return errors.New("ai: MaxSteps must be positive")
	}
	if c.MaxCriticRounds < 0 {
		return errors.New("ai: MaxCriticRounds must not be negative")
	}
	return nil
}
