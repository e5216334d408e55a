package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol)
	// All providers (zai, deepseek, openai, siliconflow, ollama) use the same config
	LLMProvider string // Provider identifier: zai, deepseek, openai, siliconflow, dashscope, openrouter, ollama
	LLMAPIKey   string // Unified LLM API key
	LLMBaseURL  string // Unified LLM base URL (optional, has default per provider)
	LLMModel    string // Model name: glm-4.7, deepseek-chat, gpt-4o, etc.
	LLMTimeout  int    // LLM request timeout in seconds (default: 120)

	// Intent classifier configuration. Uses a lightweight model for fast,
	// cost-effective domain/intent classification.
	IntentProvider string
	IntentModel    string
	IntentAPIKey   string
	IntentBaseURL  string

	// Orchestration budgets
	MaxSteps        int // ReAct loop step budget per task (default: 5)
	MaxCriticRounds int // critic refinement round budget per task (default: 2)
	ToolTimeout     int // per-tool-call timeout in seconds (default: 30)

	// Fallback classification used when the classifier inference fails
	FallbackDomain string // default: labor_law
	FallbackIntent string // default: qa_retrieval

	SessionHistorySize int // bounded conversation history per session (default: 50)
	SessionIdleMinutes int // idle session eviction timeout (default: 30)

	// Server configuration
	Mode        string
	Addr        string
	Port        int
	UNIXSock    string
	Data        string
	Driver      string
	DSN         string
	InstanceURL string
	Version     string
}

// Provider default configurations for LLM.
// Used when LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4.7",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-5.2",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"dashscope": {
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:   "qwen-max-latest",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "deepseek/deepseek-chat",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if the LLM API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != "" || p.LLMProvider == "ollama"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	// Unified LLM configuration
	p.LLMProvider = getEnvOrDefault("LEXISENSE_AI_LLM_PROVIDER", "deepseek")
	p.LLMAPIKey = getEnvOrDefault("LEXISENSE_AI_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("LEXISENSE_AI_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("LEXISENSE_AI_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("LEXISENSE_AI_LLM_TIMEOUT_SECONDS", 120)

	if p.LLMProvider != "" {
		if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
			slog.Warn("Unknown LLM provider, using default: deepseek", "provider", p.LLMProvider)
			p.LLMProvider = "deepseek"
		}
	}
	if p.LLMBaseURL == "" || p.LLMModel == "" {
		if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
			if p.LLMBaseURL == "" {
				p.LLMBaseURL = defaults.BaseURL
			}
			if p.LLMModel == "" {
				p.LLMModel = defaults.Model
			}
		}
	}

	// Intent classifier configuration. Defaults to the main LLM credentials
	// with a lighter model so routing stays cheap.
	p.IntentProvider = getEnvOrDefault("LEXISENSE_AI_INTENT_PROVIDER", p.LLMProvider)
	p.IntentModel = getEnvOrDefault("LEXISENSE_AI_INTENT_MODEL", p.LLMModel)
	p.IntentAPIKey = getEnvOrDefault("LEXISENSE_AI_INTENT_API_KEY", p.LLMAPIKey)
	p.IntentBaseURL = getEnvOrDefault("LEXISENSE_AI_INTENT_BASE_URL", p.LLMBaseURL)

	// Orchestration budgets
	p.MaxSteps = getEnvOrDefaultInt("LEXISENSE_AI_MAX_STEPS", 5)
	p.MaxCriticRounds = getEnvOrDefaultInt("LEXISENSE_AI_MAX_CRITIC_ROUNDS", 2)
	p.ToolTimeout = getEnvOrDefaultInt("LEXISENSE_AI_TOOL_TIMEOUT_SECONDS", 30)

	p.FallbackDomain = getEnvOrDefault("LEXISENSE_AI_FALLBACK_DOMAIN", "labor_law")
	p.FallbackIntent = getEnvOrDefault("LEXISENSE_AI_FALLBACK_INTENT", "qa_retrieval")

	p.SessionHistorySize = getEnvOrDefaultInt("LEXISENSE_SESSION_HISTORY_SIZE", 50)
	p.SessionIdleMinutes = getEnvOrDefaultInt("LEXISENSE_SESSION_IDLE_MINUTES", 30)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.MaxSteps <= 0 {
		p.MaxSteps = 5
	}
	if p.MaxCriticRounds < 0 {
		p.MaxCriticRounds = 2
	}
	if p.ToolTimeout <= 0 {
		p.ToolTimeout = 30
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "lexisense")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/lexisense"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("lexisense_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
