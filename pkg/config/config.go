// Package config holds the runtime configuration for longevity plan runs:
// defaults, optional YAML file, flag overrides, and the fail-fast provider
// credential check.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lifeplan-ai/lifeplan/pkg/llm/provider"
)

// Run modes supported by the orchestrator and benchmark harness.
const (
	ModeBaseline  = "baseline"
	ModeOptimized = "optimized"
)

// Config is the complete runtime configuration for one or more runs.
type Config struct {
	// Conversation
	TurnLimit   int     `yaml:"turn_limit"`
	Model       string  `yaml:"model"`
	SmallModel  string  `yaml:"small_model"`
	BigModel    string  `yaml:"big_model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Mode        string  `yaml:"mode"`
	UseMock     bool    `yaml:"use_mock"`

	// Claim validation
	EnableValidation bool          `yaml:"enable_validation"`
	ValidatorURL     string        `yaml:"validator_url"`
	ValidatorTimeout time.Duration `yaml:"validator_timeout"`

	// Inputs
	UserProfilePath    string `yaml:"user_profile"`
	ClinicResourcePath string `yaml:"clinic_resource"`

	// Outputs
	OutputDir string `yaml:"output_dir"`

	// Scheduling
	Seed int `yaml:"seed"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TurnLimit:          10,
		Model:              "gpt-4o-mini",
		Temperature:        0.2,
		MaxTokens:          2048,
		Mode:               ModeBaseline,
		ValidatorURL:       "http://localhost:3000/validate",
		ValidatorTimeout:   12 * time.Second,
		UserProfilePath:    "user_info.json",
		ClinicResourcePath: "company_resource.txt",
		OutputDir:          "data",
		Seed:               42,
	}
}

// Load builds the effective configuration: defaults, then the optional YAML
// file at path (environment variables expanded), with a .env file loaded
// first so expansions and provider checks see it. An empty path skips the
// file layer.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded environment from .env file")
	}

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(ExpandEnv(data), &fileCfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Merge(fileCfg); err != nil {
		return cfg, fmt.Errorf("failed to merge config file: %w", err)
	}
	return cfg, nil
}

// Merge overlays non-zero fields from override onto c.
func (c *Config) Merge(override Config) error {
	return mergo.Merge(c, override, mergo.WithOverride)
}

// Validate checks invariants that would otherwise surface deep in a run.
func (c Config) Validate() error {
	if c.TurnLimit <= 0 {
		return fmt.Errorf("turn_limit must be positive, got %d", c.TurnLimit)
	}
	if c.Mode != ModeBaseline && c.Mode != ModeOptimized {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeBaseline, ModeOptimized, c.Mode)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.EnableValidation && c.ValidatorURL == "" {
		return fmt.Errorf("validator_url is required when validation is enabled")
	}
	return nil
}

// EffectiveModel returns the model the run should use, honoring mock mode.
func (c Config) EffectiveModel() string {
	if c.UseMock {
		return provider.MockModel
	}
	return c.Model
}

// EnsureProviderReady fails fast when the credentials for model are missing
// or placeholders, before any expensive work starts.
func EnsureProviderReady(model string) error {
	switch {
	case model == provider.MockModel:
		return nil
	case provider.IsOpenAILike(model):
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" || isPlaceholder(key) {
			return fmt.Errorf("OPENAI_API_KEY missing or placeholder; set a real key in your environment or .env before using OpenAI models")
		}
	case provider.IsAnthropicLike(model):
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" || isPlaceholder(key) {
			return fmt.Errorf("ANTHROPIC_API_KEY missing or placeholder; set a real key in your environment or .env before using Anthropic models")
		}
	case isBedrockLike(model):
		if os.Getenv("HOLISTIC_AI_TEAM_ID") == "" || os.Getenv("HOLISTIC_AI_API_TOKEN") == "" {
			return fmt.Errorf("Bedrock credentials missing; set HOLISTIC_AI_TEAM_ID and HOLISTIC_AI_API_TOKEN or choose another model")
		}
	}
	return nil
}

func isBedrockLike(model string) bool {
	lower := strings.ToLower(model)
	return strings.HasPrefix(model, "us.") ||
		strings.HasPrefix(model, "mistral.") ||
		strings.Contains(lower, "llama") ||
		strings.Contains(lower, "nova")
}

func isPlaceholder(val string) bool {
	v := strings.ToLower(strings.TrimSpace(val))
	return strings.HasPrefix(v, "sk-your") || strings.HasSuffix(v, "here") || strings.Contains(v, "your-")
}
