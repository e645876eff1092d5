package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config represents the application configuration
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	BlueAnt    BlueAntConfig    `yaml:"blueant"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Validation ValidationConfig `yaml:"validation"`
	Processing ProcessingConfig `yaml:"processing"`
}

// LLMConfig selects and configures the model provider
type LLMConfig struct {
	Provider       string `yaml:"provider"` // "openrouter" or "gemini"
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxTokens      int    `yaml:"max_tokens"`
}

// BlueAntConfig configures access to the BlueAnt REST API
type BlueAntConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIToken       string `yaml:"api_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AnalysisConfig tunes the batch scoring orchestration
type AnalysisConfig struct {
	BatchSize            int     `yaml:"batch_size"`
	MaxExtractionRetries int     `yaml:"max_extraction_retries"`
	Temperature          float64 `yaml:"temperature"`
	TemperatureStep      float64 `yaml:"temperature_step"`
	MaxTemperature       float64 `yaml:"max_temperature"`
	Concurrency          int     `yaml:"concurrency"`
}

// TextReplacement is one ordered phrase substitution applied when
// sanitizing completed-project texts
type TextReplacement struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// ValidationConfig overrides the validator keyword sets. Empty lists
// fall back to the built-in defaults.
type ValidationConfig struct {
	CompletedKeywords []string          `yaml:"completed_keywords"`
	PlanningKeywords  []string          `yaml:"planning_keywords"`
	TextReplacements  []TextReplacement `yaml:"text_replacements"`
}

// ProcessingConfig represents output handling configuration
type ProcessingConfig struct {
	OutputDir        string `yaml:"output_dir"`
	SaveIntermediate bool   `yaml:"save_intermediate"`
}

// LoadConfig loads configuration from a YAML file, applies defaults and
// environment overrides, and validates the result. A .env file in the
// working directory is honored for secrets.
func LoadConfig(configPath string) (*Config, error) {
	// Best effort; a missing .env is fine
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// ApplyDefaults fills zero-valued tuning fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openrouter"
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 180
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 4096
	}
	if c.BlueAnt.TimeoutSeconds == 0 {
		c.BlueAnt.TimeoutSeconds = 30
	}
	if c.Analysis.BatchSize == 0 {
		c.Analysis.BatchSize = 10
	}
	if c.Analysis.MaxExtractionRetries == 0 {
		c.Analysis.MaxExtractionRetries = 2
	}
	if c.Analysis.Temperature == 0 {
		c.Analysis.Temperature = 0.7
	}
	if c.Analysis.TemperatureStep == 0 {
		c.Analysis.TemperatureStep = 0.15
	}
	if c.Analysis.MaxTemperature == 0 {
		c.Analysis.MaxTemperature = 1.0
	}
	if c.Analysis.Concurrency == 0 {
		c.Analysis.Concurrency = 2
	}
	if c.Processing.OutputDir == "" {
		c.Processing.OutputDir = "output"
	}
}

func (c *Config) applyEnvOverrides() {
	switch c.LLM.Provider {
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	default:
		if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	}
	if token := os.Getenv("BLUEANT_API_TOKEN"); token != "" {
		c.BlueAnt.APIToken = token
	}
	if url := os.Getenv("BLUEANT_BASE_URL"); url != "" {
		c.BlueAnt.BaseURL = url
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.LLM.Provider != "openrouter" && c.LLM.Provider != "gemini" {
		return fmt.Errorf("unknown LLM provider: %q", c.LLM.Provider)
	}

	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required")
	}

	if c.BlueAnt.BaseURL == "" {
		return fmt.Errorf("BlueAnt base URL is required")
	}

	if c.BlueAnt.APIToken == "" {
		return fmt.Errorf("BlueAnt API token is required")
	}

	if c.Analysis.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}

	if c.Analysis.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}

	return nil
}
