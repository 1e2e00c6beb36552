package config

import (
	"github.com/guangtouwangba/open-deep-research/internal/domain"
)

// GenerationConfig selects and configures the text generation backend.
type GenerationConfig struct {
	Type       string `json:"type" yaml:"type" mapstructure:"type"`                              // "anthropic", "bedrock" or "claude"
	Model      string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`       // Model override
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"` // Anthropic key; ${VAR} references are expanded
	MaxTokens  int64  `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" mapstructure:"max_tokens"`
	Command    string `json:"command,omitempty" yaml:"command,omitempty" mapstructure:"command"` // CLI binary for the "claude" type
	AWSRegion  string `json:"aws_region,omitempty" yaml:"aws_region,omitempty" mapstructure:"aws_region"`
	AWSProfile string `json:"aws_profile,omitempty" yaml:"aws_profile,omitempty" mapstructure:"aws_profile"`
}

// SearchConfig selects the web search provider.
type SearchConfig struct {
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"` // "tavily" or "none"
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" mapstructure:"endpoint"`

	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" mapstructure:"timeout_seconds"` // Per-request HTTP timeout
}

// PipelineConfig holds the knobs of the research pipeline itself.
type PipelineConfig struct {
	DefaultDepth       string   `json:"default_depth" yaml:"default_depth" mapstructure:"default_depth"`
	Budget             int      `json:"budget" yaml:"budget" mapstructure:"budget"` // Reflection iterations per job
	Domain             string   `json:"domain" yaml:"domain" mapstructure:"domain"` // Domain name or "auto"
	Checkpoints        bool     `json:"checkpoints" yaml:"checkpoints" mapstructure:"checkpoints"`
	CallTimeoutSeconds int      `json:"call_timeout_seconds" yaml:"call_timeout_seconds" mapstructure:"call_timeout_seconds"`
	Concurrency        int      `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"` // Jobs run at once by RunMany
	MaxClaims          int      `json:"max_claims" yaml:"max_claims" mapstructure:"max_claims"`
	OverlapThreshold   float64  `json:"overlap_threshold" yaml:"overlap_threshold" mapstructure:"overlap_threshold"`
	MinSources         int      `json:"min_sources" yaml:"min_sources" mapstructure:"min_sources"`
	DedupThreshold     float64  `json:"dedup_threshold" yaml:"dedup_threshold" mapstructure:"dedup_threshold"`
	CouncilTopics      []string `json:"council_topics,omitempty" yaml:"council_topics,omitempty" mapstructure:"council_topics"`
}

// StorageConfig locates persisted jobs.
type StorageConfig struct {
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"` // Root directory holding jobs.db
}

// RetryConfig configures backoff for generation and search calls.
type RetryConfig struct {
	InitialIntervalMS   int     `json:"initial_interval_ms" yaml:"initial_interval_ms" mapstructure:"initial_interval_ms"`
	MaxIntervalMS       int     `json:"max_interval_ms" yaml:"max_interval_ms" mapstructure:"max_interval_ms"`
	MaxElapsedSeconds   int     `json:"max_elapsed_seconds" yaml:"max_elapsed_seconds" mapstructure:"max_elapsed_seconds"`
	Multiplier          float64 `json:"multiplier" yaml:"multiplier" mapstructure:"multiplier"`
	RandomizationFactor float64 `json:"randomization_factor" yaml:"randomization_factor" mapstructure:"randomization_factor"`
}

// Config is the top-level configuration.
type Config struct {
	Generation GenerationConfig `json:"generation" yaml:"generation" mapstructure:"generation"`
	Search     SearchConfig     `json:"search" yaml:"search" mapstructure:"search"`
	Pipeline   PipelineConfig   `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Storage    StorageConfig    `json:"storage" yaml:"storage" mapstructure:"storage"`
	Retry      RetryConfig      `json:"retry" yaml:"retry" mapstructure:"retry"`
	Domains    []domain.Domain  `json:"domains,omitempty" yaml:"domains,omitempty" mapstructure:"domains"` // Added to or replacing built-in domains
}
