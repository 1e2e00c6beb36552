package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/guangtouwangba/open-deep-research/internal/backend"
	"github.com/guangtouwangba/open-deep-research/internal/resilience"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Generation: GenerationConfig{
			Type: "anthropic",
		},
		Search: SearchConfig{
			Provider:       "tavily",
			TimeoutSeconds: 30,
		},
		Pipeline: PipelineConfig{
			DefaultDepth:       "balanced",
			Budget:             3,
			Domain:             "auto",
			Checkpoints:        true,
			CallTimeoutSeconds: 300,
			Concurrency:        2,
			MaxClaims:          10,
			OverlapThreshold:   0.3,
			MinSources:         1,
			DedupThreshold:     0.8,
			CouncilTopics:      []string{"controversy", "trade-off", "versus"},
		},
		Storage: StorageConfig{
			Dir: DefaultHome(),
		},
		Retry: RetryConfig{
			InitialIntervalMS:   500,
			MaxIntervalMS:       10000,
			MaxElapsedSeconds:   120,
			Multiplier:          2.0,
			RandomizationFactor: 0.5,
		},
	}
}

// DefaultHome is the per-user state directory, ~/.deepresearch.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".deepresearch"
	}
	return filepath.Join(home, ".deepresearch")
}

// BackendConfig converts the generation section for backend.New.
func (c *Config) BackendConfig() backend.Config {
	return backend.Config{
		Type:       c.Generation.Type,
		Model:      c.Generation.Model,
		APIKey:     c.Generation.APIKey,
		MaxTokens:  c.Generation.MaxTokens,
		Command:    c.Generation.Command,
		AWSRegion:  c.Generation.AWSRegion,
		AWSProfile: c.Generation.AWSProfile,
	}
}

// RetryPolicy converts the retry section for the resilience package.
// Fields left at zero keep the resilience defaults.
func (c *Config) RetryPolicy() resilience.RetryConfig {
	rp := resilience.DefaultRetryConfig()
	if c.Retry.InitialIntervalMS > 0 {
		rp.InitialInterval = time.Duration(c.Retry.InitialIntervalMS) * time.Millisecond
	}
	if c.Retry.MaxIntervalMS > 0 {
		rp.MaxInterval = time.Duration(c.Retry.MaxIntervalMS) * time.Millisecond
	}
	if c.Retry.MaxElapsedSeconds > 0 {
		rp.MaxElapsedTime = time.Duration(c.Retry.MaxElapsedSeconds) * time.Second
	}
	if c.Retry.Multiplier > 0 {
		rp.Multiplier = c.Retry.Multiplier
	}
	if c.Retry.RandomizationFactor > 0 {
		rp.RandomizationFactor = c.Retry.RandomizationFactor
	}
	return rp
}

// SearchTimeout is the HTTP timeout of one search request.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSeconds) * time.Second
}

// CallTimeout is the bound on one in-flight collaborator call.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Pipeline.CallTimeoutSeconds) * time.Second
}
