package config

import (
	"fmt"

	"github.com/guangtouwangba/open-deep-research/internal/model"
)

// Validate checks that cfg describes a runnable pipeline.
func Validate(cfg *Config) error {
	switch cfg.Generation.Type {
	case "", "anthropic", "bedrock", "claude":
	default:
		return fmt.Errorf("generation.type %q is not one of anthropic, bedrock, claude", cfg.Generation.Type)
	}

	switch cfg.Search.Provider {
	case "", "tavily", "none":
	default:
		return fmt.Errorf("search.provider %q is not one of tavily, none", cfg.Search.Provider)
	}
	if cfg.Search.TimeoutSeconds < 0 {
		return fmt.Errorf("search.timeout_seconds must be >= 0, got %d", cfg.Search.TimeoutSeconds)
	}

	p := cfg.Pipeline
	if _, err := model.ParseDepth(p.DefaultDepth); err != nil {
		return fmt.Errorf("pipeline.default_depth: %w", err)
	}
	if p.Budget < 0 {
		return fmt.Errorf("pipeline.budget must be >= 0, got %d", p.Budget)
	}
	if p.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be >= 1, got %d", p.Concurrency)
	}
	if p.CallTimeoutSeconds < 1 {
		return fmt.Errorf("pipeline.call_timeout_seconds must be >= 1, got %d", p.CallTimeoutSeconds)
	}
	if p.MinSources < 1 {
		return fmt.Errorf("pipeline.min_sources must be >= 1, got %d", p.MinSources)
	}
	for name, v := range map[string]float64{
		"overlap_threshold": p.OverlapThreshold,
		"dedup_threshold":   p.DedupThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("pipeline.%s must be within [0, 1], got %v", name, v)
		}
	}

	if cfg.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}

	for _, d := range cfg.Domains {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("domains: %w", err)
		}
	}
	return nil
}
