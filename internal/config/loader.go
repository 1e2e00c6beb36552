package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/guangtouwangba/open-deep-research/internal/domain"
)

// Load reads and merges configuration from global and project paths, then
// applies environment overrides.
// Order of precedence (highest to lowest): environment, project config, global config, defaults.
// Missing files are not errors; malformed files return an error. The format
// follows the file extension (YAML or JSON).
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.deepresearch/config.yaml
// Project: .deepresearch/config.yaml (relative to cwd)
func LoadDefault() (*Config, error) {
	return Load(GlobalPath(), ProjectPath())
}

// GlobalPath is the per-user config file.
func GlobalPath() string {
	return filepath.Join(DefaultHome(), "config.yaml")
}

// ProjectPath is the config file in the working directory.
func ProjectPath() string {
	return filepath.Join(".deepresearch", "config.yaml")
}

// mergeConfigFile decodes a config file over base. Only keys present in the
// file change base; list-valued keys replace the base list, except domains,
// which merge by name.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	prevDomains := base.Domains
	prevTopics := base.Pipeline.CouncilTopics
	base.Domains = nil
	base.Pipeline.CouncilTopics = nil

	if err := v.Unmarshal(base); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	if !v.IsSet("pipeline.council_topics") {
		base.Pipeline.CouncilTopics = prevTopics
	}
	base.Domains = mergeDomains(prevDomains, base.Domains)
	return nil
}

func mergeDomains(base, overlay []domain.Domain) []domain.Domain {
	out := append([]domain.Domain(nil), base...)
	for _, d := range overlay {
		replaced := false
		for i := range out {
			if out[i].Name == d.Name {
				out[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, d)
		}
	}
	return out
}

// applyEnv overlays environment variables and expands ${VAR} references in secrets.
func applyEnv(cfg *Config) {
	v := viper.New()
	v.BindEnv("generation.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("generation.type", "DEEPRESEARCH_BACKEND")
	v.BindEnv("generation.model", "DEEPRESEARCH_MODEL")
	v.BindEnv("search.api_key", "TAVILY_API_KEY")
	v.BindEnv("pipeline.default_depth", "DEEPRESEARCH_DEPTH")
	v.BindEnv("storage.dir", "DEEPRESEARCH_HOME")

	override := func(key string, dst *string) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
	override("generation.api_key", &cfg.Generation.APIKey)
	override("search.api_key", &cfg.Search.APIKey)
	override("generation.type", &cfg.Generation.Type)
	override("generation.model", &cfg.Generation.Model)
	override("pipeline.default_depth", &cfg.Pipeline.DefaultDepth)
	override("storage.dir", &cfg.Storage.Dir)

	cfg.Generation.APIKey = os.ExpandEnv(cfg.Generation.APIKey)
	cfg.Search.APIKey = os.ExpandEnv(cfg.Search.APIKey)
}
