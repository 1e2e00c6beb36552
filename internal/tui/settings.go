package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/guangtouwangba/open-deep-research/internal/config"
)

// Save targets
const (
	TargetGlobal  = "global"
	TargetProject = "project"
)

// SettingsValues holds the editable settings as form-friendly strings.
type SettingsValues struct {
	SaveTarget      string
	GenerationType  string
	GenerationModel string
	SearchProvider  string
	DefaultDepth    string
	Budget          string
	Concurrency     string
	Checkpoints     bool
}

// NewSettingsValues copies the editable fields out of cfg.
func NewSettingsValues(cfg *config.Config) *SettingsValues {
	return &SettingsValues{
		SaveTarget:      TargetGlobal,
		GenerationType:  orDefault(cfg.Generation.Type, "anthropic"),
		GenerationModel: cfg.Generation.Model,
		SearchProvider:  orDefault(cfg.Search.Provider, "tavily"),
		DefaultDepth:    cfg.Pipeline.DefaultDepth,
		Budget:          strconv.Itoa(cfg.Pipeline.Budget),
		Concurrency:     strconv.Itoa(cfg.Pipeline.Concurrency),
		Checkpoints:     cfg.Pipeline.Checkpoints,
	}
}

// Apply writes the values back into cfg and validates the result.
// cfg is left unchanged on error.
func (v *SettingsValues) Apply(cfg *config.Config) error {
	budget, err := strconv.Atoi(v.Budget)
	if err != nil {
		return fmt.Errorf("budget: %w", err)
	}
	concurrency, err := strconv.Atoi(v.Concurrency)
	if err != nil {
		return fmt.Errorf("concurrency: %w", err)
	}

	next := *cfg
	next.Generation.Type = v.GenerationType
	next.Generation.Model = v.GenerationModel
	next.Search.Provider = v.SearchProvider
	next.Pipeline.DefaultDepth = v.DefaultDepth
	next.Pipeline.Budget = budget
	next.Pipeline.Concurrency = concurrency
	next.Pipeline.Checkpoints = v.Checkpoints
	if err := config.Validate(&next); err != nil {
		return err
	}
	*cfg = next
	return nil
}

// Path resolves the save target to a config file path.
func (v *SettingsValues) Path(globalPath, projectPath string) string {
	if v.SaveTarget == TargetProject {
		return projectPath
	}
	return globalPath
}

// SettingsForm builds the settings form bound to v.
// It is shared by the TUI overlay and the config init command.
func SettingsForm(v *SettingsValues, globalPath, projectPath string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Global ("+globalPath+")", TargetGlobal),
					huh.NewOption("Project ("+projectPath+")", TargetProject),
				).
				Value(&v.SaveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Key("generationType").
				Title("Generation Backend").
				Options(
					huh.NewOption("Anthropic API", "anthropic"),
					huh.NewOption("AWS Bedrock", "bedrock"),
					huh.NewOption("Claude CLI", "claude"),
				).
				Value(&v.GenerationType),

			huh.NewInput().
				Key("generationModel").
				Title("Model").
				Value(&v.GenerationModel).
				Placeholder("backend default"),

			huh.NewSelect[string]().
				Key("searchProvider").
				Title("Search Provider").
				Options(
					huh.NewOption("Tavily", "tavily"),
					huh.NewOption("None", "none"),
				).
				Value(&v.SearchProvider),
		).Title("Collaborators"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Key("defaultDepth").
				Title("Default Depth").
				Options(
					huh.NewOption("Quick", "quick"),
					huh.NewOption("Balanced", "balanced"),
					huh.NewOption("Comprehensive", "comprehensive"),
				).
				Value(&v.DefaultDepth),

			huh.NewInput().
				Key("budget").
				Title("Reflection Budget").
				Value(&v.Budget).
				Validate(nonNegativeInt),

			huh.NewInput().
				Key("concurrency").
				Title("Concurrent Jobs").
				Value(&v.Concurrency).
				Validate(positiveInt),

			huh.NewConfirm().
				Key("checkpoints").
				Title("Ask at checkpoints?").
				Value(&v.Checkpoints),
		).Title("Pipeline"),
	)
}

func nonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("enter a whole number >= 0")
	}
	return nil
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fmt.Errorf("enter a whole number >= 1")
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
