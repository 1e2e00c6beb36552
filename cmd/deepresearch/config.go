package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/guangtouwangba/open-deep-research/internal/config"
	"github.com/guangtouwangba/open-deep-research/internal/tui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage deepresearch configuration.

Configuration is read from the global file (~/.deepresearch/config.yaml),
then the project file (.deepresearch/config.yaml), then environment
variables such as ANTHROPIC_API_KEY and TAVILY_API_KEY.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively write a config file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadDefault()
	if err != nil {
		printStatus("⚠", fmt.Sprintf("Existing config ignored: %v", err), color.FgYellow)
		cfg = config.DefaultConfig()
	}

	values := tui.NewSettingsValues(cfg)
	form := tui.SettingsForm(values, config.GlobalPath(), config.ProjectPath())
	if err := form.Run(); err != nil {
		return err
	}
	if err := values.Apply(cfg); err != nil {
		return err
	}

	path := values.Path(config.GlobalPath(), config.ProjectPath())
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	printStatus("✓", "Wrote "+path, color.FgGreen)

	if cfg.Generation.Type == "anthropic" && cfg.Generation.APIKey == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (you can set it later)", color.FgYellow)
	}
	if cfg.Search.Provider == "tavily" && cfg.Search.APIKey == "" {
		printStatus("⚠", "TAVILY_API_KEY not set, web search will be skipped", color.FgYellow)
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(redacted(cfg))
}

// redacted returns a copy of cfg with secrets masked.
func redacted(cfg *config.Config) *config.Config {
	out := *cfg
	out.Generation.APIKey = mask(cfg.Generation.APIKey)
	out.Search.APIKey = mask(cfg.Search.APIKey)
	return &out
}

func mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	default:
		return secret[:4] + "****"
	}
}
