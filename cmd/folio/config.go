package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/config"
	"github.com/jackzampolin/folio/internal/prompts"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and initialize configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file to the home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		path := cfgFile
		if path == "" {
			path = h.ConfigPath()
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := config.NewManager(cfgFile, h.Path())
		if err != nil {
			return err
		}
		if f := mgr.ConfigFile(); f != "" {
			slog.Debug("loaded config", "file", f)
		}

		cfg := *mgr.Get()
		cfg.LLMProviders = make(map[string]config.LLMProviderCfg, len(mgr.Get().LLMProviders))
		for name, p := range mgr.Get().LLMProviders {
			p.APIKey = mask(p.APIKey)
			cfg.LLMProviders[name] = p
		}
		cfg.OCRProviders = make(map[string]config.OCRProviderCfg, len(mgr.Get().OCRProviders))
		for name, p := range mgr.Get().OCRProviders {
			p.APIKey = mask(p.APIKey)
			cfg.OCRProviders[name] = p
		}
		cfg.Store.PostgresURL = mask(cfg.Store.PostgresURL)

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var configPromptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List prompt templates and whether an override is active",
	Long: `List prompt templates.

Drop a file named <key>.tmpl into ~/.folio/prompts/ to override a prompt.
Overrides are read on every call, so a running server picks them up
without a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		r := prompts.NewResolver(h.PromptsDir(), slog.Default())
		var out []*prompts.ResolvedPrompt
		for _, def := range prompts.Defaults() {
			p, err := r.Resolve(def.Key)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return api.Output(out)
	},
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPromptsCmd)
	rootCmd.AddCommand(configCmd)
}
