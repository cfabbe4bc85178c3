// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-digest CLI. The run
// subcommand executes one daily digest; it is meant to be invoked by an
// external scheduler.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// envOverrides are the config keys that PAPER_DIGEST_* variables may set.
var envOverrides = []string{
	"log_level",
	"profile_path",
	"dry_run",
	"ai.provider",
	"ai.model",
	"collect.source",
	"delivery.subscribers_path",
	"delivery.smtp_host",
	"delivery.smtp_username",
	"delivery.preview_dir",
}

// rootCmd is the base command for the paper-digest CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-digest",
	Short: "Daily ranked digest of new arXiv papers",
	Long: `paper-digest collects the previous business day's arXiv submissions,
ranks them against a reader profile with a language model, writes deep
summaries of the top papers from their full text and short blurbs for the
runners-up, and mails the result to subscribers.

Each invocation is one stateless run. Schedule it with cron or a CI job.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-digest.yaml or ~/.config/paper-digest/paper-digest.yaml)")
}

func initConfig() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-digest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-digest"))
		}
	}

	viper.SetEnvPrefix("PAPER_DIGEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig returns the defaults overlaid with the config file, if any,
// and then with PAPER_DIGEST_* environment variables.
func loadConfig() (types.DigestConfig, error) {
	cfg := types.DefaultDigestConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	for _, key := range envOverrides {
		if os.Getenv(envName(key)) != "" {
			applyOverride(&cfg, key)
		}
	}
	return cfg, nil
}

// envName maps a config key to its environment variable.
func envName(key string) string {
	return "PAPER_DIGEST_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func applyOverride(cfg *types.DigestConfig, key string) {
	switch key {
	case "log_level":
		cfg.LogLevel = viper.GetString(key)
	case "profile_path":
		cfg.ProfilePath = viper.GetString(key)
	case "dry_run":
		cfg.DryRun = viper.GetBool(key)
	case "ai.provider":
		cfg.AI.Provider = types.Provider(viper.GetString(key))
	case "ai.model":
		cfg.AI.Model = viper.GetString(key)
	case "collect.source":
		cfg.Collect.Source = types.SourceKind(viper.GetString(key))
	case "delivery.subscribers_path":
		cfg.Delivery.SubscribersPath = viper.GetString(key)
	case "delivery.smtp_host":
		cfg.Delivery.SMTPHost = viper.GetString(key)
	case "delivery.smtp_username":
		cfg.Delivery.SMTPUsername = viper.GetString(key)
	case "delivery.preview_dir":
		cfg.Delivery.PreviewDir = viper.GetString(key)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
