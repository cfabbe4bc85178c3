// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

func withConfigFile(t *testing.T, content string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "paper-digest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("PAPER_DIGEST")
	viper.AutomaticEnv()
	require.NoError(t, viper.ReadInConfig())
}

func TestLoadConfig_FileOverlaysDefaults(t *testing.T) {
	withConfigFile(t, `
log_level: debug
collect:
  categories: [cs.AI, cs.CL]
  page_delay: 5s
analyze:
  min_words: 900
`)
	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"cs.AI", "cs.CL"}, cfg.Collect.Categories)
	assert.Equal(t, 5*time.Second, cfg.Collect.PageDelay)
	assert.Equal(t, 900, cfg.Analyze.MinWords)
	assert.Equal(t, 4, cfg.Analyze.MinPrimary, "unset keys keep their defaults")
	assert.Equal(t, 3, cfg.Collect.MaxAttempts)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	withConfigFile(t, "log_level: debug\n")
	t.Setenv("PAPER_DIGEST_LOG_LEVEL", "warn")
	t.Setenv("PAPER_DIGEST_AI_PROVIDER", "gemini")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, types.ProviderGemini, cfg.AI.Provider)
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "PAPER_DIGEST_LOG_LEVEL", envName("log_level"))
	assert.Equal(t, "PAPER_DIGEST_DELIVERY_PREVIEW_DIR", envName("delivery.preview_dir"))
}

func newRunFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "run"}
	addRunFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestApplyFlags(t *testing.T) {
	t.Setenv("DRY_RUN", "")
	cfg := types.DefaultDigestConfig()
	cmd := newRunFlags(t, "--category", "cs.LG", "--category", "cs.CL", "--source", "rss", "--provider", "gemini", "--model", "gemini-2.5-pro")

	require.NoError(t, applyFlags(cmd, &cfg))
	assert.Equal(t, []string{"cs.LG", "cs.CL"}, cfg.Collect.Categories)
	assert.Equal(t, types.SourceRSS, cfg.Collect.Source)
	assert.Equal(t, types.ProviderGemini, cfg.AI.Provider)
	assert.Equal(t, "gemini-2.5-pro", cfg.AI.Model)
	assert.False(t, cfg.DryRun)
}

func TestApplyFlags_DryRunEnv(t *testing.T) {
	tests := []struct {
		env     string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"1", true, false},
		{"false", false, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("DRY_RUN", tt.env)
			cfg := types.DefaultDigestConfig()
			err := applyFlags(newRunFlags(t), &cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.DryRun)
		})
	}
}
