// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-digest/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SourceKind selects the paper-metadata source.
type SourceKind string

const (
	// SourceAPI queries the arXiv export API by category and submission date.
	SourceAPI SourceKind = "api"
	// SourceRSS reads the daily announcement feed and batch-fetches metadata.
	SourceRSS SourceKind = "rss"
)

// CollectConfig holds settings for the collection stage.
type CollectConfig struct {
	HTTPConfig `yaml:",inline"`

	// Categories are the arXiv categories to collect (default ["cs.AI"]).
	Categories []string `json:"categories" yaml:"categories"`

	// Source selects the metadata source: api or rss.
	Source SourceKind `json:"source" yaml:"source"`

	// PageSize is the number of entries per API page (default 100).
	PageSize int `json:"page_size" yaml:"page_size"`

	// PageDelay is the delay between consecutive API pages (default 3s).
	PageDelay time.Duration `json:"page_delay" yaml:"page_delay"`

	// MaxAttempts bounds fetch attempts per category (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
}

// ExtractConfig holds settings for full-text extraction.
type ExtractConfig struct {
	HTTPConfig `yaml:",inline"`

	// FetchDelay is the minimum delay between consecutive document fetches (default 3s).
	FetchDelay time.Duration `json:"fetch_delay" yaml:"fetch_delay"`

	// MinWords is the sanity threshold below which extracted text is rejected (default 200).
	MinWords int `json:"min_words" yaml:"min_words"`

	// MaxTokens is the token-estimate ceiling before tail truncation (default 80000).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// Provider selects the language-model backend.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderGemini Provider = "gemini"
)

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Provider is claude or gemini.
	Provider Provider `json:"provider" yaml:"provider"`

	// Model is the AI model identifier (e.g. "claude-sonnet-4-5").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of transport retries on 429/529 responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Timeout bounds a single model call.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// RankConfig holds settings for the ranking stage.
type RankConfig struct {
	// Count is the number of ranked entries requested (default 10).
	Count int `json:"count" yaml:"count"`

	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
}

// AnalyzeConfig holds settings for deep analysis and blurbs.
type AnalyzeConfig struct {
	// MinWords is the summary length floor that triggers one expansion retry (default 800).
	MinWords int `json:"min_words" yaml:"min_words"`

	// MinPrimary is the number of primary results below which the run is degraded (default 4).
	MinPrimary int `json:"min_primary" yaml:"min_primary"`

	Temperature      float64 `json:"temperature" yaml:"temperature"`
	MaxTokens        int     `json:"max_tokens" yaml:"max_tokens"`
	BlurbTemperature float64 `json:"blurb_temperature" yaml:"blurb_temperature"`
	BlurbMaxTokens   int     `json:"blurb_max_tokens" yaml:"blurb_max_tokens"`
}

// DeliveryConfig holds settings for composition and delivery.
type DeliveryConfig struct {
	// SubscribersPath is the JSON or YAML subscriber list.
	SubscribersPath string `json:"subscribers_path" yaml:"subscribers_path"`

	SMTPHost     string `json:"smtp_host" yaml:"smtp_host"`
	SMTPPort     int    `json:"smtp_port" yaml:"smtp_port"`
	SMTPUsername string `json:"smtp_username" yaml:"smtp_username"`
	SMTPPassword string `json:"smtp_password,omitempty" yaml:"smtp_password,omitempty"`

	// FromName is the display name on outgoing mail.
	FromName string `json:"from_name" yaml:"from_name"`

	// PreviewDir receives rendered HTML on dry runs.
	PreviewDir string `json:"preview_dir" yaml:"preview_dir"`
}

// DigestConfig groups all stage configurations for the pipeline.
type DigestConfig struct {
	ProfilePath string         `json:"profile_path" yaml:"profile_path"`
	LogLevel    string         `json:"log_level" yaml:"log_level"`
	DryRun      bool           `json:"dry_run" yaml:"dry_run"`
	Collect     CollectConfig  `json:"collect" yaml:"collect"`
	Extract     ExtractConfig  `json:"extract" yaml:"extract"`
	AI          AIConfig       `json:"ai" yaml:"ai"`
	Rank        RankConfig     `json:"rank" yaml:"rank"`
	Analyze     AnalyzeConfig  `json:"analyze" yaml:"analyze"`
	Delivery    DeliveryConfig `json:"delivery" yaml:"delivery"`
}

// DefaultDigestConfig returns the configuration used when no file or
// environment override is present.
func DefaultDigestConfig() DigestConfig {
	httpCfg := HTTPConfig{Timeout: 60 * time.Second, UserAgent: "paper-digest/0.1"}
	return DigestConfig{
		ProfilePath: "config/user_profile.json",
		LogLevel:    "info",
		Collect: CollectConfig{
			HTTPConfig:  httpCfg,
			Categories:  []string{"cs.AI"},
			Source:      SourceAPI,
			PageSize:    100,
			PageDelay:   3 * time.Second,
			MaxAttempts: 3,
		},
		Extract: ExtractConfig{
			HTTPConfig: httpCfg,
			FetchDelay: 3 * time.Second,
			MinWords:   200,
			MaxTokens:  80_000,
		},
		AI: AIConfig{
			Provider:   ProviderClaude,
			Model:      "claude-sonnet-4-5",
			MaxRetries: 5,
			Timeout:    5 * time.Minute,
		},
		Rank: RankConfig{
			Count:       DefaultRankCount,
			Temperature: 0.3,
			MaxTokens:   4096,
		},
		Analyze: AnalyzeConfig{
			MinWords:         800,
			MinPrimary:       4,
			Temperature:      0.5,
			MaxTokens:        4096,
			BlurbTemperature: 0.4,
			BlurbMaxTokens:   2048,
		},
		Delivery: DeliveryConfig{
			SubscribersPath: "config/subscribers.json",
			SMTPHost:        "smtp.gmail.com",
			SMTPPort:        587,
			FromName:        "ArXiv AI Digest",
			PreviewDir:      ".preview",
		},
	}
}
