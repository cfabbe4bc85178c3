// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and the SMTP password from a directory of
// plain-text files and from the environment. Each file holds one secret:
// the filename is the key name and the trimmed contents are the value.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/paper-digest/internal/logger"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// Key file names.
const (
	AnthropicAPIKey = "anthropic-api-key"
	GeminiAPIKey    = "gemini-api-key"
	SMTPPassword    = "smtp-password"
)

// envFallbacks lists the environment variables consulted per key, in order.
var envFallbacks = map[string][]string{
	AnthropicAPIKey: {"ANTHROPIC_API_KEY"},
	GeminiAPIKey:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	SMTPPassword:    {"SMTP_PASSWORD", "GMAIL_APP_PASSWORD"},
}

// Load reads all files in dir and returns a map of filename to trimmed
// contents. A missing directory is not an error. Unreadable files are
// logged and skipped.
func Load(dir string, log logger.Logger) (map[string]string, error) {
	if log == nil {
		log = logger.Discard()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warnf("secrets: could not read %s: %v", name, err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Lookup returns the secret for key from the loaded files, falling back to
// the key's environment variables.
func Lookup(secrets map[string]string, key string) string {
	if v := secrets[key]; v != "" {
		return v
	}
	for _, env := range envFallbacks[key] {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return ""
}

// Apply fills credentials that cfg does not already carry. The model key is
// chosen by cfg.AI.Provider.
func Apply(cfg *types.DigestConfig, secrets map[string]string) {
	if cfg.AI.APIKey == "" {
		key := AnthropicAPIKey
		if cfg.AI.Provider == types.ProviderGemini {
			key = GeminiAPIKey
		}
		cfg.AI.APIKey = Lookup(secrets, key)
	}
	if cfg.Delivery.SMTPPassword == "" {
		cfg.Delivery.SMTPPassword = Lookup(secrets, SMTPPassword)
	}
}
