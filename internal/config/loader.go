package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"},
	"embeddings": {"openai"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	for _, entry := range cfg.Providers.LLMFallbacks {
		validateProviderName("llm", entry.Name)
	}

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; free-form replies and AI summaries will use fallbacks only")
	}

	// Intent / capture
	if cfg.Intent.ContextWindow < 0 {
		errs = append(errs, fmt.Errorf("intent.context_window %d must not be negative", cfg.Intent.ContextWindow))
	}
	if cfg.Capture.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("capture.cooldown %s must not be negative", cfg.Capture.Cooldown.Std()))
	}
	if cfg.Capture.FuzzyThreshold < 0 || cfg.Capture.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("capture.fuzzy_threshold %.2f is out of range [0, 1]", cfg.Capture.FuzzyThreshold))
	}

	// Summary
	if cfg.Summary.Temperature < 0 || cfg.Summary.Temperature > 2 {
		errs = append(errs, fmt.Errorf("summary.temperature %.2f is out of range [0, 2]", cfg.Summary.Temperature))
	}
	if cfg.Summary.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("summary.max_tokens %d must not be negative", cfg.Summary.MaxTokens))
	}

	// Gate
	if cfg.Gate.MaxMessageLen < 0 {
		errs = append(errs, fmt.Errorf("gate.max_message_len %d must not be negative", cfg.Gate.MaxMessageLen))
	}
	if cfg.Gate.RateLimit.Window < 0 {
		errs = append(errs, fmt.Errorf("gate.rate_limit.window %s must not be negative", cfg.Gate.RateLimit.Window.Std()))
	}
	if cfg.Gate.RateLimit.MaxRequests < 0 {
		errs = append(errs, fmt.Errorf("gate.rate_limit.max_requests %d must not be negative", cfg.Gate.RateLimit.MaxRequests))
	}

	// Leads
	if cfg.Leads.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("leads.embedding_dimensions %d must not be negative", cfg.Leads.EmbeddingDimensions))
	}
	if cfg.Leads.PostgresDSN == "" && cfg.Providers.Embeddings.Name != "" {
		slog.Warn("providers.embeddings is configured but leads.postgres_dsn is empty; similar-leads search needs the Postgres store")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
