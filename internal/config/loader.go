package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ValidAnalysisProviders lists the analysis backend names the bot can build.
var ValidAnalysisProviders = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq",
}

// Load builds the effective configuration: YAML file (if path exists), then
// environment-variable overrides, then defaults, then validation.
//
// A missing file is not an error: the whole configuration can be supplied
// through the environment, which is how the bot runs on container platforms.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Env-only deployment.
		case err != nil:
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		default:
			defer f.Close()
			if err := decodeYAML(f, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %q: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}

	// Provider API keys follow the conventional variable names rather than
	// struct-derived ones. The analysis key may stay empty: any-llm-go
	// providers fall back to their own well-known variables (e.g.
	// ANTHROPIC_API_KEY) when constructed without a key.
	if cfg.Providers.Transcription.APIKey == "" {
		cfg.Providers.Transcription.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Providers.Analysis.APIKey == "" {
		cfg.Providers.Analysis.APIKey = os.Getenv("ANALYSIS_API_KEY")
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Environment overrides are not applied, which keeps
// it useful in
// tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	if err := decodeYAML(r, cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyDefaults fills zero-valued optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Auth.UsersFile == "" {
		cfg.Auth.UsersFile = DefaultUsersFile
	}
	if cfg.Auth.InviteTTLHours <= 0 {
		cfg.Auth.InviteTTLHours = DefaultInviteTTLHours
	}
	if cfg.Providers.Transcription.Model == "" {
		cfg.Providers.Transcription.Model = DefaultTranscriptionModel
	}
	if cfg.Providers.Analysis.Name == "" {
		cfg.Providers.Analysis.Name = DefaultAnalysisProvider
	}
	if cfg.Providers.Analysis.Model == "" {
		cfg.Providers.Analysis.Model = DefaultAnalysisModel
	}
	if cfg.Pipeline.AttemptTimeoutSeconds <= 0 {
		cfg.Pipeline.AttemptTimeoutSeconds = DefaultAttemptTimeoutSeconds
	}
	if cfg.Pipeline.MaxConcurrent <= 0 {
		cfg.Pipeline.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Calendar.EventDurationMinutes <= 0 {
		cfg.Calendar.EventDurationMinutes = DefaultEventDurationMinutes
	}
	// A single OpenAI key serves both stages unless a dedicated analysis key
	// is configured.
	if cfg.Providers.Analysis.Name == "openai" && cfg.Providers.Analysis.APIKey == "" {
		cfg.Providers.Analysis.APIKey = cfg.Providers.Transcription.APIKey
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required (TELEGRAM_BOT_TOKEN)"))
	}
	if cfg.Telegram.AdminUserID == 0 {
		errs = append(errs, errors.New("telegram.admin_user_id is required (ADMIN_USER_ID)"))
	}

	if cfg.Providers.Transcription.APIKey == "" {
		errs = append(errs, errors.New("providers.transcription.api_key is required (OPENAI_API_KEY)"))
	}
	if name := cfg.Providers.Analysis.Name; !slices.Contains(ValidAnalysisProviders, name) {
		errs = append(errs, fmt.Errorf("providers.analysis.name %q is invalid; valid values: %v", name, ValidAnalysisProviders))
	}

	return errors.Join(errs...)
}
