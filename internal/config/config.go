// Package config provides the configuration schema and loader for the
// voxnote assistant bot.
//
// Configuration is layered: an optional YAML file supplies defaults and
// non-secret settings, then environment variables override individual fields
// (secrets such as API tokens are normally supplied only through the
// environment). Required fields are validated once at startup; a missing
// credential is fatal.
package config

import "time"

// LogLevel controls log verbosity for the voxnote server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for voxnote.
// It is typically loaded from a YAML file plus environment overrides using
// [Load] or, in tests, [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Providers ProvidersConfig `yaml:"providers"`
	Auth      AuthConfig      `yaml:"auth"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Calendar  CalendarConfig  `yaml:"calendar"`
}

// ServerConfig holds network and logging settings for the HTTP sidecar
// (health, metrics, and the optional Telegram webhook).
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level" env:"LOG_LEVEL"`
}

// TelegramConfig holds the chat transport settings.
type TelegramConfig struct {
	// Token is the Telegram bot token issued by BotFather. Required.
	Token string `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`

	// AdminUserID is the Telegram user ID of the administrator. Required.
	// This identity is always a member of the authorization store and is the
	// only identity allowed to issue invitations.
	AdminUserID int64 `yaml:"admin_user_id" env:"ADMIN_USER_ID"`

	// WebhookURL, when non-empty, switches the bot from long polling to
	// webhook delivery. The path component of the URL is served on
	// Server.ListenAddr.
	WebhookURL string `yaml:"webhook_url" env:"WEBHOOK_URL"`
}

// ProvidersConfig declares the AI backends for each pipeline stage.
type ProvidersConfig struct {
	Transcription ProviderEntry `yaml:"transcription"`
	Analysis      ProviderEntry `yaml:"analysis"`
}

// ProviderEntry is the common configuration block shared by both AI stages.
type ProviderEntry struct {
	// Name selects the provider implementation. For analysis this is one of
	// "openai", "anthropic", "gemini", "ollama", "deepseek", "mistral",
	// "groq"; transcription is always OpenAI Whisper and ignores this field.
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "whisper-1", "gpt-4o", "claude-3-5-sonnet-latest").
	Model string `yaml:"model"`
}

// AuthConfig holds settings for the authorization store and invitation issuer.
type AuthConfig struct {
	// UsersFile is the path of the JSON document holding the authorized user
	// set. Created on first mutation if absent.
	UsersFile string `yaml:"users_file" env:"AUTHORIZED_USERS_FILE"`

	// InviteTTLHours is the validity window of an invitation token in hours.
	// Expiry is checked lazily at redemption.
	InviteTTLHours int `yaml:"invite_ttl_hours"`
}

// PipelineConfig tunes the voice-processing pipeline.
type PipelineConfig struct {
	// AttemptTimeoutSeconds is the hard per-strategy timeout for each
	// transcription fallback attempt.
	AttemptTimeoutSeconds int `yaml:"attempt_timeout_seconds"`

	// MaxConcurrent bounds the number of voice messages processed in
	// parallel. Additional messages wait for a slot.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// CalendarConfig tunes the calendar deep-link generator.
type CalendarConfig struct {
	// EventDurationMinutes is the default duration of generated calendar
	// events when the action item carries no explicit end.
	EventDurationMinutes int `yaml:"event_duration_minutes"`
}

// Defaults applied by [Load] for fields left empty by both YAML and env.
const (
	DefaultListenAddr            = ":8080"
	DefaultUsersFile             = "data/authorized_users.json"
	DefaultTranscriptionModel    = "whisper-1"
	DefaultAnalysisProvider      = "openai"
	DefaultAnalysisModel         = "gpt-4o"
	DefaultInviteTTLHours        = 24
	DefaultAttemptTimeoutSeconds = 30
	DefaultMaxConcurrent         = 8
	DefaultEventDurationMinutes  = 30
)

// AttemptTimeout returns the per-strategy timeout as a [time.Duration].
func (p PipelineConfig) AttemptTimeout() time.Duration {
	return time.Duration(p.AttemptTimeoutSeconds) * time.Second
}

// InviteTTL returns the invitation validity window as a [time.Duration].
func (a AuthConfig) InviteTTL() time.Duration {
	return time.Duration(a.InviteTTLHours) * time.Hour
}
