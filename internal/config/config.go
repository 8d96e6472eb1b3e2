// Package config provides runtime configuration for the chatroom backend.
package config

import (
	"os"
	"strconv"
	"time"
)

// RoleLLM configures the text-generation provider for one pipeline role.
type RoleLLM struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float64
	MaxTokens   int
}

// Config holds the backend configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Config files
	ExperimentsPath string
	TokensPath      string

	// Token ledger database
	TokenLedgerDSN string

	// Session telemetry
	LogDir string

	// Simulation pacing
	TickInterval      time.Duration
	MessagesPerMinute float64
	ContextWindowSize int
	SessionDuration   time.Duration
	TypingDelay       time.Duration

	// Pipeline
	PerformerMaxAttempts int

	// WebSocket settings
	WSReadTimeout    time.Duration
	WSWriteTimeout   time.Duration
	WSPingInterval   time.Duration
	WSMaxMessageSize int64

	// LLM settings
	LLMTimeout          time.Duration
	LLMConcurrencyLimit int
	Director            RoleLLM
	Performer           RoleLLM
	Moderator           RoleLLM
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort:             getEnvInt("HTTP_PORT", 8080),
		ExperimentsPath:      getEnv("EXPERIMENTS_PATH", "config/experimental_settings.toml"),
		TokensPath:           getEnv("TOKENS_PATH", "config/participant_tokens.toml"),
		TokenLedgerDSN:       getEnv("TOKEN_LEDGER_DSN", "file:used_tokens.db?cache=shared&mode=rwc"),
		LogDir:               getEnv("LOG_DIR", "logs"),
		TickInterval:         time.Duration(getEnvInt("TICK_INTERVAL_MS", 1000)) * time.Millisecond,
		MessagesPerMinute:    getEnvFloat("MESSAGES_PER_MINUTE", 6),
		ContextWindowSize:    getEnvInt("CONTEXT_WINDOW_SIZE", 10),
		SessionDuration:      time.Duration(getEnvInt("SESSION_DURATION_MINUTES", 15)) * time.Minute,
		TypingDelay:          time.Duration(getEnvInt("TYPING_DELAY_MS", 1000)) * time.Millisecond,
		PerformerMaxAttempts: getEnvInt("PERFORMER_MAX_ATTEMPTS", 3),
		WSReadTimeout:        time.Duration(getEnvInt("WS_READ_TIMEOUT_SECONDS", 60)) * time.Second,
		WSWriteTimeout:       time.Duration(getEnvInt("WS_WRITE_TIMEOUT_SECONDS", 10)) * time.Second,
		WSPingInterval:       time.Duration(getEnvInt("WS_PING_INTERVAL_SECONDS", 30)) * time.Second,
		WSMaxMessageSize:     int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
		LLMTimeout:           time.Duration(getEnvInt("LLM_TIMEOUT_MS", 30000)) * time.Millisecond,
		LLMConcurrencyLimit:  getEnvInt("LLM_CONCURRENCY_LIMIT", 2),
		Director:             loadRoleLLM("DIRECTOR"),
		Performer:            loadRoleLLM("PERFORMER"),
		Moderator:            loadRoleLLM("MODERATOR"),
	}
}

// loadRoleLLM reads role-prefixed LLM settings (e.g. DIRECTOR_LLM_PROVIDER),
// falling back to the unprefixed LLM_* keys.
func loadRoleLLM(prefix string) RoleLLM {
	role := RoleLLM{
		Provider:  getEnv(prefix+"_LLM_PROVIDER", getEnv("LLM_PROVIDER", "mock")),
		BaseURL:   getEnv(prefix+"_LLM_BASE_URL", getEnv("LLM_BASE_URL", "")),
		APIKey:    getEnv(prefix+"_LLM_API_KEY", getEnv("LLM_API_KEY", "")),
		Model:     getEnv(prefix+"_LLM_MODEL", getEnv("LLM_MODEL", "")),
		MaxTokens: getEnvInt(prefix+"_LLM_MAX_TOKENS", getEnvInt("LLM_MAX_TOKENS", 0)),
	}
	if v := getEnv(prefix+"_LLM_TEMPERATURE", getEnv("LLM_TEMPERATURE", "")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			role.Temperature = &f
		}
	}
	return role
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
