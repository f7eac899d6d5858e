package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	YourName string
	LogLevel string
	LogFile  string

	// Dataset preparation.
	LLMProvider     string
	GeminiAPIKey    string
	DataprepModel   string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	RawChatsDir     string
	OutputPath      string
	SessionGap      time.Duration
	MaxRPM          int
	MaxRPD          int
	DatabaseURL     string
	SlackBotToken   string
	SlackChannel    string

	// Reply bot.
	ProjectID        string
	Location         string
	ModelID          string
	WhatsAppToken    string
	PhoneNumberID    string
	VerifyToken      string
	WhatsAppURL      string
	MaxHistoryLength int
	BotPersona       string
	Port             int
	RequestTimeout   time.Duration
	MetricsNamespace string

	NatsURL   string
	NatsToken string
}

// LoadDotEnv loads a .env file from the working directory into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func Load() Config {
	return Config{
		YourName: envStr("YOUR_NAME", ""),
		LogLevel: envStr("LOG_LEVEL", "info"),
		LogFile:  envStr("LOG_FILE", ""),

		LLMProvider:     strings.ToLower(envStr("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey:    envStr("GEMINI_API_KEY", ""),
		DataprepModel:   envStr("DATAPREP_MODEL", "gemini-2.0-flash"),
		OpenAIAPIKey:    envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   envStr("OPENAI_BASE_URL", ""),
		OpenAIModel:     envStr("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		RawChatsDir:     envStr("RAW_CHATS_DIR", "whatsapp_data/raw_chats"),
		OutputPath:      envStr("OUTPUT_PATH", "whatsapp_data/processed/train_data.jsonl"),
		SessionGap:      envDuration("SESSION_GAP", time.Hour),
		MaxRPM:          envInt("MAX_RPM", 14),
		MaxRPD:          envInt("MAX_RPD", 1400),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		SlackBotToken:   envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:    envStr("SLACK_CHANNEL", ""),

		ProjectID:        envStr("PROJECT_ID", ""),
		Location:         envStr("LOCATION", ""),
		ModelID:          envStr("MODEL_ID", ""),
		WhatsAppToken:    envStr("WHATSAPP_TOKEN", ""),
		PhoneNumberID:    envStr("PHONE_NUMBER_ID", ""),
		VerifyToken:      envStr("VERIFY_TOKEN", ""),
		WhatsAppURL:      envStr("WHATSAPP_URL", ""),
		MaxHistoryLength: envInt("MAX_HISTORY_LENGTH", 10),
		BotPersona:       envStr("BOT_PERSONA", ""),
		Port:             envInt("PORT", 8080),
		RequestTimeout:   envDuration("REQUEST_TIMEOUT", 60*time.Second),
		MetricsNamespace: envStr("METRICS_NAMESPACE", "doppel"),

		NatsURL:   envStr("NATS_URL", ""),
		NatsToken: envStr("NATS_TOKEN", ""),
	}
}

// ValidateBatch checks the settings the dataset job needs. Model credentials
// are not required in direct mode.
func (c Config) ValidateBatch(direct bool) error {
	var errs []error
	if c.YourName == "" {
		errs = append(errs, missing("YOUR_NAME"))
	}
	if c.SessionGap <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_GAP must be positive, got %s", c.SessionGap))
	}
	if c.MaxRPM <= 0 || c.MaxRPD <= 0 {
		errs = append(errs, fmt.Errorf("MAX_RPM and MAX_RPD must be positive, got %d/%d", c.MaxRPM, c.MaxRPD))
	}
	if !direct {
		switch c.LLMProvider {
		case ProviderGemini:
			if c.GeminiAPIKey == "" {
				errs = append(errs, missing("GEMINI_API_KEY"))
			}
		case ProviderOpenAI:
			if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
				errs = append(errs, missing("OPENAI_API_KEY"))
			}
		case ProviderAnthropic:
			if c.AnthropicAPIKey == "" {
				errs = append(errs, missing("ANTHROPIC_API_KEY"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
		}
	}
	return errors.Join(errs...)
}

// ValidateReply checks the settings the reply bot needs.
func (c Config) ValidateReply() error {
	var errs []error
	for _, req := range []struct{ key, val string }{
		{"YOUR_NAME", c.YourName},
		{"PROJECT_ID", c.ProjectID},
		{"LOCATION", c.Location},
		{"MODEL_ID", c.ModelID},
		{"WHATSAPP_TOKEN", c.WhatsAppToken},
		{"PHONE_NUMBER_ID", c.PhoneNumberID},
		{"VERIFY_TOKEN", c.VerifyToken},
	} {
		if req.val == "" {
			errs = append(errs, missing(req.key))
		}
	}
	if c.MaxHistoryLength <= 0 {
		errs = append(errs, fmt.Errorf("MAX_HISTORY_LENGTH must be positive, got %d", c.MaxHistoryLength))
	}
	return errors.Join(errs...)
}

func missing(key string) error {
	return fmt.Errorf("%s is required", key)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
