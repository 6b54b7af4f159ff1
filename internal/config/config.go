package config

import (
	"errors"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "SKILL_"

// Config is the process configuration, read once at cold start.
type Config struct {
	Chatbase         ChatbaseConfig
	SkillID          string
	FailedBatchTable string
	TracingEnabled   bool
}

type ChatbaseConfig struct {
	APIKey string
	// APIKeyParam names an SSM parameter holding the API key. Used when
	// APIKey is empty.
	APIKeyParam     string
	Platform        string
	SuppressSending bool
	IgnoreUsers     []string
	BaseURL         string
}

// Load reads SKILL_* environment variables, after loading a .env file from
// the working directory when one exists. A double underscore separates
// nested keys: SKILL_CHATBASE__API_KEY is chatbase.api_key.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	if !k.Exists("chatbase.platform") {
		_ = k.Set("chatbase.platform", "Alexa")
	}

	cfg := &Config{
		Chatbase: ChatbaseConfig{
			APIKey:          strings.TrimSpace(k.String("chatbase.api_key")),
			APIKeyParam:     strings.TrimSpace(k.String("chatbase.api_key_param")),
			Platform:        k.String("chatbase.platform"),
			SuppressSending: k.Bool("chatbase.suppress_sending"),
			IgnoreUsers:     splitList(k.String("chatbase.ignore_users")),
			BaseURL:         strings.TrimSpace(k.String("chatbase.base_url")),
		},
		SkillID:          strings.TrimSpace(k.String("skill_id")),
		FailedBatchTable: strings.TrimSpace(k.String("failed_batch_table")),
		TracingEnabled:   k.Bool("tracing.enabled"),
	}
	if cfg.Chatbase.APIKey == "" && cfg.Chatbase.APIKeyParam == "" {
		return nil, errors.New("config: one of SKILL_CHATBASE__API_KEY or SKILL_CHATBASE__API_KEY_PARAM is required")
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
