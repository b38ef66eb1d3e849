package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ModeDemo       = "demo"
	ModeProduction = "production"
)

// Config holds everything the server needs at startup.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Copilot  CopilotConfig  `yaml:"copilot"`
}

type ServerConfig struct {
	Port        string   `yaml:"port"`
	Mode        string   `yaml:"mode"` // demo | production
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig: empty URL disables the reference-data cache.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// OpenAIConfig: empty APIKey disables every AI feature.
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WhatsAppConfig: empty Token puts outbound delivery in mock mode.
type WhatsAppConfig struct {
	Token         string `yaml:"token"`
	PhoneNumberID string `yaml:"phone_number_id"`
	VerifyToken   string `yaml:"verify_token"`
	AppSecret     string `yaml:"app_secret"`
	APIBaseURL    string `yaml:"api_base_url"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// CopilotConfig tunes the rule-based parts of the copilot and the handoff check.
type CopilotConfig struct {
	WelcomeCodes     []string `yaml:"welcome_codes"`
	BulkCodes        []string `yaml:"bulk_codes"`
	BulkThreshold    float64  `yaml:"bulk_threshold"`
	ReorderAfterDays int      `yaml:"reorder_after_days"`
	HandoffKeywords  []string `yaml:"handoff_keywords"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Mode:        ModeDemo,
			CORSOrigins: []string{"http://localhost:5173", "http://localhost:5174", "http://localhost:3000"},
		},
		OpenAI: OpenAIConfig{
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 15,
		},
		WhatsApp: WhatsAppConfig{
			APIBaseURL: "https://graph.facebook.com/v17.0",
		},
		Log: LogConfig{Level: "INFO"},
		Copilot: CopilotConfig{
			WelcomeCodes:     []string{"BEMVINDO", "FIRSTORDER"},
			BulkCodes:        []string{"CHURRASCAO", "BULKBUY"},
			BulkThreshold:    500,
			ReorderAfterDays: 14,
			HandoffKeywords:  []string{"atendente", "humano", "pessoa", "operador", "falar com alguem", "ajuda humana"},
		},
	}
}

// Load reads .env, then the optional YAML file at path, then environment
// overrides. An empty path or a missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Mode, "APP_MODE")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.Model, "OPENAI_MODEL")
	if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.OpenAI.TimeoutSeconds = n
		}
	}
	setString(&c.WhatsApp.Token, "WHATSAPP_TOKEN")
	setString(&c.WhatsApp.PhoneNumberID, "PHONE_NUMBER_ID")
	setString(&c.WhatsApp.VerifyToken, "VERIFY_TOKEN")
	setString(&c.WhatsApp.AppSecret, "WHATSAPP_APP_SECRET")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.File, "LOG_FILE")

	if c.WhatsApp.VerifyToken == "" && c.Server.Mode == ModeDemo {
		c.WhatsApp.VerifyToken = "test_token"
	}
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	switch c.Server.Mode {
	case ModeDemo:
	case ModeProduction:
		if c.Auth.JWTSecret == "" {
			missing = append(missing, "JWT_SECRET")
		}
	default:
		return fmt.Errorf("config: unknown APP_MODE %q", c.Server.Mode)
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Server.Mode == ModeProduction }

// AuthEnabled reports whether the operator API requires a bearer token.
func (c *Config) AuthEnabled() bool { return c.IsProduction() }

func (c *Config) LogLevel() slog.Level {
	switch strings.ToUpper(c.Log.Level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
