package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port    string `yaml:"port"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Auth struct {
		SessionTTL    time.Duration `yaml:"session_ttl"`
		ResetTokenTTL time.Duration `yaml:"reset_token_ttl"`
	} `yaml:"auth"`
	Billing struct {
		SecretKey         string `yaml:"secret_key"`
		WebhookSecret     string `yaml:"webhook_secret"`
		BasePriceID       string `yaml:"base_price_id"`
		HumanCoachPriceID string `yaml:"human_coach_price_id"`
	} `yaml:"billing"`
	Email struct {
		APIKey string `yaml:"api_key"`
		From   string `yaml:"from"`
	} `yaml:"email"`
	Coach struct {
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		UseMock bool   `yaml:"use_mock"`
	} `yaml:"coach"`
	Voice struct {
		APIKey  string `yaml:"api_key"`
		VoiceID string `yaml:"voice_id"`
		Model   string `yaml:"model"`
	} `yaml:"voice"`
	Telegram struct {
		Token string `yaml:"token"`
	} `yaml:"telegram"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Logging struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"logging"`
}

// Default returns the configuration used when neither a file nor the
// environment override a value.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Server.BaseURL = "http://localhost:3000"
	cfg.Database.Path = "data/coachboard.db"
	cfg.Auth.SessionTTL = 30 * 24 * time.Hour
	cfg.Auth.ResetTokenTTL = time.Hour
	cfg.Email.From = "Coach <coach@example.com>"
	cfg.Coach.Model = "gemini-2.5-flash"
	cfg.Voice.Model = "eleven_multilingual_v2"
	cfg.Schedule.Reminders = "* * * * *"
	cfg.Schedule.DailySummary = "0 20 * * *"
	cfg.Schedule.WeeklyReport = "0 18 * * 0"
	cfg.Schedule.Cleanup = "30 3 * * *"
	cfg.Logging.Level = "info"
	return cfg
}

// ScheduleConfig holds cron specs in UTC. An empty spec disables the job.
type ScheduleConfig struct {
	Reminders    string `yaml:"reminders"`
	DailySummary string `yaml:"daily_summary"`
	WeeklyReport string `yaml:"weekly_report"`
	Cleanup      string `yaml:"cleanup"`
}

// Load builds the config from defaults, an optional YAML file and the
// environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.BaseURL = getEnv("BASE_URL", c.Server.BaseURL)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)

	if v := os.Getenv("SESSION_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SESSION_TTL: %w", err)
		}
		c.Auth.SessionTTL = ttl
	}

	c.Billing.SecretKey = getEnv("STRIPE_SECRET_KEY", c.Billing.SecretKey)
	c.Billing.WebhookSecret = getEnv("STRIPE_WEBHOOK_SECRET", c.Billing.WebhookSecret)
	c.Billing.BasePriceID = getEnv("STRIPE_PRICE_BASE", c.Billing.BasePriceID)
	c.Billing.HumanCoachPriceID = getEnv("STRIPE_PRICE_HUMAN_COACH", c.Billing.HumanCoachPriceID)

	c.Email.APIKey = getEnv("RESEND_API_KEY", c.Email.APIKey)
	c.Email.From = getEnv("EMAIL_FROM", c.Email.From)

	c.Coach.APIKey = getEnv("GEMINI_API_KEY", c.Coach.APIKey)
	c.Coach.Model = getEnv("COACH_MODEL", c.Coach.Model)
	useMock, err := getBoolEnv("COACH_USE_MOCK", c.Coach.UseMock)
	if err != nil {
		return err
	}
	c.Coach.UseMock = useMock

	c.Voice.APIKey = getEnv("ELEVENLABS_API_KEY", c.Voice.APIKey)
	c.Voice.VoiceID = getEnv("ELEVENLABS_VOICE_ID", c.Voice.VoiceID)

	c.Telegram.Token = getEnv("TG_TOKEN", c.Telegram.Token)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	dev, err := getBoolEnv("LOG_DEVELOPMENT", c.Logging.Development)
	if err != nil {
		return err
	}
	c.Logging.Development = dev
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.session_ttl must be positive"))
	}
	if c.Auth.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("auth.reset_token_ttl must be positive"))
	}
	if c.Billing.SecretKey != "" && c.Billing.WebhookSecret == "" {
		errs = append(errs, errors.New("billing.webhook_secret is required when billing is enabled"))
	}
	if !c.Coach.UseMock && c.Coach.APIKey == "" {
		errs = append(errs, errors.New("coach.api_key is required unless coach.use_mock is set"))
	}
	return errors.Join(errs...)
}

func (c *Config) BillingEnabled() bool {
	return c.Billing.SecretKey != ""
}

func (c *Config) TelegramEnabled() bool {
	return c.Telegram.Token != ""
}

func (c *Config) VoiceEnabled() bool {
	return c.Voice.APIKey != "" && c.Voice.VoiceID != ""
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getBoolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
