// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"` // postgres | sqlite
	SQLitePath  string `yaml:"sqlite_path"`
	ArtifactDir string `yaml:"artifact_dir"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	// Keys is the Gemini credential pool. API_KEYS / API_KEY override it.
	Keys           []string `yaml:"keys"`
	GeminiURL      string   `yaml:"gemini_url"`
	TextModel      string   `yaml:"text_model"`
	TTSModel       string   `yaml:"tts_model"`
	VideoModel     string   `yaml:"video_model"`
	Voice          string   `yaml:"voice"`
	// fake runs every stage offline, not only the script.
	ScriptProvider string   `yaml:"script_provider"` // gemini | openai | fake
	OpenAIKeys     []string `yaml:"openai_keys"`
	OpenAIModel    string   `yaml:"openai_model"`
	OpenAIBaseURL  string   `yaml:"openai_base_url"`
	RandomStart    bool     `yaml:"random_start"`
	MaxConcurrent  int      `yaml:"max_concurrent"`
}

type PipelineConfig struct {
	RotationBackoff time.Duration `yaml:"rotation_backoff"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollMaxAttempts int           `yaml:"poll_max_attempts"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	AdFrequency     int           `yaml:"ad_frequency"`
	RewardNormal    int           `yaml:"reward_normal"`
	RewardViral     int           `yaml:"reward_viral"`
	QueueSize       int           `yaml:"queue_size"`
}

type AutomationConfig struct {
	Active      *bool         `yaml:"active"`
	MorningSlot string        `yaml:"morning_slot"`
	EveningSlot string        `yaml:"evening_slot"`
	Interval    time.Duration `yaml:"interval"`
	RetryAfter  time.Duration `yaml:"retry_after"`
	Timezone    string        `yaml:"timezone"`
}

// IsActive reports the configured master switch; unset means active.
func (a AutomationConfig) IsActive() bool {
	return a.Active == nil || *a.Active
}

type CronConfig struct {
	Secret     string        `yaml:"secret"`
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
	// Polling for the single trigger render.
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollMaxAttempts int           `yaml:"poll_max_attempts"`
}

type BotConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
	Lang   string `yaml:"lang"`
}

type SecurityConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	AdminKey  string        `yaml:"admin_key"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	Storage    StorageConfig    `yaml:"storage"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	AI         AIConfig         `yaml:"ai"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Automation AutomationConfig `yaml:"automation"`
	Cron       CronConfig       `yaml:"cron"`
	Bot        BotConfig        `yaml:"bot"`
	Security   SecurityConfig   `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses the -config and -dev flags and loads the file they point at.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return Load(configPath, dev)
}

// Load reads the yaml file at path, applies a .env file from the working
// directory when present, then environment overrides and defaults.
func Load(path string, dev bool) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && dev:
		// dev mode runs on defaults + env alone
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// ParseKeys splits a comma separated credential list, trimming blanks and
// dropping empty entries.
func ParseKeys(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("API_KEYS"); strings.TrimSpace(v) != "" {
		cfg.AI.Keys = ParseKeys(v)
	} else if v := os.Getenv("API_KEY"); strings.TrimSpace(v) != "" && len(cfg.AI.Keys) == 0 {
		cfg.AI.Keys = ParseKeys(v)
	}
	if v := os.Getenv("OPENAI_API_KEYS"); v != "" {
		cfg.AI.OpenAIKeys = ParseKeys(v)
	}
	if v := os.Getenv("CRON_SECRET"); v != "" {
		cfg.Cron.Secret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Bot.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Bot.ChatID = id
		}
	}
	if v := os.Getenv("ADMIN_KEY"); v != "" {
		cfg.Security.AdminKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Security.JWTSecret = v
	}
	// YAML lists may carry padded entries too.
	cfg.AI.Keys = ParseKeys(strings.Join(cfg.AI.Keys, ","))
	cfg.AI.OpenAIKeys = ParseKeys(strings.Join(cfg.AI.OpenAIKeys, ","))
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data"
	}
	if cfg.Storage.ArtifactDir == "" {
		cfg.Storage.ArtifactDir = "data/artifacts"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 8
	}

	if cfg.AI.TextModel == "" {
		cfg.AI.TextModel = "gemini-2.5-flash"
	}
	if cfg.AI.TTSModel == "" {
		cfg.AI.TTSModel = "gemini-2.5-flash-preview-tts"
	}
	if cfg.AI.VideoModel == "" {
		cfg.AI.VideoModel = "veo-3.1-fast-generate-preview"
	}
	if cfg.AI.Voice == "" {
		cfg.AI.Voice = "Kore"
	}
	if cfg.AI.ScriptProvider == "" {
		cfg.AI.ScriptProvider = "gemini"
	}
	if cfg.AI.OpenAIModel == "" {
		cfg.AI.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.AI.MaxConcurrent < 0 {
		cfg.AI.MaxConcurrent = 0
	}

	if cfg.Pipeline.RotationBackoff <= 0 {
		cfg.Pipeline.RotationBackoff = 500 * time.Millisecond
	}
	if cfg.Pipeline.PollInterval <= 0 {
		cfg.Pipeline.PollInterval = 5 * time.Second
	}
	if cfg.Pipeline.PollMaxAttempts <= 0 {
		cfg.Pipeline.PollMaxAttempts = 60
	}
	if cfg.Pipeline.DownloadTimeout <= 0 {
		cfg.Pipeline.DownloadTimeout = 2 * time.Minute
	}
	if cfg.Pipeline.AdFrequency <= 0 {
		cfg.Pipeline.AdFrequency = 3
	}
	if cfg.Pipeline.RewardNormal <= 0 {
		cfg.Pipeline.RewardNormal = 50
	}
	if cfg.Pipeline.RewardViral <= 0 {
		cfg.Pipeline.RewardViral = 75
	}
	if cfg.Pipeline.QueueSize <= 0 {
		cfg.Pipeline.QueueSize = 16
	}

	if cfg.Automation.MorningSlot == "" {
		cfg.Automation.MorningSlot = "08:00"
	}
	if cfg.Automation.EveningSlot == "" {
		cfg.Automation.EveningSlot = "18:00"
	}
	if cfg.Automation.Interval <= 0 {
		cfg.Automation.Interval = 30 * time.Second
	}
	if cfg.Automation.RetryAfter <= 0 {
		cfg.Automation.RetryAfter = 15 * time.Minute
	}
	if cfg.Automation.Timezone == "" {
		cfg.Automation.Timezone = "Local"
	}

	if cfg.Cron.RateLimit <= 0 {
		cfg.Cron.RateLimit = 6
	}
	if cfg.Cron.RateWindow <= 0 {
		cfg.Cron.RateWindow = time.Hour
	}
	if cfg.Cron.LockTTL <= 0 {
		cfg.Cron.LockTTL = 15 * time.Minute
	}
	if cfg.Cron.PollInterval <= 0 {
		cfg.Cron.PollInterval = 2 * time.Second
	}
	if cfg.Cron.PollMaxAttempts <= 0 {
		cfg.Cron.PollMaxAttempts = 15
	}
	if cfg.Bot.Lang == "" {
		cfg.Bot.Lang = "fr"
	}
	if cfg.Security.TokenTTL <= 0 {
		cfg.Security.TokenTTL = 12 * time.Hour
	}
}

// Minimal validation. Missing credentials are not an error here: the key
// pool reports them as a configuration failure on first use.
func validate(cfg *Config) error {
	switch cfg.Storage.Driver {
	case "postgres":
		if cfg.Database.URL == "" {
			return errors.New("database.url is required")
		}
		if cfg.Redis.URL == "" {
			return errors.New("redis.url is required")
		}
	case "sqlite":
	default:
		return fmt.Errorf("storage.driver %q is not supported", cfg.Storage.Driver)
	}
	switch cfg.AI.ScriptProvider {
	case "gemini", "fake":
	case "openai":
		if len(cfg.AI.OpenAIKeys) == 0 {
			return errors.New("ai.openai_keys is required for the openai script provider")
		}
	default:
		return fmt.Errorf("ai.script_provider %q is not supported", cfg.AI.ScriptProvider)
	}
	if cfg.Security.AdminKey != "" && cfg.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret is required when admin_key is set")
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("automation.timezone: %w", err)
	}
	return nil
}

// Location resolves the timezone slots are evaluated in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Automation.Timezone)
}
