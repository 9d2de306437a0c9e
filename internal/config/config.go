// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
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

type BotConfig struct {
	Token         string        `yaml:"token"`
	Workers       int           `yaml:"workers"`     // polling workers
	QueueDepth    int           `yaml:"queue_depth"` // buffered updates per worker
	DebugUserID   int64         `yaml:"debug_user_id"`
	MaxMessageLen int           `yaml:"max_message_len"`
	RateLimit     int           `yaml:"rate_limit"` // commands per user per window, 0 disables
	RateWindow    time.Duration `yaml:"rate_window"`
}

type LogConfig struct {
	Level    string `yaml:"level"`     // trace|debug|info|warn|error
	Format   string `yaml:"format"`    // json|console
	Sampling bool   `yaml:"sampling"`  // enable sampling in prod
	WarnFile string `yaml:"warn_file"` // warn+ records, served by /debug
}

type AdminConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty keeps sessions and locks in memory
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type LLMConfig struct {
	Provider        string        `yaml:"provider"` // yandex|openai|gemini|noop
	APIKey          string        `yaml:"api_key"`
	FolderID        string        `yaml:"folder_id"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	Temperature     float64       `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent LLM calls
}

type StoryConfig struct {
	TokensLimitByUser int64         `yaml:"tokens_limit_by_user"`
	RequestMaxTokens  int           `yaml:"request_max_tokens"`
	Language          string        `yaml:"language"`
	LockTTL           time.Duration `yaml:"lock_ttl"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	LLM      LLMConfig      `yaml:"llm"`
	Story    StoryConfig    `yaml:"story"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	ProviderYandex = "yandex"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNoop   = "noop"
)

// LoadConfig parses the process flags and loads the configuration they point to.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	return Load(configPath, dev)
}

// Load reads the optional yaml file, applies .env and process environment
// overrides, fills defaults and validates the result.
func Load(path string, dev bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// environment only
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Bot.Token, "BOT_TOKEN")
	setString(&cfg.LLM.APIKey, "GPT_API_KEY")
	setString(&cfg.LLM.FolderID, "GPT_FOLDER_ID")
	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")

	if v := strings.TrimSpace(os.Getenv("DEBUG_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse DEBUG_ID: %w", err)
		}
		cfg.Bot.DebugUserID = id
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.QueueDepth <= 0 {
		cfg.Bot.QueueDepth = 32
	}
	if cfg.Bot.MaxMessageLen <= 0 {
		cfg.Bot.MaxMessageLen = 4096
	}
	if cfg.Bot.RateWindow <= 0 {
		cfg.Bot.RateWindow = time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.WarnFile == "" {
		cfg.Log.WarnFile = "logs/warning.log"
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 8081
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderYandex
		if cfg.Runtime.Dev && cfg.LLM.APIKey == "" {
			cfg.LLM.Provider = ProviderNoop
		}
	}
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModel(cfg.LLM.Provider)
	}
	if cfg.LLM.BaseURL == "" && cfg.LLM.Provider == ProviderYandex {
		cfg.LLM.BaseURL = "https://llm.api.cloud.yandex.net/foundationModels/v1"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 1
	}
	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = 750
	}
	if cfg.LLM.Timeout <= 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}
	if cfg.LLM.ConcurrentLimit <= 0 {
		cfg.LLM.ConcurrentLimit = 16
	}

	if cfg.Story.TokensLimitByUser <= 0 {
		cfg.Story.TokensLimitByUser = 3000
	}
	if cfg.Story.RequestMaxTokens <= 0 {
		cfg.Story.RequestMaxTokens = 500
	}
	if cfg.Story.Language == "" {
		cfg.Story.Language = "ru"
	}
	if cfg.Story.LockTTL <= 0 {
		cfg.Story.LockTTL = cfg.LLM.Timeout*2 + 10*time.Second
	}
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGemini:
		return "gemini-2.0-flash"
	case ProviderNoop:
		return "noop"
	default:
		return "yandexgpt-lite"
	}
}

func (c *Config) validate() error {
	if c.Bot.Token == "" {
		return errors.New("bot.token is required (BOT_TOKEN)")
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required (DATABASE_URL)")
	}
	switch c.LLM.Provider {
	case ProviderYandex:
		if c.LLM.FolderID == "" {
			return errors.New("llm.folder_id is required for yandex (GPT_FOLDER_ID)")
		}
	case ProviderOpenAI, ProviderGemini:
	case ProviderNoop:
		return nil
	default:
		return fmt.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key is required (GPT_API_KEY)")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
