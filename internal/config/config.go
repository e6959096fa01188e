package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port       string `yaml:"port"`
	DataDir    string `yaml:"data_dir"`
	ExportsDir string `yaml:"exports_dir"`

	GoogleCredentialsFile string `yaml:"google_credentials_file"`
	GoogleAccount         string `yaml:"google_account"`
	OAuthRedirectURL      string `yaml:"oauth_redirect_url"`
	TokenFile             string `yaml:"token_file"`
	PubSubTopic           string `yaml:"pubsub_topic"`

	DB   DBConfig   `yaml:"db"`
	Line LineConfig `yaml:"line"`

	MaxResults          int `yaml:"max_results"`
	DefaultLookbackDays int `yaml:"default_lookback_days"`
	MaxBackups          int `yaml:"max_backups"`
	RetryMaxAttempts    int `yaml:"retry_max_attempts"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type LineConfig struct {
	ChannelToken  string `yaml:"channel_token"`
	ChannelSecret string `yaml:"channel_secret"`
	NotifyUser    string `yaml:"notify_user"`
}

func Default() *Config {
	return &Config{
		Port:                  "8080",
		DataDir:               "data",
		ExportsDir:            "exports",
		GoogleCredentialsFile: "credentials.json",
		GoogleAccount:         "me",
		OAuthRedirectURL:      "http://localhost:8080/oauth/google/callback",
		DB:                    DBConfig{Port: "3306"},
		MaxResults:            1000,
		DefaultLookbackDays:   30,
		MaxBackups:            10,
		RetryMaxAttempts:      3,
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// Load reads .env, then the optional YAML file named by CONFIG_FILE, then
// environment variables, each layer overriding the previous one.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found")
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.ExportsDir = getEnv("EXPORTS_DIR", c.ExportsDir)

	c.GoogleCredentialsFile = getEnv("GOOGLE_CREDENTIALS_FILE", c.GoogleCredentialsFile)
	c.GoogleAccount = getEnv("GOOGLE_ACCOUNT", c.GoogleAccount)
	c.OAuthRedirectURL = getEnv("OAUTH_REDIRECT_URL", c.OAuthRedirectURL)
	c.TokenFile = getEnv("TOKEN_FILE", c.TokenFile)
	c.PubSubTopic = getEnv("PUBSUB_TOPIC", c.PubSubTopic)

	c.DB.Host = getEnv("DB_HOST", c.DB.Host)
	c.DB.Port = getEnv("DB_PORT", c.DB.Port)
	c.DB.User = getEnv("DB_USER", c.DB.User)
	c.DB.Password = getEnv("DB_PASSWORD", c.DB.Password)
	c.DB.Name = getEnv("DB_NAME", c.DB.Name)

	c.Line.ChannelToken = getEnv("LINE_CHANNEL_TOKEN", c.Line.ChannelToken)
	c.Line.ChannelSecret = getEnv("LINE_CHANNEL_SECRET", c.Line.ChannelSecret)
	c.Line.NotifyUser = getEnv("LINE_NOTIFY_USER", c.Line.NotifyUser)

	c.MaxResults = getEnvInt("MAX_RESULTS", c.MaxResults)
	c.DefaultLookbackDays = getEnvInt("DEFAULT_LOOKBACK_DAYS", c.DefaultLookbackDays)
	c.MaxBackups = getEnvInt("MAX_BACKUPS", c.MaxBackups)
	c.RetryMaxAttempts = getEnvInt("RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

func (c *Config) Validate() error {
	if c.MaxResults < 1 {
		return fmt.Errorf("max_results must be positive, got %d", c.MaxResults)
	}
	if c.MaxBackups < 1 {
		return fmt.Errorf("max_backups must be positive, got %d", c.MaxBackups)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("retry_max_attempts must be positive, got %d", c.RetryMaxAttempts)
	}
	if c.DefaultLookbackDays < 1 {
		return fmt.Errorf("default_lookback_days must be positive, got %d", c.DefaultLookbackDays)
	}
	return nil
}

// DBEnabled reports whether tokens go to MySQL instead of the token file.
func (c *Config) DBEnabled() bool {
	return c.DB.Host != ""
}

func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func (c *Config) TrackingFile() string {
	return filepath.Join(c.DataDir, "email_tracking.xlsx")
}

func (c *Config) SettingsFile() string {
	return filepath.Join(c.DataDir, "app_settings.toml")
}

func (c *Config) TokenPath() string {
	if c.TokenFile != "" {
		return c.TokenFile
	}
	return filepath.Join(c.DataDir, "token.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("ignoring invalid integer env var", "key", key, "value", value)
		return defaultValue
	}
	return n
}
