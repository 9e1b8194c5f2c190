package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// global configuration structure
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Reddit   RedditConfig   `mapstructure:"reddit"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Database DatabaseConfig `mapstructure:"database"`
}

// enforcement policy configuration
type BotConfig struct {
	ReasonTag             string   `mapstructure:"reason_tag"`
	TrustedSubs           []string `mapstructure:"trusted_subs"`
	ExemptUsers           []string `mapstructure:"exempt_users"`
	LookbackMinutes       int      `mapstructure:"lookback_minutes"`
	RetentionDays         int      `mapstructure:"retention_days"`
	DailyBanLimit         int      `mapstructure:"daily_ban_limit"`
	PassIntervalMinutes   int      `mapstructure:"pass_interval_minutes"`
	ActionIntervalSeconds int      `mapstructure:"action_interval_seconds"`
	ModLogLimit           int      `mapstructure:"mod_log_limit"`
}

// Reddit API credentials
type RedditConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	UserAgent    string `mapstructure:"user_agent"`
}

// logging configuration
type LoggerConfig struct {
	Directory  string            `mapstructure:"directory"`
	Rotation   LogRotationConfig `mapstructure:"rotation"`
	Timezone   string            `mapstructure:"timezone"`
	TimeFormat string            `mapstructure:"time_format"`
	Level      string            `mapstructure:"level"`
}

// log rotation settings
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
}

var cfg *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	log.Printf("Using config file: %s", v.ConfigFileUsed())

	// Unmarshal configuration
	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.Bot.normalize()

	if len(cfg.Bot.TrustedSubs) == 0 {
		return nil, fmt.Errorf("at least one trusted sub is required")
	}

	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		log.Fatal("Configuration not initialized, call Load() first")
	}
	return cfg
}

// normalize lowercases sub and user names so lookups are case-insensitive
func (b *BotConfig) normalize() {
	for i, sub := range b.TrustedSubs {
		b.TrustedSubs[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(sub), "r/"))
	}
	for i, user := range b.ExemptUsers {
		b.ExemptUsers[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(user), "u/"))
	}
}

// IsTrustedSub reports whether sub is in the trusted set
func (b *BotConfig) IsTrustedSub(sub string) bool {
	sub = strings.ToLower(sub)
	for _, s := range b.TrustedSubs {
		if s == sub {
			return true
		}
	}
	return false
}

// IsExemptUser reports whether username is in the static exemption list
func (b *BotConfig) IsExemptUser(username string) bool {
	username = strings.ToLower(username)
	for _, u := range b.ExemptUsers {
		if u == username {
			return true
		}
	}
	return false
}

// Lookback returns the mod log age cutoff window
func (b *BotConfig) Lookback() time.Duration {
	return time.Duration(b.LookbackMinutes) * time.Minute
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.reason_tag", "Auto XSub Pact Ban")
	v.SetDefault("bot.lookback_minutes", 45)
	v.SetDefault("bot.retention_days", 10)
	v.SetDefault("bot.daily_ban_limit", 50)
	v.SetDefault("bot.pass_interval_minutes", 15)
	v.SetDefault("bot.action_interval_seconds", 2)
	v.SetDefault("bot.mod_log_limit", 100)

	v.SetDefault("reddit.user_agent", "crossban/1.0")

	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.rotation.max_size", 10)
	v.SetDefault("logger.rotation.max_backups", 30)
	v.SetDefault("logger.rotation.max_age", 90)
	v.SetDefault("logger.rotation.compress", true)
	v.SetDefault("logger.timezone", "Local")
	v.SetDefault("logger.time_format", "2006/01/02 15:04:05")
	v.SetDefault("logger.level", "INFO")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.charset", "utf8mb4")
}
