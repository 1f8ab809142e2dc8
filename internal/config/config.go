// Package config loads server settings from defaults, an optional YAML
// file, a .env file and SITECOUNTS_* environment variables, in increasing
// order of precedence.
//
//   - server.port, server.shutdownTimeout
//   - database.path (SQLITE_DB_PATH is honoured as the default)
//   - site.locale, site.timezone, site.baseURL
//   - content.dir, content.watch
//   - blocks.metadataDir (empty uses the embedded block.json)
//   - webhook.secret, webhook.branch
//   - tracing.enabled, tracing.endpoint
//   - log.level, log.pretty
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/dfryer1193/sitecounts/shared/db/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const EnvPrefix = "SITECOUNTS"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Site     SiteConfig     `mapstructure:"site"`
	Content  ContentConfig  `mapstructure:"content"`
	Blocks   BlocksConfig   `mapstructure:"blocks"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Log      LogConfig      `mapstructure:"log"`

	// File is the config file that was read, empty when none was.
	File string `mapstructure:"-"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type SiteConfig struct {
	Locale   string `mapstructure:"locale" validate:"required"`
	Timezone string `mapstructure:"timezone" validate:"required"`
	BaseURL  string `mapstructure:"baseURL" validate:"omitempty,url"`
}

type ContentConfig struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"`
}

type BlocksConfig struct {
	MetadataDir string `mapstructure:"metadataDir"`
}

type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
	Branch string `mapstructure:"branch"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `mapstructure:"pretty"`
}

// Location resolves site.timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load site timezone %q: %w", c.Site.Timezone, err)
	}
	return loc, nil
}

// LogLevel parses log.level.
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("database.path", sqlite.NewSQLiteConfig().Path)
	v.SetDefault("site.locale", "en")
	v.SetDefault("site.timezone", "UTC")
	v.SetDefault("site.baseURL", "")
	v.SetDefault("content.dir", "")
	v.SetDefault("content.watch", false)
	v.SetDefault("blocks.metadataDir", "")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.branch", "main")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load builds the configuration. cfgFile names an explicit config file that
// must exist; when empty, ./config.yaml is read if present.
func Load(cfgFile string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
