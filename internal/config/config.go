// Package config loads bizmap configuration from config.yaml and BIZMAP_*
// environment variables, and installs the global zap logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultSnapshotKey is the key the explorer snapshot is stored under.
const DefaultSnapshotKey = "nc_business_data_v1"

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Boundaries BoundariesConfig `yaml:"boundaries" mapstructure:"boundaries"`
	Summary    SummaryConfig    `yaml:"summary" mapstructure:"summary"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Watch      WatchConfig      `yaml:"watch" mapstructure:"watch"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the snapshot backend.
type StoreConfig struct {
	Driver      string      `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string      `yaml:"database_url" mapstructure:"database_url"`
	Key         string      `yaml:"key" mapstructure:"key"`
	MaxConns    int32       `yaml:"max_conns" mapstructure:"max_conns"`
	Redis       RedisConfig `yaml:"redis" mapstructure:"redis"`
	S3          S3Config    `yaml:"s3" mapstructure:"s3"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// S3Config holds S3 bucket settings. Keys are optional; the default AWS
// credential chain is used when they are empty.
type S3Config struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Region          string `yaml:"region" mapstructure:"region"`
	Prefix          string `yaml:"prefix" mapstructure:"prefix"`
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
}

// DataConfig points at the seed dataset.
type DataConfig struct {
	SeedPath string `yaml:"seed_path" mapstructure:"seed_path"`
}

// BoundariesConfig locates the county and zip boundary layers.
type BoundariesConfig struct {
	CountiesURL string `yaml:"counties_url" mapstructure:"counties_url"`
	ZipsURL     string `yaml:"zips_url" mapstructure:"zips_url"`
	StateFIPS   string `yaml:"state_fips" mapstructure:"state_fips"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SummaryConfig selects the AI summary provider.
type SummaryConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// WatchConfig configures the drop-directory importer.
type WatchConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Mode    string `yaml:"mode" mapstructure:"mode"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BIZMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "bizmap.db")
	v.SetDefault("store.key", DefaultSnapshotKey)
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "bizmap:")
	v.SetDefault("store.s3.region", "us-east-1")
	v.SetDefault("store.s3.prefix", "bizmap")
	v.SetDefault("boundaries.counties_url", "https://cdn.jsdelivr.net/gh/plotly/datasets@master/geojson-counties-fips.json")
	v.SetDefault("boundaries.zips_url", "https://raw.githubusercontent.com/OpenDataDE/State-zip-code-GeoJSON/master/nc_north_carolina_zip_codes_geo.min.json")
	v.SetDefault("boundaries.state_fips", "37")
	v.SetDefault("boundaries.timeout_secs", 60)
	v.SetDefault("summary.provider", "anthropic")
	v.SetDefault("summary.max_tokens", 512)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("watch.dir", "./incoming")
	v.SetDefault("watch.pattern", "*.{csv,json,xlsx}")
	v.SetDefault("watch.mode", "append")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields a command needs. mode is one of "serve",
// "import", "watch" or "cli".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			problems = append(problems, "store.redis.addr is required")
		}
	case "s3":
		if c.Store.S3.Bucket == "" {
			problems = append(problems, "store.s3.bucket is required")
		}
	default:
		problems = append(problems, "store.driver must be sqlite, postgres, redis or s3")
	}
	if c.Store.Key == "" {
		problems = append(problems, "store.key is required")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
	case "watch":
		if c.Watch.Dir == "" {
			problems = append(problems, "watch.dir is required")
		}
		if c.Watch.Mode != "append" && c.Watch.Mode != "replace" {
			problems = append(problems, "watch.mode must be append or replace")
		}
	case "import", "cli":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Summary.Provider {
	case "", "anthropic", "gemini":
	default:
		problems = append(problems, "summary.provider must be anthropic or gemini")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
