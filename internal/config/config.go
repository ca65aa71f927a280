// Package config loads service settings from an optional YAML file and
// PULSE_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "PULSE"

// Config holds the configuration for the service.
type Config struct {
	Server struct {
		Addr            string        `mapstructure:"addr"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
		WaitTimeout     time.Duration `mapstructure:"wait_timeout"`
	} `mapstructure:"server"`
	Backend struct {
		// Type is one of memory, sqlite, postgres, mysql or redis.
		Type string `mapstructure:"type"`
		DSN  string `mapstructure:"dsn"`

		SqlitePath string `mapstructure:"sqlite_path"`

		MySQL struct {
			Host     string `mapstructure:"host"`
			Port     int    `mapstructure:"port"`
			User     string `mapstructure:"user"`
			Password string `mapstructure:"password"`
			Database string `mapstructure:"database"`
		} `mapstructure:"mysql"`

		Redis struct {
			Addr      string `mapstructure:"addr"`
			Password  string `mapstructure:"password"`
			DB        int    `mapstructure:"db"`
			KeyPrefix string `mapstructure:"key_prefix"`
		} `mapstructure:"redis"`

		ExecutionListLimit int `mapstructure:"execution_list_limit"`
	} `mapstructure:"backend"`
	Engine struct {
		ActionTimeout    time.Duration `mapstructure:"action_timeout"`
		MaxParallelRuns  int           `mapstructure:"max_parallel_runs"`
		TemplateCacheTTL time.Duration `mapstructure:"template_cache_ttl"`
	} `mapstructure:"engine"`
	Slack struct {
		WebhookURL string `mapstructure:"webhook_url"`
	} `mapstructure:"slack"`
	Tracing struct {
		// Exporter is one of none, stdout or otlp.
		Exporter string `mapstructure:"exporter"`
		Endpoint string `mapstructure:"endpoint"`
		Insecure bool   `mapstructure:"insecure"`
	} `mapstructure:"tracing"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.wait_timeout", 20*time.Second)

	v.SetDefault("backend.type", "memory")
	v.SetDefault("backend.dsn", "")
	v.SetDefault("backend.sqlite_path", "pulse.sqlite")
	v.SetDefault("backend.mysql.host", "localhost")
	v.SetDefault("backend.mysql.port", 3306)
	v.SetDefault("backend.mysql.user", "root")
	v.SetDefault("backend.mysql.password", "")
	v.SetDefault("backend.mysql.database", "pulse")
	v.SetDefault("backend.redis.addr", "localhost:6379")
	v.SetDefault("backend.redis.password", "")
	v.SetDefault("backend.redis.db", 0)
	v.SetDefault("backend.redis.key_prefix", "")
	v.SetDefault("backend.execution_list_limit", 100)

	v.SetDefault("engine.action_timeout", 10*time.Second)
	v.SetDefault("engine.max_parallel_runs", 0)
	v.SetDefault("engine.template_cache_ttl", 30*time.Second)

	v.SetDefault("slack.webhook_url", "")

	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("log.level", "info")
}

// Load reads the configuration. path may name a file explicitly, otherwise
// config.yaml is looked up in the working directory and ./config. A missing
// file is not an error, defaults and the environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Backend.Type {
	case "memory", "sqlite", "postgres", "mysql", "redis":
	default:
		return fmt.Errorf("invalid config: unknown backend type %q", c.Backend.Type)
	}

	if c.Backend.Type == "postgres" && c.Backend.DSN == "" {
		return errors.New("invalid config: postgres backend requires backend.dsn")
	}

	switch c.Tracing.Exporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("invalid config: unknown tracing exporter %q", c.Tracing.Exporter)
	}

	if c.Engine.MaxParallelRuns < 0 {
		return errors.New("invalid config: engine.max_parallel_runs must not be negative")
	}

	return nil
}
