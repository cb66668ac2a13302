// Package config loads tabular.yaml, TABULAR_* environment overrides and
// code defaults into one validated Config.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Log struct {
		Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
		Pretty bool   `mapstructure:"pretty"`
	} `mapstructure:"log"`

	Exec struct {
		MaxSteps     int64         `mapstructure:"max_steps" validate:"gte=0"`
		Timeout      time.Duration `mapstructure:"timeout" validate:"gte=0"`
		Sandbox      bool          `mapstructure:"sandbox"`
		AllowedPaths []string      `mapstructure:"allowed_paths"`
		Optimize     bool          `mapstructure:"optimize"`
		MaxRows      int           `mapstructure:"max_rows" validate:"gte=0"`
	} `mapstructure:"exec"`

	Market struct {
		APIKey          string        `mapstructure:"api_key"`
		BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
		Workers         int           `mapstructure:"workers" validate:"gte=1,lte=64"`
		MaxRetries      uint64        `mapstructure:"max_retries" validate:"lte=20"`
		InitialInterval time.Duration `mapstructure:"initial_interval" validate:"gt=0"`
		Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	} `mapstructure:"market"`

	Codegen struct {
		APIKey   string        `mapstructure:"api_key"`
		Model    string        `mapstructure:"model" validate:"required"`
		MaxSteps int64         `mapstructure:"max_steps" validate:"gte=1"`
		Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
	} `mapstructure:"codegen"`

	Server struct {
		Addr         string            `mapstructure:"addr" validate:"required,hostname_port"`
		QueryTimeout time.Duration     `mapstructure:"query_timeout" validate:"gt=0"`
		MaxSteps     int64             `mapstructure:"max_steps" validate:"gte=1"`
		MaxRows      int               `mapstructure:"max_rows" validate:"gte=1"`
		Frames       map[string]string `mapstructure:"frames" validate:"dive,keys,required,endkeys,required"`
	} `mapstructure:"server"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("exec.max_steps", 0)
	v.SetDefault("exec.timeout", time.Duration(0))
	v.SetDefault("exec.sandbox", false)
	v.SetDefault("exec.allowed_paths", []string{})
	v.SetDefault("exec.optimize", true)
	v.SetDefault("exec.max_rows", 50)

	v.SetDefault("market.api_key", "")
	v.SetDefault("market.base_url", "https://api.polygon.io")
	v.SetDefault("market.workers", 4)
	v.SetDefault("market.max_retries", 5)
	v.SetDefault("market.initial_interval", 500*time.Millisecond)
	v.SetDefault("market.timeout", 30*time.Second)

	v.SetDefault("codegen.api_key", "")
	v.SetDefault("codegen.model", "gemini-2.5-flash")
	v.SetDefault("codegen.max_steps", 100_000)
	v.SetDefault("codegen.timeout", 30*time.Second)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.query_timeout", 10*time.Second)
	v.SetDefault("server.max_steps", 1_000_000)
	v.SetDefault("server.max_rows", 1000)
	v.SetDefault("server.frames", map[string]string{})
}

// Load reads the config file at path, or tabular.yaml from the working
// directory when path is empty. A missing default file is not an error.
// Environment variables TABULAR_<SECTION>_<KEY> override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TABULAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("market.api_key", "TABULAR_MARKET_API_KEY", "POLYGON_API_KEY")
	_ = v.BindEnv("codegen.api_key", "TABULAR_CODEGEN_API_KEY", "GEMINI_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("tabular")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
