// Package config loads courier client settings from a courier.yaml file and
// COURIER_* environment variables, validates them, and converts them into
// functional options for courier.New. It is an optional layer: programs that
// prefer code-level configuration use the options directly.
package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/sanasaryank/courier"
)

// RetryConfig holds attempt-loop settings.
type RetryConfig struct {
	MaxAttempts       int     `mapstructure:"max_attempts"`
	PerAttemptTimeout string  `mapstructure:"per_attempt_timeout"`
	BackoffBase       string  `mapstructure:"backoff_base"`
	MaxBackoff        string  `mapstructure:"max_backoff"`
	Jitter            float64 `mapstructure:"jitter"`
}

// CircuitBreakerConfig holds breaker settings.
type CircuitBreakerConfig struct {
	FailureThreshold int    `mapstructure:"failure_threshold"`
	ResetTimeout     string `mapstructure:"reset_timeout"`
}

// LoggingConfig holds debug logging settings.
type LoggingConfig struct {
	Debug bool `mapstructure:"debug"`
}

// Config is the full file/env configuration surface.
type Config struct {
	Retry          RetryConfig          `mapstructure:"retry"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// Load reads courier.yaml (working directory or ./config) plus COURIER_*
// environment variables, with defaults matching courier.New. Missing files
// are fine; malformed files and invalid values are not.
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom is Load with an explicit search directory, mainly for tests.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.per_attempt_timeout", "30s")
	v.SetDefault("retry.backoff_base", "1s")
	v.SetDefault("retry.max_backoff", "10s")
	v.SetDefault("retry.jitter", 0.0)
	v.SetDefault("circuit_breaker.failure_threshold", 5)
	v.SetDefault("circuit_breaker.reset_timeout", "60s")
	v.SetDefault("logging.debug", false)

	v.SetConfigName("courier")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(dir + "/config")

	v.SetEnvPrefix("courier")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading courier.yaml: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field-level constraints. Duration strings are validated by
// parsing; cross-field checks (maxBackoff >= backoffBase) are left to the
// client's own construction-time validation.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Retry, validation.By(func(value interface{}) error {
			rc, ok := value.(RetryConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a RetryConfig")
			}
			return validation.ValidateStruct(&rc,
				validation.Field(&rc.MaxAttempts, validation.Required, validation.Min(1), validation.Max(100)),
				validation.Field(&rc.PerAttemptTimeout, validation.Required, validation.By(validateDuration)),
				validation.Field(&rc.BackoffBase, validation.Required, validation.By(validateDuration)),
				validation.Field(&rc.MaxBackoff, validation.Required, validation.By(validateDuration)),
				validation.Field(&rc.Jitter, validation.Min(0.0), validation.Max(1.0)),
			)
		})),
		validation.Field(&c.CircuitBreaker, validation.By(func(value interface{}) error {
			cc, ok := value.(CircuitBreakerConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a CircuitBreakerConfig")
			}
			return validation.ValidateStruct(&cc,
				validation.Field(&cc.FailureThreshold, validation.Required, validation.Min(1)),
				validation.Field(&cc.ResetTimeout, validation.Required, validation.By(validateDuration)),
			)
		})),
	)
}

// Options converts a validated Config into courier functional options.
func (c *Config) Options() ([]courier.Option, error) {
	perAttempt, err := time.ParseDuration(c.Retry.PerAttemptTimeout)
	if err != nil {
		return nil, fmt.Errorf("config: per_attempt_timeout: %w", err)
	}
	backoffBase, err := time.ParseDuration(c.Retry.BackoffBase)
	if err != nil {
		return nil, fmt.Errorf("config: backoff_base: %w", err)
	}
	maxBackoff, err := time.ParseDuration(c.Retry.MaxBackoff)
	if err != nil {
		return nil, fmt.Errorf("config: max_backoff: %w", err)
	}
	resetTimeout, err := time.ParseDuration(c.CircuitBreaker.ResetTimeout)
	if err != nil {
		return nil, fmt.Errorf("config: reset_timeout: %w", err)
	}

	opts := []courier.Option{
		courier.WithMaxAttempts(c.Retry.MaxAttempts),
		courier.WithPerAttemptTimeout(perAttempt),
		courier.WithBackoffBase(backoffBase),
		courier.WithMaxBackoff(maxBackoff),
		courier.WithCircuitBreaker(courier.CircuitBreakerConfig{
			FailureThreshold: c.CircuitBreaker.FailureThreshold,
			ResetTimeout:     resetTimeout,
		}),
	}

	if c.Retry.Jitter > 0 {
		opts = append(opts, courier.WithJitter(c.Retry.Jitter))
	}
	if c.Logging.Debug {
		opts = append(opts, courier.WithSimpleLogger())
	}

	return opts, nil
}

func validateDuration(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a duration string")
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration such as 30s")
	}
	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be a positive duration")
	}
	return nil
}
