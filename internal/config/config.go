// Package config loads sendgate configuration.
//
// Settings come from three layers, later layers winning:
//  1. Built-in defaults
//  2. A JSON file (optional; a missing file is not an error)
//  3. Environment variables prefixed with SENDGATE_, with "." in keys
//     replaced by "_" (SENDGATE_RATE_PER_SECOND overrides rate.per_second)
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/vnykmshr/sendgate/pkg/common/validation"
	"github.com/vnykmshr/sendgate/pkg/mail"
	"github.com/vnykmshr/sendgate/pkg/ratelimit/window"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "SENDGATE"

// Config is the complete sendgate configuration. SMTP settings sit at the
// top level of the file.
type Config struct {
	Mail mail.Config `mapstructure:",squash"`
	Rate Rate        `mapstructure:"rate"`
	Log  Log         `mapstructure:"log"`
}

// Rate holds the gate ceilings.
type Rate struct {
	PerSecond int `mapstructure:"per_second"`
	PerHour   int `mapstructure:"per_hour"`
	PerDay    int `mapstructure:"per_day"`
}

// Log selects the logger level and format.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GateConfig converts the ceilings to a window.Config.
func (r Rate) GateConfig() window.Config {
	return window.Config{
		MaxPerSecond: r.PerSecond,
		MaxPerHour:   r.PerHour,
		MaxPerDay:    r.PerDay,
	}
}

// Load reads path and applies environment overrides. An empty path or a
// path that does not exist yields the defaults. The returned Config is
// validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		found, err := exists(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if found {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Mail = cfg.Mail.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the SMTP settings and that every ceiling is positive.
// Ceilings missing from the file already carry their defaults, so a zero
// here was set explicitly and is rejected.
func (c *Config) Validate() error {
	if err := c.Mail.Validate(); err != nil {
		return err
	}
	ceilings := []struct {
		field string
		value int
	}{
		{"rate.per_second", c.Rate.PerSecond},
		{"rate.per_hour", c.Rate.PerHour},
		{"rate.per_day", c.Rate.PerDay},
	}
	for _, ceiling := range ceilings {
		if err := validation.ValidatePositive("config", ceiling.field, ceiling.value); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := mail.DefaultConfig()
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("username", d.Username)
	v.SetDefault("password", d.Password)
	v.SetDefault("sender", d.Sender)
	v.SetDefault("sender_name", d.SenderName)
	v.SetDefault("domain", "")
	v.SetDefault("tls_policy", d.TLSPolicy)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("feedback_campaign", d.FeedbackCampaign)
	v.SetDefault("max_connections", d.MaxConnections)

	v.SetDefault("rate.per_second", window.DefaultMaxPerSecond)
	v.SetDefault("rate.per_hour", window.DefaultMaxPerHour)
	v.SetDefault("rate.per_day", window.DefaultMaxPerDay)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
