package workflow

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the file/environment form of the adapter options.
type Config struct {
	Name          string `yaml:"name" mapstructure:"name"`
	BufferingMode string `yaml:"buffering_mode" mapstructure:"buffering_mode"`
	HighWaterMark int    `yaml:"high_water_mark" mapstructure:"high_water_mark"`
	AutoDestroy   bool   `yaml:"auto_destroy" mapstructure:"auto_destroy"`
	ErrorBuffer   int    `yaml:"error_buffer" mapstructure:"error_buffer"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "workflow"
	}
	if c.BufferingMode == "" {
		c.BufferingMode = ObjectMode.String()
	}
	if c.ErrorBuffer == 0 {
		c.ErrorBuffer = defaultErrorBuffer
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := parseBufferingMode(c.BufferingMode); err != nil {
		return err
	}
	if c.HighWaterMark < 0 {
		return fmt.Errorf("high_water_mark must not be negative (got: %d)", c.HighWaterMark)
	}
	if c.ErrorBuffer < 0 {
		return fmt.Errorf("error_buffer must not be negative (got: %d)", c.ErrorBuffer)
	}
	return nil
}

// Options converts the configuration into adapter options. It assumes the
// configuration is valid.
func (c Config) Options() []Option {
	mode, _ := parseBufferingMode(c.BufferingMode)
	return []Option{
		WithName(c.Name),
		WithBufferingMode(mode),
		WithHighWaterMark(c.HighWaterMark),
		WithAutoDestroy(c.AutoDestroy),
		WithErrorBuffer(c.ErrorBuffer),
	}
}

func parseBufferingMode(s string) (BufferingMode, error) {
	switch strings.ToLower(s) {
	case "", "object":
		return ObjectMode, nil
	case "byte", "bytes":
		return ByteMode, nil
	default:
		return ObjectMode, fmt.Errorf("buffering_mode must be one of [object, byte] (got: %s)", s)
	}
}

// LoadConfig reads the adapter configuration from path (YAML, JSON or TOML;
// empty means none) and STREAMFLOW_* environment variables, the latter taking
// precedence.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STREAMFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// keys must be known to viper for env values to reach Unmarshal
	v.SetDefault("name", "workflow")
	v.SetDefault("buffering_mode", ObjectMode.String())
	v.SetDefault("high_water_mark", 0)
	v.SetDefault("auto_destroy", false)
	v.SetDefault("error_buffer", defaultErrorBuffer)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
