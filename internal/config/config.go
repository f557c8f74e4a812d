// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Engine      EngineConfig      `mapstructure:"engine" yaml:"engine"`
	Network     NetworkConfig     `mapstructure:"network" yaml:"network"`
	Synthesizer SynthesizerConfig `mapstructure:"synthesizer" yaml:"synthesizer"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string `mapstructure:"args" yaml:"args"`
	WindowWidth     int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int      `mapstructure:"window_height" yaml:"window_height"`
}

// EngineConfig tunes step execution behavior.
type EngineConfig struct {
	// DefaultStepTimeout applies to click/type/extract/wait steps that carry
	// no explicit timeoutMs.
	DefaultStepTimeout time.Duration `mapstructure:"default_step_timeout" yaml:"default_step_timeout"`
	// InterStepDelay is the fixed pause between steps, to avoid overwhelming
	// slow target pages.
	InterStepDelay time.Duration `mapstructure:"inter_step_delay" yaml:"inter_step_delay"`
	// KeystrokeDelay is the pause between keystrokes in type steps, so
	// client-side validation hooks see individual key events.
	KeystrokeDelay time.Duration `mapstructure:"keystroke_delay" yaml:"keystroke_delay"`
	// ResolverMinSlice is the lower bound for the per-candidate time slice
	// during selector fallback resolution.
	ResolverMinSlice time.Duration `mapstructure:"resolver_min_slice" yaml:"resolver_min_slice"`
}

// NetworkConfig tunes navigation behavior.
type NetworkConfig struct {
	// NavigationTimeout bounds navigate steps; it is deliberately longer than
	// the default step timeout because ERP portals load slowly.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// PostLoadWait is the fixed settle delay applied after the document is
	// ready, to accommodate client-rendered pages.
	PostLoadWait time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// SynthesizerConfig configures the external script synthesis service client.
type SynthesizerConfig struct {
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	Model             string        `mapstructure:"model" yaml:"model"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// SetDefaults registers the default value for every key on the given viper
// instance. Called before reading the config file so a missing file still
// yields a usable configuration.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "erppilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", false)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)

	v.SetDefault("engine.default_step_timeout", 15*time.Second)
	v.SetDefault("engine.inter_step_delay", 500*time.Millisecond)
	v.SetDefault("engine.keystroke_delay", 30*time.Millisecond)
	v.SetDefault("engine.resolver_min_slice", 2*time.Second)

	v.SetDefault("network.navigation_timeout", 60*time.Second)
	v.SetDefault("network.post_load_wait", 2*time.Second)

	v.SetDefault("synthesizer.api_key", "")
	v.SetDefault("synthesizer.model", "gemini-2.0-flash")
	v.SetDefault("synthesizer.endpoint", "")
	v.SetDefault("synthesizer.api_timeout", 90*time.Second)
	v.SetDefault("synthesizer.requests_per_minute", 12)
}

// Load reads configuration from the optional file path, environment
// variables prefixed ERPPILOT_, and built-in defaults, in that order of
// precedence (highest first: env, file, defaults).
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("ERPPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the run.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
