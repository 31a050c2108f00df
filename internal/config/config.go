// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration. Workflow instances receive it
// at construction; nothing in the core reads environment state directly, so
// instances are independently testable and parallel-safe.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Target  TargetConfig  `mapstructure:"target" yaml:"target"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Probe   ProbeConfig   `mapstructure:"probe" yaml:"probe"`
	Load    LoadConfig    `mapstructure:"load" yaml:"load"`
	Report  ReportConfig  `mapstructure:"report" yaml:"report"`
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

// TargetConfig describes the application under test.
type TargetConfig struct {
	BaseURL string   `mapstructure:"base_url" yaml:"base_url"`
	Routes  []string `mapstructure:"routes" yaml:"routes"`
	// LoginRoute is probed for the credential pair. Empty means "try each
	// route"; the login workflow skips routes without the pair.
	LoginRoute  string            `mapstructure:"login_route" yaml:"login_route"`
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	// ItemDefaults supplies per-field synthetic values for known form fields
	// (name, description, price, quantity). Field names are matched
	// case-insensitively.
	ItemDefaults map[string]string `mapstructure:"item_defaults" yaml:"item_defaults"`
}

// CredentialsConfig holds the test account. These are the only real-looking
// values the classifier will ever type into credential-role fields.
type CredentialsConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"-"`
}

// BrowserConfig holds settings for the headless browser sessions.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string `mapstructure:"args" yaml:"args"`
	WindowWidth     int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int      `mapstructure:"window_height" yaml:"window_height"`
}

// EngineConfig tunes the per-route workflow runner.
type EngineConfig struct {
	// Concurrency bounds how many workflow instances (each with its own
	// isolated browser session) run at once.
	Concurrency      int           `mapstructure:"concurrency" yaml:"concurrency"`
	WorkflowDeadline time.Duration `mapstructure:"workflow_deadline" yaml:"workflow_deadline"`
}

// ProbeConfig bounds the suspension points. Neither wait is ever unbounded.
type ProbeConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	WaitForTimeout    time.Duration `mapstructure:"wait_for_timeout" yaml:"wait_for_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// LoadConfig drives the HTTP load-generation collaborator.
type LoadConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	VirtualUsers int           `mapstructure:"virtual_users" yaml:"virtual_users"`
	Duration     time.Duration `mapstructure:"duration" yaml:"duration"`
	// RatePerUser caps requests per second per virtual user.
	RatePerUser    float64       `mapstructure:"rate_per_user" yaml:"rate_per_user"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	CheckHeaders   bool          `mapstructure:"check_headers" yaml:"check_headers"`
}

// ReportConfig controls result output.
type ReportConfig struct {
	Output string `mapstructure:"output" yaml:"output"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "dowser-cli")
	v.SetDefault("logger.log_file", "dowser.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Target --
	v.SetDefault("target.routes", []string{"/"})
	v.SetDefault("target.credentials.username", "qa.dowser@example.com")
	v.SetDefault("target.credentials.password", "DowserTest123!")
	v.SetDefault("target.item_defaults", map[string]string{
		"name":        "Dowser Item",
		"description": "Created by automated exploration",
		"price":       "9.99",
		"quantity":    "3",
	})

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 900)

	// -- Engine --
	v.SetDefault("engine.concurrency", 4)
	v.SetDefault("engine.workflow_deadline", "2m")

	// -- Probe --
	v.SetDefault("probe.navigation_timeout", "30s")
	v.SetDefault("probe.wait_for_timeout", "5s")
	v.SetDefault("probe.poll_interval", "250ms")

	// -- Load --
	v.SetDefault("load.enabled", false)
	v.SetDefault("load.virtual_users", 5)
	v.SetDefault("load.duration", "30s")
	v.SetDefault("load.rate_per_user", 2.0)
	v.SetDefault("load.request_timeout", "10s")
	v.SetDefault("load.check_headers", true)

	// -- Report --
	v.SetDefault("report.output", "dowser-report.json")
	v.SetDefault("report.format", "json")
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with static defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper builds and validates a configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Target.BaseURL == "" {
		return fmt.Errorf("target.base_url is required")
	}
	parsed, err := url.Parse(c.Target.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("target.base_url %q is not an absolute URL", c.Target.BaseURL)
	}
	if len(c.Target.Routes) == 0 {
		return fmt.Errorf("target.routes must name at least one route")
	}
	if c.Engine.Concurrency <= 0 {
		return fmt.Errorf("engine.concurrency must be a positive integer")
	}
	if c.Engine.WorkflowDeadline <= 0 {
		return fmt.Errorf("engine.workflow_deadline must be a positive duration")
	}
	if c.Probe.WaitForTimeout <= 0 || c.Probe.NavigationTimeout <= 0 {
		return fmt.Errorf("probe timeouts must be positive durations")
	}
	if c.Probe.PollInterval <= 0 || c.Probe.PollInterval > c.Probe.WaitForTimeout {
		return fmt.Errorf("probe.poll_interval must be positive and below probe.wait_for_timeout")
	}
	if c.Load.Enabled {
		if c.Load.VirtualUsers <= 0 {
			return fmt.Errorf("load.virtual_users must be a positive integer")
		}
		if c.Load.RatePerUser <= 0 {
			return fmt.Errorf("load.rate_per_user must be positive")
		}
	}
	return nil
}

// RouteURL joins the base URL with a route path.
func (c *Config) RouteURL(route string) string {
	base := strings.TrimRight(c.Target.BaseURL, "/")
	if route == "" {
		return base + "/"
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return base + route
}
