package config_test

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kv9x/dowser-cli/internal/config"
)

func validConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Target.BaseURL = "https://target.example"
	return cfg
}

func TestDefaultsUnmarshal(t *testing.T) {
	cfg := config.NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "dowser-cli", cfg.Logger.ServiceName)
	assert.Equal(t, []string{"/"}, cfg.Target.Routes)
	assert.Equal(t, 4, cfg.Engine.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Probe.WaitForTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Probe.PollInterval)
	assert.True(t, cfg.Browser.Headless)
	assert.False(t, cfg.Load.Enabled)
	assert.Contains(t, cfg.Target.ItemDefaults, "name")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*config.Config) {},
		},
		{
			name:    "missing base url",
			mutate:  func(c *config.Config) { c.Target.BaseURL = "" },
			wantErr: "base_url",
		},
		{
			name:    "relative base url",
			mutate:  func(c *config.Config) { c.Target.BaseURL = "/just/a/path" },
			wantErr: "absolute",
		},
		{
			name:    "no routes",
			mutate:  func(c *config.Config) { c.Target.Routes = nil },
			wantErr: "routes",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *config.Config) { c.Engine.Concurrency = 0 },
			wantErr: "concurrency",
		},
		{
			name:    "poll interval above wait timeout",
			mutate:  func(c *config.Config) { c.Probe.PollInterval = c.Probe.WaitForTimeout * 2 },
			wantErr: "poll_interval",
		},
		{
			name: "load enabled without users",
			mutate: func(c *config.Config) {
				c.Load.Enabled = true
				c.Load.VirtualUsers = 0
			},
			wantErr: "virtual_users",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNewConfigFromViper(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("target.base_url", "https://target.example")
	v.Set("target.routes", []string{"/", "/items"})

	cfg, err := config.NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/items"}, cfg.Target.Routes)

	v.Set("engine.concurrency", -1)
	_, err = config.NewConfigFromViper(v)
	require.Error(t, err)
}

func TestRouteURL(t *testing.T) {
	cfg := validConfig()
	cfg.Target.BaseURL = "https://target.example/"

	assert.Equal(t, "https://target.example/", cfg.RouteURL(""))
	assert.Equal(t, "https://target.example/items", cfg.RouteURL("/items"))
	assert.Equal(t, "https://target.example/items", cfg.RouteURL("items"))
}
