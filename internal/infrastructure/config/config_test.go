package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testSecret is a JWT secret long enough to pass validation.
const testSecret = "0123456789abcdef0123456789abcdef"

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
scenes:
  path: "/ha/scenes.yaml"
homeassistant:
  url: "ws://ha.local:8123/api/websocket"
  token: "long-lived-token"
api:
  port: 9000
logging:
  level: "debug"
security:
  jwt:
    secret: "`+testSecret+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Scenes.Path != "/ha/scenes.yaml" {
		t.Errorf("Scenes.Path = %q, want /ha/scenes.yaml", cfg.Scenes.Path)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Defaults survive partial files
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "scenes: [not: a: mapping")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected error for invalid YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
homeassistant:
  url: "ws://ha.local:8123/api/websocket"
  token: "file-token"
security:
  jwt:
    secret: "`+testSecret+`"
`)

	t.Setenv("SCENECAPTURE_HASS_TOKEN", "env-token")
	t.Setenv("SCENECAPTURE_SCENES_PATH", "/override/scenes.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HomeAssistant.Token != "env-token" {
		t.Errorf("HomeAssistant.Token = %q, want env-token", cfg.HomeAssistant.Token)
	}
	if cfg.Scenes.Path != "/override/scenes.yaml" {
		t.Errorf("Scenes.Path = %q, want /override/scenes.yaml", cfg.Scenes.Path)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := defaultConfig()
		cfg.HomeAssistant.Token = "token"
		cfg.Security.JWT.Secret = testSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing scenes path",
			mutate:  func(c *Config) { c.Scenes.Path = "" },
			wantErr: "scenes.path",
		},
		{
			name:    "non websocket URL",
			mutate:  func(c *Config) { c.HomeAssistant.URL = "http://ha.local:8123" },
			wantErr: "homeassistant.url",
		},
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.HomeAssistant.Token = "" },
			wantErr: "homeassistant.token",
		},
		{
			name:    "bad qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: "security.jwt.secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}
