package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
controller:
  network: "tcp"
  address: "10.0.0.5:60004"
api:
  host: "0.0.0.0"
  port: 8090
auth:
  mode: "tokeninfo"
  client_id: "test-client-id.apps.example.com"
switch:
  node: 7
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Controller.Address != "10.0.0.5:60004" {
		t.Errorf("Controller.Address = %q, want %q", cfg.Controller.Address, "10.0.0.5:60004")
	}
	if cfg.Auth.ClientID != "test-client-id.apps.example.com" {
		t.Errorf("Auth.ClientID = %q", cfg.Auth.ClientID)
	}
	if cfg.Switch.Node != 7 {
		t.Errorf("Switch.Node = %d, want 7", cfg.Switch.Node)
	}

	// Defaults survive a partial file
	if cfg.Controller.PendingLimit != 16 {
		t.Errorf("Controller.PendingLimit = %d, want default 16", cfg.Controller.PendingLimit)
	}
	if cfg.WebSocket.SendBuffer != 32 {
		t.Errorf("WebSocket.SendBuffer = %d, want default 32", cfg.WebSocket.SendBuffer)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "controller: [not: closed"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	content := `
controller:
  address: "file-address:1"
auth:
  mode: "jwt"
`
	t.Setenv("ZWAVEHUB_CONTROLLER_ADDRESS", "env-address:2")
	t.Setenv("ZWAVEHUB_AUTH_JWT_SECRET", "this-is-a-test-secret-of-32-chars!!")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Controller.Address != "env-address:2" {
		t.Errorf("Controller.Address = %q, want env override", cfg.Controller.Address)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Auth.ClientID = "client-id"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid tokeninfo config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing controller address",
			mutate:  func(c *Config) { c.Controller.Address = "" },
			wantErr: true,
		},
		{
			name:    "bad controller network",
			mutate:  func(c *Config) { c.Controller.Network = "udp" },
			wantErr: true,
		},
		{
			name:    "api port out of range",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "tokeninfo mode without client id",
			mutate:  func(c *Config) { c.Auth.ClientID = "" },
			wantErr: true,
		},
		{
			name: "jwt mode with short secret",
			mutate: func(c *Config) {
				c.Auth.Mode = AuthModeJWT
				c.Auth.JWT.Secret = "short"
			},
			wantErr: true,
		},
		{
			name: "jwt mode with adequate secret",
			mutate: func(c *Config) {
				c.Auth.Mode = AuthModeJWT
				c.Auth.JWT.Secret = "this-is-a-test-secret-of-32-chars!!"
			},
			wantErr: false,
		},
		{
			name:    "unknown auth mode",
			mutate:  func(c *Config) { c.Auth.Mode = "ldap" },
			wantErr: true,
		},
		{
			name: "mqtt enabled with bad qos",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantErr: true,
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.Bucket = "telemetry"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
