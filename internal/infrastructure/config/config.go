package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for ZWave Hub.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	Auth       AuthConfig       `yaml:"auth"`
	Switch     SwitchConfig     `yaml:"switch"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ControllerConfig describes the upstream Z-Wave controller connection.
type ControllerConfig struct {
	// Network is the socket family: "tcp" or "unix".
	Network string `yaml:"network"`

	// Address is the controller endpoint, e.g. "127.0.0.1:60004" or
	// "/var/run/ozw.sock".
	Address string `yaml:"address"`

	// Reconnect controls the exponential backoff applied between
	// reconnection attempts after the controller connection drops.
	Reconnect ReconnectConfig `yaml:"reconnect"`

	// RequestTimeout is how long to wait for a reply line to an issued
	// command, in seconds. The upstream protocol has no correlation IDs,
	// so a lost reply would otherwise stall the session forever.
	RequestTimeout int `yaml:"request_timeout"`

	// PendingLimit caps the number of queued outbound commands. Commands
	// beyond the cap fail fast instead of growing the queue unbounded.
	PendingLimit int `yaml:"pending_limit"`
}

// ReconnectConfig contains reconnection backoff settings (seconds).
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`

	// SendBuffer is the per-session outbound message buffer. When a slow
	// client fills its buffer, further deliveries to it are dropped rather
	// than blocking the hub.
	SendBuffer int `yaml:"send_buffer"`
}

// AuthMode selects how UI credentials are verified.
type AuthMode string

// Supported auth modes.
const (
	// AuthModeTokenInfo verifies access tokens against an external
	// OAuth token-info endpoint and fetches the profile remotely.
	AuthModeTokenInfo AuthMode = "tokeninfo"

	// AuthModeJWT verifies credentials locally as signed JWTs.
	AuthModeJWT AuthMode = "jwt"
)

// AuthConfig contains identity verification settings.
type AuthConfig struct {
	Mode AuthMode `yaml:"mode"`

	// ClientID and ClientSecret identify this application to the OAuth
	// provider. The token's audience must match ClientID.
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// TokenInfoURL and ProfileURL are the provider endpoints used in
	// tokeninfo mode.
	TokenInfoURL string `yaml:"tokeninfo_url"`
	ProfileURL   string `yaml:"profile_url"`

	// JWT contains settings for jwt mode.
	JWT JWTConfig `yaml:"jwt"`

	// RequestTimeout bounds each outbound verification call, in seconds.
	RequestTimeout int `yaml:"request_timeout"`
}

// JWTConfig contains local JWT verification settings.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	Audience string `yaml:"audience"`
	Issuer   string `yaml:"issuer"`
}

// SwitchConfig names the well-known device toggled by the bare SWITCH command.
type SwitchConfig struct {
	Node int `yaml:"node"`
}

// MQTTConfig contains settings for the optional MQTT event bridge.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains settings for the optional telemetry writer.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ZWAVEHUB_SECTION_KEY
// For example: ZWAVEHUB_CONTROLLER_ADDRESS, ZWAVEHUB_AUTH_CLIENT_ID
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Controller: ControllerConfig{
			Network: "tcp",
			Address: "127.0.0.1:60004",
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			RequestTimeout: 10,
			PendingLimit:   16,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
			SendBuffer:     32,
		},
		Auth: AuthConfig{
			Mode:           AuthModeTokenInfo,
			TokenInfoURL:   "https://www.googleapis.com/oauth2/v2/tokeninfo",
			ProfileURL:     "https://www.googleapis.com/oauth2/v2/userinfo",
			RequestTimeout: 10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "zwavehub",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ZWAVEHUB_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Controller
	if v := os.Getenv("ZWAVEHUB_CONTROLLER_NETWORK"); v != "" {
		cfg.Controller.Network = v
	}
	if v := os.Getenv("ZWAVEHUB_CONTROLLER_ADDRESS"); v != "" {
		cfg.Controller.Address = v
	}

	// API
	if v := os.Getenv("ZWAVEHUB_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("ZWAVEHUB_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Auth - secrets should always come from the environment in production
	if v := os.Getenv("ZWAVEHUB_AUTH_CLIENT_ID"); v != "" {
		cfg.Auth.ClientID = v
	}
	if v := os.Getenv("ZWAVEHUB_AUTH_CLIENT_SECRET"); v != "" {
		cfg.Auth.ClientSecret = v
	}
	if v := os.Getenv("ZWAVEHUB_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWT.Secret = v
	}

	// MQTT
	if v := os.Getenv("ZWAVEHUB_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ZWAVEHUB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ZWAVEHUB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("ZWAVEHUB_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	// Controller validation
	switch c.Controller.Network {
	case "tcp", "unix":
	default:
		errs = append(errs, "controller.network must be tcp or unix")
	}
	if c.Controller.Address == "" {
		errs = append(errs, "controller.address is required")
	}
	if c.Controller.PendingLimit < 1 {
		errs = append(errs, "controller.pending_limit must be at least 1")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Auth validation - a hub with no working auth admits nobody, but a hub
	// with weak auth exposes physical devices to anyone on the network.
	const minJWTSecretLength = 32
	switch c.Auth.Mode {
	case AuthModeTokenInfo:
		if c.Auth.ClientID == "" {
			errs = append(errs, "auth.client_id is required in tokeninfo mode")
		}
		if c.Auth.TokenInfoURL == "" {
			errs = append(errs, "auth.tokeninfo_url is required in tokeninfo mode")
		}
		if c.Auth.ProfileURL == "" {
			errs = append(errs, "auth.profile_url is required in tokeninfo mode")
		}
	case AuthModeJWT:
		if c.Auth.JWT.Secret == "" {
			errs = append(errs, "auth.jwt.secret is required in jwt mode (set ZWAVEHUB_AUTH_JWT_SECRET)")
		} else if len(c.Auth.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "auth.jwt.secret must be at least 32 characters")
		}
	default:
		errs = append(errs, "auth.mode must be tokeninfo or jwt")
	}

	// MQTT validation (only when enabled)
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
	}

	// InfluxDB validation (only when enabled)
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetRequestTimeout returns the controller request timeout as a Duration.
func (c *ControllerConfig) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// GetInitialReconnectDelay returns the first backoff delay as a Duration.
func (c *ControllerConfig) GetInitialReconnectDelay() time.Duration {
	return time.Duration(c.Reconnect.InitialDelay) * time.Second
}

// GetMaxReconnectDelay returns the backoff ceiling as a Duration.
func (c *ControllerConfig) GetMaxReconnectDelay() time.Duration {
	return time.Duration(c.Reconnect.MaxDelay) * time.Second
}

// GetAuthTimeout returns the auth request timeout as a Duration.
func (c *AuthConfig) GetAuthTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}
