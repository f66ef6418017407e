// Package config loads and validates the application configuration.
//
// Settings resolve in three layers, later layers winning: built-in defaults,
// an optional YAML file, then environment variables. The merged result is
// checked against an embedded JSON schema before anything connects anywhere,
// so a typo in the config file fails at startup instead of mid-conversation.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"flowchat/common/environment"
)

//go:embed schema.json
var schemaJSON string

// NiFi holds the connection settings for the NiFi instance.
type NiFi struct {
	URL                   string `yaml:"url" json:"url"`
	AuthType              string `yaml:"auth_type" json:"auth_type"`
	Username              string `yaml:"username,omitempty" json:"username,omitempty"`
	Password              string `yaml:"password,omitempty" json:"password,omitempty"`
	Token                 string `yaml:"token,omitempty" json:"token,omitempty"`
	SSLVerify             bool   `yaml:"ssl_verify" json:"ssl_verify"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`
}

// Cache holds the remote-state cache settings.
type Cache struct {
	TTLSeconds int `yaml:"ttl_seconds" json:"ttl_seconds"`
}

// Retry bounds the retry policy for remote calls.
type Retry struct {
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// UI holds the terminal client settings.
type UI struct {
	ServerURL string `yaml:"server_url" json:"server_url"`
}

// Audit holds the audit trail settings.
type Audit struct {
	DatabasePath string `yaml:"database_path" json:"database_path"`
}

// Log holds the logging settings.
type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Config is the full application configuration.
type Config struct {
	NiFi   NiFi   `yaml:"nifi" json:"nifi"`
	Cache  Cache  `yaml:"cache" json:"cache"`
	Retry  Retry  `yaml:"retry" json:"retry"`
	Server Server `yaml:"server" json:"server"`
	UI     UI     `yaml:"ui" json:"ui"`
	Audit  Audit  `yaml:"audit" json:"audit"`
	Log    Log    `yaml:"log" json:"log"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		NiFi: NiFi{
			URL:                   "http://localhost:8080/nifi-api",
			AuthType:              "none",
			SSLVerify:             true,
			RequestTimeoutSeconds: 30,
		},
		Cache:  Cache{TTLSeconds: 30},
		Retry:  Retry{MaxAttempts: 3},
		Server: Server{Host: "127.0.0.1", Port: 8090},
		UI:     UI{ServerURL: "http://127.0.0.1:8090"},
		Audit:  Audit{DatabasePath: "flowchat.db"},
		Log:    Log{Level: "info", Format: "text"},
	}
}

// Load resolves the configuration from defaults, the YAML file at path (when
// path is non-empty) and environment variables, then validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg. Environment always wins
// over the file, matching how the service is deployed in containers.
func applyEnv(cfg *Config) {
	cfg.NiFi.URL = environment.StringOr("NIFI_URL", cfg.NiFi.URL)
	cfg.NiFi.AuthType = environment.StringOr("NIFI_AUTH_TYPE", cfg.NiFi.AuthType)
	cfg.NiFi.Username = environment.StringOr("NIFI_USERNAME", cfg.NiFi.Username)
	cfg.NiFi.Password = environment.StringOr("NIFI_PASSWORD", cfg.NiFi.Password)
	cfg.NiFi.Token = environment.StringOr("NIFI_TOKEN", cfg.NiFi.Token)
	cfg.NiFi.SSLVerify = environment.BoolOr("NIFI_SSL_VERIFY", cfg.NiFi.SSLVerify)
	cfg.NiFi.RequestTimeoutSeconds = environment.IntOr("NIFI_REQUEST_TIMEOUT_SECONDS", cfg.NiFi.RequestTimeoutSeconds)

	cfg.Cache.TTLSeconds = environment.IntOr("FLOWCHAT_CACHE_TTL_SECONDS", cfg.Cache.TTLSeconds)
	cfg.Retry.MaxAttempts = environment.IntOr("FLOWCHAT_RETRY_MAX_ATTEMPTS", cfg.Retry.MaxAttempts)
	cfg.Server.Host = environment.StringOr("FLOWCHAT_SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = environment.IntOr("FLOWCHAT_SERVER_PORT", cfg.Server.Port)
	cfg.UI.ServerURL = environment.StringOr("FLOWCHAT_SERVER_URL", cfg.UI.ServerURL)
	cfg.Audit.DatabasePath = environment.StringOr("FLOWCHAT_AUDIT_DB", cfg.Audit.DatabasePath)
	cfg.Log.Level = environment.StringOr("FLOWCHAT_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = environment.StringOr("FLOWCHAT_LOG_FORMAT", cfg.Log.Format)
}

// Validate checks cfg against the embedded JSON schema plus the cross-field
// rules the schema cannot express.
func (c Config) Validate() error {
	schema, err := jsonschema.CompileString("flowchat.json", schemaJSON)
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	// Round-trip through encoding/json so the schema sees plain maps and
	// numbers instead of Go structs.
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.NiFi.AuthType {
	case "basic":
		if c.NiFi.Username == "" || c.NiFi.Password == "" {
			return errors.New("invalid configuration: auth_type \"basic\" requires nifi.username and nifi.password")
		}
	case "token":
		if c.NiFi.Token == "" {
			return errors.New("invalid configuration: auth_type \"token\" requires nifi.token")
		}
	}
	return nil
}

// RequestTimeout returns the per-call NiFi timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.NiFi.RequestTimeoutSeconds) * time.Second
}

// CacheTTL returns the cache freshness window as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
