// Package config loads bridge configuration from the environment, with
// optional .env file support.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultRelayEndpoint is the relay URL used when XIAOZHI_MCP_ENDPOINT is unset.
const DefaultRelayEndpoint = "wss://api.xiaozhi.me/mcp/"

// Config holds all recognized environment options.
type Config struct {
	// NAS connection
	SynologyURL      string
	SynologyUsername string
	SynologyPassword string
	AutoLogin        bool
	VerifySSL        bool
	SessionTimeout   time.Duration

	// Server identity
	ServerName    string
	ServerVersion string

	// Relay
	RelayEnabled  bool
	RelayToken    string
	RelayEndpoint string

	// Diagnostics
	DiagAddr string

	// Logging
	LogLevel string
	Debug    bool
}

// Load reads configuration from the process environment. If envFile is
// non-empty it is loaded first; otherwise ./.env is loaded when present.
// Variables already set in the environment are never overridden.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
	return FromEnv(), nil
}

// Reload re-reads an env file, overriding values already present in the
// environment. Used by the watcher so credential rotation takes effect.
func Reload(envFile string) (*Config, error) {
	if err := godotenv.Overload(envFile); err != nil {
		return nil, fmt.Errorf("reload env file %s: %w", envFile, err)
	}
	return FromEnv(), nil
}

// FromEnv builds a Config from the current environment without touching any
// files.
func FromEnv() *Config {
	timeout := 3600
	if v := os.Getenv("SESSION_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			timeout = n
		}
	}

	return &Config{
		SynologyURL:      os.Getenv("SYNOLOGY_URL"),
		SynologyUsername: os.Getenv("SYNOLOGY_USERNAME"),
		SynologyPassword: os.Getenv("SYNOLOGY_PASSWORD"),
		AutoLogin:        envBool("AUTO_LOGIN"),
		VerifySSL:        envBool("VERIFY_SSL"),
		SessionTimeout:   time.Duration(timeout) * time.Second,

		ServerName:    envDefault("MCP_SERVER_NAME", "synology-mcp-server"),
		ServerVersion: envDefault("MCP_SERVER_VERSION", "1.0.0"),

		RelayEnabled:  envBool("ENABLE_XIAOZHI"),
		RelayToken:    os.Getenv("XIAOZHI_TOKEN"),
		RelayEndpoint: envDefault("XIAOZHI_MCP_ENDPOINT", DefaultRelayEndpoint),

		DiagAddr: os.Getenv("BRIDGE_DIAG_ADDR"),

		LogLevel: strings.ToLower(envDefault("LOG_LEVEL", "info")),
		Debug:    envBool("DEBUG"),
	}
}

// HasSynologyCredentials reports whether a full NAS credential set is present.
func (c *Config) HasSynologyCredentials() bool {
	return c.SynologyURL != "" && c.SynologyUsername != "" && c.SynologyPassword != ""
}

// Validate returns the list of configuration problems. An empty slice means
// the config is usable for serving.
func (c *Config) Validate() []string {
	var errs []string

	if c.AutoLogin {
		if c.SynologyURL == "" {
			errs = append(errs, "SYNOLOGY_URL is required when AUTO_LOGIN=true")
		} else if !strings.HasPrefix(c.SynologyURL, "http://") && !strings.HasPrefix(c.SynologyURL, "https://") {
			errs = append(errs, "SYNOLOGY_URL must start with http:// or https://")
		}
		if c.SynologyUsername == "" {
			errs = append(errs, "SYNOLOGY_USERNAME is required when AUTO_LOGIN=true")
		}
		if c.SynologyPassword == "" {
			errs = append(errs, "SYNOLOGY_PASSWORD is required when AUTO_LOGIN=true")
		}
	}

	if c.RelayEnabled && c.RelayToken == "" {
		errs = append(errs, "XIAOZHI_TOKEN is required when ENABLE_XIAOZHI=true")
	}

	if c.SessionTimeout < 60*time.Second {
		errs = append(errs, "SESSION_TIMEOUT must be at least 60 seconds")
	}

	return errs
}

// String renders the config without sensitive values.
func (c *Config) String() string {
	return fmt.Sprintf("Config(url=%s, user=%s, auto_login=%t, relay=%t)",
		c.SynologyURL, c.SynologyUsername, c.AutoLogin, c.RelayEnabled)
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	return strings.ToLower(os.Getenv(key)) == "true"
}
