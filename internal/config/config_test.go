package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SYNOLOGY_URL", "SYNOLOGY_USERNAME", "SYNOLOGY_PASSWORD",
		"AUTO_LOGIN", "VERIFY_SSL", "SESSION_TIMEOUT",
		"MCP_SERVER_NAME", "MCP_SERVER_VERSION",
		"ENABLE_XIAOZHI", "XIAOZHI_TOKEN", "XIAOZHI_MCP_ENDPOINT",
		"BRIDGE_DIAG_ADDR", "LOG_LEVEL", "DEBUG",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	cfg := FromEnv()

	if cfg.ServerName != "synology-mcp-server" {
		t.Errorf("ServerName = %q", cfg.ServerName)
	}
	if cfg.ServerVersion != "1.0.0" {
		t.Errorf("ServerVersion = %q", cfg.ServerVersion)
	}
	if cfg.RelayEndpoint != DefaultRelayEndpoint {
		t.Errorf("RelayEndpoint = %q", cfg.RelayEndpoint)
	}
	if cfg.SessionTimeout != time.Hour {
		t.Errorf("SessionTimeout = %s, want 1h", cfg.SessionTimeout)
	}
	if cfg.AutoLogin || cfg.RelayEnabled || cfg.VerifySSL {
		t.Errorf("boolean defaults wrong: %+v", cfg)
	}
}

func TestFromEnvReadsValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SYNOLOGY_URL", "https://nas.local:5001")
	t.Setenv("SYNOLOGY_USERNAME", "admin")
	t.Setenv("SYNOLOGY_PASSWORD", "pw")
	t.Setenv("AUTO_LOGIN", "true")
	t.Setenv("ENABLE_XIAOZHI", "TRUE")
	t.Setenv("XIAOZHI_TOKEN", "tok")
	t.Setenv("SESSION_TIMEOUT", "120")
	t.Setenv("BRIDGE_DIAG_ADDR", "127.0.0.1:9090")

	cfg := FromEnv()
	if !cfg.AutoLogin || !cfg.RelayEnabled {
		t.Errorf("booleans not parsed: %+v", cfg)
	}
	if !cfg.HasSynologyCredentials() {
		t.Error("HasSynologyCredentials = false")
	}
	if cfg.SessionTimeout != 2*time.Minute {
		t.Errorf("SessionTimeout = %s", cfg.SessionTimeout)
	}
	if cfg.DiagAddr != "127.0.0.1:9090" {
		t.Errorf("DiagAddr = %q", cfg.DiagAddr)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"valid minimal",
			func(c *Config) {},
			"",
		},
		{
			"auto-login without url",
			func(c *Config) { c.AutoLogin = true },
			"SYNOLOGY_URL",
		},
		{
			"bad url scheme",
			func(c *Config) {
				c.AutoLogin = true
				c.SynologyURL = "nas.local:5001"
				c.SynologyUsername = "admin"
				c.SynologyPassword = "pw"
			},
			"http:// or https://",
		},
		{
			"relay without token",
			func(c *Config) { c.RelayEnabled = true },
			"XIAOZHI_TOKEN",
		},
		{
			"short session timeout",
			func(c *Config) { c.SessionTimeout = 10 * time.Second },
			"SESSION_TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{SessionTimeout: time.Hour}
			tt.mutate(cfg)
			problems := cfg.Validate()
			if tt.wantErr == "" {
				if len(problems) != 0 {
					t.Errorf("Validate = %v, want none", problems)
				}
				return
			}
			found := false
			for _, p := range problems {
				if strings.Contains(p, tt.wantErr) {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate = %v, want mention of %q", problems, tt.wantErr)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "SYNOLOGY_URL=https://nas.test:5001\nSYNOLOGY_USERNAME=bridge\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(envPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SynologyURL != "https://nas.test:5001" || cfg.SynologyUsername != "bridge" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestReloadOverridesEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("SYNOLOGY_PASSWORD=first\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(envPath); err != nil {
		t.Fatal(err)
	}

	// Rotate the credential on disk; Reload must pick it up even though the
	// variable is already set in the process environment.
	if err := os.WriteFile(envPath, []byte("SYNOLOGY_PASSWORD=second\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Reload(envPath)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if cfg.SynologyPassword != "second" {
		t.Errorf("SynologyPassword = %q, want second", cfg.SynologyPassword)
	}
}

func TestStringRedactsPassword(t *testing.T) {
	cfg := &Config{SynologyURL: "https://nas", SynologyUsername: "admin", SynologyPassword: "hunter2"}
	if s := cfg.String(); strings.Contains(s, "hunter2") {
		t.Errorf("String() leaked the password: %s", s)
	}
}
