package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"VOCABCHAT_SERVER_URL", "VOCABCHAT_MODEL", "VOCABCHAT_SYSTEM",
		"VOCABCHAT_API_KEY", "VOCABCHAT_LOG_LEVEL", "VOCABCHAT_CONFIG_KEY",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.BaseURL != "http://127.0.0.1:8000" {
		t.Errorf("base_url = %s", cfg.Server.BaseURL)
	}
	if cfg.Chat.Model != "Qwen/QwQ-32B" {
		t.Errorf("model = %s", cfg.Chat.Model)
	}
	if !cfg.Chat.Streaming {
		t.Error("streaming should default to true")
	}
	if cfg.Server.StreamTimeout != 90*time.Second {
		t.Errorf("stream_timeout = %s", cfg.Server.StreamTimeout)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chat.Model != Defaults().Chat.Model {
		t.Errorf("model = %s", cfg.Chat.Model)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  base_url: https://vocab.example.com
  stream_timeout: 2m
chat:
  model: custom-model
  streaming: false
logger:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.BaseURL != "https://vocab.example.com" {
		t.Errorf("base_url = %s", cfg.Server.BaseURL)
	}
	if cfg.Server.StreamTimeout != 2*time.Minute {
		t.Errorf("stream_timeout = %s", cfg.Server.StreamTimeout)
	}
	if cfg.Chat.Model != "custom-model" {
		t.Errorf("model = %s", cfg.Chat.Model)
	}
	if cfg.Chat.Streaming {
		t.Error("streaming should be false")
	}
	if cfg.Logger.Format != "json" {
		t.Errorf("format = %s", cfg.Logger.Format)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOCABCHAT_SERVER_URL", "http://10.0.0.1:9000")
	t.Setenv("VOCABCHAT_MODEL", "env-model")
	t.Setenv("VOCABCHAT_API_KEY", "sk-env")

	path := writeConfig(t, "chat:\n  model: file-model\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.BaseURL != "http://10.0.0.1:9000" {
		t.Errorf("base_url = %s", cfg.Server.BaseURL)
	}
	if cfg.Chat.Model != "env-model" {
		t.Errorf("env should win over file, model = %s", cfg.Chat.Model)
	}
	if cfg.Chat.APIKey != "sk-env" {
		t.Errorf("api_key = %s", cfg.Chat.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad url", func(c *Config) { c.Server.BaseURL = "not a url" }},
		{"bad scheme", func(c *Config) { c.Server.BaseURL = "ftp://x" }},
		{"bad level", func(c *Config) { c.Logger.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logger.Format = "xml" }},
		{"bad exporter", func(c *Config) { c.Tracer.Exporter = "jaeger" }},
		{"empty model", func(c *Config) { c.Chat.Model = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadRejectsInsecurePermissions(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("chat:\n  model: m\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	// WriteFile is subject to the umask; set the loose mode explicitly.
	if err := os.Chmod(path, 0o666); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "insecure permissions") {
		t.Errorf("Load = %v, want insecure permissions error", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := EncryptValue("sk-secret-value", "passphrase")
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}
	if strings.Contains(enc, "sk-secret-value") {
		t.Error("ciphertext leaks the plaintext")
	}

	dec, err := DecryptValue(enc, "passphrase")
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}
	if dec != "sk-secret-value" {
		t.Errorf("decrypted = %q", dec)
	}

	if _, err := DecryptValue(enc, "wrong"); err == nil {
		t.Error("wrong passphrase should fail")
	}
}

func TestLoadDecryptsAPIKey(t *testing.T) {
	clearEnv(t)
	enc, err := EncryptValue("sk-plain", "pw")
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}
	t.Setenv("VOCABCHAT_CONFIG_KEY", "pw")

	path := writeConfig(t, "chat:\n  api_key: enc:"+enc+"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chat.APIKey != "sk-plain" {
		t.Errorf("api_key = %q, want decrypted value", cfg.Chat.APIKey)
	}
}
