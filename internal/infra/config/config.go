// Package config loads and validates the vocabchat YAML configuration.
package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Chat    ChatConfig    `yaml:"chat"`
	Breaker BreakerConfig `yaml:"breaker"`
	Logger  LoggerConfig  `yaml:"logger"`
	Tracer  TracerConfig  `yaml:"tracer"`
}

// PoolConfig holds HTTP connection pool settings.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ServerConfig holds settings for reaching the chat backend.
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
	// ConnTimeout bounds connection establishment.
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	// RespTimeout bounds a whole batched exchange.
	RespTimeout time.Duration `yaml:"resp_timeout"`
	// StreamTimeout bounds a whole streaming exchange; the body stays
	// open for the duration of the reply, so it is the longer budget.
	StreamTimeout time.Duration `yaml:"stream_timeout"`
	Pool          PoolConfig    `yaml:"pool"`
}

// ChatConfig holds per-request defaults for the chat exchange.
type ChatConfig struct {
	Model  string `yaml:"model"`
	System string `yaml:"system"`
	// APIKey optionally seeds the inline secret. Supports "enc:" values
	// decrypted with VOCABCHAT_CONFIG_KEY.
	APIKey string `yaml:"api_key,omitempty"`
	// Streaming selects the default transport mode.
	Streaming bool `yaml:"streaming"`
}

// BreakerConfig holds circuit breaker settings for the chat transport.
type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config with sensible defaults. The model and the
// streaming-by-default choice match the backend's own defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:       "http://127.0.0.1:8000",
			ConnTimeout:   10 * time.Second,
			RespTimeout:   30 * time.Second,
			StreamTimeout: 90 * time.Second,
		},
		Chat: ChatConfig{
			Model:     "Qwen/QwQ-32B",
			System:    "You are a helpful vocabulary tutor. Answer concisely.",
			Streaming: true,
		},
		Breaker: BreakerConfig{
			Enabled:     true,
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			Interval:    60 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "stdout",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and
// decrypts "enc:" secrets. A missing file is not an error: defaults
// plus env overrides apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	passphrase := os.Getenv("VOCABCHAT_CONFIG_KEY")
	if passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides overrides config fields from environment variables.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOCABCHAT_SERVER_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("VOCABCHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("VOCABCHAT_SYSTEM"); v != "" {
		cfg.Chat.System = v
	}
	if v := os.Getenv("VOCABCHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}
	if v := os.Getenv("VOCABCHAT_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
}

// Validate checks the configuration for obvious mistakes.
func Validate(cfg *Config) error {
	u, err := url.Parse(cfg.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.base_url %q is not a valid URL", cfg.Server.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url scheme %q not supported", u.Scheme)
	}

	switch strings.ToLower(cfg.Logger.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logger.level %q unknown", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logger.format %q unknown", cfg.Logger.Format)
	}

	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		return fmt.Errorf("tracer.exporter %q unsupported", cfg.Tracer.Exporter)
	}

	if cfg.Chat.Model == "" {
		return fmt.Errorf("chat.model must not be empty")
	}
	return nil
}

// decryptSecrets finds "enc:..." values and decrypts them in place.
func decryptSecrets(cfg *Config, passphrase string) error {
	if strings.HasPrefix(cfg.Chat.APIKey, "enc:") {
		decrypted, err := DecryptValue(strings.TrimPrefix(cfg.Chat.APIKey, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("chat api_key: %w", err)
		}
		cfg.Chat.APIKey = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts an AES-256-GCM encrypted value.
func DecryptValue(encrypted, passphrase string) (string, error) {
	parts := strings.SplitN(encrypted, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
