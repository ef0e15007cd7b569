package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL         = "http://127.0.0.1:7444"
	DefaultDBFileName     = ".hashfile.db"
	DefaultStorageDirName = "store"
	DefaultLogLevel       = "info"
	DefaultTokenTTL       = "24h"
	DefaultTokenIssuer    = "hashfile"

	DefaultMaxUploadBytes int64 = 32 * 1024 * 1024

	configFileName          = ".hashfile.toml"
	configDirEnvKey         = "HASHFILE_CONFIG_DIR"
	allowedExtensionsEnvKey = "HASHFILE_ALLOWED_EXTENSIONS"
)

// AuthConfig defines bearer token settings.
type AuthConfig struct {
	TokenSecret string `toml:"token_secret"`
	TokenTTL    string `toml:"token_ttl"`
	Issuer      string `toml:"issuer"`
}

// UploadConfig defines upload acceptance settings.
type UploadConfig struct {
	MaxUploadBytes    int64    `toml:"max_upload_bytes"`
	AllowedExtensions []string `toml:"allowed_extensions"`
}

// Config defines runtime configuration for hashfile.
type Config struct {
	APIURL      string       `toml:"api_url"`
	DBPath      string       `toml:"db_path"`
	StorageRoot string       `toml:"storage_root"`
	LogLevel    string       `toml:"log_level"`
	Auth        AuthConfig   `toml:"auth"`
	Uploads     UploadConfig `toml:"uploads"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		LogLevel: DefaultLogLevel,
		Auth: AuthConfig{
			TokenTTL: DefaultTokenTTL,
			Issuer:   DefaultTokenIssuer,
		},
		Uploads: UploadConfig{
			MaxUploadBytes: DefaultMaxUploadBytes,
		},
	}
}

// TokenTTL parses the configured token lifetime.
func (c *Config) TokenTTL() (time.Duration, error) {
	raw := strings.TrimSpace(c.Auth.TokenTTL)
	if raw == "" {
		raw = DefaultTokenTTL
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("auth.token_ttl: %w", err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("auth.token_ttl must be positive")
	}
	return ttl, nil
}

func loadFile(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"storage_root",
	"log_level",
	"auth.token_secret",
	"auth.token_ttl",
	"auth.issuer",
	"uploads.max_upload_bytes",
	"uploads.allowed_extensions",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key. The token secret is masked.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "storage_root":
		return c.StorageRoot, nil
	case "log_level":
		return c.LogLevel, nil
	case "auth.token_secret":
		if c.Auth.TokenSecret == "" {
			return "", nil
		}
		return "********", nil
	case "auth.token_ttl":
		return c.Auth.TokenTTL, nil
	case "auth.issuer":
		return c.Auth.Issuer, nil
	case "uploads.max_upload_bytes":
		return strconv.FormatInt(c.Uploads.MaxUploadBytes, 10), nil
	case "uploads.allowed_extensions":
		return strings.Join(c.Uploads.AllowedExtensions, ","), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// Path returns the config file location.
func Path() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnvKey)); dir != "" {
		return filepath.Join(dir, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads the config file and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	path, err := Path()
	if err == nil {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if apiURL := os.Getenv("HASHFILE_API_URL"); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := os.Getenv("HASHFILE_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if root := os.Getenv("HASHFILE_STORAGE_ROOT"); root != "" {
		cfg.StorageRoot = root
	}
	if secret := os.Getenv("HASHFILE_TOKEN_SECRET"); secret != "" {
		cfg.Auth.TokenSecret = secret
	}
	if level := os.Getenv("HASHFILE_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if raw := strings.TrimSpace(os.Getenv(allowedExtensionsEnvKey)); raw != "" {
		cfg.Uploads.AllowedExtensions = splitCSV(raw)
	}

	if cfg.DBPath == "" || cfg.StorageRoot == "" {
		if cwd, err := os.Getwd(); err == nil {
			if cfg.DBPath == "" {
				cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
			}
			if cfg.StorageRoot == "" {
				cfg.StorageRoot = filepath.Join(cwd, DefaultStorageDirName)
			}
		}
	}

	cfg.normalize()
	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "uploads.max_upload_bytes":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "auth.token_ttl":
		ttl, err := time.ParseDuration(value)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration", key)
		}
		return value, nil
	case "uploads.allowed_extensions":
		return splitCSV(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (c *Config) normalize() {
	if c.Uploads.MaxUploadBytes <= 0 {
		c.Uploads.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if strings.TrimSpace(c.Auth.Issuer) == "" {
		c.Auth.Issuer = DefaultTokenIssuer
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Uploads.AllowedExtensions = normalizeExtensions(c.Uploads.AllowedExtensions)
}

func normalizeExtensions(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(raw))
	for _, ext := range raw {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
