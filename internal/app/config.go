package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/BIGWOO/clawx-auth/internal/tokenstore"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore, e.g. CLAWX_AUTH__STORAGE=keyring.
const EnvPrefix = "CLAWX_"

// TokenStorageType selects where acquired secrets are saved.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
	TokenStorageTypeEnv     TokenStorageType = "env"
)

// ProviderKind selects the login flow of a provider.
type ProviderKind string

const (
	ProviderKindSession ProviderKind = "session"
	ProviderKindDevice  ProviderKind = "device"
)

// Config is the complete application configuration.
type Config struct {
	Auth      AuthConfig                `koanf:"auth"`
	Server    ServerConfig              `koanf:"server"`
	Log       LogConfig                 `koanf:"log"`
	Browser   BrowserConfig             `koanf:"browser"`
	Providers map[string]ProviderConfig `koanf:"providers" validate:"dive"`
}

// AuthConfig selects and configures the token store.
type AuthConfig struct {
	Storage TokenStorageType `koanf:"storage" validate:"required,oneof=file keyring env"`
	File    struct {
		Path string `koanf:"path"`
	} `koanf:"file"`
	Keyring struct {
		Service string `koanf:"service"`
	} `koanf:"keyring"`
}

// ServerConfig configures the local control API.
type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required,hostname_port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level" validate:"required,oneof=debug info warn error"`
	Format string `koanf:"format" validate:"required,oneof=text json otel"`
	OTLP   struct {
		Endpoint string `koanf:"endpoint"`
		Protocol string `koanf:"protocol" validate:"omitempty,oneof=http grpc"`
	} `koanf:"otlp"`
}

// SlogLevel returns the configured level.
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	// Validated to be one of the known names
	_ = level.UnmarshalText([]byte(c.Level))
	return level
}

// BrowserConfig configures the browser used for session capture.
type BrowserConfig struct {
	ChromePath string `koanf:"chrome_path"`
	Headless   bool   `koanf:"headless"`
}

// ProviderConfig describes one provider. Session providers need the login
// page and cookie rules; device providers need the OAuth endpoints.
type ProviderConfig struct {
	Name string       `koanf:"name"`
	Kind ProviderKind `koanf:"kind" validate:"required,oneof=session device"`

	LoginURL       string        `koanf:"login_url" validate:"required_if=Kind session,omitempty,url"`
	SessionDomain  string        `koanf:"session_domain" validate:"required_if=Kind session,omitempty,fqdn"`
	LandingPrefix  string        `koanf:"landing_prefix" validate:"omitempty,url"`
	LoginMarkers   []string      `koanf:"login_markers"`
	CookieNames    []string      `koanf:"cookie_names"`
	CookiePrefixes []string      `koanf:"cookie_prefixes"`
	SettleDelay    time.Duration `koanf:"settle_delay" validate:"gte=0"`

	DeviceAuthURL string `koanf:"device_auth_url" validate:"required_if=Kind device,omitempty,url"`
	TokenURL      string `koanf:"token_url" validate:"required_if=Kind device,omitempty,url"`
	ClientID      string `koanf:"client_id" validate:"required_if=Kind device"`
	Scope         string `koanf:"scope"`
}

// defaults returns the built-in configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"auth.storage":         string(TokenStorageTypeFile),
		"auth.keyring.service": tokenstore.DefaultKeyringService,
		"server.addr":          "127.0.0.1:4100",
		"log.level":            "info",
		"log.format":           "text",
		"log.otlp.protocol":    "http",
		"browser.headless":     false,
		"providers":            defaultProviders(),
	}
}

// DefaultConfigPath returns the config file read when no path is given.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return filepath.Join(dir, "clawx-auth", "config.toml"), nil
}

// LoadConfig builds the configuration from, in increasing precedence:
// built-in defaults, the TOML file at path, CLAWX_ environment variables and
// overrides (flat dotted keys, usually from CLI flags).
// An empty path reads the default config file if it exists.
func LoadConfig(path string, overrides map[string]any, environ func() []string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		if p, err := DefaultConfigPath(); err == nil {
			if _, statErr := os.Stat(p); statErr == nil {
				path = p
			}
		}
	} else if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnv,
		EnvironFunc:   environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// transformEnv maps CLAWX_SECTION__KEY to section.key. Variables without a
// nesting separator, such as the token variables of the env store, are skipped.
func transformEnv(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	if !strings.Contains(key, "__") {
		return "", nil
	}
	return strings.ToLower(strings.ReplaceAll(key, "__", ".")), value
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	for id, p := range c.Providers {
		if strings.ContainsAny(id, " /") {
			return fmt.Errorf("invalid config: provider id %q must not contain spaces or slashes", id)
		}
		if p.Kind == ProviderKindSession && len(p.CookieNames) == 0 && len(p.CookiePrefixes) == 0 {
			return fmt.Errorf("invalid config: provider %q needs cookie_names or cookie_prefixes", id)
		}
	}

	return nil
}

// NewTokenStore creates the configured token store.
func (c AuthConfig) NewTokenStore() (tokenstore.Store, error) {
	switch c.Storage {
	case TokenStorageTypeFile:
		path := c.File.Path
		if path == "" {
			p, err := tokenstore.DefaultFilePath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return tokenstore.NewFileStore(path), nil
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore(c.Keyring.Service), nil
	case TokenStorageTypeEnv:
		return tokenstore.NewEnvStore(), nil
	default:
		return nil, fmt.Errorf("unsupported token storage %q", c.Storage)
	}
}
