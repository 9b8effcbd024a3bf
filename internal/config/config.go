// Package config handles the XDG configuration directory, config.toml and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"

	"todolist/internal/logging"
)

const (
	// AppName is the application directory name.
	AppName = "todolist"

	// ConfigFile is the settings filename inside the config directory.
	ConfigFile = "config.toml"

	// OAuthClientFile is the OAuth client credentials filename.
	OAuthClientFile = "oauth_client.json"

	// TokenFile is the stored OAuth token filename.
	TokenFile = "token.json"

	// DatabaseFile is the default sqlite collection filename.
	DatabaseFile = "tasks.sqlite"
)

// Backend names accepted in config.toml, TODOLIST_BACKEND and --backend.
const (
	BackendMemory      = "memory"
	BackendSQLite      = "sqlite"
	BackendRealtime    = "realtime"
	BackendGoogleTasks = "googletasks"
)

// Defaults applied before config.toml is read.
const (
	DefaultBackend      = BackendRealtime
	DefaultServerURL    = "http://localhost:8087"
	DefaultListName     = "Tasks"
	DefaultPollInterval = 5 * time.Second
	DefaultListen       = "localhost:8087"
	DefaultLogLevel     = "warn"
	DefaultLogFormat    = "text"
)

// Environment variables that override config.toml.
const (
	EnvBackend = "TODOLIST_BACKEND"
	EnvServer  = "TODOLIST_SERVER"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// LogOutput receives every log line of the run. Nil means the
	// command's error stream.
	LogOutput io.Writer

	Backend      string
	ServerURL    string
	DatabasePath string
	ListName     string
	PollInterval time.Duration
	Listen       string
	LogLevel     string
	LogFormat    string
}

// File is the on-disk shape of config.toml.
type File struct {
	Backend      string `toml:"backend"`
	Server       string `toml:"server"`
	Database     string `toml:"database"`
	List         string `toml:"list"`
	PollInterval string `toml:"poll_interval"`
	Listen       string `toml:"listen"`
	LogLevel     string `toml:"log_level"`
	LogFormat    string `toml:"log_format"`
}

// New creates a Config with defaults for the given or default directory.
// It does not read config.toml; see Load.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	return &Config{
		Dir:          dir,
		Backend:      DefaultBackend,
		ServerURL:    DefaultServerURL,
		DatabasePath: filepath.Join(dir, DatabaseFile),
		ListName:     DefaultListName,
		PollInterval: DefaultPollInterval,
		Listen:       DefaultListen,
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
	}, nil
}

// Load builds a Config from defaults, then config.toml if present, then
// the environment.
func Load(configDir string) (*Config, error) {
	cfg, err := New(configDir)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(cfg.FilePath()); err == nil {
		var f File
		if _, err := toml.DecodeFile(cfg.FilePath(), &f); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", ConfigFile, err)
		}
		if err := cfg.apply(f); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFile, err)
	}

	if v := os.Getenv(EnvBackend); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv(EnvServer); v != "" {
		cfg.ServerURL = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) apply(f File) error {
	if f.Backend != "" {
		c.Backend = f.Backend
	}
	if f.Server != "" {
		c.ServerURL = f.Server
	}
	if f.Database != "" {
		c.DatabasePath = expandPath(c.Dir, f.Database)
	}
	if f.List != "" {
		c.ListName = f.List
	}
	if f.PollInterval != "" {
		d, err := time.ParseDuration(f.PollInterval)
		if err != nil {
			return fmt.Errorf("%w: poll_interval: %v", ErrInvalidConfig, err)
		}
		c.PollInterval = d
	}
	if f.Listen != "" {
		c.Listen = f.Listen
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	if f.LogFormat != "" {
		c.LogFormat = f.LogFormat
	}
	return nil
}

// Validate checks the settings that have a fixed set of values.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendSQLite, BackendRealtime, BackendGoogleTasks:
	default:
		return fmt.Errorf("%w: unknown backend: %s", ErrInvalidConfig, c.Backend)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll_interval must be positive", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.ListName) == "" {
		return fmt.Errorf("%w: list must not be empty", ErrInvalidConfig)
	}
	if !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("%w: unknown log_level: %s", ErrInvalidConfig, c.LogLevel)
	}
	if !logging.ValidFormat(c.LogFormat) {
		return fmt.Errorf("%w: unknown log_format: %s", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// File returns the settings in their config.toml shape.
func (c *Config) File() File {
	return File{
		Backend:      c.Backend,
		Server:       c.ServerURL,
		Database:     c.DatabasePath,
		List:         c.ListName,
		PollInterval: c.PollInterval.String(),
		Listen:       c.Listen,
		LogLevel:     c.LogLevel,
		LogFormat:    c.LogFormat,
	}
}

// Encode writes the settings as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c.File())
}

const defaultFileTemplate = `# todolist configuration

# Where tasks live: realtime, sqlite, memory or googletasks.
backend = %q

# Realtime server URL, used by the realtime backend.
server = %q

# sqlite collection, used by the sqlite backend and by serve.
database = %q

# Google Tasks list name, used by the googletasks backend.
list = %q

# How often googletasks subscriptions poll for changes.
poll_interval = %q

# Address serve listens on.
listen = %q

# debug, info, warn or error; text, json or logfmt.
log_level = %q
log_format = %q
`

// WriteDefault writes a commented config.toml holding the current settings.
// It refuses to overwrite an existing file unless force is set.
func (c *Config) WriteDefault(force bool) error {
	if !force {
		if _, err := os.Stat(c.FilePath()); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", c.FilePath())
		}
	}
	if err := c.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	content := fmt.Sprintf(defaultFileTemplate,
		c.Backend, c.ServerURL, c.DatabasePath, c.ListName,
		c.PollInterval.String(), c.Listen, c.LogLevel, c.LogFormat)
	if err := atomic.WriteFile(c.FilePath(), strings.NewReader(content)); err != nil {
		return fmt.Errorf("failed to write %s: %w", ConfigFile, err)
	}
	return os.Chmod(c.FilePath(), 0600)
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// FilePath returns the path to config.toml.
func (c *Config) FilePath() string {
	return filepath.Join(c.Dir, ConfigFile)
}

// OAuthClientPath returns the path to the OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// TokenPath returns the path to the stored OAuth token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// HasToken checks if the token file exists.
func (c *Config) HasToken() bool {
	_, err := os.Stat(c.TokenPath())
	return err == nil
}

// RemoveToken deletes the token file.
func (c *Config) RemoveToken() error {
	return os.Remove(c.TokenPath())
}

// SaveToken writes the OAuth token atomically with mode 0600.
func (c *Config) SaveToken(data []byte) error {
	if err := c.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := atomic.WriteFile(c.TokenPath(), strings.NewReader(string(data))); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return os.Chmod(c.TokenPath(), 0600)
}

// expandPath resolves ~ and paths relative to the config directory.
func expandPath(dir, p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
