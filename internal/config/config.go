package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string       `yaml:"log_level"`
	LogFile  string       `yaml:"log_file"`
	Splash   SplashConfig `yaml:"splash"`
	Scan     ScanConfig   `yaml:"scan"`
	UI       UIConfig     `yaml:"ui"`
}

// SplashConfig controls the launch splash screen.
type SplashConfig struct {
	Duration time.Duration `yaml:"duration"`
}

// ScanConfig controls device selection and connection.
type ScanConfig struct {
	NamePrefix     string        `yaml:"name_prefix"`     // "" accepts any name
	MinRSSI        int           `yaml:"min_rssi"`        // 0 disables the threshold
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // 0 waits forever
	AdapterPath    string        `yaml:"adapter_path"`    // BlueZ object path, Linux only
}

// UIConfig holds the control panel's initial values.
type UIConfig struct {
	Color          string  `yaml:"color"` // hex, e.g. "#ffffff"
	Intensity      float64 `yaml:"intensity"`
	ReportFailures bool    `yaml:"report_failures"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "fossleep-lamp")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	home, _ := os.UserHomeDir()
	logFile := filepath.Join(home, ".local", "state", "fossleep-lamp", "lamp.log")

	return &Config{
		LogLevel: "info",
		LogFile:  logFile,
		Splash: SplashConfig{
			Duration: 2 * time.Second,
		},
		Scan: ScanConfig{
			AdapterPath: "/org/bluez/hci0",
		},
		UI: UIConfig{
			Color:     "#ffffff",
			Intensity: 0.5,
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in log_file is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.LogFile = expandTilde(cfg.LogFile)

	return cfg, nil
}

const defaultHeader = `# fossleep-lamp configuration
# Remove a key to fall back to its built-in default.

`

// WriteDefault writes the default config to DefaultConfigPath, creating
// the directory if needed. If a config file already exists it returns
// ("", nil) and leaves the file untouched.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	cfg := Default()
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(cfg.LogFile, home) {
		cfg.LogFile = "~" + strings.TrimPrefix(cfg.LogFile, home)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0o644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.Splash.Duration < 0 {
		return fmt.Errorf("splash.duration must be >= 0, got %s", c.Splash.Duration)
	}

	if c.Scan.MinRSSI > 0 {
		return fmt.Errorf("scan.min_rssi must be <= 0 dBm, got %d", c.Scan.MinRSSI)
	}

	if c.Scan.ConnectTimeout < 0 {
		return fmt.Errorf("scan.connect_timeout must be >= 0, got %s", c.Scan.ConnectTimeout)
	}

	if _, err := c.UI.ParsedColor(); err != nil {
		return err
	}

	if c.UI.Intensity < 0 || c.UI.Intensity > 1 {
		return fmt.Errorf("ui.intensity must be within [0, 1], got %g", c.UI.Intensity)
	}

	return nil
}

// ParsedColor decodes the hex color.
func (u UIConfig) ParsedColor() (colorful.Color, error) {
	c, err := colorful.Hex(u.Color)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("ui.color must be a hex color like \"#ffffff\", got %q", u.Color)
	}
	return c, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// SlogLevel maps log_level to a slog.Level. Unknown values map to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
