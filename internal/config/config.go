// Package config handles configuration loading, validation, and hot reload
// for the text service front ends.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joeshaw/envdecode"

	"textservice/internal/host"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Styles selects where display attribute overrides are kept.
	Styles StylesConfig `toml:"styles" json:"styles" yaml:"styles"`

	// IBus configuration for the Linux engine.
	IBus IBusConfig `toml:"ibus" json:"ibus" yaml:"ibus"`

	// Keys configures the open/close hot key.
	Keys KeysConfig `toml:"keys" json:"keys" yaml:"keys"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// LogContent disables redaction of typed text.
	LogContent bool `toml:"log_content" json:"log_content" yaml:"log_content"`
}

// StylesConfig holds display attribute override storage configuration.
type StylesConfig struct {
	// Backend is "sqlite" or "registry".
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// Path is the database file for sqlite or the HKCU key path for registry.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// IBusConfig holds the IBus engine configuration.
type IBusConfig struct {
	// BusName is the well-known name the engine process requests.
	BusName string `toml:"bus_name" json:"bus_name" yaml:"bus_name"`

	// EngineName is the engine name announced to ibus-daemon.
	EngineName string `toml:"engine_name" json:"engine_name" yaml:"engine_name"`

	// ComponentDir is where the component XML is installed.
	ComponentDir string `toml:"component_dir" json:"component_dir" yaml:"component_dir"`
}

// KeysConfig holds the open/close hot key binding.
type KeysConfig struct {
	// ToggleVKey is the virtual key of the toggle, 0xC0 (`) by default.
	ToggleVKey uint32 `toml:"toggle_vkey" json:"toggle_vkey" yaml:"toggle_vkey"`

	// ToggleModifiers names the modifiers: "alt", "ctrl", "shift".
	ToggleModifiers []string `toml:"toggle_modifiers" json:"toggle_modifiers" yaml:"toggle_modifiers"`
}

var modifierNames = map[string]host.Modifiers{
	"alt":   host.ModAlt,
	"ctrl":  host.ModControl,
	"shift": host.ModShift,
}

// ToggleKey returns the configured open/close binding.
func (k KeysConfig) ToggleKey() (host.PreservedKey, error) {
	key := host.PreservedKey{VKey: host.VirtualKey(k.ToggleVKey)}
	for _, name := range k.ToggleModifiers {
		m, ok := modifierNames[strings.ToLower(name)]
		if !ok {
			return host.PreservedKey{}, fmt.Errorf("unknown modifier %q", name)
		}
		key.Modifiers |= m
	}
	return key, nil
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	dir := DataDir()
	return &Config{
		Version: Version,
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "file",
			FilePath:   filepath.Join(PlatformLogDir(), "textservice.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Styles: StylesConfig{
			Backend: "sqlite",
			Path:    filepath.Join(dir, "styles.db"),
		},
		IBus: IBusConfig{
			BusName:      "org.freedesktop.IBus.TextService",
			EngineName:   "textservice",
			ComponentDir: "/usr/share/ibus/component",
		},
		Keys: KeysConfig{
			ToggleVKey:      uint32(host.VKOEM3),
			ToggleModifiers: []string{"alt"},
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// DataDir returns the base data directory.
// TEXTSVC_DATA_DIR overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("TEXTSVC_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// Load reads configuration from the specified path, or from the first
// config file found in the standard locations when path is empty.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = FindConfigFile()
	}
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// envOverrides lists the environment variables that override file settings.
type envOverrides struct {
	LogLevel     string `env:"TEXTSVC_LOG_LEVEL"`
	LogPath      string `env:"TEXTSVC_LOG_PATH"`
	StyleBackend string `env:"TEXTSVC_STYLE_BACKEND"`
	StylePath    string `env:"TEXTSVC_STYLE_PATH"`
	IBusBusName  string `env:"TEXTSVC_IBUS_BUS_NAME"`
}

// ApplyEnvOverrides applies TEXTSVC_* environment variables.
func (c *Config) ApplyEnvOverrides() error {
	var env envOverrides
	if err := envdecode.Decode(&env); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return fmt.Errorf("decode environment: %w", err)
	}

	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	if env.LogPath != "" {
		c.Logging.FilePath = env.LogPath
	}
	if env.StyleBackend != "" {
		c.Styles.Backend = env.StyleBackend
	}
	if env.StylePath != "" {
		c.Styles.Path = env.StylePath
	}
	if env.IBusBusName != "" {
		c.IBus.BusName = env.IBusBusName
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Keys.ToggleModifiers = append([]string{}, c.Keys.ToggleModifiers...)
	return &clone
}

// EnsureDirectories creates the directories the configured files live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Logging.FilePath)}
	if c.Styles.Backend == "sqlite" {
		dirs = append(dirs, filepath.Dir(c.Styles.Path))
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SaveConfig writes cfg to path as TOML.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode TOML: %w", err)
	}
	return f.Close()
}
