// Package config loads the command line's TOML configuration.
//
//	keyboards_dir    = "~/.local/share/keymagic/keyboards"
//	default_keyboard = "myanmar3.km2"
//	journal_path     = "~/.local/share/keymagic/journal.db"
//
//	[log]
//	level  = "info"   # debug, info, warn, error
//	format = "text"   # text, json
//
//	[commit]
//	keys = ["space", "return"]
//
// Every field is optional; unset fields take the defaults below.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/keymagic/keymagic/internal/session"
)

// FileConfig represents the TOML configuration file. Pointer fields tell
// "unset" apart from an explicit zero value.
type FileConfig struct {
	KeyboardsDir    *string      `toml:"keyboards_dir"`
	DefaultKeyboard *string      `toml:"default_keyboard"`
	JournalPath     *string      `toml:"journal_path"`
	Log             LogConfig    `toml:"log"`
	Commit          CommitConfig `toml:"commit"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
}

// CommitConfig maps the commit policy.
type CommitConfig struct {
	Keys []string `toml:"keys"`
}

// Config is the resolved configuration.
type Config struct {
	KeyboardsDir    string
	DefaultKeyboard string // may be empty
	JournalPath     string
	LogLevel        string
	LogFormat       string
	CommitKeys      []string
}

// Defaults returns the configuration used when no file sets a field.
func Defaults() Config {
	return Config{
		KeyboardsDir: DefaultKeyboardsDir(),
		JournalPath:  DefaultJournalPath(),
		LogLevel:     "info",
		LogFormat:    "text",
		CommitKeys:   session.DefaultCommitKeys(),
	}
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return FileConfig{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Load reads path, or DefaultConfigPath when path is empty, and resolves it
// against Defaults. Relative paths in the file are taken relative to the
// file's directory.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	fc, err := LoadConfig(path)
	if err != nil {
		return Config{}, err
	}
	cfg := fc.Resolve(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Resolve applies the file's settings over Defaults.
func (fc FileConfig) Resolve(baseDir string) Config {
	cfg := Defaults()
	if fc.KeyboardsDir != nil {
		cfg.KeyboardsDir = resolvePath(baseDir, *fc.KeyboardsDir)
	}
	if fc.DefaultKeyboard != nil {
		cfg.DefaultKeyboard = *fc.DefaultKeyboard
	}
	if fc.JournalPath != nil {
		cfg.JournalPath = resolvePath(baseDir, *fc.JournalPath)
	}
	if fc.Log.Level != nil {
		cfg.LogLevel = strings.ToLower(*fc.Log.Level)
	}
	if fc.Log.Format != nil {
		cfg.LogFormat = strings.ToLower(*fc.Log.Format)
	}
	if fc.Commit.Keys != nil {
		cfg.CommitKeys = fc.Commit.Keys
	}
	return cfg
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.LogFormat)
	}
	if _, err := session.PolicyFromNames(c.CommitKeys); err != nil {
		return fmt.Errorf("commit.keys: %w", err)
	}
	return nil
}

// KeyboardPath resolves name against KeyboardsDir. Absolute names and
// names that exist relative to the working directory are returned as-is.
func (c Config) KeyboardPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}
	return filepath.Join(c.KeyboardsDir, name)
}

func resolvePath(baseDir, p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	if filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}
