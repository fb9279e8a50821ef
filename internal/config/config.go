// Package config loads taskin settings from the global file, the project
// file and TASKIN_ environment variables, in that order of precedence
// (later wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// userHomeDir is a package-level var to allow test injection.
var userHomeDir = os.UserHomeDir

const (
	// DirName is the per-user and per-project settings directory.
	DirName = ".taskin"
	// FileName is the settings file inside DirName.
	FileName = "config.yaml"
	// EnvPrefix prefixes every environment override, e.g. TASKIN_SERVER_PORT.
	EnvPrefix = "TASKIN"
)

// Config is the merged configuration.
type Config struct {
	TasksDir    string `yaml:"tasks_dir" mapstructure:"tasks_dir"`
	Locale      string `yaml:"locale" mapstructure:"locale"`
	RequireType bool   `yaml:"require_type" mapstructure:"require_type"`
	UsersFile   string `yaml:"users_file" mapstructure:"users_file"`
	DataDir     string `yaml:"data_dir" mapstructure:"data_dir"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`

	Git    GitConfig    `yaml:"git" mapstructure:"git"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Client ClientConfig `yaml:"client" mapstructure:"client"`
}

// GitConfig configures the history analyzer.
type GitConfig struct {
	Binary         string        `yaml:"binary" mapstructure:"binary"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxOutputBytes int           `yaml:"max_output_bytes" mapstructure:"max_output_bytes"`
}

// ServerConfig configures the sync server.
type ServerConfig struct {
	Host              string        `yaml:"host" mapstructure:"host"`
	Port              int           `yaml:"port" mapstructure:"port"`
	MaxClients        int           `yaml:"max_clients" mapstructure:"max_clients"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
}

// ClientConfig configures the remote task provider.
type ClientConfig struct {
	URL                  string        `yaml:"url" mapstructure:"url"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay" mapstructure:"reconnect_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts" mapstructure:"max_reconnect_attempts"`
}

// defaults is the flat key/value table seeded into viper.
var defaults = map[string]any{
	"tasks_dir":                     "TASKS",
	"locale":                        "en-US",
	"require_type":                  true,
	"users_file":                    filepath.Join(DirName, "users.yaml"),
	"data_dir":                      DirName,
	"debug":                         false,
	"git.binary":                    "git",
	"git.timeout":                   30 * time.Second,
	"git.max_output_bytes":          10 * 1024 * 1024,
	"server.host":                   "localhost",
	"server.port":                   3001,
	"server.max_clients":            100,
	"server.heartbeat_interval":     30 * time.Second,
	"client.url":                    "ws://localhost:3001/ws",
	"client.reconnect_delay":        5 * time.Second,
	"client.max_reconnect_attempts": 0,
}

// Default returns the built-in configuration. The environment is not
// consulted; Load applies it.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		// unreachable: the defaults table is static
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

// bindEnv makes TASKIN_* variables override every key.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Load merges the global file, the project file under projectRoot and
// the environment over the defaults. Missing files are skipped.
func Load(projectRoot string) (*Config, error) {
	v := newViper()
	bindEnv(v)

	if global := GlobalPath(); global != "" {
		if err := mergeFile(v, global); err != nil {
			return nil, err
		}
	}
	if projectRoot != "" {
		if err := mergeFile(v, ProjectPath(projectRoot)); err != nil {
			return nil, err
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch {
	case c.TasksDir == "":
		return errors.New("config: tasks_dir must not be empty")
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	case c.Server.MaxClients < 1:
		return fmt.Errorf("config: server.max_clients must be positive, got %d", c.Server.MaxClients)
	case c.Client.MaxReconnectAttempts < 0:
		return fmt.Errorf("config: client.max_reconnect_attempts must not be negative, got %d", c.Client.MaxReconnectAttempts)
	}
	return nil
}

// GlobalPath returns ~/.taskin/config.yaml, or "" without a home dir.
func GlobalPath() string {
	home, err := userHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, DirName, FileName)
}

// ProjectPath returns <root>/.taskin/config.yaml.
func ProjectPath(root string) string {
	return filepath.Join(root, DirName, FileName)
}

// Resolve joins a configured path onto root unless it is absolute.
func Resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// TasksPath returns the absolute task directory for root.
func (c *Config) TasksPath(root string) string { return Resolve(root, c.TasksDir) }

// DataPath returns the data directory for root.
func (c *Config) DataPath(root string) string { return Resolve(root, c.DataDir) }

// UsersPath returns the user registry file for root.
func (c *Config) UsersPath(root string) string { return Resolve(root, c.UsersFile) }

// FindProjectRoot walks up from start looking for a .taskin directory or
// a .git entry. If none is found it returns start.
func FindProjectRoot(start string) string {
	current := start
	for {
		for _, marker := range []string{DirName, ".git"} {
			if _, err := os.Stat(filepath.Join(current, marker)); err == nil {
				return current
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return start
		}
		current = parent
	}
}
