package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database string       `yaml:"database" mapstructure:"database"`
	Remote   RemoteConfig `yaml:"remote" mapstructure:"remote"`
	Sync     SyncConfig   `yaml:"sync" mapstructure:"sync"`
	Notify   NotifyConfig `yaml:"notify" mapstructure:"notify"`
	Server   ServerConfig `yaml:"server" mapstructure:"server"`
}

type RemoteConfig struct {
	URL   string `yaml:"url" mapstructure:"url"`
	Token string `yaml:"token" mapstructure:"token"`
}

type SyncConfig struct {
	// Policy is one of server_wins, client_wins, merge.
	Policy   string        `yaml:"policy" mapstructure:"policy"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

type NotifyConfig struct {
	Lead time.Duration `yaml:"lead" mapstructure:"lead"`
}

type ServerConfig struct {
	Addr     string            `yaml:"addr" mapstructure:"addr"`
	Database string            `yaml:"database" mapstructure:"database"`
	Tokens   map[string]string `yaml:"tokens" mapstructure:"tokens"`
}

func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Database: filepath.Join(home, ".taskloop", "taskloop.db"),
		Sync: SyncConfig{
			Policy:   "server_wins",
			Interval: 5 * time.Minute,
		},
		Notify: NotifyConfig{
			Lead: 15 * time.Minute,
		},
		Server: ServerConfig{
			Addr:     ":8790",
			Database: filepath.Join(home, ".taskloop", "server.db"),
		},
	}
}

// Load merges the global config with an optional project-local override,
// then applies the TASKLOOP_REMOTE_TOKEN environment variable so the token
// never has to live in a file.
func Load() (*Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		loadFile(filepath.Join(home, ".taskloop", "config.yaml"), cfg)
	}
	if cwd, err := os.Getwd(); err == nil {
		loadFile(filepath.Join(cwd, ".taskloop.yaml"), cfg)
	}
	if token := os.Getenv("TASKLOOP_REMOTE_TOKEN"); token != "" {
		cfg.Remote.Token = token
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return
	}
	_ = v.Unmarshal(cfg)
}

func GlobalPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".taskloop", "config.yaml")
}

// WriteDefault renders the default config to path, refusing to overwrite.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	raw, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("config: marshal defaults: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
