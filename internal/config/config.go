package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultConfigDir  = ".duskline"
	DefaultConfigFile = "config.json"
	DefaultBinDir     = ".duskline/bin"
	DefaultDBFile     = ".duskline/duskline.db"
	DefaultStateFile  = ".duskline/state.json"
	DefaultResultsDir = ".duskline/results"
	ProfilesDir       = ".duskline/profiles"
)

// Load reads the config file (defaults if absent) and returns a populated
// Config. configPath overrides the default location (~/.duskline/config.json).
func Load(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v, home)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !isNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
		// No config yet; defaults carry the run.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	expandPaths(&cfg, home)
	return &cfg, nil
}

// Save writes the config to disk as JSON.
func Save(cfg *Config, configPath string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	if configPath == "" {
		configPath = filepath.Join(home, DefaultConfigDir, DefaultConfigFile)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}

	return os.WriteFile(configPath, data, 0o600)
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// EnsureDir creates ~/.duskline, its bin/ and profiles/ subdirectories.
func EnsureDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dirs := []string{
		filepath.Join(home, DefaultConfigDir),
		filepath.Join(home, DefaultBinDir),
		filepath.Join(home, ProfilesDir),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}
	return nil
}

// setDefaults populates viper with sensible out-of-the-box values.
func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", filepath.Join(home, DefaultDBFile))
	v.SetDefault("database.dsn", "")

	v.SetDefault("run.ordering", "latest")
	v.SetDefault("run.workers", 0)
	v.SetDefault("run.base_timeout_sec", 900)
	v.SetDefault("run.max_timeout_sec", 3600)
	v.SetDefault("run.max_retries", 3)
	v.SetDefault("run.results_dir", filepath.Join(home, DefaultResultsDir))
	v.SetDefault("run.state_file", filepath.Join(home, DefaultStateFile))
	v.SetDefault("run.stars_degrade_hard_error", false)

	v.SetDefault("tools.bin_dir", filepath.Join(home, DefaultBinDir))
}

// expandPaths resolves ~ in configured paths.
func expandPaths(cfg *Config, home string) {
	cfg.Database.Path = expandHome(cfg.Database.Path, home)
	cfg.Tools.BinDir = expandHome(cfg.Tools.BinDir, home)
	cfg.Run.ResultsDir = expandHome(cfg.Run.ResultsDir, home)
	cfg.Run.StateFile = expandHome(cfg.Run.StateFile, home)
	cfg.Run.EventDBPath = expandHome(cfg.Run.EventDBPath, home)
	cfg.Run.EventFilePath = expandHome(cfg.Run.EventFilePath, home)
	cfg.Run.OrgsFilePath = expandHome(cfg.Run.OrgsFilePath, home)
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}
