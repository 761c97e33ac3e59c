package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jpoley/scantriage/models"
	"github.com/spf13/viper"
)

const (
	DefaultConfigDir   = ".scantriage"
	DefaultConfigFile  = "config.json"
	DefaultCacheDir    = ".scantriage/cache"
	DefaultSnapshotDir = ".scantriage/snapshots"
	DefaultDBFile      = ".scantriage/scantriage.db"
)

// DefaultAdapters are the adapters run when nothing is configured.
var DefaultAdapters = []string{"semgrep", "gitleaks", "nuclei"}

// Load reads the config file (falling back to defaults if absent) and returns
// a populated Config. The configPath flag may override the default location.
func Load(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("scantriage")
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
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !isNotExist(err) {
			// Config file exists but is malformed.
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	expandPaths(&cfg, home)
	return &cfg, nil
}

// ConfigError reports invalid run configuration. It is fatal at orchestration
// start, before any adapter runs.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// ValidateScan checks the scan configuration plus the resolved target path.
// knownAdapters is the set of adapter names the build supports.
func ValidateScan(cfg *Config, targetPath string, knownAdapters map[string]bool) error {
	info, err := os.Stat(targetPath)
	if err != nil {
		return &ConfigError{Field: "target", Reason: fmt.Sprintf("cannot stat %q: %v", targetPath, err)}
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return &ConfigError{Field: "target", Reason: fmt.Sprintf("%q is neither a directory nor a regular file", targetPath)}
	}
	for _, name := range cfg.Scan.Adapters {
		if !knownAdapters[strings.ToLower(strings.TrimSpace(name))] {
			return &ConfigError{Field: "scan.adapters", Reason: fmt.Sprintf("unknown adapter %q", name)}
		}
	}
	if floor := strings.TrimSpace(cfg.Scan.SeverityFloor); floor != "" {
		if _, ok := models.ParseSeverityFloor(floor); !ok {
			return &ConfigError{Field: "scan.severity_floor", Reason: fmt.Sprintf("unrecognised severity %q", floor)}
		}
	}
	if cfg.Scan.AdapterTimeoutSec < 0 {
		return &ConfigError{Field: "scan.adapter_timeout_sec", Reason: "must be >= 0"}
	}
	if cfg.Scan.MaxWorkers < 0 {
		return &ConfigError{Field: "scan.max_workers", Reason: "must be >= 0"}
	}
	return nil
}

// EnsureDirs creates the config, cache and snapshot directories if absent.
func EnsureDirs(cfg *Config) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dirs := []string{
		filepath.Join(home, DefaultConfigDir),
		cfg.Tools.CacheDir,
		cfg.Snapshot.Dir,
	}
	for _, d := range dirs {
		if d == "" {
			continue
		}
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

	v.SetDefault("scan.adapters", DefaultAdapters)
	v.SetDefault("scan.adapter_timeout_sec", 300)
	v.SetDefault("scan.run_timeout_sec", 0)
	v.SetDefault("scan.max_workers", 4)
	v.SetDefault("scan.severity_floor", "")

	v.SetDefault("tools.bin_dir", "")
	v.SetDefault("tools.cache_dir", filepath.Join(home, DefaultCacheDir))

	v.SetDefault("snapshot.dir", filepath.Join(home, DefaultSnapshotDir))
}

// expandPaths resolves ~ in configured paths.
func expandPaths(cfg *Config, home string) {
	cfg.Database.Path = expandHome(cfg.Database.Path, home)
	cfg.Tools.BinDir = expandHome(cfg.Tools.BinDir, home)
	cfg.Tools.CacheDir = expandHome(cfg.Tools.CacheDir, home)
	cfg.Snapshot.Dir = expandHome(cfg.Snapshot.Dir, home)
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
