package config

// Config is the root configuration structure for scantriage.
// Serialised to ~/.scantriage/config.json.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Scan     ScanConfig     `mapstructure:"scan"     json:"scan"`
	Tools    ToolsConfig    `mapstructure:"tools"    json:"tools"`
	Snapshot SnapshotConfig `mapstructure:"snapshot" json:"snapshot"`
}

// DatabaseConfig controls the scan-history backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// ScanConfig controls which adapters run and how.
type ScanConfig struct {
	// Adapters lists which scanner adapters to run.
	Adapters []string `mapstructure:"adapters" json:"adapters"`
	// AdapterTimeoutSec is the per-adapter subprocess time budget.
	AdapterTimeoutSec int `mapstructure:"adapter_timeout_sec" json:"adapter_timeout_sec"`
	// RunTimeoutSec is the wall-clock budget for the whole run (0 = sum of
	// adapter timeouts).
	RunTimeoutSec int `mapstructure:"run_timeout_sec" json:"run_timeout_sec"`
	// MaxWorkers caps the adapter worker pool.
	MaxWorkers int `mapstructure:"max_workers" json:"max_workers"`
	// IncludeGlobs / ExcludeGlobs filter the paths handed to each tool.
	IncludeGlobs []string `mapstructure:"include_globs" json:"include_globs"`
	ExcludeGlobs []string `mapstructure:"exclude_globs" json:"exclude_globs"`
	// SeverityFloor drops merged findings below this level ("" = keep all).
	SeverityFloor string `mapstructure:"severity_floor" json:"severity_floor"`
}

// ToolsConfig controls where scanner binaries are located and cached.
type ToolsConfig struct {
	// BinDir is a project-local directory checked before the download cache.
	BinDir string `mapstructure:"bin_dir"   json:"bin_dir"`
	// CacheDir is where downloaded scanner binaries are stored, keyed by
	// name and version. Lives outside any scanned project.
	CacheDir string `mapstructure:"cache_dir" json:"cache_dir"`
}

// SnapshotConfig controls where triaged results are written.
type SnapshotConfig struct {
	// Dir is the directory for scan-result snapshot JSON files.
	Dir string `mapstructure:"dir" json:"dir"`
}
