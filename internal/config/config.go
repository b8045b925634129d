package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Intake contains admission ceilings and per-caller rate limits.
type Intake struct {
	MaxContentMiB        int `toml:"max_content_mib"`
	MaxBatchJobs         int `toml:"max_batch_jobs"`
	RateWindowSeconds    int `toml:"rate_window_seconds"`
	RateMaxRequests      int `toml:"rate_max_requests"`
	BatchRateMaxRequests int `toml:"batch_rate_max_requests"`
}

// Queue contains scheduler depth and aging configuration.
type Queue struct {
	MaxDepth              int `toml:"max_depth"`
	AgingThresholdSeconds int `toml:"aging_threshold_seconds"`
	AgingSweepSeconds     int `toml:"aging_sweep_seconds"`
}

// Workers contains worker pool sizing and retry policy.
type Workers struct {
	Count                  int `toml:"count"`
	JobTimeoutSeconds      int `toml:"job_timeout_seconds"`
	MaxAttempts            int `toml:"max_attempts"`
	RetryBackoffSeconds    int `toml:"retry_backoff_seconds"`
	RetryBackoffMaxSeconds int `toml:"retry_backoff_max_seconds"`
}

// Cache contains result cache budgets.
type Cache struct {
	MaxEntries int `toml:"max_entries"`
	MaxMiB     int `toml:"max_mib"`
}

// Broadcast contains progress event fan-out configuration.
type Broadcast struct {
	RingCapacity     int `toml:"ring_capacity"`
	SubscriberBuffer int `toml:"subscriber_buffer"`
}

// Engine contains recognition engine selection and tuning.
type Engine struct {
	Name          string   `toml:"name"`
	Languages     []string `toml:"languages"`
	TessdataDir   string   `toml:"tessdata_dir"`
	PaddleCommand string   `toml:"paddle_command"`
}

// Registry contains in-memory job record retention configuration.
type Registry struct {
	RetentionSeconds     int `toml:"retention_seconds"`
	PurgeIntervalSeconds int `toml:"purge_interval_seconds"`
}

// Archive contains terminal-job history persistence configuration.
type Archive struct {
	Enabled       bool   `toml:"enabled"`
	Path          string `toml:"path"`
	RetentionDays int    `toml:"retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for the daemon and CLI.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and the HTTP API bind address
//   - Intake: content ceilings, batch limits, per-caller rate limits
//   - Queue: scheduler depth and starvation-avoidance aging
//   - Workers: pool size, per-job timeout, retry policy
//   - Cache: result cache entry and byte budgets
//   - Broadcast: progress event ring and subscriber buffers
//   - Engine: recognition engine selection and language hints
//   - Registry: terminal job retention in the in-memory registry
//   - Archive: terminal job history persisted to SQLite
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Intake    Intake    `toml:"intake"`
	Queue     Queue     `toml:"queue"`
	Workers   Workers   `toml:"workers"`
	Cache     Cache     `toml:"cache"`
	Broadcast Broadcast `toml:"broadcast"`
	Engine    Engine    `toml:"engine"`
	Registry  Registry  `toml:"registry"`
	Archive   Archive   `toml:"archive"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ocrkit/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ocrkit.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Archive.Enabled && strings.TrimSpace(c.Archive.Path) != "" {
		if err := os.MkdirAll(filepath.Dir(c.Archive.Path), 0o755); err != nil {
			return fmt.Errorf("create archive directory %q: %w", filepath.Dir(c.Archive.Path), err)
		}
	}
	return nil
}

// SocketPath returns the unix socket path the IPC server listens on.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "ocrkit.sock")
}

// LockPath returns the lock file guarding single-daemon operation.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "ocrkitd.lock")
}

// MaxContentBytes returns the admission ceiling for a single payload.
func (i Intake) MaxContentBytes() int64 {
	return int64(i.MaxContentMiB) << 20
}

// RateWindow returns the sliding window used by the per-caller rate limits.
func (i Intake) RateWindow() time.Duration {
	return time.Duration(i.RateWindowSeconds) * time.Second
}

// AgingThreshold returns how long an entry may wait before promotion.
func (q Queue) AgingThreshold() time.Duration {
	return time.Duration(q.AgingThresholdSeconds) * time.Second
}

// AgingSweepInterval returns the cadence of the aging sweep.
func (q Queue) AgingSweepInterval() time.Duration {
	return time.Duration(q.AgingSweepSeconds) * time.Second
}

// JobTimeout returns the wall-clock budget for a single execution attempt.
func (w Workers) JobTimeout() time.Duration {
	return time.Duration(w.JobTimeoutSeconds) * time.Second
}

// RetryBackoff returns the initial retry delay; it doubles per attempt.
func (w Workers) RetryBackoff() time.Duration {
	return time.Duration(w.RetryBackoffSeconds) * time.Second
}

// RetryBackoffMax caps the exponential retry delay.
func (w Workers) RetryBackoffMax() time.Duration {
	return time.Duration(w.RetryBackoffMaxSeconds) * time.Second
}

// MaxBytes returns the cache byte budget.
func (c Cache) MaxBytes() int64 {
	return int64(c.MaxMiB) << 20
}

// Retention returns how long terminal jobs stay queryable in memory.
func (r Registry) Retention() time.Duration {
	return time.Duration(r.RetentionSeconds) * time.Second
}

// PurgeInterval returns the cadence of the registry purge loop.
func (r Registry) PurgeInterval() time.Duration {
	return time.Duration(r.PurgeIntervalSeconds) * time.Second
}

// Retention returns how long archived history rows are kept.
func (a Archive) Retention() time.Duration {
	return time.Duration(a.RetentionDays) * 24 * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
