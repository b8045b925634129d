package config

import (
	"errors"
	"fmt"
	"regexp"
)

var languageHintPattern = regexp.MustCompile(`^[a-z]{2,3}(_[a-z]+)?$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateIntake(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateBroadcast(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateIntake() error {
	if err := ensurePositiveMap(map[string]int{
		"intake.max_content_mib":         c.Intake.MaxContentMiB,
		"intake.max_batch_jobs":          c.Intake.MaxBatchJobs,
		"intake.rate_window_seconds":     c.Intake.RateWindowSeconds,
		"intake.rate_max_requests":       c.Intake.RateMaxRequests,
		"intake.batch_rate_max_requests": c.Intake.BatchRateMaxRequests,
	}); err != nil {
		return err
	}
	if c.Intake.BatchRateMaxRequests > c.Intake.RateMaxRequests {
		return errors.New("intake.batch_rate_max_requests must not exceed intake.rate_max_requests")
	}
	return nil
}

func (c *Config) validateQueue() error {
	return ensurePositiveMap(map[string]int{
		"queue.max_depth":               c.Queue.MaxDepth,
		"queue.aging_threshold_seconds": c.Queue.AgingThresholdSeconds,
		"queue.aging_sweep_seconds":     c.Queue.AgingSweepSeconds,
	})
}

func (c *Config) validateWorkers() error {
	if err := ensurePositiveMap(map[string]int{
		"workers.count":                     c.Workers.Count,
		"workers.job_timeout_seconds":       c.Workers.JobTimeoutSeconds,
		"workers.max_attempts":              c.Workers.MaxAttempts,
		"workers.retry_backoff_seconds":     c.Workers.RetryBackoffSeconds,
		"workers.retry_backoff_max_seconds": c.Workers.RetryBackoffMaxSeconds,
	}); err != nil {
		return err
	}
	if c.Workers.RetryBackoffSeconds > c.Workers.RetryBackoffMaxSeconds {
		return errors.New("workers.retry_backoff_seconds must not exceed workers.retry_backoff_max_seconds")
	}
	return nil
}

func (c *Config) validateCache() error {
	return ensurePositiveMap(map[string]int{
		"cache.max_entries": c.Cache.MaxEntries,
		"cache.max_mib":     c.Cache.MaxMiB,
	})
}

func (c *Config) validateBroadcast() error {
	return ensurePositiveMap(map[string]int{
		"broadcast.ring_capacity":     c.Broadcast.RingCapacity,
		"broadcast.subscriber_buffer": c.Broadcast.SubscriberBuffer,
	})
}

func (c *Config) validateEngine() error {
	switch c.Engine.Name {
	case "tesseract", "paddle":
	default:
		return fmt.Errorf("engine.name must be %q or %q, got %q", "tesseract", "paddle", c.Engine.Name)
	}
	for _, lang := range c.Engine.Languages {
		if !languageHintPattern.MatchString(lang) {
			return fmt.Errorf("engine.languages contains invalid hint %q", lang)
		}
	}
	return nil
}

func (c *Config) validateRetention() error {
	if err := ensurePositiveMap(map[string]int{
		"registry.retention_seconds":      c.Registry.RetentionSeconds,
		"registry.purge_interval_seconds": c.Registry.PurgeIntervalSeconds,
	}); err != nil {
		return err
	}
	if c.Archive.Enabled && c.Archive.RetentionDays <= 0 {
		return errors.New("archive.retention_days must be positive when archive.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be %q or %q, got %q", "console", "json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
