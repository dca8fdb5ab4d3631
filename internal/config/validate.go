package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateVerification(); err != nil {
		return err
	}
	if err := c.validateTelemetry(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.MaxAgeDays < 1 {
		return errors.New("cache.max_age_days must be at least 1")
	}
	if c.Cache.RetainAccessCount < 1 {
		return errors.New("cache.retain_access_count must be at least 1")
	}
	return nil
}

func (c *Config) validateVerification() error {
	if c.Verification.QueuePollInterval < 1 {
		return errors.New("verification.queue_poll_interval must be at least 1 second")
	}
	if c.Verification.ErrorRetryInterval < 1 {
		return errors.New("verification.error_retry_interval must be at least 1 second")
	}
	if c.Verification.ItemTimeout < 1 {
		return errors.New("verification.item_timeout must be at least 1 second")
	}
	if c.Verification.MaxRetries < 0 {
		return errors.New("verification.max_retries must not be negative")
	}
	if c.Verification.DefaultPriority < 0 {
		return errors.New("verification.default_priority must not be negative")
	}
	return nil
}

func (c *Config) validateTelemetry() error {
	if c.Telemetry.EventCapacity < 1 {
		return errors.New("telemetry.event_capacity must be at least 1")
	}
	return nil
}
