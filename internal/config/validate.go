package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.DefaultExpiryDays < 0 {
		return errors.New("notifications.default_expiry_days must not be negative")
	}
	if c.Notifications.EmailEnabled && c.Notifications.EmailFrom == "" {
		return errors.New("notifications.email_from must be set when notifications.email_enabled is true")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaintenanceInterval <= 0 {
		return errors.New("workflow.maintenance_interval must be positive")
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
