package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTrap(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTrap() error {
	if c.Trap.BaselineWidth < 0 {
		return errors.New("trap.baseline_width must be non-negative")
	}
	if c.Trap.BaselineResolution <= 0 {
		return errors.New("trap.baseline_resolution must be positive")
	}
	for _, step := range c.Trap.ScanSteps {
		if step < 1 {
			return fmt.Errorf("trap.scan_steps: step %d must be at least 1", step)
		}
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.TimeoutSeconds < 0 {
		return errors.New("engine.timeout_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
