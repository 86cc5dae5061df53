package config

import (
	"errors"
	"fmt"
)

var validOnErrorModes = map[string]struct{}{
	"fail":     {},
	"skip":     {},
	"continue": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DBPath == "" {
		return errors.New("paths.db_path must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if c.Processing.Workers < 1 {
		return errors.New("processing.workers must be >= 1")
	}
	if _, ok := validOnErrorModes[c.Processing.OnError]; !ok {
		return fmt.Errorf("processing.on_error must be one of fail, skip, continue (got %q)", c.Processing.OnError)
	}
	if len(c.Processing.VideoExtensions) == 0 {
		return errors.New("processing.video_extensions must include at least one extension")
	}
	if c.Processing.DBTimeoutSeconds <= 0 {
		return errors.New("processing.db_timeout_seconds must be positive")
	}
	if c.Processing.HeartbeatInterval <= 0 {
		return errors.New("processing.heartbeat_interval must be positive")
	}
	if c.Processing.HeartbeatTimeout <= 0 {
		return errors.New("processing.heartbeat_timeout must be positive")
	}
	if c.Processing.HeartbeatTimeout <= c.Processing.HeartbeatInterval {
		return errors.New("processing.heartbeat_timeout must be greater than processing.heartbeat_interval")
	}
	return nil
}
