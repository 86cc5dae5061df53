package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProcessing()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if value, ok := os.LookupEnv("VPO_DB_PATH"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DBPath = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.DBPath) == "" {
		c.Paths.DBPath = defaultDBPath
	}
	if c.Paths.DBPath, err = expandPath(c.Paths.DBPath); err != nil {
		return fmt.Errorf("paths.db_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PolicyPath) == "" {
		c.Paths.PolicyPath = defaultPolicyPath
	}
	if c.Paths.PolicyPath, err = expandPath(c.Paths.PolicyPath); err != nil {
		return fmt.Errorf("paths.policy_path: %w", err)
	}

	if len(c.Paths.LibraryDirs) > 0 {
		dirs := make([]string, 0, len(c.Paths.LibraryDirs))
		seen := make(map[string]struct{}, len(c.Paths.LibraryDirs))
		for _, dir := range c.Paths.LibraryDirs {
			trimmed := strings.TrimSpace(dir)
			if trimmed == "" {
				continue
			}
			expanded, err := expandPath(trimmed)
			if err != nil {
				return fmt.Errorf("paths.library_dirs: %w", err)
			}
			if _, exists := seen[expanded]; exists {
				continue
			}
			seen[expanded] = struct{}{}
			dirs = append(dirs, expanded)
		}
		c.Paths.LibraryDirs = dirs
	}
	return nil
}

func (c *Config) normalizeProcessing() {
	if c.Processing.Workers == 0 {
		c.Processing.Workers = defaultWorkers
	}
	c.Processing.OnError = strings.ToLower(strings.TrimSpace(c.Processing.OnError))
	if c.Processing.OnError == "" {
		c.Processing.OnError = defaultOnError
	}
	if c.Processing.DBTimeoutSeconds <= 0 {
		c.Processing.DBTimeoutSeconds = defaultDBTimeoutSeconds
	}
	if c.Processing.HeartbeatInterval <= 0 {
		c.Processing.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Processing.HeartbeatTimeout <= 0 {
		c.Processing.HeartbeatTimeout = defaultHeartbeatTimeout
	}

	if len(c.Processing.VideoExtensions) == 0 {
		c.Processing.VideoExtensions = defaultVideoExtensions()
		return
	}
	exts := make([]string, 0, len(c.Processing.VideoExtensions))
	seen := make(map[string]struct{}, len(c.Processing.VideoExtensions))
	for _, ext := range c.Processing.VideoExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = defaultVideoExtensions()
	}
	c.Processing.VideoExtensions = exts
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "auto":
		c.Logging.Format = "auto"
	case "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
