package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTrap()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.JobsDir) == "" {
		c.Paths.JobsDir = defaultJobsDir
	}
	if c.Paths.JobsDir, err = expandPath(c.Paths.JobsDir); err != nil {
		return fmt.Errorf("paths.jobs_dir: %w", err)
	}

	if value, ok := os.LookupEnv("SMART_TRAPPER_ENGINE"); ok && strings.TrimSpace(value) != "" {
		c.Paths.Engine = value
	}
	c.Paths.Engine = strings.TrimSpace(c.Paths.Engine)
	if c.Paths.Engine == "" {
		c.Paths.Engine = defaultEngine
	}
	// Bare names are resolved through PATH at run time; anything that looks
	// like a path is expanded.
	if strings.ContainsAny(c.Paths.Engine, `/\`) || strings.HasPrefix(c.Paths.Engine, "~") {
		if c.Paths.Engine, err = expandPath(c.Paths.Engine); err != nil {
			return fmt.Errorf("paths.engine: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTrap() {
	if len(c.Trap.ScanSteps) == 0 {
		c.Trap.ScanSteps = append([]int(nil), defaultScanSteps...)
		return
	}
	// Coarse to fine, no duplicates.
	steps := append([]int(nil), c.Trap.ScanSteps...)
	sort.Sort(sort.Reverse(sort.IntSlice(steps)))
	out := steps[:0]
	for i, s := range steps {
		if i > 0 && s == steps[i-1] {
			continue
		}
		out = append(out, s)
	}
	c.Trap.ScanSteps = out
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("SMART_TRAPPER_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
