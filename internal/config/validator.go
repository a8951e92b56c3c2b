package config

import (
	"fmt"
	"net/url"

	"github.com/robfig/cron/v3"
)

var validLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}

	if c.Tools.ReloadSchedule != "" {
		if _, err := cron.ParseStandard(c.Tools.ReloadSchedule); err != nil {
			return fmt.Errorf("tools.reload_schedule is not a valid cron expression: %w", err)
		}
	}

	if c.Tools.ExecuteTimeoutSeconds < 0 {
		return fmt.Errorf("tools.execute_timeout_seconds cannot be negative")
	}

	if c.Tools.OctraRPCURL != "" {
		u, err := url.Parse(c.Tools.OctraRPCURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("tools.octra_rpc_url must be an http(s) URL")
		}
	}

	return nil
}
