package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config is the main webtools configuration.
type Config struct {
	Server  ServerConfig  `json:"server" mapstructure:"server"`
	Tools   ToolsConfig   `json:"tools" mapstructure:"tools"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// DataDir is the base directory for service state.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// ToolsConfig holds tool discovery and execution settings.
type ToolsConfig struct {
	// ManifestDir is scanned for *.json tool manifests.
	ManifestDir string `json:"manifest_dir" mapstructure:"manifest_dir"`
	// Watch reloads the registry when manifests change on disk.
	Watch bool `json:"watch" mapstructure:"watch"`
	// ReloadSchedule is an optional cron expression for periodic reloads.
	ReloadSchedule string `json:"reload_schedule" mapstructure:"reload_schedule"`
	// ExecuteTimeoutSeconds bounds one tool invocation. Zero disables the bound.
	ExecuteTimeoutSeconds int `json:"execute_timeout_seconds" mapstructure:"execute_timeout_seconds"`
	// OctraRPCURL is the RPC endpoint for the built-in octra_client tool.
	OctraRPCURL string `json:"octra_rpc_url" mapstructure:"octra_rpc_url"`
	// HTTPTimeoutSeconds bounds outbound HTTP calls made by tools.
	HTTPTimeoutSeconds int `json:"http_timeout_seconds" mapstructure:"http_timeout_seconds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Tools: ToolsConfig{
			ManifestDir:           filepath.Join(dataDir, "tools.d"),
			Watch:                 true,
			ExecuteTimeoutSeconds: 30,
			OctraRPCURL:           "https://octra.network",
			HTTPTimeoutSeconds:    10,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		DataDir: dataDir,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".webtools"
	}
	return filepath.Join(home, ".webtools")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".webtools", "webtools.json"), nil
}
