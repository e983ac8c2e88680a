// Package config builds the process configuration from an optional YAML
// file overlaid with MODGATE_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
)

// Config holds everything main needs to wire the service.
type Config struct {
	Port          string `koanf:"port"`
	DatabasePath  string `koanf:"database_path"`
	ModulesDir    string `koanf:"modules_dir"`
	ForceLocal    bool   `koanf:"force_local"`
	GatewayURL    string `koanf:"gateway_url"`
	DeploymentURL string `koanf:"deployment_url"`
	LogLevel      string `koanf:"log_level"`

	// Telemetry. Environment "development" also selects insecure OTLP.
	OtelExporter    string `koanf:"otel_exporter"`
	OtelEnvironment string `koanf:"otel_environment"`
}

func defaults() Config {
	return Config{
		Port:            "8080",
		DatabasePath:    "modgate.db",
		GatewayURL:      "http://localhost:9130",
		DeploymentURL:   "http://localhost:9131",
		LogLevel:        "info",
		OtelExporter:    "stdout",
		OtelEnvironment: "development",
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist) and overlays MODGATE_-prefixed environment variables
// (MODGATE_DATABASE_PATH → database_path).
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("MODGATE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "MODGATE_"))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("loading env overrides: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}
