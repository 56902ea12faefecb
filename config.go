// config.go
package sharekit

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config controls a client connection.
type Config struct {
	// URL is the WebSocket endpoint, e.g. "ws://localhost:17051".
	URL string `yaml:"url"`

	// Reconnect redials and resumes the session when the socket closes.
	Reconnect bool `yaml:"reconnect"`

	// CachePath enables the SQLite snapshot cache when non-empty.
	CachePath string `yaml:"cache_path"`

	// WireLogging logs every frame in both directions.
	WireLogging bool `yaml:"wire_logging"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig(url string) Config {
	return Config{
		URL:       url,
		Reconnect: true,
	}
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Config{Reconnect: true}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.URL == "" {
		return Config{}, fmt.Errorf("config: url is required")
	}
	return cfg, nil
}
