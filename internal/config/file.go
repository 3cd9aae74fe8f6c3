package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileDefaults holds flat KEY: value pairs read from CONFIG_FILE. Keys use
// the same names as the environment variables.
type fileDefaults map[string]string

func loadFileDefaults(path string) (fileDefaults, error) {
	if path == "" {
		return fileDefaults{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading CONFIG_FILE: %w", err)
	}

	var values map[string]interface{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parsing CONFIG_FILE: %w", err)
	}

	defaults := make(fileDefaults, len(values))
	for key, value := range values {
		if value == nil {
			continue
		}
		defaults[key] = fmt.Sprint(value)
	}
	log.WithField("path", path).Infof("Loaded %d configuration defaults from file", len(defaults))
	return defaults, nil
}

func (f fileDefaults) get(key, fallback string) string {
	if value, ok := f[key]; ok && value != "" {
		return value
	}
	return fallback
}

func fileAsType[T any](f fileDefaults, key string, fallback T) T {
	return parseAs(f[key], fallback)
}
