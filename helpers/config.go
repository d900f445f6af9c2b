package helpers

import (
	"sync"
	"time"

	"github.com/Jeffail/gabs"
	"github.com/pkg/errors"
)

var (
	// config Saves the bot-config
	config      *gabs.Container
	configMutex sync.RWMutex
)

// LoadConfig loads the config from $path into $config
func LoadConfig(path string) error {
	json, err := gabs.ParseJSONFile(path)
	if err != nil {
		return errors.Wrap(err, "unable to parse config "+path)
	}

	configMutex.Lock()
	config = json
	configMutex.Unlock()
	return nil
}

// SetConfig replaces the bot-config
func SetConfig(container *gabs.Container) {
	configMutex.Lock()
	config = container
	configMutex.Unlock()
}

// GetConfig is a config getter
func GetConfig() *gabs.Container {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if config == nil {
		return gabs.New()
	}
	return config
}

// ConfigString returns the string at $path or $fallback
func ConfigString(path string, fallback string) string {
	if value, ok := GetConfig().Path(path).Data().(string); ok && value != "" {
		return value
	}
	return fallback
}

// ConfigBool returns the bool at $path or false
func ConfigBool(path string) bool {
	value, _ := GetConfig().Path(path).Data().(bool)
	return value
}

// ConfigDuration reads durations such as "500ms" or "1h" at $path
func ConfigDuration(path string, fallback time.Duration) time.Duration {
	value, ok := GetConfig().Path(path).Data().(string)
	if !ok || value == "" {
		return fallback
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return duration
}

// ConfigInt reads a number at $path
func ConfigInt(path string, fallback int) int {
	switch value := GetConfig().Path(path).Data().(type) {
	case float64:
		return int(value)
	case int:
		return value
	}
	return fallback
}
