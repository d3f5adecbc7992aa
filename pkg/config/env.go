package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DefaultEnvFiles are loaded in order by LoadEnv; later files override earlier ones.
var DefaultEnvFiles = []string{".env", ".env.dev"}

// LoadEnv overlays local env files onto the process environment.
// Missing files are skipped; a malformed file is logged and ignored.
func LoadEnv(logger *logrus.Logger, files ...string) []string {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			if logger != nil {
				logger.WithError(err).Warnf("Failed to load %s", file)
			}
			continue
		}
		loaded = append(loaded, file)
	}
	if logger != nil {
		if len(loaded) == 0 {
			logger.Debug("No local env files loaded; relying on process environment")
		} else {
			logger.Debugf("Loaded env files: %s", strings.Join(loaded, ", "))
		}
	}
	return loaded
}

func lookup(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

// GetEnv gets an environment variable with a default value
func GetEnv(key, defaultValue string) string {
	if value, ok := lookup(key); ok {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer environment variable with a default value
func GetEnvInt(key string, defaultValue int) int {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvFloat gets a float environment variable with a default value
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvBool gets a boolean environment variable with a default value
func GetEnvBool(key string, defaultValue bool) bool {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvSeconds reads a whole number of seconds. Non-positive values fall back to the default.
func GetEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if seconds := GetEnvInt(key, 0); seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// GetLogLevel gets the log level from environment
func GetLogLevel() logrus.Level {
	level, err := logrus.ParseLevel(GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
