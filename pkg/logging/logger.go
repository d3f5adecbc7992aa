package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/corvidaelabs/farmhand/pkg/config"
)

// Logger represents a logger instance
type Logger = *logrus.Logger

// Entry is a logger carrying preset fields
type Entry = *logrus.Entry

// Fields represents structured logging fields
type Fields = logrus.Fields

// NewLogger creates a JSON logger at the level named by LOG_LEVEL
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(config.GetLogLevel())
	return logger
}

// NewLoggerWithService creates a logger that stamps every entry with the service name
func NewLoggerWithService(serviceName string) *logrus.Logger {
	logger := NewLogger()
	logger.AddHook(serviceHook{service: serviceName})
	return logger
}

type serviceHook struct {
	service string
}

func (h serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok {
		entry.Data["service"] = h.service
	}
	return nil
}
