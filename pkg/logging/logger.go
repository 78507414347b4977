package logging

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/addanuj/mcp-client/pkg/config"
)

// Logger represents a logger instance
type Logger = *logrus.Logger

// Fields represents structured logging fields
type Fields = logrus.Fields

// Level represents a log level
type Level = logrus.Level

// Log levels
const (
	DebugLevel = logrus.DebugLevel
	InfoLevel  = logrus.InfoLevel
	WarnLevel  = logrus.WarnLevel
	ErrorLevel = logrus.ErrorLevel
)

const redacted = "[REDACTED]"

// NewLogger creates a new configured logger instance
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(config.GetLogLevel())
	logger.AddHook(redactHook{})
	return logger
}

// NewLoggerWithService creates a logger that stamps every entry with a service field.
func NewLoggerWithService(serviceName string) *logrus.Logger {
	logger := NewLogger()
	logger.AddHook(serviceHook{name: serviceName})
	return logger
}

// IsSensitiveKey reports whether a field or argument name looks like a credential.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, marker := range []string{"token", "api_key", "apikey", "password", "secret", "authorization", "credential"} {
		if strings.Contains(k, marker) {
			return true
		}
	}
	return false
}

type serviceHook struct {
	name string
}

func (h serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok {
		entry.Data["service"] = h.name
	}
	return nil
}

// redactHook masks credential-looking fields before they reach the formatter.
type redactHook struct{}

func (redactHook) Levels() []logrus.Level { return logrus.AllLevels }

func (redactHook) Fire(entry *logrus.Entry) error {
	for key, value := range entry.Data {
		if !IsSensitiveKey(key) {
			continue
		}
		if s, ok := value.(string); ok && s == "" {
			continue
		}
		entry.Data[key] = redacted
	}
	return nil
}
