package datasource

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"
)

// restyLogger routes resty's own messages (retry attempts, body warnings)
// into the service logger instead of stderr
type restyLogger struct {
	logger *slog.Logger
}

// NewRestyLogger adapts logger to resty's printf-style Logger
func NewRestyLogger(logger *slog.Logger) resty.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return restyLogger{logger: logger.With("component", "resty")}
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(message(format, v))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(message(format, v))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(message(format, v))
}

func message(format string, v []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, v...))
}
