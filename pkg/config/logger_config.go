package config

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Logger contains logging configuration.
type Logger struct {
	LogLevel string `yaml:"LogLevel"`
	// LogPath is the file to write logs to, stderr is used if it's empty.
	LogPath string `yaml:"LogPath"`
	// LogEncoding is "console" (default) or "json".
	LogEncoding string `yaml:"LogEncoding"`
}

// Validate checks Logger for internal consistency.
func (l Logger) Validate() error {
	if l.LogLevel != "" {
		if _, err := zapcore.ParseLevel(l.LogLevel); err != nil {
			return fmt.Errorf("invalid LogLevel: %w", err)
		}
	}
	switch l.LogEncoding {
	case "", "console", "json":
		return nil
	default:
		return fmt.Errorf("invalid LogEncoding '%s'", l.LogEncoding)
	}
}
