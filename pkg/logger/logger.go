package logger

import "go.uber.org/zap"

// LoggerConfig controls logger construction.
type LoggerConfig struct {
	// Debug enables development-mode output with debug level
	Debug bool
}

// NewLogger creates a zap logger. Production config by default, development
// config (console encoding, debug level) when Debug is set.
func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	if cfg == nil {
		cfg = &LoggerConfig{}
	}

	if cfg.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
