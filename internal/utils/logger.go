package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewApplicationLogger constructs a zap logger configured for human-readable console output.
func NewApplicationLogger() (*zap.Logger, error) {
	return NewLeveledApplicationLogger(EmptyString)
}

// NewLeveledApplicationLogger builds the console logger with the provided minimum level name.
// Empty or unknown level names fall back to info.
func NewLeveledApplicationLogger(levelName string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.DisableCaller = true
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.TimeKey = ""
	config.EncoderConfig.NameKey = ""
	config.EncoderConfig.CallerKey = ""
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.StacktraceKey = ""
	if level, parseError := zapcore.ParseLevel(levelName); parseError == nil && levelName != EmptyString {
		config.Level = zap.NewAtomicLevelAt(level)
	}
	return config.Build()
}
