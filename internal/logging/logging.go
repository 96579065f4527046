package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a wrapper around zerolog.Logger
type Logger struct {
	logger zerolog.Logger
}

// Config holds logging configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, file path
}

// NewLogger creates a new logger with the given configuration
func NewLogger(cfg Config) (*Logger, error) {
	var output io.Writer

	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		output = file
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()

	// Set global logger
	log.Logger = logger

	return &Logger{logger: logger}, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() (*Logger, error) {
	return NewLogger(Config{Level: "info", Format: "json", Output: "stdout"})
}

// NewConsoleLogger creates a logger with console output for development
func NewConsoleLogger() (*Logger, error) {
	return NewLogger(Config{Level: "debug", Format: "console", Output: "stdout"})
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error().Msg(msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

// ErrorWithErr logs an error message with an error
func (l *Logger) ErrorWithErr(msg string, err error) {
	l.logger.Error().Err(err).Msg(msg)
}

// Fatalf logs a formatted fatal message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatal().Msgf(format, args...)
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger()}
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithChannelID adds a channel ID to the logger
func (l *Logger) WithChannelID(channelID string) *Logger {
	return &Logger{logger: l.logger.With().Str("channel_id", channelID).Logger()}
}

// WithSegmentID adds a segment ID to the logger
func (l *Logger) WithSegmentID(segmentID string) *Logger {
	return &Logger{logger: l.logger.With().Str("segment_id", segmentID).Logger()}
}

// WithRunID adds a pipeline run ID to the logger
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{logger: l.logger.With().Str("run_id", runID).Logger()}
}

// LogPipelineStage logs the completion of one pipeline stage for a channel
func (l *Logger) LogPipelineStage(channelID, stage string, segments int, duration time.Duration, err error) {
	evt := l.logger.Info()
	if err != nil {
		evt = l.logger.Error().Err(err)
	}

	evt.
		Str("channel_id", channelID).
		Str("stage", stage).
		Int("segments", segments).
		Dur("duration_ms", duration).
		Msg("Pipeline stage")
}

// LogStorageOperation logs a storage operation
func (l *Logger) LogStorageOperation(operation, bucket, key string, duration time.Duration, err error) {
	evt := l.logger.Info()
	if err != nil {
		evt = l.logger.Error().Err(err)
	}

	evt.
		Str("operation", operation).
		Str("bucket", bucket).
		Str("key", key).
		Dur("duration_ms", duration).
		Msg("Storage operation")
}

// LogDatabaseOperation logs a database operation
func (l *Logger) LogDatabaseOperation(operation string, duration time.Duration, err error) {
	evt := l.logger.Info()
	if err != nil {
		evt = l.logger.Error().Err(err)
	}

	evt.
		Str("operation", operation).
		Dur("duration_ms", duration).
		Msg("Database operation")
}

// LogSegmentSkipped logs a per-item skip during batch processing
func (l *Logger) LogSegmentSkipped(channelID, reason string, details map[string]interface{}) {
	evt := l.logger.Warn().
		Str("channel_id", channelID).
		Str("reason", reason)

	for k, v := range details {
		evt = evt.Interface(k, v)
	}

	evt.Msg("Segment skipped")
}
