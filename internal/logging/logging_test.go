package logging

import (
	"errors"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "JSON format to stdout",
			config: Config{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "Console format to stderr",
			config: Config{
				Level:  "debug",
				Format: "console",
				Output: "stderr",
			},
			wantErr: false,
		},
		{
			name: "Invalid log level defaults to info",
			config: Config{
				Level:  "invalid",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("Expected non-nil logger")
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	logger, err := NewLogger(Config{
		Level:  "debug",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	// All methods should not panic
	logger.Info("test info message")
	logger.Debug("test debug message")
	logger.Warn("test warn message")
	logger.Error("test error message")
	logger.Infof("formatted %s", "info")
	logger.ErrorWithErr("something failed", errors.New("boom"))
}

func TestLoggerWithFields(t *testing.T) {
	logger, err := NewDefaultLogger()
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	if logger.WithField("key", "value") == nil {
		t.Error("Expected non-nil logger from WithField")
	}

	if logger.WithChannelID("channel-1") == nil {
		t.Error("Expected non-nil logger from WithChannelID")
	}

	if logger.WithSegmentID("segment-1") == nil {
		t.Error("Expected non-nil logger from WithSegmentID")
	}

	if logger.WithRunID("run-1") == nil {
		t.Error("Expected non-nil logger from WithRunID")
	}

	if logger.WithError(errors.New("boom")) == nil {
		t.Error("Expected non-nil logger from WithError")
	}
}

func TestStructuredHelpers(t *testing.T) {
	logger, err := NewDefaultLogger()
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	// Helpers should not panic with or without an error attached
	logger.LogPipelineStage("channel-1", "synthesize", 12, 150*time.Millisecond, nil)
	logger.LogPipelineStage("channel-1", "merge", 0, 10*time.Millisecond, errors.New("boom"))
	logger.LogStorageOperation("presign", "clips", "channels/a/f.mp3", time.Millisecond, nil)
	logger.LogDatabaseOperation("bulk_insert_segments", 5*time.Millisecond, nil)
	logger.LogSegmentSkipped("channel-1", "zero_duration", map[string]interface{}{
		"title": "Track A",
	})
}
