package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	testCases := []struct {
		level    string
		expected zapcore.Level
	}{
		{level: "debug", expected: zapcore.DebugLevel},
		{level: "", expected: zapcore.InfoLevel},
		{level: "WARNING", expected: zapcore.WarnLevel},
		{level: "error", expected: zapcore.ErrorLevel},
		{level: "chatty", expected: zapcore.InfoLevel},
	}
	for _, testCase := range testCases {
		logger, err := NewLogger(testCase.level, "json")
		if err != nil {
			t.Fatalf("unexpected error for level %q: %v", testCase.level, err)
		}
		if !logger.Core().Enabled(testCase.expected) {
			t.Fatalf("expected level %s to be enabled for %q", testCase.expected, testCase.level)
		}
		if testCase.expected > zapcore.DebugLevel && logger.Core().Enabled(testCase.expected-1) {
			t.Fatalf("expected level below %s to be disabled for %q", testCase.expected, testCase.level)
		}
	}
}

func TestNewLoggerFormats(t *testing.T) {
	if _, err := NewLogger("info", "console"); err != nil {
		t.Fatalf("unexpected console error: %v", err)
	}
	if _, err := NewLogger("info", "xml"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
