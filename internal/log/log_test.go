package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerDefaultsToJSONAtInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(LoggerOptions{Output: &buf})
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}

	if logger.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level, got %s", logger.GetLevel())
	}

	logger.WithField("url", "home").Info("hello")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if payload["url"] != "home" || payload["msg"] != "hello" {
		t.Fatalf("unexpected log payload %#v", payload)
	}
}

func TestNewLoggerTextFormatAndLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(LoggerOptions{Level: "DEBUG", Format: "text", Output: &buf})
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}

	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}

	logger.Debug("visible")
	if !strings.Contains(buf.String(), "msg=visible") {
		t.Fatalf("expected text formatted output, got %q", buf.String())
	}
}

func TestNewLoggerRejectsInvalidSettings(t *testing.T) {
	t.Parallel()

	if _, err := NewLogger(LoggerOptions{Level: "chatty"}); err == nil {
		t.Fatalf("expected error for invalid level")
	}
	if _, err := NewLogger(LoggerOptions{Format: "xml"}); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestInitSentryWithoutDSNIsNoop(t *testing.T) {
	t.Parallel()

	hub, flush, err := InitSentry(logrus.New(), SentrySettings{})
	if err != nil {
		t.Fatalf("InitSentry returned error: %v", err)
	}
	if hub != nil {
		t.Fatalf("expected nil hub without DSN")
	}
	flush()
}
