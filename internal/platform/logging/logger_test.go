package logging

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/janisto/greeter-web/internal/platform/timeutil"
)

// resetLoggerForTest clears the singleton state so tests can capture fresh log output.
func resetLoggerForTest() {
	loggerOnce = sync.Once{}
	baseLogger = nil
	sugarLogger = nil
	loggerErr = nil
	level.SetLevel(zapcore.InfoLevel)
}

// captureStdout redirects stdout while fn runs against a fresh process logger
// and returns every non-empty line written.
func captureStdout(t *testing.T, fn func()) []string {
	t.Helper()
	resetLoggerForTest()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	defer func() { _ = r.Close() }()

	origStdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = origStdout }()

	fn()
	_ = Logger().Sync()

	if err := w.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read log output: %v", err)
	}
	var lines []string
	for line := range strings.SplitSeq(strings.TrimSpace(string(data)), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("failed to unmarshal log JSON %q: %v", line, err)
	}
	return payload
}

func TestLoggerStructuredOutput(t *testing.T) {
	lines := captureStdout(t, func() {
		Logger().Info("listening", zap.Int("port", 3000))
	})
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	payload := decodeLine(t, lines[0])

	if got := payload["severity"]; got != "INFO" {
		t.Fatalf("expected severity INFO, got %v", got)
	}
	if _, exists := payload["level"]; exists {
		t.Fatal("did not expect level field")
	}
	if msg := payload["message"]; msg != "listening" {
		t.Fatalf("expected message 'listening', got %v", msg)
	}
	if port, ok := payload["port"].(float64); !ok || port != 3000 {
		t.Fatalf("expected port 3000, got %v", payload["port"])
	}
	ts, ok := payload["timestamp"].(string)
	if !ok {
		t.Fatalf("expected timestamp string, got %T", payload["timestamp"])
	}
	if _, err := time.Parse(timeutil.RFC3339Micros, ts); err != nil {
		t.Fatalf("timestamp is not RFC3339Micros: %v", err)
	}
	if caller, _ := payload["caller"].(string); !strings.Contains(caller, "logger_test.go") {
		t.Fatalf("expected caller to reference logger_test.go, got %q", caller)
	}
}

func TestSetLevelControlsOutput(t *testing.T) {
	lines := captureStdout(t, func() {
		Logger().Debug("hidden at info")
		SetLevel(zapcore.DebugLevel)
		Logger().Debug("visible at debug")
		SetLevel(zapcore.ErrorLevel)
		Sugar().Warnw("hidden at error")
	})
	defer SetLevel(zapcore.InfoLevel)

	if len(lines) != 1 {
		t.Fatalf("expected exactly 1 line, got %d: %v", len(lines), lines)
	}
	payload := decodeLine(t, lines[0])
	if payload["message"] != "visible at debug" || payload["severity"] != "DEBUG" {
		t.Fatalf("unexpected entry: %v", payload)
	}
	if Level() != zapcore.ErrorLevel {
		t.Fatalf("expected level error, got %s", Level())
	}
}

func TestEncodeSeverityMapping(t *testing.T) {
	tests := []struct {
		level    zapcore.Level
		expected string
	}{
		{zapcore.DebugLevel, "DEBUG"},
		{zapcore.InfoLevel, "INFO"},
		{zapcore.WarnLevel, "WARNING"},
		{zapcore.ErrorLevel, "ERROR"},
		{zapcore.DPanicLevel, "CRITICAL"},
		{zapcore.PanicLevel, "ALERT"},
		{zapcore.FatalLevel, "EMERGENCY"},
		{zapcore.Level(99), "DEFAULT"},
	}
	for _, tt := range tests {
		enc := &captureArrayEncoder{}
		encodeSeverity(tt.level, enc)
		if len(enc.values) != 1 || enc.values[0] != tt.expected {
			t.Fatalf("encodeSeverity(%v) = %v, want %s", tt.level, enc.values, tt.expected)
		}
	}
}

func TestEncodeTimeMicrosUsesUTC(t *testing.T) {
	enc := &captureArrayEncoder{}
	loc := time.FixedZone("UTC+2", 2*60*60)
	encodeTimeMicros(time.Date(2024, 6, 15, 12, 30, 45, 123456000, loc), enc)
	if len(enc.values) != 1 || enc.values[0] != "2024-06-15T10:30:45.123456Z" {
		t.Fatalf("unexpected encoded time: %v", enc.values)
	}
}

func TestLoggerSingletonSharesCore(t *testing.T) {
	resetLoggerForTest()
	if Logger() != Logger() {
		t.Fatal("expected Logger() to return the same instance")
	}
	if Sugar().Desugar().Core() != Logger().Core() {
		t.Fatal("expected Logger and Sugar to share the same core")
	}
	if err := Err(); err != nil {
		t.Fatalf("expected nil init error, got %v", err)
	}
}

// captureArrayEncoder collects strings appended via the PrimitiveArrayEncoder interface.
type captureArrayEncoder struct {
	values []string
}

func (c *captureArrayEncoder) AppendBool(bool)             {}
func (c *captureArrayEncoder) AppendByteString([]byte)     {}
func (c *captureArrayEncoder) AppendComplex128(complex128) {}
func (c *captureArrayEncoder) AppendComplex64(complex64)   {}
func (c *captureArrayEncoder) AppendFloat64(float64)       {}
func (c *captureArrayEncoder) AppendFloat32(float32)       {}
func (c *captureArrayEncoder) AppendInt(int)               {}
func (c *captureArrayEncoder) AppendInt64(int64)           {}
func (c *captureArrayEncoder) AppendInt32(int32)           {}
func (c *captureArrayEncoder) AppendInt16(int16)           {}
func (c *captureArrayEncoder) AppendInt8(int8)             {}
func (c *captureArrayEncoder) AppendString(s string)       { c.values = append(c.values, s) }
func (c *captureArrayEncoder) AppendUint(uint)             {}
func (c *captureArrayEncoder) AppendUint64(uint64)         {}
func (c *captureArrayEncoder) AppendUint32(uint32)         {}
func (c *captureArrayEncoder) AppendUint16(uint16)         {}
func (c *captureArrayEncoder) AppendUint8(uint8)           {}
func (c *captureArrayEncoder) AppendUintptr(uintptr)       {}
