package pkg

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSetLogLevel(t *testing.T) {
	original := GetLogLevel()
	defer SetLogLevel(original)

	tests := []struct {
		name  string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLogLevel(tt.level)
			if got := GetLogLevel(); got != tt.level {
				t.Errorf("GetLogLevel() = %v, want %v", got, tt.level)
			}
		})
	}
}

// captureLog points the default logger at a buffer for the duration of
// the test, restoring logger, level, output and process name afterwards.
func captureLog(t *testing.T, format LogFormat, level slog.Level) *bytes.Buffer {
	t.Helper()

	logMutex.Lock()
	origLogger, origOutput, origName := DefaultLogger, logOutput, processName
	origLevel := logLevel.Level()
	var buf bytes.Buffer
	logOutput = &buf
	processName = ""
	logMutex.Unlock()

	t.Cleanup(func() {
		logMutex.Lock()
		DefaultLogger, logOutput, processName = origLogger, origOutput, origName
		logLevel.Set(origLevel)
		logMutex.Unlock()
	})

	SetLogLevel(level)
	SetLogFormat(format)
	return &buf
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	logger.Debug("cyclic buffer full", "capacity", 4)
	if !strings.Contains(buf.String(), "cyclic buffer full") || !strings.Contains(buf.String(), "capacity=4") {
		t.Errorf("log output missing record: %s", buf.String())
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	logger.Info("device removed", "device", "uart0")
	output := buf.String()
	if !strings.Contains(output, `"msg":"device removed"`) || !strings.Contains(output, `"device":"uart0"`) {
		t.Errorf("JSON log output missing record: %s", output)
	}
}

func TestNewLogger_FollowsSharedLevel(t *testing.T) {
	original := GetLogLevel()
	defer SetLogLevel(original)

	var buf bytes.Buffer
	logger := NewLogger(&buf, nil)

	SetLogLevel(slog.LevelWarn)
	logger.Info("session opened")
	if buf.Len() != 0 {
		t.Fatalf("info record written at warn level: %s", buf.String())
	}

	SetLogLevel(slog.LevelInfo)
	logger.Info("session opened")
	if !strings.Contains(buf.String(), "session opened") {
		t.Errorf("info record missing after lowering level: %s", buf.String())
	}
}

func TestComponentLogging(t *testing.T) {
	tests := []struct {
		name      string
		log       func(Component, string, ...any)
		component Component
		written   bool
	}{
		{"debug", LogDebug, ComponentCore, false},
		{"info", LogInfo, ComponentHost, true},
		{"warn", LogWarn, ComponentIPC, true},
		{"error", LogError, ComponentDriver, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t, LogFormatText, slog.LevelInfo)

			tt.log(tt.component, "read released", "status", "end-of-device")
			output := buf.String()
			if !tt.written {
				if output != "" {
					t.Errorf("record below level was written: %s", output)
				}
				return
			}
			for _, want := range []string{
				"read released",
				"component=" + string(tt.component),
				"status=end-of-device",
				"level=" + strings.ToUpper(tt.name),
			} {
				if !strings.Contains(output, want) {
					t.Errorf("log output missing %q: %s", want, output)
				}
			}
		})
	}
}

func TestSetLogger(t *testing.T) {
	captureLog(t, LogFormatText, slog.LevelInfo)

	var buf bytes.Buffer
	SetLogger(NewLogger(&buf, nil))

	LogInfo(ComponentDevice, "function created", "function", "uart0/a")
	if !strings.Contains(buf.String(), "function=uart0/a") {
		t.Error("custom logger not used")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelWarn, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelWarn, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLogFormat(t *testing.T) {
	if ParseLogFormat("json") != LogFormatJSON {
		t.Error("json should select LogFormatJSON")
	}
	if ParseLogFormat("text") != LogFormatText {
		t.Error("text should select LogFormatText")
	}
	if ParseLogFormat("xml") != LogFormatText {
		t.Error("unknown format should fall back to LogFormatText")
	}
}

func TestInitLog(t *testing.T) {
	buf := captureLog(t, LogFormatText, slog.LevelInfo)

	InitLog("nstest", LogFormatJSON)
	LogInfo(ComponentDriver, "device successfully initialized", "device", "uart0")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("record is not one JSON object: %v: %s", err, buf.String())
	}
	want := map[string]any{
		"proc":      "nstest",
		"component": "driver",
		"device":    "uart0",
		"level":     "INFO",
		"msg":       "device successfully initialized",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("record[%q] = %v, want %v", k, rec[k], v)
		}
	}
}

func TestSetLogFormat_WithoutProcessName(t *testing.T) {
	buf := captureLog(t, LogFormatJSON, slog.LevelInfo)

	LogWarn(ComponentFeed, "overrun", "dropped", 6)
	if strings.Contains(buf.String(), `"proc"`) {
		t.Errorf("proc attached before InitLog: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"dropped":6`) {
		t.Errorf("record missing attribute: %s", buf.String())
	}
}
