package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/oggyb/pupmatch/internal/config"
)

// initBuffered points the global logger at a buffer for the duration of a test.
func initBuffered(t *testing.T, c Config) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	c.Output = &buf
	Init(&c)
	t.Cleanup(func() { Init(&Config{Level: "info", Format: FormatText}) })
	return &buf
}

func TestLogger_TextFormat(t *testing.T) {
	buf := initBuffered(t, Config{Level: "debug", Format: FormatText, Component: "test"})
	Info("hello pupmatch", "key", "value")

	out := buf.String()
	if !strings.Contains(out, "hello pupmatch") {
		t.Errorf("expected message, got: %s", out)
	}
	if !strings.Contains(out, "component=test") {
		t.Errorf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "key=value") {
		t.Errorf("expected structured field, got: %s", out)
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	buf := initBuffered(t, Config{Level: "info", Format: FormatJSON, Component: "json_test"})
	Info("json log", "foo", "bar")

	out := buf.String()
	if !strings.Contains(out, `"msg":"json log"`) {
		t.Errorf("expected JSON message, got: %s", out)
	}
	if !strings.Contains(out, `"component":"json_test"`) {
		t.Errorf("expected component in JSON, got: %s", out)
	}
	if !strings.Contains(out, `"foo":"bar"`) {
		t.Errorf("expected structured field in JSON, got: %s", out)
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	buf := initBuffered(t, Config{Level: "error", Format: FormatText})
	Info("should not appear")
	Error("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("info log should not appear, got: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("error log should appear, got: %s", out)
	}
}

func TestLogger_WithAddsFields(t *testing.T) {
	buf := initBuffered(t, Config{Level: "debug", Format: FormatText})
	log := With("req_id", "123")
	log.Info("processing request")

	if out := buf.String(); !strings.Contains(out, "req_id=123") {
		t.Errorf("expected req_id field, got: %s", out)
	}
}

func TestLogger_InitFromConfig(t *testing.T) {
	appCfg := config.New()
	appCfg.Log.Level = "warn"
	appCfg.Log.Format = "json"
	appCfg.Log.Component = "cfg_test"

	InitFromConfig(appCfg)
	t.Cleanup(func() { Init(&Config{Level: "info", Format: FormatText}) })

	mu.RLock()
	got := cfg
	mu.RUnlock()

	if got.Component != "cfg_test" {
		t.Errorf("expected component from config, got: %s", got.Component)
	}
	if got.Format != FormatJSON {
		t.Errorf("expected json format, got: %s", got.Format)
	}
	if parseLevel(got.Level).Level().String() != "WARN" {
		t.Errorf("expected WARN level, got: %s", got.Level)
	}
	if L() == nil {
		t.Fatal("expected non-nil global logger")
	}
}

func TestNew_IsIndependentOfGlobal(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Format: FormatText, Component: "isolated", Output: &buf})
	l.Debug("local only")

	if !strings.Contains(buf.String(), "component=isolated") {
		t.Errorf("expected isolated component, got: %s", buf.String())
	}
}
