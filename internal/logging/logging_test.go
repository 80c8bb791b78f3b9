package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textservice/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, level)
			assert.Equal(t, strings.TrimSuffix(strings.ToLower(test.input), "ing"), LevelString(level))
		})
	}
}

func newBufferLogger(t *testing.T, cfg *Config) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg.Writer = &buf
	cfg.Format = FormatJSON
	l, err := New(cfg)
	require.NoError(t, err)
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestRedactsTypedContent(t *testing.T) {
	l, buf := newBufferLogger(t, DefaultConfig())
	l.Info("commit", "commit", "hello", "preedit", "wor", "vkey", 0x41, "client_id", 3)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, Redacted, lines[0]["commit"])
	assert.Equal(t, Redacted, lines[0]["preedit"])
	assert.Equal(t, float64(0x41), lines[0]["vkey"])
	assert.Equal(t, float64(3), lines[0]["client_id"])
	assert.Equal(t, "textservice", lines[0]["app"])
}

func TestLogContentKeepsText(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogContent = true
	l, buf := newBufferLogger(t, cfg)
	l.Info("commit", "commit", "hello", "api_token", "x")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "hello", lines[0]["commit"])
	assert.Equal(t, Redacted, lines[0]["api_token"])
}

func TestSetLevelAffectsDerivedLoggers(t *testing.T) {
	l, buf := newBufferLogger(t, DefaultConfig())
	child := l.WithComponent("ibus_engine")

	child.Debug("hidden")
	assert.Empty(t, buf.String())

	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, child.GetLevel())
	child.Debug("shown")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "ibus_engine", lines[0]["component"])
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(config.LoggingConfig{
		Level:      "warn",
		Format:     "json",
		Output:     "file",
		FilePath:   "/tmp/x.log",
		MaxSizeMB:  2,
		MaxBackups: 4,
		LogContent: true,
	})
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, cfg.Level)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, int64(2), cfg.MaxSize)
	assert.Equal(t, 4, cfg.MaxBackups)
	assert.True(t, cfg.LogContent)

	_, err = FromSettings(config.LoggingConfig{Level: "chatty"})
	assert.Error(t, err)
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "textservice.log")
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = path
	l, err := New(cfg)
	require.NoError(t, err)

	l.Info("started")
	require.NoError(t, l.Sync())
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "started")
}

func existing(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func TestFileRotatorRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	cfg := &Config{FilePath: path, MaxBackups: 2, maxBytes: 32}

	r, err := NewFileRotator(cfg)
	require.NoError(t, err)
	defer r.Close()

	line := []byte("0123456789abcdef0123456789\n")
	for i := 0; i < 5; i++ {
		n, err := r.Write(line)
		require.NoError(t, err)
		assert.Equal(t, len(line), n)
	}

	assert.Equal(t, []string{path, path + ".1", path + ".2"}, existing(path, path+".1", path+".2", path+".3"))
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, line, data)
}

func TestFileRotatorNoBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	r, err := NewFileRotator(&Config{FilePath: path, maxBytes: 8})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Write([]byte("aaaaaaa\n"))
	require.NoError(t, err)
	_, err = r.Write([]byte("bbbbbbb\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{path}, existing(path, path+".1"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bbbbbbb\n", string(data))
}

func TestRecover(t *testing.T) {
	l, buf := newBufferLogger(t, DefaultConfig())

	func() {
		defer l.Recover("callback")
		panic("boom")
	}()

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "callback", lines[0]["op"])
	assert.Equal(t, "boom", lines[0]["panic"])
}

func TestRecoverErr(t *testing.T) {
	l, _ := newBufferLogger(t, DefaultConfig())

	run := func() (err error) {
		defer l.RecoverErr("enable", &err)
		panic(errors.New("bad state"))
	}
	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad state")
}
