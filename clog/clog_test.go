package clog

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level string, opts ...Option) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := New(&Config{Level: level, Format: "json"}, append(opts, WithWriter(buf))...)
	require.NoError(t, err)
	return logger, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

// TestConfigValidation 测试配置校验与默认值
func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "defaults", cfg: &Config{}},
		{name: "json", cfg: &Config{Level: "debug", Format: "json"}},
		{name: "bad level", cfg: &Config{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: &Config{Format: "xml"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.NotEmpty(t, tt.cfg.Output)
		})
	}
}

func TestLoggerWritesFieldsAndNamespace(t *testing.T) {
	logger, buf := newBufferLogger(t, "info", WithNamespace("srvd"))

	logger.WithNamespace("registry").
		With(String("domain", "prod")).
		Info("instance announced", String("path", "/srv/prod/http/1"), Error(errors.New("boom")))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "srvd.registry", lines[0][NamespaceKey])
	assert.Equal(t, "prod", lines[0]["domain"])
	assert.Equal(t, "/srv/prod/http/1", lines[0]["path"])
	assert.Equal(t, "boom", lines[0]["err_msg"])
}

// TestSetLevel 运行时调整级别对已派生的子 Logger 同样生效
func TestSetLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")
	child := logger.WithNamespace("watch")

	child.Debug("hidden")
	assert.Empty(t, buf.String())

	require.NoError(t, logger.SetLevel(DebugLevel))
	child.Debug("visible")
	assert.Len(t, decodeLines(t, buf), 1)
}

func TestErrorNilIsDropped(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")
	logger.Warn("no error", Error(nil))
	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	_, has := lines[0]["err_msg"]
	assert.False(t, has)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, level)
	assert.Equal(t, "warn", level.String())

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Info("nothing")
	assert.Same(t, l, l.WithNamespace("x"))
	assert.NoError(t, l.SetLevel(ErrorLevel))
}
