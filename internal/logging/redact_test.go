package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"password", true},
		{"old_password", true},
		{"Secret", true},
		{"nt_response", true},
		{"access_token", true},
		{"account", false},
		{"method", false},
		{"policy", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSensitiveKey(tt.key))
		})
	}
}

func TestRedact_CopiesAndMasks(t *testing.T) {
	in := []any{"account", "alice", "password", "hunter2", "dangling"}
	out := Redact(in)

	assert.Equal(t, []any{"account", "alice", "password", Redacted, "dangling"}, out)
	assert.Equal(t, "hunter2", in[3], "input must not be modified")
}

func TestNewJSONSlogLogger_RedactsAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONSlogLogger(&buf, slog.LevelInfo)

	l.Debug(context.Background(), "hidden")
	l.With("secret", "s").Info(context.Background(), "shown", "password", "pw", "account", "bob")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, Redacted, rec["password"])
	assert.Equal(t, Redacted, rec["secret"])
	assert.Equal(t, "bob", rec["account"])
}
