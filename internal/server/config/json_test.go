package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_grpc":      "www.example:9000",
		"metrics_addr":            "",
		"database_dsn":            "postgres://x",
		"secret_key":              "my_secret_key",
		"recoverable_key":         "rk",
		"secrets_dir":             "/srv/secrets",
		"global_policy_path":      "/srv/policy",
		"audit_log_path":          "/srv/audit.log",
		"default_hash_list":       "SALTED-SHA1,CRAM-MD5",
		"throttle_base_delay":     "500ms",
		"throttle_quiet_period":   "1h",
		"throttle_free_attempts":  3,
		"throttle_max_delay":      "1m",
		"admin_group":             "staff",
		"token_validity_duration": "30m",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
		assert.Equal(t, "", cfg.MetricsAddr)
		assert.Equal(t, "postgres://x", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, "rk", cfg.RecoverableKey)
		assert.Equal(t, "/srv/secrets", cfg.SecretsDir)
		assert.Equal(t, "/srv/policy", cfg.GlobalPolicyPath)
		assert.Equal(t, "/srv/audit.log", cfg.AuditLogPath)
		assert.Equal(t, "SALTED-SHA1,CRAM-MD5", cfg.DefaultHashList)
		assert.Equal(t, 500*time.Millisecond, cfg.ThrottleBaseDelay)
		assert.Equal(t, time.Hour, cfg.ThrottleQuietPeriod)
		assert.Equal(t, 3, cfg.ThrottleFreeAttempts)
		assert.Equal(t, time.Minute, cfg.ThrottleMaxDelay)
		assert.Equal(t, "staff", cfg.AdminGroup)
		assert.Equal(t, 30*time.Minute, cfg.TokenValidityDuration)
	})

	t.Run("no config flag leaves values alone", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{}
		cfg.LoadDefaults()
		want := *cfg
		parseJson(cfg)

		assert.Equal(t, want, *cfg)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "absent.json")}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
