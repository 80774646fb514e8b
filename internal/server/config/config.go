// Package config handles configuration for the credential server,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the credential server.
//
// Fields:
//   - EndpointAddrGRPC: bind address for the gRPC endpoint.
//   - MetricsAddr: bind address for the Prometheus endpoint; empty disables it.
//   - DatabaseDSN: PostgreSQL DSN (pgx); empty selects the in-memory directory.
//   - SecretKey: HMAC secret for caller tokens (HS256).
//   - RecoverableKey: key material for the recoverable password slot.
//   - SecretsDir: root directory of the per-account secret files.
//   - GlobalPolicyPath: file holding the global policy tokens.
//   - AuditLogPath: audit log file; empty writes to stderr.
//   - DefaultHashList: algorithms stored when an account names none.
//   - Throttle*: failed-attempt delay schedule.
//   - AdminGroup: group whose members are privileged and exempt from disabling.
//   - TokenValidityDuration: lifetime of tokens minted by credctl.
type Config struct {
	EndpointAddrGRPC      string
	MetricsAddr           string
	DatabaseDSN           string
	SecretKey             string
	RecoverableKey        string
	SecretsDir            string
	GlobalPolicyPath      string
	AuditLogPath          string
	DefaultHashList       string
	ThrottleBaseDelay     time.Duration
	ThrottleQuietPeriod   time.Duration
	ThrottleFreeAttempts  int
	ThrottleMaxDelay      time.Duration
	AdminGroup            string
	TokenValidityDuration time.Duration
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey and RecoverableKey must be overridden in production.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50061"
	c.MetricsAddr = ":9464"
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.RecoverableKey = "recoverableKey"
	c.SecretsDir = "/var/db/credengine/secrets"
	c.GlobalPolicyPath = "/var/db/credengine/global_policy"
	c.AuditLogPath = ""
	c.DefaultHashList = "SALTED-SHA1,SMB-NT"
	c.ThrottleBaseDelay = 1 * time.Second
	c.ThrottleQuietPeriod = 10 * time.Minute
	c.ThrottleFreeAttempts = 4
	c.ThrottleMaxDelay = 0
	c.AdminGroup = "admin"
	c.TokenValidityDuration = 15 * time.Minute
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
