package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/credengine/internal/flagx"
	"github.com/dmitrijs2005/credengine/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Interval fields
// use timex.Duration so both "1s" strings and integer nanoseconds parse.
type JsonConfig struct {
	EndpointAddrGRPC      string         `json:"endpoint_addr_grpc"`
	MetricsAddr           string         `json:"metrics_addr"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	RecoverableKey        string         `json:"recoverable_key"`
	SecretsDir            string         `json:"secrets_dir"`
	GlobalPolicyPath      string         `json:"global_policy_path"`
	AuditLogPath          string         `json:"audit_log_path"`
	DefaultHashList       string         `json:"default_hash_list"`
	ThrottleBaseDelay     timex.Duration `json:"throttle_base_delay"`
	ThrottleQuietPeriod   timex.Duration `json:"throttle_quiet_period"`
	ThrottleFreeAttempts  int            `json:"throttle_free_attempts"`
	ThrottleMaxDelay      timex.Duration `json:"throttle_max_delay"`
	AdminGroup            string         `json:"admin_group"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag into config. Without the flag nothing is loaded. An unreadable
// file or invalid JSON panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.ConfigPath()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.MetricsAddr = c.MetricsAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.RecoverableKey = c.RecoverableKey
	config.SecretsDir = c.SecretsDir
	config.GlobalPolicyPath = c.GlobalPolicyPath
	config.AuditLogPath = c.AuditLogPath
	config.DefaultHashList = c.DefaultHashList
	config.ThrottleBaseDelay = time.Duration(c.ThrottleBaseDelay.Duration)
	config.ThrottleQuietPeriod = time.Duration(c.ThrottleQuietPeriod.Duration)
	config.ThrottleFreeAttempts = c.ThrottleFreeAttempts
	config.ThrottleMaxDelay = time.Duration(c.ThrottleMaxDelay.Duration)
	config.AdminGroup = c.AdminGroup
	config.TokenValidityDuration = time.Duration(c.TokenValidityDuration.Duration)
}
