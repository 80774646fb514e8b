package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/credengine/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50061")
//	-m string   metrics bind address, empty disables
//	-d string   PostgreSQL DSN, empty selects the in-memory directory
//	-s string   JWT HMAC secret key
//	-k string   recoverable slot key material
//	-S string   secrets directory
//	-g string   global policy file
//	-l string   audit log file
//	-H string   default hash list
//	-b duration throttle base delay
//	-q duration throttle quiet period
//	-f int      throttle free attempts
//	-x duration throttle max delay, 0 is uncapped
//	-A string   admin group
//	-t int      token validity, minutes
//
// Only the flags listed above are passed to the flag set; everything else in
// os.Args is dropped by flagx.FilterArgs.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-m", "-d", "-s", "-k", "-S", "-g", "-l", "-H",
		"-b", "-q", "-f", "-x", "-A", "-t",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.RecoverableKey, "k", config.RecoverableKey, "recoverable slot key")
	fs.StringVar(&config.SecretsDir, "S", config.SecretsDir, "secrets directory")
	fs.StringVar(&config.GlobalPolicyPath, "g", config.GlobalPolicyPath, "global policy file")
	fs.StringVar(&config.AuditLogPath, "l", config.AuditLogPath, "audit log file")
	fs.StringVar(&config.DefaultHashList, "H", config.DefaultHashList, "default hash list")

	fs.DurationVar(&config.ThrottleBaseDelay, "b", config.ThrottleBaseDelay, "throttle base delay")
	fs.DurationVar(&config.ThrottleQuietPeriod, "q", config.ThrottleQuietPeriod, "throttle quiet period")
	fs.IntVar(&config.ThrottleFreeAttempts, "f", config.ThrottleFreeAttempts, "throttle free attempts")
	fs.DurationVar(&config.ThrottleMaxDelay, "x", config.ThrottleMaxDelay, "throttle max delay")

	fs.StringVar(&config.AdminGroup, "A", config.AdminGroup, "admin group")
	tokenValidity := fs.Int("t", int(config.TokenValidityDuration.Minutes()), "token_validity_duration (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidity) * time.Minute
}
