package models

import "time"

// Account is a directory record the engine operates on.
type Account struct {
	// Handle is the directory's opaque record reference.
	Handle string
	Name   string
	// GUID is the record's GeneratedUID; empty for legacy accounts.
	GUID string
}

// Caller identifies who issued a request.
type Caller struct {
	Subject    string
	Privileged bool
}

// Anonymous is a caller without credentials.
var Anonymous = Caller{}

// AccountState holds the authentication counters kept next to an
// account's secret.
type AccountState struct {
	FailedLoginAttempts int
	LastLoginDate       time.Time
	ModDateOfPassword   time.Time
	LastFailedLoginDate time.Time
	NewPasswordRequired bool
	Disabled            bool
}
