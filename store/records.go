package store

import "github.com/inschat/auth-service/password"

// UserRecord is the durable per-account state. Records are keyed by
// username and are never deleted by this subsystem.
type UserRecord struct {
	PasswordHash password.Hash `json:"password"`

	// FailureTimes holds the epoch seconds of recent failed logins,
	// pruned to the lockout window on each status check.
	FailureTimes []int64 `json:"fails,omitempty"`

	// LockedUntil is the epoch second the account lock expires, 0 when
	// the account is not locked.
	LockedUntil int64 `json:"locked_until,omitempty"`
}

// SessionRecord is the durable per-session state, keyed by session id.
// Session and CSRF lifetimes are tracked separately and either may expire
// first; expired records are rejected at lookup time rather than purged.
type SessionRecord struct {
	SID        string `json:"sid"`
	User       string `json:"user"`
	CSRFToken  string `json:"csrf"`
	CSRFExpiry int64  `json:"csrf_exp"`
	Expiry     int64  `json:"exp"`
}
