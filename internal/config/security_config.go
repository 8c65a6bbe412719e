package config

import "time"

type SecurityConfig interface {
	GetSessionTTL() time.Duration
	GetCSRFTTL() time.Duration
	GetLockThreshold() int
	GetLockWindow() time.Duration
	GetLockDuration() time.Duration
	GetRateLimit() int
	GetRateWindow() time.Duration
	GetSessionSweepInterval() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetSessionTTL() time.Duration {
	return 7 * 24 * time.Hour
}

func (Security) GetCSRFTTL() time.Duration {
	return 12 * time.Hour
}

func (Security) GetLockThreshold() int {
	return 5 // failed attempts within the lock window
}

func (Security) GetLockWindow() time.Duration {
	return 15 * time.Minute
}

func (Security) GetLockDuration() time.Duration {
	return 10 * time.Minute
}

func (Security) GetRateLimit() int {
	return 10 // login attempts per IP per rate window
}

func (Security) GetRateWindow() time.Duration {
	return 60 * time.Second
}

func (Security) GetSessionSweepInterval() time.Duration {
	return time.Hour
}
