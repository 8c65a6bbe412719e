package auth

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/inschat/auth-service/sessions"
	"github.com/inschat/auth-service/store"
)

var (
	// ErrRateLimited reports that the client IP exceeded the login rate
	// limit. Maps to HTTP 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrAccountLocked reports that the account is temporarily locked.
	// Externally it is indistinguishable from ErrInvalidCredentials (both
	// map to HTTP 401 with the same body); the retry-after rides on
	// AccountLockedError for internal logging only.
	ErrAccountLocked = errors.New("account locked")

	// ErrInvalidCredentials covers both a wrong password and an unknown
	// username, so responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMalformedToken and ErrExpiredSession both collapse to an
	// unauthenticated response; session lookup deliberately does not
	// distinguish them to the client.
	ErrMalformedToken = errors.New("malformed token")
	ErrExpiredSession = errors.New("session expired")

	// ErrExpiredCSRF and ErrCSRFMismatch reject state-changing requests.
	// They alias the sessions sentinels so the check logic exists once.
	ErrExpiredCSRF  = sessions.ErrCSRFExpired
	ErrCSRFMismatch = sessions.ErrCSRFMismatch

	// ErrStorageUnavailable reports that a mutation could not be made
	// durable; the request must fail rather than continue with
	// memory-only state.
	ErrStorageUnavailable = store.ErrUnavailable

	// ErrUserExists rejects registration of a taken username.
	ErrUserExists = errors.New("user already exists")
)

// AccountLockedError carries how long the lock has left. It matches
// ErrAccountLocked under errors.Is.
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %s", e.RetryAfter)
}

// Is makes errors.Is(err, ErrAccountLocked) hold for this type.
func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}
