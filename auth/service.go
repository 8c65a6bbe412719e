// Package auth composes the credential and session components into the
// login, logout, session-lookup and CSRF-enforcement operations the routing
// layer calls. It is the only package the routing layer talks to directly.
package auth

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/inschat/auth-service/lockout"
	"github.com/inschat/auth-service/password"
	"github.com/inschat/auth-service/ratelimit"
	"github.com/inschat/auth-service/sessions"
	"github.com/inschat/auth-service/store"
)

// Components holds all dependencies for the Service.
type Components struct {
	Store    *store.Store
	Hasher   *password.Hasher
	Sessions *sessions.Manager
	Limiter  *ratelimit.Limiter
	Lockout  *lockout.Tracker
}

// Service wires rate limiting, lockout, password verification and session
// issuance into the public authentication operations. All time handling
// lives in the components, which each take their own injectable clock.
type Service struct {
	c Components
}

// NewService initializes a new Service with required dependencies.
func NewService(c Components) (*Service, error) {
	if c.Store == nil {
		return nil, errors.New("[NewService] Store is required")
	}
	if c.Hasher == nil {
		return nil, errors.New("[NewService] Hasher is required")
	}
	if c.Sessions == nil {
		return nil, errors.New("[NewService] Sessions manager is required")
	}
	if c.Limiter == nil {
		return nil, errors.New("[NewService] Limiter is required")
	}
	if c.Lockout == nil {
		return nil, errors.New("[NewService] Lockout tracker is required")
	}
	return &Service{c: c}, nil
}

// Register creates a user record with a freshly derived password hash.
// The hash is derived outside the store lock; scrypt is deliberately slow.
func (s *Service) Register(username, pw string) error {
	if username == "" || pw == "" {
		return ErrInvalidCredentials
	}
	h, err := s.c.Hasher.Hash(pw)
	if err != nil {
		return errors.Wrap(err, "[Service.Register] Hash")
	}
	return s.c.Store.Update(func(st *store.State) error {
		if _, ok := st.Users[username]; ok {
			return ErrUserExists
		}
		st.Users[username] = &store.UserRecord{PasswordHash: h}
		return nil
	})
}

// Login runs the full admission pipeline: per-IP rate limit, account
// lockout, password verification, then session issuance. A wrong password
// records a failure; a correct one clears the failure history before the
// session is created. A login that cannot be made durable fails.
func (s *Service) Login(username, pw, ip string) (sessions.Credentials, error) {
	if !s.c.Limiter.Admit(ip) {
		return sessions.Credentials{}, ErrRateLimited
	}

	if locked, remaining := s.c.Lockout.Status(username); locked {
		return sessions.Credentials{}, &AccountLockedError{RetryAfter: remaining}
	}

	var (
		rec   store.UserRecord
		found bool
	)
	s.c.Store.Read(func(st *store.State) {
		if r, ok := st.Users[username]; ok {
			rec = *r
			found = true
		}
	})
	// Unknown user and wrong password produce the same result, so
	// responses cannot be used to enumerate usernames.
	if !found {
		return sessions.Credentials{}, ErrInvalidCredentials
	}
	if !s.c.Hasher.Verify(pw, rec.PasswordHash) {
		if err := s.c.Lockout.RecordFailure(username); err != nil {
			return sessions.Credentials{}, err
		}
		return sessions.Credentials{}, ErrInvalidCredentials
	}

	if err := s.c.Lockout.RecordSuccess(username); err != nil {
		return sessions.Credentials{}, err
	}
	creds, err := s.c.Sessions.Create(username)
	if err != nil {
		return sessions.Credentials{}, errors.Wrap(err, "[Service.Login] Sessions.Create")
	}
	return creds, nil
}

// Whoami resolves the raw Cookie header to the owning username. The second
// return is false for a missing, malformed and expired cookie alike.
func (s *Service) Whoami(cookieHeader string) (string, bool) {
	rec, ok := s.c.Sessions.Lookup(cookieHeader)
	if !ok {
		return "", false
	}
	return rec.User, true
}

// Logout deletes the session record server-side. Requests without a live
// session succeed silently; the client cookie is cleared either way.
func (s *Service) Logout(cookieHeader string) error {
	rec, ok := s.c.Sessions.Lookup(cookieHeader)
	if !ok {
		return nil
	}
	return s.c.Sessions.Delete(rec.SID)
}

// RefreshCSRF rotates the CSRF token for the session bound to the cookie.
func (s *Service) RefreshCSRF(cookieHeader string) (string, error) {
	rec, ok := s.c.Sessions.Lookup(cookieHeader)
	if !ok {
		return "", ErrExpiredSession
	}
	csrf, err := s.c.Sessions.RefreshCSRF(rec.SID)
	if err != nil {
		return "", errors.Wrap(err, "[Service.RefreshCSRF]")
	}
	return csrf, nil
}

// VerifyCSRF enforces the CSRF check for a state-changing request: a live
// session plus a matching, unexpired token in the CSRF header.
func (s *Service) VerifyCSRF(cookieHeader string, headers http.Header) error {
	rec, ok := s.c.Sessions.Lookup(cookieHeader)
	if !ok {
		return ErrExpiredSession
	}
	return s.c.Sessions.CheckCSRF(headers, rec)
}
