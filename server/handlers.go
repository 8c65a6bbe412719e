package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/inschat/auth-service/auth"
	"github.com/inschat/auth-service/sessions"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string `json:"token"`
	CSRF    string `json:"csrf"`
	Expires int64  `json:"exp"`
}

type whoamiResponse struct {
	OK   bool    `json:"ok"`
	User *string `json:"user"`
}

// RegisterHandler creates a new user account (POST /auth/register).
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		err := s.auth.Register(strings.TrimSpace(req.Username), req.Password)
		switch {
		case err == nil:
			writeJSON(w, http.StatusCreated, map[string]string{"msg": "user registered"})
		case errors.Is(err, auth.ErrUserExists):
			writeError(w, http.StatusBadRequest, "username already exists")
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, "username and password are required")
		default:
			log.Err(err).Msg("register failed")
			writeError(w, http.StatusServiceUnavailable, "service unavailable")
		}
	}
}

// LoginHandler authenticates a user and issues the session cookie and CSRF
// token (POST /auth/login). A locked account answers exactly like bad
// credentials; the lock and its remaining time are only logged.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		creds, err := s.auth.Login(req.Username, req.Password, clientIP(r))
		if err != nil {
			var lockedErr *auth.AccountLockedError
			switch {
			case errors.Is(err, auth.ErrRateLimited):
				writeError(w, http.StatusTooManyRequests, "rate limited")
			case errors.As(err, &lockedErr):
				log.Warn().
					Str("username", req.Username).
					Dur("retry_after", lockedErr.RetryAfter).
					Msg("login rejected, account locked")
				writeError(w, http.StatusUnauthorized, "invalid credentials")
			case errors.Is(err, auth.ErrInvalidCredentials):
				writeError(w, http.StatusUnauthorized, "invalid credentials")
			default:
				log.Err(err).Str("username", req.Username).Msg("login failed")
				writeError(w, http.StatusServiceUnavailable, "service unavailable")
			}
			return
		}

		http.SetCookie(w, s.sessionCookie(creds))
		writeJSON(w, http.StatusOK, loginResponse{
			Token:   creds.Cookie,
			CSRF:    creds.CSRFToken,
			Expires: creds.ExpiresAt,
		})
	}
}

// WhoamiHandler resolves the session cookie to a username (GET
// /auth/whoami). Missing, malformed and expired cookies all answer 401.
func (s *Server) WhoamiHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.auth.Whoami(r.Header.Get("Cookie"))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, whoamiResponse{OK: false})
			return
		}
		writeJSON(w, http.StatusOK, whoamiResponse{OK: true, User: &user})
	}
}

// LogoutHandler deletes the session server-side and clears the client
// cookie (POST /auth/logout).
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Logout(r.Header.Get("Cookie")); err != nil {
			log.Err(err).Msg("logout failed")
			writeError(w, http.StatusServiceUnavailable, "service unavailable")
			return
		}
		http.SetCookie(w, s.expiredSessionCookie())
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// RefreshCSRFHandler rotates the CSRF token for the current session (POST
// /auth/csrf).
func (s *Server) RefreshCSRFHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		csrf, err := s.auth.RefreshCSRF(r.Header.Get("Cookie"))
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]string{"csrf": csrf})
		case errors.Is(err, auth.ErrExpiredSession), errors.Is(err, sessions.ErrNotFound):
			writeError(w, http.StatusUnauthorized, "unauthenticated")
		default:
			log.Err(err).Msg("csrf refresh failed")
			writeError(w, http.StatusServiceUnavailable, "service unavailable")
		}
	}
}

func (s *Server) sessionCookie(creds sessions.Credentials) *http.Cookie {
	return &http.Cookie{
		Name:     sessions.CookieName,
		Value:    creds.Cookie,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.env == "PROD", // Only secure in production
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) expiredSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     sessions.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.env == "PROD", // Only secure in production
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
}

// clientIP prefers the first X-Forwarded-For hop and falls back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
