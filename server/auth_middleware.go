package server

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/inschat/auth-service/auth"
)

// RequireCSRF guards state-changing routes: the request must carry a live
// session cookie and the session's current, unexpired CSRF token in the
// X-CSRF-Token header.
func (s *Server) RequireCSRF(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.auth.VerifyCSRF(r.Header.Get("Cookie"), r.Header)
		switch {
		case err == nil:
			next(w, r)
		case errors.Is(err, auth.ErrExpiredSession):
			writeError(w, http.StatusUnauthorized, "unauthenticated")
		case errors.Is(err, auth.ErrExpiredCSRF), errors.Is(err, auth.ErrCSRFMismatch):
			writeError(w, http.StatusForbidden, "csrf check failed")
		default:
			log.Err(err).Msg("csrf verification failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}
}
