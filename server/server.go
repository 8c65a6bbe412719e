package server

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/inschat/auth-service/auth"
	"github.com/inschat/auth-service/internal/config"
	"github.com/inschat/auth-service/lockout"
	"github.com/inschat/auth-service/password"
	"github.com/inschat/auth-service/ratelimit"
	"github.com/inschat/auth-service/sessions"
	"github.com/inschat/auth-service/store"
	"github.com/inschat/auth-service/token"
)

// Server exposes the authentication core over a JSON HTTP API.
type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	config config.Config
	auth   *auth.Service
	sess   *sessions.Manager
}

// New opens the persisted store under the configured data folder, wires the
// authentication components and registers the routes.
func New(cfg config.Config) (*Server, error) {
	st, err := store.Open(cfg.GetDataFolder())
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] store.Open")
	}

	signer := token.NewHMACSigner(cfg.GetServerSecret())
	sess := sessions.NewManager(st, signer, cfg.GetSessionTTL(), cfg.GetCSRFTTL())

	authService, err := auth.NewService(auth.Components{
		Store:    st,
		Hasher:   password.NewHasher([]byte(cfg.GetPasswordPepper())),
		Sessions: sess,
		Limiter:  ratelimit.NewLimiter(cfg.GetRateLimit(), cfg.GetRateWindow()),
		Lockout:  lockout.NewTracker(st, cfg.GetLockThreshold(), cfg.GetLockWindow(), cfg.GetLockDuration()),
	})
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] auth.NewService")
	}

	s := &Server{
		mux:    http.NewServeMux(),
		config: cfg,
		auth:   authService,
		sess:   sess,
		env:    cfg.GetEnv(),
	}
	s.initRoutes()
	s.logRoutes()
	return s, nil
}

// Sessions exposes the session manager for background maintenance.
func (s *Server) Sessions() *sessions.Manager {
	return s.sess
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		log.Info().Str("route", route).Msg("registered")
	}
}
