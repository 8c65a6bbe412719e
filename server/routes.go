package server

// Route path constants. All application routes are defined here to ensure
// consistency and prevent typos.
const (
	RouteAuthRegister = "/auth/register"
	RouteAuthLogin    = "/auth/login"
	RouteAuthLogout   = "/auth/logout"
	RouteAuthWhoami   = "/auth/whoami"
	RouteAuthCSRF     = "/auth/csrf"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("POST "+RouteAuthRegister, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthWhoami, ChainMiddleware(s.WhoamiHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthCSRF, ChainMiddleware(s.RefreshCSRFHandler(), s.APIMiddleware()...))

	// Logout mutates server state, so it sits behind the CSRF check like
	// any other state-changing request.
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware(s.RequireCSRF)...))
}
