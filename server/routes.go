package server

import "net/http"

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	s.RegisterRouteFunc("POST "+RouteSales, ChainMiddleware(s.CreateSaleHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireTenant())...))
	s.RegisterRouteFunc("GET "+RouteSales, ChainMiddleware(s.ListSalesHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireTenant())...))
}

// APIMiddleware is the standard chain. Faults run first so an offline server records nothing.
func (s *Server) APIMiddleware(mw ...func(http.HandlerFunc) http.HandlerFunc) []func(http.HandlerFunc) http.HandlerFunc {
	chained := []func(http.HandlerFunc) http.HandlerFunc{
		s.OfflineMiddleware,
		s.LoggingMiddleware,
		s.RecordingMiddleware,
	}
	return append(chained, mw...)
}
