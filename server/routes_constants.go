package server

// Route path constants
const (
	APIPrefix = "/api"

	RouteAuthLogin   = APIPrefix + "/auth/login"
	RouteAuthRefresh = APIPrefix + "/auth/refresh"
	RouteAuthLogout  = APIPrefix + "/auth/logout"

	RouteSales = APIPrefix + "/sales"
)
