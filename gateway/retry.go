package gateway

import (
	"strings"

	"github.com/jrsteele09/go-pos-client/api"
	"github.com/jrsteele09/go-pos-client/session"
)

// IsAuthPath reports whether the call is itself part of the token lifecycle.
func IsAuthPath(path string) bool {
	p := "/" + strings.Trim(path, "/")
	return p == session.LoginPath || p == session.RefreshPath
}

// ShouldRetryAfterAuthFailure decides whether a call rejected with 401 gets one
// refresh-and-resend. attempt counts prior sends of this logical call, starting at 0.
func ShouldRetryAfterAuthFailure(req api.Request, attempt int) bool {
	return attempt == 0 && !IsAuthPath(req.Path)
}
