package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

type Decision int

const (
	Pass Decision = iota
	RedirectDefault
	RedirectLogin
)

func (d Decision) String() string {
	switch d {
	case RedirectDefault:
		return "redirect_default"
	case RedirectLogin:
		return "redirect_login"
	}
	return "pass"
}

// RouteTable decides page access from the path alone. Public and auth routes
// match exactly; private routes also cover their sub-paths. With no private
// routes configured, every route that is not public is private.
type RouteTable struct {
	PublicRoutes         []string
	AuthRoutes           []string
	PrivateRoutes        []string
	APIAuthPrefix        string
	DefaultLoginRedirect string
	LoginPath            string
}

func (t RouteTable) Classify(path string, hasSession bool) Decision {
	if t.APIAuthPrefix != "" && strings.HasPrefix(path, t.APIAuthPrefix) {
		return Pass
	}
	if contains(t.AuthRoutes, path) {
		if hasSession {
			return RedirectDefault
		}
		return Pass
	}
	if !hasSession && t.isPrivate(path) {
		return RedirectLogin
	}
	return Pass
}

func (t RouteTable) isPrivate(path string) bool {
	if contains(t.PublicRoutes, path) {
		return false
	}
	if len(t.PrivateRoutes) == 0 {
		return true
	}
	for _, p := range t.PrivateRoutes {
		if path == p || strings.HasPrefix(path, strings.TrimRight(p, "/")+"/") {
			return true
		}
	}
	return false
}

func contains(list []string, path string) bool {
	for _, p := range list {
		if p == path {
			return true
		}
	}
	return false
}

// RouteGate applies the table to page requests. It must run after
// LoadSession. Redirects to the login page carry the requested location as
// callbackUrl.
func RouteGate(t RouteTable) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, hasSession := SessionFrom(c)
		switch t.Classify(c.Request.URL.Path, hasSession) {
		case RedirectDefault:
			c.Redirect(http.StatusFound, t.DefaultLoginRedirect)
			c.Abort()
		case RedirectLogin:
			target := c.Request.URL.Path
			if c.Request.URL.RawQuery != "" {
				target += "?" + c.Request.URL.RawQuery
			}
			c.Redirect(http.StatusFound, t.LoginPath+"?"+url.Values{"callbackUrl": {target}}.Encode())
			c.Abort()
		default:
			c.Next()
		}
	}
}
