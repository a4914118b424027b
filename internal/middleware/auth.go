package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"authflow/internal/session"
)

const (
	claimsKey = "session_claims"
	tokenKey  = "session_token"
)

// SessionParser verifies a session token. *session.Manager implements it.
type SessionParser interface {
	Parse(token string) (*session.Claims, error)
}

// LoadSession reads the session from the cookie or, when the cookie is
// missing or does not parse, from a Bearer Authorization header. It never
// aborts: without a valid token the request just has no session.
func LoadSession(parser SessionParser, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, _ := c.Cookie(cookieName)
		for _, token := range []string{cookie, bearerToken(c.GetHeader("Authorization"))} {
			if token == "" {
				continue
			}
			if claims, err := parser.Parse(token); err == nil {
				c.Set(claimsKey, claims)
				c.Set(tokenKey, token)
				break
			}
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// SessionFrom returns the claims LoadSession stored on the request.
func SessionFrom(c *gin.Context) (*session.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*session.Claims)
	return claims, ok
}

// TokenFrom returns the raw token of the session on the request.
func TokenFrom(c *gin.Context) (string, bool) {
	t := c.GetString(tokenKey)
	return t, t != ""
}

// RequireSession rejects API requests without a valid session.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		// пропускаем preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if _, ok := SessionFrom(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized!"})
			return
		}
		c.Next()
	}
}
