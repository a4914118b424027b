package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"authflow/internal/logging"
	"authflow/internal/services"
	"authflow/internal/session"
)

var kindStatus = map[services.Kind]int{
	services.KindInvalidInput:     http.StatusBadRequest,
	services.KindNotFound:         http.StatusNotFound,
	services.KindExpired:          http.StatusGone,
	services.KindMismatch:         http.StatusUnauthorized,
	services.KindConflict:         http.StatusConflict,
	services.KindUnauthorized:     http.StatusUnauthorized,
	services.KindTransportFailure: http.StatusBadGateway,
}

var statusMessages = map[services.Status]string{
	services.StatusConfirmationSent:  "Confirmation email sent!",
	services.StatusTwoFactorRequired: "Two-factor code sent to your email!",
	services.StatusAuthenticated:     "Signed in!",
	services.StatusVerified:          "Email verified!",
	services.StatusResetSent:         "Reset email sent!",
	services.StatusPasswordUpdated:   "Password updated!",
	services.StatusSettingsUpdated:   "Settings updated!",
}

const genericError = "Something went wrong!"

// writeError answers with the user-facing part of err. Internal failures and
// anything unexpected are logged and replaced by a generic message.
func writeError(c *gin.Context, log logging.Logger, op string, err error) {
	e, ok := services.AsError(err)
	if !ok || e.Kind == services.KindInternal {
		log.Error(c.Request.Context(), "operation failed", "op", op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericError})
		return
	}
	code, ok := kindStatus[e.Kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	c.JSON(code, gin.H{"error": e.Message, "code": e.Code})
}

func statusBody(status services.Status) gin.H {
	return gin.H{"success": statusMessages[status], "status": status}
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid fields!", "code": services.ErrInvalidInput.Code})
}

// CookieSettings describes the session cookie.
type CookieSettings struct {
	Name   string
	Secure bool
}

// SessionModeHeader lets API clients that cannot hold cookies ask for the
// session token in the response body.
const SessionModeHeader = "X-Session-Mode"

// wantsBearer reports whether the client asked for the token in the body.
// Browsers get it only in the HttpOnly cookie.
func wantsBearer(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader(SessionModeHeader), "bearer")
}

func setSessionCookie(c *gin.Context, cs CookieSettings, issued *session.Issued) {
	maxAge := int(time.Until(issued.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cs.Name, issued.Token, maxAge, "/", "", cs.Secure, true)
}

func clearSessionCookie(c *gin.Context, cs CookieSettings) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cs.Name, "", -1, "/", "", cs.Secure, true)
}
