package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"authflow/internal/logging"
	"authflow/internal/middleware"
	"authflow/internal/models"
	"authflow/internal/services"
	"authflow/internal/session"
)

type AuthHandler struct {
	signin   services.SignInService
	sessions *session.Manager
	cookie   CookieSettings
	log      logging.Logger
}

func NewAuthHandler(signin services.SignInService, sessions *session.Manager, cookie CookieSettings, log logging.Logger) *AuthHandler {
	return &AuthHandler{signin: signin, sessions: sessions, cookie: cookie, log: log.With("component", "auth_handler")}
}

// @Summary      Sign in with email and password
// @Description  Returns a session, or asks for email confirmation or a 2FA code first
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login           body      models.LoginRequest  true   "Credentials and optional 2FA code"
// @Param        X-Session-Mode  header    string               false  "bearer to also return the token in the body"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Failure      410    {object}  map[string]string
// @Failure      502    {object}  map[string]string
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	res, err := h.signin.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, "login", err)
		return
	}

	body := statusBody(res.Status)
	switch res.Status {
	case services.StatusTwoFactorRequired:
		body["twoFactor"] = true
	case services.StatusAuthenticated:
		setSessionCookie(c, h.cookie, res.Session)
		body["session"] = res.Session.Session
		body["expires_at"] = res.Session.ExpiresAt
		if wantsBearer(c) {
			body["token"] = res.Session.Token
		}
	}
	c.JSON(http.StatusOK, body)
}

// @Summary      Sign out
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	clearSessionCookie(c, h.cookie)
	c.JSON(http.StatusOK, gin.H{"success": "Signed out!"})
}

// @Summary      Current session
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  session.Session
// @Failure      401  {object}  map[string]string
// @Router       /api/auth/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	claims, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized!"})
		return
	}
	c.JSON(http.StatusOK, session.SessionFromClaims(claims))
}

// @Summary      Refresh the session
// @Description  Re-reads the profile into the session and extends its lifetime
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/auth/session/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, ok := middleware.TokenFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized!"})
		return
	}
	issued, err := h.sessions.Refresh(c.Request.Context(), token)
	if err != nil {
		h.log.Warn(c.Request.Context(), "refresh failed", "error", err)
		clearSessionCookie(c, h.cookie)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized!"})
		return
	}
	setSessionCookie(c, h.cookie, issued)
	body := gin.H{"session": issued.Session, "expires_at": issued.ExpiresAt}
	if wantsBearer(c) {
		body["token"] = issued.Token
	}
	c.JSON(http.StatusOK, body)
}
