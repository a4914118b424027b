package handlers

import (
	"crypto/subtle"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"authflow/internal/logging"
	"authflow/internal/services"
	"authflow/internal/utils"
)

const stateCookie = "authflow_oauth_state"

type OAuthHandler struct {
	oauth         services.OAuthService
	cookie        CookieSettings
	loginPath     string
	afterLoginURL string
	log           logging.Logger
}

func NewOAuthHandler(oauth services.OAuthService, cookie CookieSettings, loginPath, afterLoginURL string, log logging.Logger) *OAuthHandler {
	return &OAuthHandler{
		oauth:         oauth,
		cookie:        cookie,
		loginPath:     loginPath,
		afterLoginURL: afterLoginURL,
		log:           log.With("component", "oauth_handler"),
	}
}

// @Summary      Start a provider sign-in
// @Tags         OAuth
// @Param        provider  path  string  true  "google or github"
// @Success      302
// @Failure      404  {object}  map[string]string
// @Router       /api/auth/oauth/{provider} [get]
func (h *OAuthHandler) Start(c *gin.Context) {
	state, err := utils.NewOpaqueToken(16)
	if err != nil {
		writeError(c, h.log, "oauth_start", err)
		return
	}
	target, err := h.oauth.AuthCodeURL(c.Param("provider"), state)
	if err != nil {
		writeError(c, h.log, "oauth_start", err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, 600, "/", "", h.cookie.Secure, true)
	c.Redirect(http.StatusFound, target)
}

// @Summary      Finish a provider sign-in
// @Description  Redirects to the default page on success, or to the login page with an error code
// @Tags         OAuth
// @Param        provider  path   string  true  "google or github"
// @Param        code      query  string  true  "Authorization code"
// @Param        state     query  string  true  "State from the start step"
// @Success      302
// @Router       /api/auth/oauth/{provider}/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	saved, _ := c.Cookie(stateCookie)
	c.SetCookie(stateCookie, "", -1, "/", "", h.cookie.Secure, true)

	state := c.Query("state")
	if saved == "" || subtle.ConstantTimeCompare([]byte(saved), []byte(state)) != 1 {
		h.fail(c, services.ErrInvalidState)
		return
	}
	res, err := h.oauth.Callback(c.Request.Context(), c.Param("provider"), c.Query("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	setSessionCookie(c, h.cookie, res.Session)
	c.Redirect(http.StatusFound, h.afterLoginURL)
}

func (h *OAuthHandler) fail(c *gin.Context, err error) {
	code := services.ErrInternal.Code
	if e, ok := services.AsError(err); ok {
		code = e.Code
	}
	if code == services.ErrInternal.Code {
		h.log.Error(c.Request.Context(), "oauth callback failed", "provider", c.Param("provider"), "error", err)
	}
	c.Redirect(http.StatusFound, h.loginPath+"?"+url.Values{"error": {code}}.Encode())
}
