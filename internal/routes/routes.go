package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"authflow/internal/handlers"
	"authflow/internal/middleware"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	User     *handlers.UserHandler
	Verify   *handlers.VerifyHandler
	Password *handlers.PasswordHandler
	OAuth    *handlers.OAuthHandler // nil when no provider is configured
	Pages    *handlers.PageHandler
}

// SetupRoutes expects LoadSession to be installed on r already.
func SetupRoutes(r *gin.Engine, h Handlers, table middleware.RouteTable) *gin.Engine {
	// ---- api: the route gate never redirects these
	auth := r.Group(table.APIAuthPrefix)
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/register", h.User.Register)
		auth.POST("/reset", h.Password.RequestReset)
		auth.POST("/new-password", h.Password.ResetPassword)
		auth.POST("/email-confirmation", h.Verify.VerifyEmail)
		auth.POST("/logout", h.Auth.Logout)
		auth.GET("/session", middleware.RequireSession(), h.Auth.Session)
		auth.POST("/session/refresh", middleware.RequireSession(), h.Auth.Refresh)
		if h.OAuth != nil {
			auth.GET("/oauth/:provider", h.OAuth.Start)
			auth.GET("/oauth/:provider/callback", h.OAuth.Callback)
		}
	}

	api := r.Group("/api", middleware.RequireSession())
	{
		api.PUT("/settings", h.User.UpdateSettings)
	}

	// ---- pages
	pages := r.Group("/", middleware.RouteGate(table))
	{
		pages.GET("/", h.Pages.Static("authflow"))
		pages.GET("/auth/login", h.Pages.Static("Sign in"))
		pages.GET("/auth/register", h.Pages.Static("Create an account"))
		pages.GET("/auth/reset", h.Pages.Static("Forgot your password?"))
		pages.GET("/auth/new-password", h.Pages.NewPassword)
		pages.GET("/auth/email-confirmation", h.Pages.EmailConfirmation)
		pages.GET("/settings", h.Pages.Settings)
	}
	r.NoRoute(middleware.RouteGate(table), func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return r
}
