package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"authflow/internal/logging"
	"authflow/internal/middleware"
	"authflow/internal/models"
	"authflow/internal/services"
)

type UserHandler struct {
	registration services.RegistrationService
	settings     services.SettingsService
	log          logging.Logger
}

func NewUserHandler(registration services.RegistrationService, settings services.SettingsService, log logging.Logger) *UserHandler {
	return &UserHandler{registration: registration, settings: settings, log: log.With("component", "user_handler")}
}

// @Summary      Register
// @Description  Creates an account and mails a confirmation link
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        user  body      models.RegisterRequest  true  "New account"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/auth/register [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	status, err := h.registration.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, "register", err)
		return
	}
	c.JSON(http.StatusOK, statusBody(status))
}

// @Summary      Update settings
// @Description  Name, email, password and 2FA of the signed-in user. A new email is applied after confirmation.
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Param        settings  body      models.SettingsRequest  true  "Fields to change"
// @Success      200       {object}  map[string]string
// @Failure      400       {object}  map[string]string
// @Failure      401       {object}  map[string]string
// @Failure      409       {object}  map[string]string
// @Router       /api/settings [put]
func (h *UserHandler) UpdateSettings(c *gin.Context) {
	claims, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized!"})
		return
	}
	var req models.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	status, err := h.settings.Update(c.Request.Context(), claims.Subject, req)
	if err != nil {
		writeError(c, h.log, "settings", err)
		return
	}
	c.JSON(http.StatusOK, statusBody(status))
}
