package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"authflow/internal/logging"
	"authflow/internal/models"
	"authflow/internal/services"
)

type PasswordHandler struct {
	reset services.PasswordResetService
	log   logging.Logger
}

func NewPasswordHandler(reset services.PasswordResetService, log logging.Logger) *PasswordHandler {
	return &PasswordHandler{reset: reset, log: log.With("component", "password_handler")}
}

// @Summary      Request a password reset
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        email  body      models.ResetRequest  true  "Account email"
// @Success      200    {object}  map[string]string
// @Failure      400    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Failure      502    {object}  map[string]string
// @Router       /api/auth/reset [post]
func (h *PasswordHandler) RequestReset(c *gin.Context) {
	var req models.ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	status, err := h.reset.RequestReset(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, "reset_request", err)
		return
	}
	c.JSON(http.StatusOK, statusBody(status))
}

// @Summary      Set a new password
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        password  body      models.NewPasswordRequest  true  "Reset token and new password"
// @Success      200       {object}  map[string]string
// @Failure      400       {object}  map[string]string
// @Failure      404       {object}  map[string]string
// @Failure      410       {object}  map[string]string
// @Router       /api/auth/new-password [post]
func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	var req models.NewPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	status, err := h.reset.ResetPassword(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, "reset_password", err)
		return
	}
	c.JSON(http.StatusOK, statusBody(status))
}
