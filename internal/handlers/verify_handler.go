package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"authflow/internal/logging"
	"authflow/internal/models"
	"authflow/internal/services"
)

type VerifyHandler struct {
	verification services.VerificationService
	log          logging.Logger
}

func NewVerifyHandler(verification services.VerificationService, log logging.Logger) *VerifyHandler {
	return &VerifyHandler{verification: verification, log: log.With("component", "verify_handler")}
}

// @Summary      Confirm an email address
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        token  body      models.VerifyEmailRequest  true  "Token from the confirmation link"
// @Success      200    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Failure      409    {object}  map[string]string
// @Failure      410    {object}  map[string]string
// @Router       /api/auth/email-confirmation [post]
func (h *VerifyHandler) VerifyEmail(c *gin.Context) {
	var req models.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	status, err := h.verification.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, h.log, "verify_email", err)
		return
	}
	c.JSON(http.StatusOK, statusBody(status))
}
