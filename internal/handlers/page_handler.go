package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"authflow/internal/logging"
	"authflow/internal/middleware"
	"authflow/internal/services"
	"authflow/internal/session"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Message}}<p class="success">{{.Message}}</p>{{end}}
{{if .Session}}<p>Signed in as {{.Session.Name}} &lt;{{.Session.Email}}&gt;</p>{{end}}
{{if .Token}}<p>Reset token: <code>{{.Token}}</code>. Send it with your new password to {{.Action}}.</p>{{end}}
</body></html>
`))

type page struct {
	Title   string
	Message string
	Error   string
	Token   string
	Action  string
	Session *session.Session
}

// PageHandler serves the pages behind the route gate. The forms themselves
// talk to the JSON API.
type PageHandler struct {
	verification services.VerificationService
	log          logging.Logger
}

func NewPageHandler(verification services.VerificationService, log logging.Logger) *PageHandler {
	return &PageHandler{verification: verification, log: log.With("component", "pages")}
}

func (h *PageHandler) render(c *gin.Context, code int, p page) {
	c.Status(code)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(c.Writer, p); err != nil {
		h.log.Error(c.Request.Context(), "render page failed", "title", p.Title, "error", err)
	}
}

func (h *PageHandler) Static(title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := page{Title: title}
		if code := c.Query("error"); code != "" {
			p.Error = errorMessage(code)
		}
		h.render(c, http.StatusOK, p)
	}
}

// EmailConfirmation verifies the token from the link as soon as the page is
// opened.
func (h *PageHandler) EmailConfirmation(c *gin.Context) {
	p := page{Title: "Confirming your verification"}
	status, err := h.verification.VerifyEmail(c.Request.Context(), c.Query("token"))
	if err != nil {
		code := http.StatusInternalServerError
		p.Error = genericError
		if e, ok := services.AsError(err); ok && e.Kind != services.KindInternal {
			code, p.Error = kindStatus[e.Kind], e.Message
		} else {
			h.log.Error(c.Request.Context(), "operation failed", "op", "verify_email_page", "error", err)
		}
		h.render(c, code, p)
		return
	}
	p.Message = statusMessages[status]
	h.render(c, http.StatusOK, p)
}

func (h *PageHandler) NewPassword(c *gin.Context) {
	p := page{Title: "Enter a new password", Token: c.Query("token"), Action: "POST /api/auth/new-password"}
	if p.Token == "" {
		p.Error = services.ErrTokenNotFound.Message
	}
	h.render(c, http.StatusOK, p)
}

func (h *PageHandler) Settings(c *gin.Context) {
	p := page{Title: "Settings"}
	if claims, ok := middleware.SessionFrom(c); ok {
		p.Session = session.SessionFromClaims(claims)
	}
	h.render(c, http.StatusOK, p)
}

// errorsByCode holds the messages the OAuth callback can send back to the
// login page.
var errorsByCode = func() map[string]string {
	m := map[string]string{}
	for _, e := range []*services.Error{
		services.ErrAccountNotLinked, services.ErrInvalidState, services.ErrUnauthorized,
		services.ErrUnknownProvider, services.ErrInvalidInput,
	} {
		m[e.Code] = e.Message
	}
	return m
}()

func errorMessage(code string) string {
	if m, ok := errorsByCode[code]; ok {
		return m
	}
	return genericError
}
