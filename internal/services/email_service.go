package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"gopkg.in/gomail.v2"

	"authflow/internal/logging"
)

type NotificationKind string

const (
	NotifyVerify    NotificationKind = "verify"
	NotifyReset     NotificationKind = "reset"
	NotifyTwoFactor NotificationKind = "two_factor"
)

// Notification is one outbound message. Token is the plaintext token or code;
// it is embedded into the body and never logged.
type Notification struct {
	Kind  NotificationKind
	Email string
	Token string
	Title string
	Body  string
}

type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

var defaultTitles = map[NotificationKind]string{
	NotifyVerify:    "Confirm your email",
	NotifyReset:     "Reset your password",
	NotifyTwoFactor: "Your 2FA code",
}

var defaultBodies = map[NotificationKind]string{
	NotifyVerify:    "Click the link below to confirm your email.",
	NotifyReset:     "Click the link below to reset your password. If you did not request this change, you can ignore this email.",
	NotifyTwoFactor: "Use the code below to finish signing in.",
}

// BuildLink returns the page a Verify or Reset notification points to. Two
// factor notifications carry the bare code, so their link is empty.
func BuildLink(baseURL string, kind NotificationKind, token string) string {
	base := strings.TrimRight(baseURL, "/")
	q := url.Values{"token": {token}}.Encode()
	switch kind {
	case NotifyVerify:
		return base + "/auth/email-confirmation?" + q
	case NotifyReset:
		return base + "/auth/new-password?" + q
	}
	return ""
}

var mailTemplate = template.Must(template.New("mail").Parse(`<h3>{{.Title}}</h3>
<p>{{.Body}}</p>
{{if .Link}}<p><a href="{{.Link}}">{{.Action}}</a></p>{{else}}<p><strong>{{.Code}}</strong></p>{{end}}
`))

type mailView struct {
	Title  string
	Body   string
	Link   string
	Action string
	Code   string
}

func render(baseURL string, n Notification) (subject, body string, err error) {
	view := mailView{Title: n.Title, Body: n.Body}
	if view.Title == "" {
		view.Title = defaultTitles[n.Kind]
	}
	if view.Body == "" {
		view.Body = defaultBodies[n.Kind]
	}
	switch n.Kind {
	case NotifyVerify:
		view.Link, view.Action = BuildLink(baseURL, n.Kind, n.Token), "Confirm email"
	case NotifyReset:
		view.Link, view.Action = BuildLink(baseURL, n.Kind, n.Token), "Reset password"
	case NotifyTwoFactor:
		view.Code = n.Token
	default:
		return "", "", fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	var buf bytes.Buffer
	if err := mailTemplate.Execute(&buf, view); err != nil {
		return "", "", fmt.Errorf("render %s mail: %w", n.Kind, err)
	}
	return view.Title, buf.String(), nil
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type emailNotifier struct {
	sender   mailSender
	from     string
	fromName string
	baseURL  string
	log      logging.Logger
}

func NewEmailNotifier(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail, fromName, baseURL string, log logging.Logger) Notifier {
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return &emailNotifier{
		sender:   dialer,
		from:     fromEmail,
		fromName: fromName,
		baseURL:  baseURL,
		log:      log.With("component", "mail"),
	}
}

func (s *emailNotifier) Send(ctx context.Context, n Notification) error {
	subject, body, err := render(s.baseURL, n)
	if err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	m.SetHeader("To", n.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.sender.DialAndSend(m); err != nil {
		s.log.Error(ctx, "send mail failed", "kind", n.Kind, "to", n.Email, "error", err)
		return fmt.Errorf("failed to send %s email: %w", n.Kind, err)
	}
	s.log.Info(ctx, "mail sent", "kind", n.Kind, "to", n.Email)
	return nil
}

type logNotifier struct {
	baseURL string
	log     logging.Logger
}

// NewLogNotifier returns a Notifier that only writes the rendered message to
// the log. Meant for local development, where the link is needed to continue.
func NewLogNotifier(baseURL string, log logging.Logger) Notifier {
	return &logNotifier{baseURL: baseURL, log: log.With("component", "mail", "dry_run", true)}
}

func (s *logNotifier) Send(ctx context.Context, n Notification) error {
	subject, _, err := render(s.baseURL, n)
	if err != nil {
		return err
	}
	args := []any{"kind", n.Kind, "to", n.Email, "subject", subject}
	if link := BuildLink(s.baseURL, n.Kind, n.Token); link != "" {
		args = append(args, "link", link)
	} else {
		args = append(args, "code", n.Token)
	}
	s.log.Info(ctx, "mail not sent (dry run)", args...)
	return nil
}
