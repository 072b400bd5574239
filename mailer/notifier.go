package mailer

import (
	"bytes"
	"context"
	"embed"
	"net/http"
	"strings"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
	tours "github.com/goliatone/go-tours"
)

//go:embed templates
var templatesFS embed.FS

const (
	SubjectWelcome       = "Welcome to the Tours family!"
	SubjectPasswordReset = "Your password reset token (valid for 10 minutes)"
)

// Notifier renders account emails and hands them to a Sender
type Notifier struct {
	sender Sender
	views  *django.Engine
	logger tours.Logger
}

var _ tours.AccountNotifier = (*Notifier)(nil)

func NewNotifier(sender Sender) (*Notifier, error) {
	views := django.NewPathForwardingFileSystem(http.FS(templatesFS), "/templates", ".html")
	if err := views.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load email templates")
	}
	return &Notifier{
		sender: sender,
		views:  views,
		logger: tours.NewSlogLogger(nil),
	}, nil
}

func (n *Notifier) WithLogger(logger tours.Logger) *Notifier {
	if logger != nil {
		n.logger = logger
	}
	return n
}

func (n *Notifier) SendWelcome(ctx context.Context, user *tours.User, accountURL string) error {
	return n.send(ctx, user, SubjectWelcome, "email/welcome", accountURL,
		"Welcome, "+firstName(user.Name)+"! Upload your photo and complete your profile at "+accountURL)
}

func (n *Notifier) SendPasswordReset(ctx context.Context, user *tours.User, resetURL string) error {
	return n.send(ctx, user, SubjectPasswordReset, "email/password_reset", resetURL,
		"Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: "+resetURL+
			".\nIf you didn't forget your password, please ignore this email!")
}

func (n *Notifier) send(ctx context.Context, user *tours.User, subject, view, url, text string) error {
	var html bytes.Buffer
	err := n.views.Render(&html, view, map[string]any{
		"firstName": firstName(user.Name),
		"url":       url,
		"subject":   subject,
	})
	if err != nil {
		n.logger.Warn("email template render failed, sending text only", "view", view, "error", err)
		html.Reset()
	}

	return n.sender.Send(ctx, Message{
		To:      user.Email,
		Subject: subject,
		Text:    text,
		HTML:    html.String(),
	})
}

func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return name
}
