package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/intelliod/ems/internal/service"
)

// SMTPConfig holds the outgoing mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AppURL   string
	Company  string
}

// message is a rendered email ready to send.
type message struct {
	to      string
	subject string
	html    string
}

// SMTPNotifier delivers invitation and review emails over SMTP.
type SMTPNotifier struct {
	cfg    SMTPConfig
	tmpl   *templates
	send   func(ctx context.Context, m message) error
	logger *slog.Logger
}

func NewSMTPNotifier(cfg SMTPConfig, logger *slog.Logger) (*SMTPNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	n := &SMTPNotifier{cfg: cfg, tmpl: tmpl, logger: logger}
	n.send = n.dialAndSend
	return n, nil
}

func (n *SMTPNotifier) InvitationCreated(ctx context.Context, in service.InvitationNotice) error {
	body, err := render(n.tmpl.invitation, map[string]any{
		"Company":      n.cfg.Company,
		"Name":         in.Name,
		"Email":        in.Email,
		"TempPassword": in.TempPassword,
		"LoginURL":     strings.TrimRight(n.cfg.AppURL, "/") + "/login",
		"ExpiresAt":    in.ExpiresAt.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return fmt.Errorf("render invitation: %w", err)
	}
	return n.send(ctx, message{
		to:      in.Email,
		subject: fmt.Sprintf("Welcome to %s - Complete Your Onboarding", n.cfg.Company),
		html:    body,
	})
}

func (n *SMTPNotifier) OnboardingReviewed(ctx context.Context, in service.ReviewNotice) error {
	tmpl := n.tmpl.rejected
	subject := fmt.Sprintf("%s - Additional Information Required", n.cfg.Company)
	if in.Approved {
		tmpl = n.tmpl.approved
		subject = fmt.Sprintf("Welcome to %s - Your Account is Approved!", n.cfg.Company)
	}

	body, err := render(tmpl, map[string]any{
		"Notes":  in.Notes,
		"Reason": in.RejectionReason,
	})
	if err != nil {
		return fmt.Errorf("render review: %w", err)
	}
	return n.send(ctx, message{to: in.Email, subject: subject, html: body})
}

func (n *SMTPNotifier) dialAndSend(ctx context.Context, m message) error {
	msg := gomail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return fmt.Errorf("invalid sender %q: %w", n.cfg.From, err)
	}
	if err := msg.To(m.to); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(m.subject)
	msg.SetBodyString(gomail.TypeTextHTML, m.html)

	opts := []gomail.Option{
		gomail.WithPort(n.cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(10 * time.Second),
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(n.cfg.Username),
			gomail.WithPassword(n.cfg.Password),
		)
	}

	client, err := gomail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	n.logger.InfoContext(ctx, "email sent", slog.String("subject", m.subject))
	return nil
}
