package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"clientbridge/pkg/logger"

	"gopkg.in/gomail.v2"
)

// Invite is the content of a project invitation e-mail
type Invite struct {
	To             string
	ProjectName    string
	FreelancerName string
	InviteURL      string
}

// Mailer sends transactional e-mail
type Mailer interface {
	SendInvite(ctx context.Context, invite Invite) error
}

// SMTPConfig SMTP 连接配置
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends through an SMTP relay
type SMTPMailer struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

var inviteTemplate = template.Must(template.New("invite").Parse(`<p>Hi,</p>
<p>{{if .FreelancerName}}{{.FreelancerName}}{{else}}Your freelancer{{end}} invited you to follow <strong>{{.ProjectName}}</strong> on ClientBridge.</p>
<p><a href="{{.InviteURL}}">Open the project</a></p>
<p>If the button does not work, paste this link into your browser:<br>{{.InviteURL}}</p>`))

// RenderInvite renders the invitation body as HTML
func RenderInvite(invite Invite) (string, error) {
	var buf bytes.Buffer
	if err := inviteTemplate.Execute(&buf, invite); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (m *SMTPMailer) SendInvite(ctx context.Context, invite Invite) error {
	body, err := RenderInvite(invite)
	if err != nil {
		return fmt.Errorf("render invite: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", invite.To)
	msg.SetHeader("Subject", fmt.Sprintf("You're invited to %s", invite.ProjectName))
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send invite to %s: %w", invite.To, err)
	}
	logger.FromContext(ctx).Info("invite email sent", "to", invite.To, "project", invite.ProjectName)
	return nil
}

// NoopMailer logs instead of sending; used when SMTP is not configured
type NoopMailer struct{}

func (NoopMailer) SendInvite(ctx context.Context, invite Invite) error {
	logger.FromContext(ctx).Debug("mail disabled, skipping invite", "to", invite.To, "url", invite.InviteURL)
	return nil
}
