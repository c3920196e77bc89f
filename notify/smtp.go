package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/mail"
	"net/url"

	"github.com/dajohi/goemail"

	users "github.com/ogehub/go-users"
)

const (
	SubjectVerifyEmail   = "Email Verification"
	SubjectResetPassword = "Password Reset Link"
)

// Mailer sends a composed message.
type Mailer interface {
	Send(msg *goemail.Message) error
}

// SMTPConfig holds the SMTP connection settings
type SMTPConfig struct {
	Host       string
	User       string
	Password   string
	Sender     string
	SkipVerify bool
}

// SMTPNotifier delivers account links by email.
type SMTPNotifier struct {
	client      Mailer
	mailName    string
	mailAddress string
}

var _ users.Notifier = (*SMTPNotifier)(nil)

// NewSMTPNotifier connects to the configured SMTP server.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}

	h := fmt.Sprintf("smtps://%v:%v@%v", url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password), cfg.Host)
	u, err := url.Parse(h)
	if err != nil {
		return nil, fmt.Errorf("parse smtp host: %w", err)
	}

	tlsConfig := &tls.Config{}
	if cfg.SkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	client, err := goemail.NewSMTP(u.String(), tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	return NewSMTPNotifierWithMailer(client, cfg.Sender)
}

// NewSMTPNotifierWithMailer builds a notifier over an existing mailer.
func NewSMTPNotifierWithMailer(client Mailer, sender string) (*SMTPNotifier, error) {
	a, err := mail.ParseAddress(sender)
	if err != nil {
		return nil, fmt.Errorf("parse sender address: %w", err)
	}
	return &SMTPNotifier{
		client:      client,
		mailName:    a.Name,
		mailAddress: a.Address,
	}, nil
}

// SendVerificationLink mails the verification link to email.
func (s *SMTPNotifier) SendVerificationLink(ctx context.Context, email, link, displayName string) error {
	body, err := templateString(verifyEmailTemplate, mailData{
		Name:   displayName,
		Link:   link,
		Window: users.TokenWindow.String(),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, SubjectVerifyEmail, body, email)
}

// SendResetLink mails the password reset link to email.
func (s *SMTPNotifier) SendResetLink(ctx context.Context, email, link string) error {
	body, err := templateString(resetPasswordTemplate, mailData{
		Link:   link,
		Window: users.TokenWindow.String(),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, SubjectResetPassword, body, email)
}

func (s *SMTPNotifier) send(ctx context.Context, subject, body, recipient string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := goemail.NewMessage(s.mailAddress, subject, body)
	msg.SetName(s.mailName)
	msg.AddBCC(recipient)
	return s.client.Send(msg)
}
