// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email sends transactional mail over SMTP.
package email

import (
	"context"
	"fmt"
	"strings"

	"codeberg.org/oliverandrich/authkit/internal/config"
	"codeberg.org/oliverandrich/authkit/internal/i18n"
	"codeberg.org/oliverandrich/authkit/internal/models"
	"github.com/wneessen/go-mail"
)

// Service sends emails via SMTP using go-mail. It implements
// onboarding.Mailer.
type Service struct {
	cfg          *config.SMTPConfig
	clientOrigin string
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, clientOrigin string) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{
		cfg:          cfg,
		clientOrigin: strings.TrimSuffix(clientOrigin, "/"),
	}, nil
}

// SendVerification sends the email verification message. The raw token only
// ever appears inside the verification link.
func (s *Service) SendVerification(ctx context.Context, user *models.User, rawToken string) error {
	verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.clientOrigin, rawToken)

	subject := i18n.T(ctx, "email_verification_subject")
	textBody := i18n.TData(ctx, "email_verification_body", map[string]any{
		"DisplayName": user.DisplayName,
		"VerifyURL":   verifyURL,
	})
	htmlBody := i18n.TData(ctx, "email_verification_body_html", map[string]any{
		"DisplayName": user.DisplayName,
		"VerifyURL":   verifyURL,
	})

	return s.send(user.Email, subject, textBody, htmlBody)
}

// send delivers a message with a plain-text body and an optional HTML
// alternative.
func (s *Service) send(to, subject, textBody, htmlBody string) error {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, textBody)
	if htmlBody != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Use implicit TLS (SSL) for port 465, STARTTLS for others
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
