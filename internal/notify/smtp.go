package notify

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	gomail "github.com/wneessen/go-mail"

	"neareports/internal/config"
	"neareports/internal/files"
	"neareports/internal/infrastructure"
)

// SMTPSender delivers messages over implicit TLS.
type SMTPSender struct {
	cfg     config.MailConfig
	logger  *slog.Logger
	metrics *infrastructure.ReportMetrics
	// send is replaced in tests.
	send func(ctx context.Context, msg *gomail.Msg) error
}

// NewSMTPSender creates a sender for cfg.
func NewSMTPSender(cfg config.MailConfig, logger *slog.Logger, metrics *infrastructure.ReportMetrics) *SMTPSender {
	s := &SMTPSender{cfg: cfg, logger: logger, metrics: metrics}
	s.send = s.dialAndSend
	return s
}

// SendEmail sends body with every path attached under its base name.
func (s *SMTPSender) SendEmail(ctx context.Context, subject, body string, paths []string) error {
	msg, err := s.buildMessage(subject, body, paths)
	if err == nil {
		err = s.send(ctx, msg)
	}
	s.metrics.RecordEmail(ctx, "report", err)
	if err != nil {
		s.logger.ErrorContext(ctx, "email_send_failed", slog.String("subject", subject), slog.String("error", err.Error()))
		return fmt.Errorf("send email: %w", err)
	}
	s.logger.InfoContext(ctx, "email_sent", slog.String("subject", subject), slog.Int("attachments", len(paths)))
	return nil
}

// SendSimple sends a plain message without attachments.
func (s *SMTPSender) SendSimple(ctx context.Context, subject, body string) error {
	msg, err := s.buildMessage(subject, body, nil)
	if err == nil {
		err = s.send(ctx, msg)
	}
	s.metrics.RecordEmail(ctx, "simple", err)
	if err != nil {
		s.logger.ErrorContext(ctx, "email_send_failed", slog.String("subject", subject), slog.String("error", err.Error()))
		return fmt.Errorf("send email: %w", err)
	}
	s.logger.InfoContext(ctx, "email_sent", slog.String("subject", subject))
	return nil
}

func (s *SMTPSender) buildMessage(subject, body string, paths []string) (*gomail.Msg, error) {
	if !s.cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.SenderEmail); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := msg.To(s.cfg.Recipients...); err != nil {
		return nil, fmt.Errorf("invalid recipients: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)
	for _, p := range paths {
		if !files.Exists(p) {
			return nil, fmt.Errorf("attachment %s does not exist", p)
		}
		msg.AttachFile(p, gomail.WithFileName(filepath.Base(p)))
	}
	return msg, nil
}

func (s *SMTPSender) dialAndSend(ctx context.Context, msg *gomail.Msg) error {
	client, err := gomail.NewClient(s.cfg.SMTPHost,
		gomail.WithPort(s.cfg.SMTPPort),
		gomail.WithSSL(),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.SenderEmail),
		gomail.WithPassword(s.cfg.SenderPassword),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
