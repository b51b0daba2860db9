package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"neareports/internal/config"
	"neareports/internal/infrastructure"
	"neareports/internal/period"
)

// ErrNotConfigured is returned when mail is used without a sender or
// recipients.
var ErrNotConfigured = errors.New("mail is not configured")

// Notifier is the mail boundary used by the task service.
type Notifier interface {
	SendEmail(ctx context.Context, subject, body string, paths []string) error
	SendSimple(ctx context.Context, subject, body string) error
	// WaitForReply blocks until a whitelisted sender replies with one of
	// keywords or the poll timeout passes. found is false on timeout.
	WaitForReply(ctx context.Context, keywords []string) (reply string, found bool, err error)
}

// ReplyKeywords are the answers accepted for the submission question.
var ReplyKeywords = []string{"yes", "no"}

// Mailer implements Notifier over SMTP and IMAP.
type Mailer struct {
	*SMTPSender
	*ReplyPoller
}

// NewMailer wires both halves from the same mail settings.
func NewMailer(cfg config.MailConfig, logger *slog.Logger, metrics *infrastructure.ReportMetrics) (*Mailer, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	logger = infrastructure.WithComponent(logger, "notify")
	return &Mailer{
		SMTPSender:  NewSMTPSender(cfg, logger, metrics),
		ReplyPoller: NewReplyPoller(cfg, logger),
	}, nil
}

// ConsolidatedMessage builds the subject and body of the run-all email.
func ConsolidatedMessage(m period.Month, attachments int) (subject, body string) {
	subject = fmt.Sprintf("Monthly NEA Reports – %s", m)
	body = fmt.Sprintf("Attached are all updated NEA workbooks for %s (%d files).\n\n"+
		"May I proceed with submission? Reply with yes/no.", m, attachments)
	return subject, body
}

// AcknowledgementMessage builds the follow-up sent once a reply arrives.
func AcknowledgementMessage(m period.Month, reply string) (subject, body string) {
	subject = fmt.Sprintf("Re: Monthly NEA Reports – %s", m)
	if containsWord(reply, "yes") {
		return subject, fmt.Sprintf("Thank you. Proceeding with the %s NEA submission.", m)
	}
	return subject, fmt.Sprintf("Understood. The %s NEA submission is on hold.", m)
}
