package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"neareports/internal/config"
)

// ReplyPoller watches the sender's inbox for unseen replies.
type ReplyPoller struct {
	cfg    config.MailConfig
	logger *slog.Logger
	// fetch returns the raw RFC 822 bytes of every unseen INBOX message and
	// marks them seen. Replaced in tests.
	fetch func(ctx context.Context) ([][]byte, error)
}

// NewReplyPoller creates a poller for cfg.
func NewReplyPoller(cfg config.MailConfig, logger *slog.Logger) *ReplyPoller {
	p := &ReplyPoller{cfg: cfg, logger: logger}
	p.fetch = p.fetchUnseen
	return p
}

// WaitForReply polls every PollInterval until PollTimeout. Messages from
// senders outside the recipient list are marked seen and ignored. A failed
// poll is logged and retried on the next tick.
func (p *ReplyPoller) WaitForReply(ctx context.Context, keywords []string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PollTimeout)
	defer cancel()

	whitelist := allowed(p.cfg.Recipients)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		reply, found, err := p.poll(ctx, whitelist, keywords)
		switch {
		case err != nil:
			p.logger.WarnContext(ctx, "reply_poll_failed", slog.String("error", err.Error()))
		case found:
			p.logger.InfoContext(ctx, "reply_received", slog.String("reply", reply))
			return reply, true, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				p.logger.InfoContext(context.WithoutCancel(ctx), "reply_poll_timed_out")
				return "", false, nil
			}
			return "", false, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *ReplyPoller) poll(ctx context.Context, whitelist map[string]struct{}, keywords []string) (string, bool, error) {
	raws, err := p.fetch(ctx)
	if err != nil {
		return "", false, err
	}
	for _, raw := range raws {
		from, subject, body, err := parseMessage(bytes.NewReader(raw))
		if err != nil {
			p.logger.DebugContext(ctx, "reply_parse_failed", slog.String("error", err.Error()))
			continue
		}
		if _, ok := whitelist[from]; !ok {
			continue
		}
		if reply, ok := matchReply(subject, body, keywords); ok {
			return reply, true, nil
		}
	}
	return "", false, nil
}

// parseMessage extracts the lower-cased sender address, the subject and the
// concatenated text/plain parts.
func parseMessage(r io.Reader) (from, subject, body string, err error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", "", "", err
	}

	addrs, err := mr.Header.AddressList("From")
	if err != nil {
		return "", "", "", fmt.Errorf("parse From: %w", err)
	}
	if len(addrs) > 0 {
		from = strings.ToLower(addrs[0].Address)
	}
	subject, _ = mr.Header.Subject()

	var parts []string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", "", "", err
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		if ct, _, _ := h.ContentType(); ct != "" && ct != "text/plain" {
			continue
		}
		b, err := io.ReadAll(part.Body)
		if err != nil {
			return "", "", "", err
		}
		parts = append(parts, string(b))
	}
	return from, subject, strings.Join(parts, " "), nil
}

func (p *ReplyPoller) fetchUnseen(ctx context.Context) ([][]byte, error) {
	addr := net.JoinHostPort(p.cfg.IMAPHost, strconv.Itoa(p.cfg.IMAPPort))
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial: %w", err)
	}
	defer c.Logout()
	if deadline, ok := ctx.Deadline(); ok {
		c.Timeout = time.Until(deadline)
	}

	if err := c.Login(p.cfg.SenderEmail, p.cfg.SenderPassword); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("imap select: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)
	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var raws [][]byte
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		b, err := io.ReadAll(body)
		if err != nil {
			continue
		}
		raws = append(raws, b)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	flags := []interface{}{imap.SeenFlag}
	if err := c.Store(seqset, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
		return nil, fmt.Errorf("imap mark seen: %w", err)
	}
	return raws, nil
}
