// Package postmark is the primary email transport, backed by the Postmark HTTP API.
package postmark

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mrz1836/postmark"
	"github.com/tuition-notify/internal/channel"
	"github.com/tuition-notify/internal/config"
)

// ErrNotConfigured is returned by NewSender when no server token is set.
var ErrNotConfigured = errors.New("postmark: server token not configured")

// Sender implements channel.Transport over the Postmark transactional API.
type Sender struct {
	client *postmark.Client
	from   string
}

// NewSender returns a Postmark transport, or ErrNotConfigured when cfg carries no server token.
func NewSender(cfg config.Email, timeout time.Duration) (*Sender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, ErrNotConfigured
	}
	c := postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken)
	c.HTTPClient = &http.Client{Timeout: timeout}
	from := cfg.SenderEmail
	if cfg.SenderName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.SenderName, cfg.SenderEmail)
	}
	return &Sender{client: c, from: from}, nil
}

// WithBaseURL points the client at another API root.
func (s *Sender) WithBaseURL(u string) *Sender {
	s.client.BaseURL = u
	return s
}

func (s *Sender) Name() string { return "postmark" }

// Send submits one email and returns the Postmark message ID.
func (s *Sender) Send(ctx context.Context, to string, msg channel.Message) (string, error) {
	email := postmark.Email{
		From:       s.from,
		To:         to,
		Subject:    msg.Title,
		HTMLBody:   msg.HTML,
		TextBody:   msg.Body,
		Tag:        msg.Data["type"],
		TrackOpens: true,
	}
	resp, err := s.client.SendEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("postmark send: %w", err)
	}
	if resp.ErrorCode > 0 {
		return "", fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
	}
	return resp.MessageID, nil
}
