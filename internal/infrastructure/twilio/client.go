// Package twilio sends WhatsApp messages through the Twilio Messages REST API.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tuition-notify/internal/channel"
	"github.com/tuition-notify/internal/config"
)

// ErrNotConfigured is returned by NewClient when credentials or sender are missing.
var ErrNotConfigured = errors.New("twilio: credentials not configured")

// Error codes Twilio returns for common WhatsApp misconfigurations.
var errorHints = map[int]string{
	21211: "invalid phone number",
	21408: "WhatsApp is not enabled for this region or account",
	21608: "number not authorized; join the WhatsApp sandbox first",
	21610: "recipient has not joined the WhatsApp sandbox",
	63007: "sender is not a WhatsApp-enabled number",
}

// Client implements channel.Transport for WhatsApp.
type Client struct {
	http    *http.Client
	baseURL string
	sid     string
	token   string
	from    string
}

func NewClient(cfg config.Twilio, timeout time.Duration) (*Client, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, ErrNotConfigured
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		sid:     cfg.AccountSID,
		token:   cfg.AuthToken,
		from:    WhatsAppAddress(cfg.From),
	}, nil
}

func (c *Client) Name() string { return "twilio" }

type messageResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	// Set on 4xx responses.
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

// Send posts one WhatsApp message and returns the Twilio message SID.
func (c *Client) Send(ctx context.Context, to string, msg channel.Message) (string, error) {
	form := url.Values{}
	form.Set("From", c.from)
	form.Set("To", WhatsAppAddress(to))
	form.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.sid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.sid, c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out messageResponse
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode >= 300 {
		return "", describe(out.Code, out.Message, resp.StatusCode)
	}
	if out.ErrorCode != nil && *out.ErrorCode != 0 {
		return "", describe(*out.ErrorCode, out.ErrorMessage, resp.StatusCode)
	}
	return out.SID, nil
}

func describe(code int, message string, status int) error {
	if hint, ok := errorHints[code]; ok {
		return fmt.Errorf("twilio %d: %s", code, hint)
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return fmt.Errorf("twilio %d (http %d): %s", code, status, message)
}

// WhatsAppAddress normalises a phone number to Twilio's "whatsapp:+<digits>" form.
func WhatsAppAddress(phone string) string {
	p := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(phone), "whatsapp:"))
	var b strings.Builder
	for _, r := range p {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return "whatsapp:+" + b.String()
}
