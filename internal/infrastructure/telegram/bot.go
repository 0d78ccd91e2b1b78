// Package telegram delivers chat notifications through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tuition-notify/internal/channel"
	"github.com/tuition-notify/internal/config"
)

// ErrNotConfigured is returned by NewBot when no bot token is set.
var ErrNotConfigured = errors.New("telegram: bot token not configured")

// Bot implements channel.Transport with sendMessage in Markdown parse mode.
type Bot struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewBot(cfg config.Telegram, timeout time.Duration) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, ErrNotConfigured
	}
	return &Bot{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.BotToken,
	}, nil
}

func (b *Bot) Name() string { return "telegram" }

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send posts msg.Body to the chat and returns the Telegram message id.
func (b *Bot) Send(ctx context.Context, chatID string, msg channel.Message) (string, error) {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  msg.Body,
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", b.baseURL, b.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		// The request URL embeds the token; keep it out of the error.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return "", fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("telegram decode (http %d): %w", resp.StatusCode, err)
	}
	if !out.OK {
		return "", fmt.Errorf("telegram %d: %s", out.ErrorCode, out.Description)
	}
	return strconv.FormatInt(out.Result.MessageID, 10), nil
}
