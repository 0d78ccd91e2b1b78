// Package fcm sends push notifications through the Firebase Cloud Messaging HTTP v1 API.
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tuition-notify/internal/channel"
	"github.com/tuition-notify/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const messagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// ErrNotConfigured is returned by NewClient when no project is set.
var ErrNotConfigured = errors.New("fcm: project not configured")

// Client implements channel.Transport for device tokens.
// Credentials are loaded on the first send and reused afterwards.
type Client struct {
	http      *http.Client
	baseURL   string
	projectID string
	credsFile string

	once    sync.Once
	ts      oauth2.TokenSource
	initErr error
}

func NewClient(cfg config.FCM, timeout time.Duration) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, ErrNotConfigured
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		projectID: cfg.ProjectID,
		credsFile: cfg.CredentialsFile,
	}, nil
}

// WithTokenSource replaces credential discovery with ts.
func (c *Client) WithTokenSource(ts oauth2.TokenSource) *Client {
	c.once.Do(func() { c.ts = ts })
	return c
}

func (c *Client) Name() string { return "fcm" }

func (c *Client) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	c.once.Do(func() {
		// Detached from ctx: the token source outlives the first request.
		bg := context.WithoutCancel(ctx)
		if c.credsFile == "" {
			creds, err := google.FindDefaultCredentials(bg, messagingScope)
			if err != nil {
				c.initErr = fmt.Errorf("fcm default credentials: %w", err)
				return
			}
			c.ts = creds.TokenSource
			return
		}
		data, err := os.ReadFile(c.credsFile)
		if err != nil {
			c.initErr = fmt.Errorf("fcm read credentials: %w", err)
			return
		}
		creds, err := google.CredentialsFromJSON(bg, data, messagingScope)
		if err != nil {
			c.initErr = fmt.Errorf("fcm parse credentials: %w", err)
			return
		}
		c.ts = oauth2.ReuseTokenSource(nil, creds.TokenSource)
	})
	return c.ts, c.initErr
}

type notification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

type message struct {
	Token        string            `json:"token"`
	Notification notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      *androidConfig    `json:"android,omitempty"`
}

type androidConfig struct {
	Priority string `json:"priority"`
}

type sendResponse struct {
	Name  string `json:"name"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Send pushes one notification to a registration token and returns the FCM message name.
func (c *Client) Send(ctx context.Context, token string, msg channel.Message) (string, error) {
	ts, err := c.tokenSource(ctx)
	if err != nil {
		return "", err
	}
	tok, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("fcm token: %w", err)
	}

	payload, err := json.Marshal(map[string]message{"message": {
		Token:        token,
		Notification: notification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
		Android:      &androidConfig{Priority: "high"},
	}})
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/projects/%s/messages:send", c.baseURL, c.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fcm request: %w", err)
	}
	defer resp.Body.Close()

	var out sendResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode >= 300 {
		if out.Error != nil {
			return "", fmt.Errorf("fcm %s: %s", out.Error.Status, out.Error.Message)
		}
		return "", fmt.Errorf("fcm http %d", resp.StatusCode)
	}
	return out.Name, nil
}
