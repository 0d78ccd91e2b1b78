package fcm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuition-notify/internal/channel"
	"github.com/tuition-notify/internal/config"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(config.FCM{ProjectID: "tuition-app", BaseURL: srv.URL}, time.Second)
	require.NoError(t, err)
	return c.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "ya29.test", TokenType: "Bearer"}))
}

func TestNewClient_NotConfigured(t *testing.T) {
	_, err := NewClient(config.FCM{}, time.Second)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSend_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects/tuition-app/messages:send", r.URL.Path)
		assert.Equal(t, "Bearer ya29.test", r.Header.Get("Authorization"))
		var body map[string]message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		m := body["message"]
		assert.Equal(t, "device-token", m.Token)
		assert.Equal(t, "New Comment", m.Notification.Title)
		assert.Equal(t, "Comments", m.Data["screen"])
		_, _ = w.Write([]byte(`{"name":"projects/tuition-app/messages/0:1"}`))
	})

	name, err := c.Send(context.Background(), "device-token", channel.Message{
		Title: "New Comment", Body: "Asha commented", Data: map[string]string{"screen": "Comments"},
	})

	require.NoError(t, err)
	assert.Equal(t, "projects/tuition-app/messages/0:1", name)
}

func TestSend_Unregistered(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`))
	})

	_, err := c.Send(context.Background(), "stale", channel.Message{Title: "x"})

	assert.ErrorContains(t, err, "NOT_FOUND")
}

func TestSend_MissingCredentialsFile(t *testing.T) {
	c, err := NewClient(config.FCM{ProjectID: "p", CredentialsFile: "/nonexistent/creds.json", BaseURL: "http://127.0.0.1:1"}, time.Second)
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "tok", channel.Message{})
	assert.ErrorContains(t, err, "fcm read credentials")

	// Initialisation runs once; the error is remembered.
	_, err = c.Send(context.Background(), "tok", channel.Message{})
	assert.ErrorContains(t, err, "fcm read credentials")
}
