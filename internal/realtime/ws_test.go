package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zephyrm-backend/internal/security"
)

func TestServeWS_DeliversNotification(t *testing.T) {
	tokens := security.NewTokenManager("test-secret", "", time.Hour)
	hub := NewHub(nil)
	srv := httptest.NewServer(ServeWS(hub, tokens, WSOptions{}))
	defer srv.Close()

	token, err := tokens.GenerateAccessToken(5, "u@example.com", nil)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?access_token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.Connections(5) == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Deliver(context.Background(), 5, note(5, "Request Approved")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, MessageTypeNewNotification, env.Type)
	assert.Equal(t, "Request Approved", env.Notification.Title)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Connections(5) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWS_RejectsMissingToken(t *testing.T) {
	tokens := security.NewTokenManager("test-secret", "", time.Hour)
	srv := httptest.NewServer(ServeWS(NewHub(nil), tokens, WSOptions{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeWS_RejectsBadToken(t *testing.T) {
	tokens := security.NewTokenManager("test-secret", "", time.Hour)
	srv := httptest.NewServer(ServeWS(NewHub(nil), tokens, WSOptions{}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?access_token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
