package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"lead_routing_backend/platform/config"
	"lead_routing_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAlert(t *testing.T) {
	var (
		path string
		got  sendMessageRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(&config.Config{TelegramBotToken: "tok", TelegramChatID: "-1001"}, logger.Discard())
	require.NotNil(t, c)
	c.baseURL = srv.URL

	require.NoError(t, c.SendAlert(context.Background(), "*hola*"))
	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, sendMessageRequest{ChatID: "-1001", Text: "*hola*", ParseMode: "Markdown"}, got)
}

func TestSendAlert_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"can't parse entities"}`))
	}))
	defer srv.Close()

	c := NewClient(&config.Config{TelegramBotToken: "tok", TelegramChatID: "1"}, logger.Discard())
	c.baseURL = srv.URL

	err := c.SendAlert(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't parse entities")
}

func TestNewClient_Disabled(t *testing.T) {
	c := NewClient(&config.Config{}, logger.Discard())
	assert.Nil(t, c)
	assert.NoError(t, c.SendAlert(context.Background(), "ignored"))
}
