// Package telegram sends operator alerts through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lead_routing_backend/platform/config"
	"lead_routing_backend/platform/logger"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.telegram.org"

type Client struct {
	baseURL string
	token   string
	chatID  string
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// NewClient returns nil when the bot is not configured.
func NewClient(cfg config.TelegramConfig, log *logger.Logger) *Client {
	if !cfg.IsTelegramEnabled() {
		return nil
	}

	return &Client{
		baseURL: defaultBaseURL,
		token:   cfg.GetTelegramBotToken(),
		chatID:  cfg.GetTelegramChatID(),
		http:    &http.Client{Timeout: 10 * time.Second},
		// Telegram allows about one message per second per chat.
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
		log:     log.WithComponent("telegram"),
	}
}

// SendAlert posts a Markdown message to the admin chat.
func (c *Client) SendAlert(ctx context.Context, message string) error {
	if c == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limiter: %w", err)
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:    c.chatID,
		Text:      message,
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", scrub(err, c.token))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("telegram alert sent", "chat", maskChat(c.chatID))
	return nil
}

func maskChat(chatID string) string {
	if len(chatID) <= 4 {
		return chatID
	}
	return chatID[:4] + "..."
}

func scrub(err error, token string) error {
	if token == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "REDACTED"))
}
