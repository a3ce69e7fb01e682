// Package meta sends server-side conversion events to the Meta Graph API.
package meta

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lead_routing_backend/internal/leads/ports"
	"lead_routing_backend/platform/config"
	"lead_routing_backend/platform/logger"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL    = "https://graph.facebook.com"
	defaultAPIVersion = "v19.0"
	actionSource      = "website"
)

type Client struct {
	baseURL       string
	apiVersion    string
	pixelID       string
	accessToken   string
	testEventCode string
	http          *http.Client
	limiter       *rate.Limiter
	now           func() time.Time
	log           *logger.Logger
}

// NewClient returns nil when the pixel is not configured; a nil client
// accepts and drops every event.
func NewClient(cfg config.TrackingConfig, log *logger.Logger) *Client {
	if !cfg.IsTrackingEnabled() {
		return nil
	}

	version := cfg.GetMetaAPIVersion()
	if version == "" {
		version = defaultAPIVersion
	}

	return &Client{
		baseURL:       defaultBaseURL,
		apiVersion:    version,
		pixelID:       cfg.GetMetaPixelID(),
		accessToken:   cfg.GetMetaAccessToken(),
		testEventCode: cfg.GetMetaTestEventCode(),
		http:          &http.Client{Timeout: 10 * time.Second},
		limiter:       rate.NewLimiter(rate.Limit(20), 5),
		now:           time.Now,
		log:           log.WithComponent("meta_capi"),
	}
}

type eventsRequest struct {
	Data          []serverEvent `json:"data"`
	TestEventCode string        `json:"test_event_code,omitempty"`
}

type serverEvent struct {
	EventName      string                   `json:"event_name"`
	EventTime      int64                    `json:"event_time"`
	EventSourceURL string                   `json:"event_source_url,omitempty"`
	EventID        string                   `json:"event_id"`
	ActionSource   string                   `json:"action_source"`
	UserData       userData                 `json:"user_data"`
	CustomData     ports.TrackingCustomData `json:"custom_data"`
}

type userData struct {
	Email     string `json:"em,omitempty"`
	Phone     string `json:"ph,omitempty"`
	FirstName string `json:"fn,omitempty"`
	LastName  string `json:"ln,omitempty"`
	ZipCode   string `json:"zp,omitempty"`
	ClientIP  string `json:"client_ip_address,omitempty"`
	UserAgent string `json:"client_user_agent,omitempty"`
	FBC       string `json:"fbc,omitempty"`
	FBP       string `json:"fbp,omitempty"`
}

// SendEvent posts one event. Personal fields are hashed; browser context
// fields travel in clear as the API expects.
func (c *Client) SendEvent(ctx context.Context, event ports.TrackingEvent) error {
	if c == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("meta rate limiter: %w", err)
	}

	payload := eventsRequest{
		Data: []serverEvent{{
			EventName:      event.Name,
			EventTime:      c.now().Unix(),
			EventSourceURL: event.SourceURL,
			EventID:        event.EventID,
			ActionSource:   actionSource,
			UserData:       hashUserData(event.UserData),
			CustomData:     event.CustomData,
		}},
		TestEventCode: c.testEventCode,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal meta payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/events?access_token=%s",
		c.baseURL, c.apiVersion, url.PathEscape(c.pixelID), url.QueryEscape(c.accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The URL carries the token; do not let it reach the logs.
		return fmt.Errorf("meta request failed: %w", redact(err, c.accessToken))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("meta graph api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("meta event sent", "event_name", event.Name, "event_id", event.EventID)
	return nil
}

func hashUserData(in ports.TrackingUserData) userData {
	return userData{
		Email:     hash(in.Email),
		Phone:     hash(in.Phone),
		FirstName: hash(in.FirstName),
		LastName:  hash(in.LastName),
		ZipCode:   hash(in.ZipCode),
		ClientIP:  in.ClientIP,
		UserAgent: in.UserAgent,
		FBC:       in.FBC,
		FBP:       in.FBP,
	}
}

// hash returns the hex SHA-256 of the normalized value, or "" for empty input.
func hash(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func redact(err error, secret string) error {
	if secret == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), url.QueryEscape(secret), "REDACTED"))
}
