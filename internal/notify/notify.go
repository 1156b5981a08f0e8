// Package notify forwards short text notifications (new submissions, relay
// requests) to an external messaging channel. Delivery is best effort.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTelegramAPI is the Telegram Bot API base URL.
const DefaultTelegramAPI = "https://api.telegram.org"

// maxResponseBody bounds how much of an upstream response is read.
const maxResponseBody = 64 << 10

var (
	// ErrEmptyText is returned for a blank notification.
	ErrEmptyText = errors.New("text required")
	// ErrNotConfigured is returned by constructors missing credentials.
	ErrNotConfigured = errors.New("notifier not configured")
)

// Notifier delivers one text message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
	// Name identifies the channel in logs and metrics.
	Name() string
}

// HTTPClient is the subset of *http.Client used by notifiers.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned when the channel answers with a non-2xx status.
type StatusError struct {
	Channel    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Channel, e.StatusCode, e.Body)
}

// TelegramNotifier posts to the Bot API sendMessage method.
type TelegramNotifier struct {
	client  HTTPClient
	baseURL string
	token   string
	chatID  string
}

// TelegramOption configures a TelegramNotifier.
type TelegramOption func(*TelegramNotifier)

// WithTelegramBaseURL overrides the Bot API base URL.
func WithTelegramBaseURL(u string) TelegramOption {
	return func(t *TelegramNotifier) {
		t.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTelegramClient overrides the HTTP client.
func WithTelegramClient(c HTTPClient) TelegramOption {
	return func(t *TelegramNotifier) {
		t.client = c
	}
}

// NewTelegramNotifier creates a notifier for one bot and chat.
func NewTelegramNotifier(token, chatID string, opts ...TelegramOption) (*TelegramNotifier, error) {
	if token == "" || chatID == "" {
		return nil, fmt.Errorf("telegram: %w", ErrNotConfigured)
	}
	t := &TelegramNotifier{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: DefaultTelegramAPI,
		token:   token,
		chatID:  chatID,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Name implements Notifier.
func (t *TelegramNotifier) Name() string { return "telegram" }

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify implements Notifier.
func (t *TelegramNotifier) Notify(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	endpoint := t.baseURL + "/bot" + t.token + "/sendMessage"
	body, err := postJSON(ctx, t.client, t.Name(), endpoint, map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}

	var resp telegramResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("telegram: decode response: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram: %s", resp.Description)
	}
	return nil
}

// WebhookNotifier posts {"text": ...} to a generic URL.
type WebhookNotifier struct {
	client HTTPClient
	url    string
}

// NewWebhookNotifier creates a notifier posting to url.
func NewWebhookNotifier(url string, client HTTPClient) (*WebhookNotifier, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook: %w", ErrNotConfigured)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{client: client, url: url}, nil
}

// Name implements Notifier.
func (w *WebhookNotifier) Name() string { return "webhook" }

// Notify implements Notifier.
func (w *WebhookNotifier) Notify(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	_, err := postJSON(ctx, w.client, w.Name(), w.url, map[string]string{"text": text})
	return err
}

func postJSON(ctx context.Context, client HTTPClient, channel, url string, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", channel, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: send: %w", channel, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", channel, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Channel: channel, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
