package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTelegramURL is the Bot API base URL.
const DefaultTelegramURL = "https://api.telegram.org"

// TelegramConfig holds Telegram configuration.
type TelegramConfig struct {
	BotToken string
	BaseURL  string
	// ChatIDs maps user IDs to chat IDs. Users without an entry are addressed
	// by their user ID, which is the chat ID for bot-registered users.
	ChatIDs map[string]string
	Timeout time.Duration
}

// Telegram sends notifications through the Bot API sendMessage method.
type Telegram struct {
	cfg    TelegramConfig
	client *http.Client
	logger zerolog.Logger
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(cfg TelegramConfig, logger zerolog.Logger) *Telegram {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTelegramURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Telegram{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "telegram").Logger(),
	}
}

// Notify sends message to the user's chat. Failures are logged and dropped.
func (t *Telegram) Notify(ctx context.Context, userID, message string) {
	if t.cfg.BotToken == "" {
		return
	}
	if err := t.send(ctx, t.chatID(userID), message); err != nil {
		t.logger.Warn().Err(err).Str("user", userID).Msg("telegram delivery failed")
	}
}

func (t *Telegram) chatID(userID string) string {
	if id, ok := t.cfg.ChatIDs[userID]; ok {
		return id
	}
	return userID
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) send(ctx context.Context, chatID, text string) error {
	jsonData, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text, DisableWebPagePreview: true})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.BaseURL, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var out sendMessageResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if !out.OK {
		return fmt.Errorf("telegram api: %s", out.Description)
	}
	return nil
}

var _ Notifier = (*Telegram)(nil)
