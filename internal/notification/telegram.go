package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-robots/pkg/errors"
)

const defaultTelegramURL = "https://api.telegram.org"

// TelegramConfig configures the Telegram Bot API notifier.
type TelegramConfig struct {
	Token   string `yaml:"token" json:"token" jsonschema:"title=Bot Token,description=Bot API token from @BotFather"`
	ChatID  string `yaml:"chat_id" json:"chat_id" jsonschema:"title=Chat ID" validate:"required_with=Token"`
	BaseURL string `yaml:"base_url" json:"base_url" jsonschema:"title=Base URL,default=https://api.telegram.org"`
}

// TelegramNotifier sends alerts via Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

// NewTelegramNotifier creates a Telegram notifier.
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultTelegramURL
	}

	return &TelegramNotifier{
		botToken: config.Token,
		chatID:   config.ChatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	emoji := "ℹ️"

	switch alert.Level {
	case AlertWarning:
		emoji = "⚠️"
	case AlertCritical:
		emoji = "🚨"
	}

	text := fmt.Sprintf("%s *%s*\n\n%s", emoji, escapeMarkdown(alert.Title), escapeMarkdown(alert.Message))

	body, err := json.Marshal(map[string]interface{}{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "MarkdownV2",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeNotificationFailed, "telegram: encode message", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(errors.ErrCodeNotificationFailed, "telegram: create request", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNotificationFailed, "telegram: send", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.ErrCodeNotificationFailed, "telegram: unexpected status %d", resp.StatusCode)
	}

	return nil
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2.
func escapeMarkdown(s string) string {
	specials := []byte{'_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!'}

	var buf bytes.Buffer

	for i := 0; i < len(s); i++ {
		for _, sp := range specials {
			if s[i] == sp {
				buf.WriteByte('\\')

				break
			}
		}

		buf.WriteByte(s[i])
	}

	return buf.String()
}
