package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	telegramAPI     = "https://api.telegram.org/bot%s/sendMessage"
	telegramRetries = 3
	telegramTimeout = 15 * time.Second
)

// Telegram pushes alerts to a chat or channel via the Bot API.
type Telegram struct {
	botToken string
	chatID   string
	client   *http.Client
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: telegramTimeout},
	}
}

// SendText delivers a Markdown message, retrying with a growing backoff.
func (t *Telegram) SendText(text string) error {
	if t.botToken == "" || t.chatID == "" {
		return fmt.Errorf("telegram credentials are not configured")
	}
	body, err := json.Marshal(map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= telegramRetries; attempt++ {
		if lastErr = t.post(body); lastErr == nil {
			return nil
		}
		if attempt < telegramRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}
	return lastErr
}

func (t *Telegram) post(body []byte) error {
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf(telegramAPI, t.botToken), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("telegram status=%d", resp.StatusCode)
	}
	return nil
}
