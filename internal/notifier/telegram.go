// Package notifier pushes trade events to Telegram. Fills and failures are
// pushed; guard skips are routine and stay in the journal only.
package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"quantbot/internal/executor"
	"quantbot/internal/logger"
	"quantbot/internal/types"
)

// Notifier is what the app wires into the engine's fill path. A nil
// Telegram pointer satisfies it as a no-op, so callers never branch.
type Notifier interface {
	NotifyFill(symbol string, action types.Action, res executor.Result, reason string)
	NotifyError(symbol string, err error)
}

type Telegram struct {
	BotToken string
	ChatID   string
	Client   *http.Client
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{BotToken: botToken, ChatID: chatID, Client: &http.Client{Timeout: 15 * time.Second}}
}

func (t *Telegram) NotifyFill(symbol string, action types.Action, res executor.Result, reason string) {
	if t == nil {
		return
	}
	text := fmt.Sprintf("*%s* %s filled\nqty: `%s`\nprice: `%s`\norder: `%s`",
		symbol, action, res.Quantity, res.Price, res.OrderID)
	if reason != "" {
		text += fmt.Sprintf("\nreason: %s", reason)
	}
	if err := t.SendText(text); err != nil {
		logger.Warnf("telegram fill notification failed: %v", err)
	}
}

func (t *Telegram) NotifyError(symbol string, err error) {
	if t == nil {
		return
	}
	if sendErr := t.SendText(fmt.Sprintf("*%s* execution error\n`%v`", symbol, err)); sendErr != nil {
		logger.Warnf("telegram error notification failed: %v", sendErr)
	}
}

// SendText posts one text message, retrying up to 3 times.
func (t *Telegram) SendText(text string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("telegram is not fully configured")
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.BotToken)

	payload := map[string]any{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	body, _ := json.Marshal(payload)

	var lastErr error
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest("POST", url, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := t.Client.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}
		lastErr = fmt.Errorf("telegram status=%d", resp.StatusCode)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	return lastErr
}
