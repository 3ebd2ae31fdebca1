package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// TelegramChannel sends events as chat messages. It never polls for
// updates.
type TelegramChannel struct {
	bot    *tele.Bot
	chatID int64
}

// NewTelegramChannel builds an offline bot. apiURL may be empty for the
// public Bot API.
func NewTelegramChannel(token string, chatID int64, apiURL string) (*TelegramChannel, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   token,
		Offline: true,
		Client:  &http.Client{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	return &TelegramChannel{bot: b, chatID: chatID}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

// Post sends the message. telebot has no per-call context, so cancellation
// is only checked before sending.
func (c *TelegramChannel) Post(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := fmt.Sprintf("%s\n%s\n%s", ev.title(), ev.Message, ev.Timestamp.Format(time.RFC3339))
	_, err := c.bot.Send(&tele.Chat{ID: c.chatID}, text)
	return err
}
