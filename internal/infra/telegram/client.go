// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/telebot.v3"

	"pnr_tracker/internal/domain/transport"
)

// Sender is the part of *telebot.Bot the transport uses.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Transport delivers notifications as Telegram messages. The recipient is a chat id.
type Transport struct {
	bot Sender
}

func NewTransport(b Sender) *Transport {
	return &Transport{bot: b}
}

func (t *Transport) Send(ctx context.Context, msg transport.Message) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(msg.Recipient), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", msg.Recipient, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Body
	}
	if _, err := t.bot.Send(telebot.ChatID(chatID), text, &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
		return fmt.Errorf("failed to send telegram message to %d: %w", chatID, err)
	}
	return nil
}
