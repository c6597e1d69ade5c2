// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"pnr_tracker/internal/domain/pnr"
)

const statusLookupTimeout = 15 * time.Second

// RegisterBotCommands wires the chat commands. /start tells users the chat id to put in their
// profile so that Telegram notifications can reach them; /status looks up a PNR live.
func RegisterBotCommands(b *telebot.Bot, fetcher pnr.Fetcher, baseLogger *logrus.Entry) {
	logger := baseLogger.WithField("handler_group", "commands")

	b.Handle("/start", func(c telebot.Context) error {
		logCtx := logger.WithField("command", "/start").WithField("chat_id", c.Chat().ID)
		logCtx.Info("Processing /start command")
		return c.Send(startReply(c.Sender().FirstName, c.Chat().ID))
	})

	b.Handle("/help", func(c telebot.Context) error {
		return c.Send(helpReply(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})

	b.Handle("/status", func(c telebot.Context) error {
		logCtx := logger.WithField("command", "/status").WithField("chat_id", c.Chat().ID)
		ctx, cancel := context.WithTimeout(context.Background(), statusLookupTimeout)
		defer cancel()
		reply := statusReply(ctx, fetcher, c.Args())
		logCtx.Info("Processed /status command")
		return c.Send(reply)
	})
}

func startReply(firstName string, chatID int64) string {
	name := firstName
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s! Your chat id is %d. Add it to your profile and enable Telegram notifications to receive PNR status updates here.", name, chatID)
}

func helpReply() string {
	var helpText strings.Builder
	helpText.WriteString("Available commands:\n\n")
	helpText.WriteString("`/start`\n - Show the chat id to link with your account.\n\n")
	helpText.WriteString("`/status <PNR>`\n - Look up the live status of a 10-digit PNR.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return helpText.String()
}

func statusReply(ctx context.Context, fetcher pnr.Fetcher, args []string) string {
	if len(args) != 1 {
		return "Usage: /status <PNR>"
	}
	number := strings.TrimSpace(args[0])
	if err := pnr.ValidateNumber(number); err != nil {
		return "PNR must be exactly 10 digits."
	}

	snap, err := fetcher.FetchStatus(ctx, number)
	if err != nil {
		var fe *pnr.FetchError
		if errors.As(err, &fe) {
			return fmt.Sprintf("Could not fetch status for %s: %s", number, fe.Cause)
		}
		return fmt.Sprintf("Could not fetch status for %s. Please try again later.", number)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PNR %s\nStatus: %s\n", number, orDash(snap.Status))
	fmt.Fprintf(&b, "Coach: %s  Seat: %s  Berth: %s\n", orDash(snap.Coach), orDash(snap.SeatNumber), orDash(snap.BerthPreference))
	fmt.Fprintf(&b, "Boarding: %s\n%s", orDash(snap.CurrentLocation), snap.ChartStatus)
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
