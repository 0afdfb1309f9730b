// internal/infra/telegram/client.go
package telegram

import (
	"context"

	"gopkg.in/telebot.v3"
)

// ChannelAdapter delivers greetings to a fixed Telegram chat using the
// gopkg.in/telebot.v3 library. It is the alternative transport to the
// Slack webhook.
type ChannelAdapter struct {
	bot    *telebot.Bot
	chatID int64
}

func NewChannelAdapter(b *telebot.Bot, chatID int64) *ChannelAdapter {
	return &ChannelAdapter{bot: b, chatID: chatID}
}

// Send posts a text message to the configured chat.
func (a *ChannelAdapter) Send(_ context.Context, text string) error {
	recipient := &telebot.Chat{ID: a.chatID}
	_, err := a.bot.Send(recipient, text, &telebot.SendOptions{})
	return err
}
