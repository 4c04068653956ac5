package telegram

import (
	"errors"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends a text message to the owner's private chat.
func (tba *TelebotAdapter) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{DisableWebPagePreview: true}
	}
	_, err := tba.bot.Send(telebot.ChatID(chatID), text, options)
	return err
}

// IsUnreachable reports whether err means the chat will not accept messages
// anymore, so retrying is pointless.
func IsUnreachable(err error) bool {
	return errors.Is(err, telebot.ErrBlockedByUser) ||
		errors.Is(err, telebot.ErrUserIsDeactivated) ||
		errors.Is(err, telebot.ErrChatNotFound)
}
