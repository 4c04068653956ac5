package telegram

import "gopkg.in/telebot.v3"

// Client sends text messages to a Telegram chat. Notification delivery and the
// command handlers depend on this rather than on *telebot.Bot directly.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}
