package telegram

import "gopkg.in/telebot.v3"

// Client sends chat messages. Notifications go through it so they can be tested
// without a live bot.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
