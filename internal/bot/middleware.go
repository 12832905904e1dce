package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// withAdminCheck drops messages that do not come from the admin chat.
func (b *Bot) withAdminCheck(handler func(context.Context, tgbotapi.Update)) func(context.Context, tgbotapi.Update) {
	return func(ctx context.Context, update tgbotapi.Update) {
		if update.Message == nil || update.Message.Chat == nil {
			return
		}
		chatID := update.Message.Chat.ID
		if !b.isAdmin(chatID) {
			b.logger.Warnf("Ignoring message from non-admin chat %d", chatID)
			return
		}
		handler(ctx, update)
	}
}
