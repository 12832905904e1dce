package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Константы состояний админского чата
const (
	stateDefault       = ""
	stateAwaitingEmail = "awaiting_email"
)

// sendMessage - унифицированная функция для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string, replyMarkup interface{}) {
	b.send(newMessage(chatID, text, replyMarkup))
}

func newMessage(chatID int64, text string, replyMarkup interface{}) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if replyMarkup != nil {
		msg.ReplyMarkup = replyMarkup
	}
	return msg
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.API.Send(c); err != nil {
		b.logger.Errorf("Failed to send message: %v", err)
	}
}

// enqueue кладёт уведомление в очередь, не блокируя вызывающего.
func (b *Bot) enqueue(c tgbotapi.Chattable) {
	select {
	case b.outbox <- c:
	default:
		b.logger.Warn("Notification queue is full, dropping message")
	}
}

func (b *Bot) answerCallback(callbackID string, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.API.Request(callback); err != nil {
		b.logger.Errorf("Failed to answer callback: %v", err)
	}
}

func (b *Bot) isAdmin(chatID int64) bool {
	return b.adminChatID != 0 && chatID == b.adminChatID
}

// --- Функции для управления состоянием ---

func (b *Bot) setState(chatID int64, state string) {
	b.stateMutex.Lock()
	defer b.stateMutex.Unlock()
	if state == stateDefault {
		delete(b.userStates, chatID)
	} else {
		b.userStates[chatID] = state
	}
	b.logger.Debugf("Set state for chat %d: %s", chatID, state)
}

func (b *Bot) getState(chatID int64) string {
	b.stateMutex.Lock()
	defer b.stateMutex.Unlock()
	return b.userStates[chatID]
}

// escapeMarkdown экранирует спецсимволы legacy Markdown вне code-блоков.
var escapeMarkdown = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[").Replace
