package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Fi44er/otp_store/internal/models"
	"github.com/Fi44er/otp_store/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = "*Admin commands*\n\n" +
	"/user `<email>` - balance and status\n" +
	"/reconcile `<email>` - check the ledger against the balance\n" +
	"/deactivate `<email>` - block purchases and top-ups\n" +
	"/activate `<email>` - unblock the account"

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.withAdminCheck(func(ctx context.Context, update tgbotapi.Update) {
		text := strings.TrimSpace(update.Message.Text)
		chatID := update.Message.Chat.ID

		b.logger.Infof("Processing admin message: %s", text)

		if b.getState(chatID) == stateAwaitingEmail && !strings.HasPrefix(text, "/") {
			b.setState(chatID, stateDefault)
			b.handleUserLookup(ctx, chatID, text)
			return
		}
		b.setState(chatID, stateDefault)

		cmd, arg := parseCommand(text)
		switch cmd {
		case "/start", "/help":
			b.sendMessage(chatID, helpText, nil)
		case "/user":
			if arg == "" {
				b.setState(chatID, stateAwaitingEmail)
				b.sendMessage(chatID, "Send the user's email:", nil)
				return
			}
			b.handleUserLookup(ctx, chatID, arg)
		case "/reconcile":
			user, ok := b.lookupByEmail(ctx, chatID, arg)
			if ok {
				b.handleReconcile(ctx, chatID, user)
			}
		case "/deactivate":
			b.handleSetActive(ctx, chatID, arg, false)
		case "/activate":
			b.handleSetActive(ctx, chatID, arg, true)
		default:
			b.sendMessage(chatID, "Unknown command. Use /help.", nil)
		}
	})(ctx, update)
}

// parseCommand splits "/cmd@bot arg" into "/cmd" and "arg".
func parseCommand(text string) (string, string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	return cmd, strings.Join(fields[1:], " ")
}

func (b *Bot) lookupByEmail(ctx context.Context, chatID int64, email string) (*models.User, bool) {
	if email == "" {
		b.sendMessage(chatID, "Usage: add the user's email after the command.", nil)
		return nil, false
	}
	user, err := b.service.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			b.sendMessage(chatID, fmt.Sprintf("❌ No user with email `%s`.", email), nil)
		} else {
			b.logger.Errorf("Failed to look up user %s: %v", email, err)
			b.sendMessage(chatID, "❌ Lookup failed. Try again later.", nil)
		}
		return nil, false
	}
	return user, true
}

func (b *Bot) handleUserLookup(ctx context.Context, chatID int64, email string) {
	user, ok := b.lookupByEmail(ctx, chatID, email)
	if !ok {
		return
	}
	b.sendMessage(chatID, userCard(user), userKeyboard(user))
}

func userCard(user *models.User) string {
	status := "🟢 active"
	if !user.Active {
		status = "🔴 deactivated"
	}
	return fmt.Sprintf(
		"👤 *User:* `%s`\n"+
			"🆔 *ID:* `%s`\n"+
			"💼 *Balance:* `₹%s`\n"+
			"🔒 *Held:* `₹%s`\n"+
			"📶 *Status:* %s",
		user.Email, user.ID, user.Balance.StringFixed(2), user.Held.StringFixed(2), status,
	)
}

func (b *Bot) handleReconcile(ctx context.Context, chatID int64, user *models.User) {
	report, err := b.service.Reconcile(ctx, user.ID)
	if err != nil {
		b.logger.Errorf("Failed to reconcile user %s: %v", user.ID, err)
		b.sendMessage(chatID, "❌ Reconciliation failed. Try again later.", nil)
		return
	}

	verdict := "✅ Ledger matches the balance."
	if !report.Consistent {
		verdict = "‼️ *MISMATCH* between ledger and balance."
	}
	b.sendMessage(chatID, fmt.Sprintf(
		"🧮 *Reconcile* `%s`\n\n"+
			"Credits: `₹%s`\nDebits: `₹%s`\nBalance: `₹%s`\nHeld: `₹%s` (open holds `₹%s`)\n\n%s",
		user.Email,
		report.Credits.StringFixed(2), report.Debits.StringFixed(2),
		report.Balance.StringFixed(2), report.Held.StringFixed(2), report.OpenHolds.StringFixed(2),
		verdict,
	), nil)
}

func (b *Bot) handleSetActive(ctx context.Context, chatID int64, email string, active bool) {
	if email == "" {
		b.sendMessage(chatID, "Usage: add the user's email after the command.", nil)
		return
	}
	user, err := b.service.SetUserActive(ctx, email, active)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			b.sendMessage(chatID, fmt.Sprintf("❌ No user with email `%s`.", email), nil)
			return
		}
		b.logger.Errorf("Failed to set active=%t for %s: %v", active, email, err)
		b.sendMessage(chatID, "❌ Update failed. Try again later.", nil)
		return
	}

	if active {
		b.sendMessage(chatID, fmt.Sprintf("🔓 `%s` is active again.", user.Email), nil)
	} else {
		b.sendMessage(chatID, fmt.Sprintf("🔒 `%s` is deactivated. The balance is kept.", user.Email), nil)
	}
}

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil || callback.Message.Chat == nil || !b.isAdmin(callback.Message.Chat.ID) {
		b.answerCallback(callback.ID, "Admin only.")
		return
	}
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	action, rawID, _ := strings.Cut(callback.Data, ":")
	if action == "cancel_action" {
		b.send(tgbotapi.NewEditMessageText(chatID, messageID, "❌ Cancelled."))
		b.answerCallback(callback.ID, "")
		return
	}

	id, err := models.ParseUserID(rawID)
	if err != nil {
		b.logger.Errorf("Invalid callback data: %s", callback.Data)
		b.answerCallback(callback.ID, "Error: invalid button data.")
		return
	}
	user, err := b.service.GetUser(ctx, id)
	if err != nil {
		b.logger.Errorf("Failed to load user %s for callback: %v", id, err)
		b.answerCallback(callback.ID, "User not found.")
		return
	}

	switch action {
	case "user":
		b.sendMessage(chatID, userCard(user), userKeyboard(user))
	case "reconcile":
		b.handleReconcile(ctx, chatID, user)
	case "deactivate":
		confirm := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Yes, deactivate", "confirm_deactivate:"+user.ID.String()),
				tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel_action"),
			),
		)
		b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID,
			fmt.Sprintf("Deactivate %s? They will not be able to buy numbers or top up.", user.Email), confirm))
	case "confirm_deactivate":
		b.handleSetActive(ctx, chatID, user.Email, false)
		b.send(tgbotapi.NewDeleteMessage(chatID, messageID))
	case "activate":
		b.handleSetActive(ctx, chatID, user.Email, true)
	default:
		b.logger.Warnf("Unknown callback action %q", action)
	}
	b.answerCallback(callback.ID, "")
}
