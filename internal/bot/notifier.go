package bot

import (
	"fmt"

	"github.com/Fi44er/otp_store/internal/models"
	"github.com/Fi44er/otp_store/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

// The methods below only enqueue; Start sends.
var _ service.Notifier = (*Bot)(nil)

func (b *Bot) TopUpConfirmed(user *models.User, orderID string, amount, newBalance decimal.Decimal) {
	b.logger.Infof("NOTIFY: top-up %s for user %s", orderID, user.ID)
	b.notifyAdmin(user, fmt.Sprintf(
		"✅ *New top-up!*\n\n"+
			"👤 *User:* `%s`\n"+
			"💰 *Amount:* `₹%s`\n"+
			"🧾 *Order:* `%s`\n"+
			"💼 *Balance:* `₹%s`",
		user.Email, amount.StringFixed(2), orderID, newBalance.StringFixed(2),
	))
}

func (b *Bot) NumberPurchased(user *models.User, purchase *models.Purchase) {
	b.logger.Infof("NOTIFY: purchase %s for user %s", purchase.ID, user.ID)
	b.notifyAdmin(user, fmt.Sprintf(
		"📱 *Number purchased*\n\n"+
			"👤 *User:* `%s`\n"+
			"☎️ *Number:* `%s`\n"+
			"🛒 *Service:* %s (country %d)\n"+
			"💰 *Charged:* `₹%s` (cost `₹%s`, profit `₹%s`)",
		user.Email, purchase.Phone, escapeMarkdown(serviceLabel(purchase)), purchase.CountryID,
		purchase.ChargedPrice.StringFixed(2), purchase.OriginalPrice.StringFixed(2), purchase.Profit.StringFixed(2),
	))
}

func (b *Bot) PurchaseRefunded(user *models.User, purchase *models.Purchase, newBalance decimal.Decimal) {
	b.logger.Infof("NOTIFY: refund for purchase %s", purchase.ID)
	b.notifyAdmin(user, fmt.Sprintf(
		"↩️ *Purchase cancelled*\n\n"+
			"👤 *User:* `%s`\n"+
			"☎️ *Number:* `%s`\n"+
			"💰 *Refunded:* `₹%s`\n"+
			"💼 *Balance:* `₹%s`",
		user.Email, purchase.Phone, purchase.ChargedPrice.StringFixed(2), newBalance.StringFixed(2),
	))
}

func (b *Bot) notifyAdmin(user *models.User, text string) {
	if b.adminChatID == 0 {
		return
	}
	userBtn := tgbotapi.NewInlineKeyboardButtonData("👤 User", "user:"+user.ID.String())
	keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(userBtn))
	b.enqueue(newMessage(b.adminChatID, text, keyboard))
}

func serviceLabel(p *models.Purchase) string {
	if p.ServiceName != "" {
		return p.ServiceName
	}
	return fmt.Sprintf("#%d", p.ServiceID)
}
