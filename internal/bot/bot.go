package bot

import (
	"context"
	"sync"

	"github.com/Fi44er/otp_store/internal/models"
	"github.com/Fi44er/otp_store/internal/service"
	"github.com/Fi44er/otp_store/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type AdminService interface {
	GetUser(ctx context.Context, id models.UserID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetUserActive(ctx context.Context, email string, active bool) (*models.User, error)
	Reconcile(ctx context.Context, userID models.UserID) (*service.ReconcileReport, error)
}

const outboxSize = 100

type Bot struct {
	API         API
	service     AdminService
	logger      *utils.Logger
	adminChatID int64
	outbox      chan tgbotapi.Chattable
	userStates  map[int64]string
	stateMutex  *sync.Mutex
}

func NewBot(api API, svc AdminService, logger *utils.Logger, adminChatID int64) *Bot {
	return &Bot{
		API:         api,
		service:     svc,
		logger:      logger,
		adminChatID: adminChatID,
		outbox:      make(chan tgbotapi.Chattable, outboxSize),
		userStates:  make(map[int64]string),
		stateMutex:  &sync.Mutex{},
	}
}

// Start обрабатывает апдейты и очередь уведомлений до отмены ctx.
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("Starting bot...")

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	updates := b.API.GetUpdatesChan(cfg)
	defer b.API.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Bot stopped")
			return
		case msg := <-b.outbox:
			b.send(msg)
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.logger.Debugf("Received update: %d", update.UpdateID)
			if update.CallbackQuery != nil {
				b.handleCallbackQuery(ctx, update.CallbackQuery)
				continue
			}
			if update.Message != nil {
				b.HandleUpdate(ctx, update)
			}
		}
	}
}

func userKeyboard(user *models.User) tgbotapi.InlineKeyboardMarkup {
	toggle := tgbotapi.NewInlineKeyboardButtonData("🔒 Deactivate", "deactivate:"+user.ID.String())
	if !user.Active {
		toggle = tgbotapi.NewInlineKeyboardButtonData("🔓 Activate", "activate:"+user.ID.String())
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧮 Reconcile", "reconcile:"+user.ID.String()),
			toggle,
		),
	)
}
