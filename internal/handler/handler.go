package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Fi44er/otp_store/internal/models"
	"github.com/Fi44er/otp_store/internal/pay0"
	"github.com/Fi44er/otp_store/internal/service"
	"github.com/Fi44er/otp_store/internal/smsman"
	"github.com/Fi44er/otp_store/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Store is the part of service.Service the HTTP API calls.
type Store interface {
	Signup(ctx context.Context, in service.SignupInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	GetUser(ctx context.Context, id models.UserID) (*models.User, error)
	Transactions(ctx context.Context, userID models.UserID, limit, offset int) ([]models.Transaction, error)

	InitiateTopUp(ctx context.Context, userID models.UserID, amount decimal.Decimal) (*service.TopUp, error)
	CheckPayment(ctx context.Context, userID models.UserID, orderID string) (*service.Outcome, error)
	HandleNotification(ctx context.Context, n pay0.Notification) (*service.Outcome, error)

	Countries(ctx context.Context) ([]smsman.Country, error)
	Catalog(ctx context.Context, countryID int) ([]service.Quote, error)
	Purchase(ctx context.Context, userID models.UserID, serviceID, countryID int) (*models.Purchase, error)
	PollSMS(ctx context.Context, userID models.UserID, purchaseID uuid.UUID) (*service.SMSResult, error)
	Cancel(ctx context.Context, userID models.UserID, purchaseID uuid.UUID) (*service.CancelResult, error)
	ListPurchases(ctx context.Context, userID models.UserID, limit, offset int) ([]models.Purchase, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	store  Store
	db     Pinger
	tokens *TokenManager
	logger *utils.Logger

	authLimiter *RateLimiter
}

func NewHandler(store Store, db Pinger, tokens *TokenManager, logger *utils.Logger) *Handler {
	return &Handler{
		store:       store,
		db:          db,
		tokens:      tokens,
		logger:      logger,
		authLimiter: NewRateLimiter(1, 5, 10*time.Minute),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(h.authLimiter.Middleware).Post("/signup", h.Signup)
			r.With(h.authLimiter.Middleware).Post("/login", h.Login)
			r.With(h.Authenticate).Get("/me", h.Me)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Use(h.Authenticate)
			r.Get("/balance", h.Balance)
			r.Get("/transactions", h.Transactions)
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(h.Authenticate).Post("/create-order", h.CreateOrder)
			r.With(h.Authenticate).Post("/check-status/{order_id}", h.CheckStatus)
			// Not rate limited: the gateway redelivers until it gets a 2xx.
			r.Post("/pay0/webhook", h.Pay0Webhook)
			r.Get("/pay0/webhook", h.Pay0WebhookReady)
		})

		r.Route("/numbers", func(r chi.Router) {
			r.Get("/countries", h.Countries)
			r.Get("/services", h.Services)

			r.Group(func(r chi.Router) {
				r.Use(h.Authenticate)
				r.Post("/buy", h.Buy)
				r.Get("/history", h.History)
				r.Get("/{id}/sms", h.PollSMS)
				r.Post("/{id}/cancel", h.Cancel)
			})
		})
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warnf("Health check: database unavailable: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "up"})
}
