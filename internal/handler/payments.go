package handler

import (
	"errors"
	"net/http"

	"github.com/Fi44er/otp_store/internal/pay0"
	"github.com/Fi44er/otp_store/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createOrderRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

type createOrderResponse struct {
	Success    bool            `json:"success"`
	OrderID    string          `json:"order_id"`
	Amount     decimal.Decimal `json:"amount"`
	PaymentURL string          `json:"payment_url"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	topUp, err := h.store.InitiateTopUp(r.Context(), userID, decimal.NewFromFloat(req.Amount))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createOrderResponse{
		Success:    true,
		OrderID:    topUp.OrderID,
		Amount:     topUp.Amount,
		PaymentURL: topUp.PaymentURL,
	})
}

func (h *Handler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())
	orderID := chi.URLParam(r, "order_id")

	out, err := h.store.CheckPayment(r.Context(), userID, orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse(out))
}

// Pay0Webhook is the push trigger. Malformed deliveries get a 400 so the
// gateway does not retry them; storage failures get a 500 so it does.
func (h *Handler) Pay0Webhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "invalid form data"})
		return
	}

	out, err := h.store.HandleNotification(r.Context(), pay0.ParseNotification(r.PostForm))
	switch {
	case errors.Is(err, service.ErrMalformedNotification):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": err.Error()})
	case err != nil:
		h.logger.Errorf("Pay0 webhook failed, gateway will redeliver: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "message": "temporary failure"})
	default:
		writeJSON(w, http.StatusOK, outcomeResponse(out))
	}
}

func (h *Handler) Pay0WebhookReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Webhook endpoint is active",
		"status":  "ready",
		"method":  "POST required for actual webhooks",
	})
}

func outcomeResponse(out *service.Outcome) map[string]interface{} {
	resp := map[string]interface{}{
		"success":  true,
		"order_id": out.OrderID,
		"status":   out.Status,
		"amount":   out.Amount,
	}
	if out.NewBalance != nil {
		resp["new_balance"] = out.NewBalance
	}
	if out.TransactionID != nil {
		resp["transaction_id"] = out.TransactionID
	}
	return resp
}
