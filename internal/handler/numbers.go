package handler

import (
	"net/http"
	"strconv"

	"github.com/Fi44er/otp_store/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type buyRequest struct {
	ServiceID int `json:"service_id" validate:"required,gt=0"`
	CountryID int `json:"country_id" validate:"gte=0"`
}

func (h *Handler) Countries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.store.Countries(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"countries": countries})
}

func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	countryID, err := strconv.Atoi(r.URL.Query().Get("country_id"))
	if err != nil || countryID < 0 {
		writeMessage(w, http.StatusBadRequest, "country_id is required")
		return
	}

	quotes, err := h.store.Catalog(r.Context(), countryID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"country_id": countryID, "services": quotes})
}

func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	var req buyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	purchase, err := h.store.Purchase(r.Context(), userID, req.ServiceID, req.CountryID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, purchase)
}

func (h *Handler) PollSMS(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())
	purchaseID, ok := purchaseIDParam(w, r)
	if !ok {
		return
	}

	res, err := h.store.PollSMS(r.Context(), userID, purchaseID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())
	purchaseID, ok := purchaseIDParam(w, r)
	if !ok {
		return
	}

	res, err := h.store.Cancel(r.Context(), userID, purchaseID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())
	limit, offset := pageParams(r)

	purchases, err := h.store.ListPurchases(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if purchases == nil {
		purchases = []models.Purchase{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"purchases": purchases})
}

func purchaseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid purchase id")
		return uuid.Nil, false
	}
	return id, true
}

// pageParams reads limit and offset; the service clamps them.
func pageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return limit, offset
}
