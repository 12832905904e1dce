package handler

import (
	"net/http"

	"github.com/Fi44er/otp_store/internal/models"
	"github.com/Fi44er/otp_store/internal/service"
	"github.com/shopspring/decimal"
)

type signupRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"max=100"`
	Mobile   string `json:"mobile" validate:"omitempty,numeric,min=10,max=15"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID        models.UserID   `json:"id"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Mobile    string          `json:"mobile,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	Held      decimal.Decimal `json:"held"`
	Available decimal.Decimal `json:"available"`
	Active    bool            `json:"is_active"`
}

type authResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Mobile:    u.Mobile,
		Balance:   u.Balance,
		Held:      u.Held,
		Available: u.Available(),
		Active:    u.Active,
	}
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.store.Signup(r.Context(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Mobile:   req.Mobile,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.issueToken(w, r, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.store.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.issueToken(w, r, http.StatusOK, user)
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request, status int, user *models.User) {
	token, err := h.tokens.Issue(user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.SetCookie(w, h.tokens.cookie(token))
	writeJSON(w, status, authResponse{AccessToken: token, TokenType: "bearer", User: toUserResponse(user)})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "user": toUserResponse(user)})
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{
		"balance":   user.Balance,
		"held":      user.Held,
		"available": user.Available(),
	})
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())
	limit, offset := pageParams(r)

	txns, err := h.store.Transactions(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": txns})
}

// currentUser loads the authenticated user. A token for a user that no
// longer exists is treated as unauthenticated.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authorization required")
		return nil, false
	}
	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		if errorStatus(err) == http.StatusNotFound {
			writeMessage(w, http.StatusUnauthorized, "authorization required")
			return nil, false
		}
		h.writeError(w, r, err)
		return nil, false
	}
	return user, true
}
