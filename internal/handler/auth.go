package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Fi44er/otp_store/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer = "otp-store"
	tokenCookie = "jwt"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrInvalidToken   = errors.New("invalid token")
	ErrEmptyJWTSecret = errors.New("jwt secret cannot be empty")
)

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 access tokens. The subject is the user id.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, ErrEmptyJWTSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (m *TokenManager) Issue(user *models.User) (string, error) {
	now := m.now()
	claims := &Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *TokenManager) Parse(tokenString string) (models.UserID, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return m.secret, nil
		},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.UserID{}, ErrTokenExpired
		}
		return models.UserID{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return models.UserID{}, ErrInvalidToken
	}
	id, err := models.ParseUserID(claims.Subject)
	if err != nil {
		return models.UserID{}, ErrInvalidToken
	}
	return id, nil
}

func (m *TokenManager) cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  m.now().Add(m.ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

type ctxKey struct{}

// Authenticate accepts a bearer token or the jwt cookie.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			if c, err := r.Cookie(tokenCookie); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			writeMessage(w, http.StatusUnauthorized, "authorization required")
			return
		}

		userID, err := h.tokens.Parse(token)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				writeMessage(w, http.StatusUnauthorized, "token expired")
			} else {
				writeMessage(w, http.StatusUnauthorized, "invalid or malformed token")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(strings.TrimSpace(parts[0]), "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func userIDFrom(ctx context.Context) (models.UserID, bool) {
	id, ok := ctx.Value(ctxKey{}).(models.UserID)
	return id, ok && !id.IsZero()
}
