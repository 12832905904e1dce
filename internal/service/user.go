package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Fi44er/otp_store/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type SignupInput struct {
	Email    string
	Password string
	Name     string
	Mobile   string
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	email := normalizeEmail(in.Email)

	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           models.NewUserID(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(in.Name),
		Mobile:       strings.TrimSpace(in.Mobile),
		Active:       true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	s.logger.Infof("New user %s registered (%s)", user.ID, user.Email)
	return user, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrUserInactive
	}
	return user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// SetUserActive toggles the soft-deactivation flag. Inactive users keep
// their balance but cannot buy numbers or start top-ups.
func (s *Service) SetUserActive(ctx context.Context, email string, active bool) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetUserActive(ctx, user.ID, active); err != nil {
		return nil, err
	}

	user.Active = active
	s.logger.Infof("User %s active=%t", user.Email, active)
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
