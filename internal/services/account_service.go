package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mrseyes/icebot/internal/auth"
	"github.com/mrseyes/icebot/internal/models"
	"github.com/mrseyes/icebot/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmptyCredentials   = errors.New("login and password are required")
)

// AccountService аутентифицирует администраторов мини-приложения.
type AccountService struct {
	admins          AdminStorage
	jwtSecret       string
	tokenExpiration time.Duration
}

// NewAccountService создаёт новый экземпляр AccountService.
func NewAccountService(admins AdminStorage, jwtSecret string, tokenExpiration time.Duration) *AccountService {
	return &AccountService{
		admins:          admins,
		jwtSecret:       jwtSecret,
		tokenExpiration: tokenExpiration,
	}
}

// Login аутентифицирует администратора и выдаёт JWT токен.
func (s *AccountService) Login(ctx context.Context, login, password string) (*models.Admin, string, error) {
	if login == "" || password == "" {
		return nil, "", ErrEmptyCredentials
	}

	admin, err := s.admins.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrAdminNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to get admin: %w", err)
	}

	if !auth.CheckPassword(password, admin.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(admin, s.jwtSecret, s.tokenExpiration)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return admin, token, nil
}

// Bootstrap создаёт стартовую учётную запись администратора, если её
// ещё нет. Пустые значения пропускаются молча.
func (s *AccountService) Bootstrap(ctx context.Context, login, password string) error {
	if login == "" || password == "" {
		return nil
	}

	if _, err := s.admins.GetByLogin(ctx, login); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrAdminNotFound) {
		return fmt.Errorf("failed to check admin: %w", err)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &models.Admin{
		ID:           uuid.New(),
		Login:        login,
		PasswordHash: passwordHash,
	}

	if err := s.admins.Create(ctx, admin); err != nil {
		if errors.Is(err, storage.ErrLoginExists) {
			return nil
		}
		return fmt.Errorf("failed to create admin: %w", err)
	}

	return nil
}
