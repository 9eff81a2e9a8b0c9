package models

import (
	"time"

	"github.com/google/uuid"
)

// Admin представляет учётную запись администратора мини-приложения.
type Admin struct {
	ID           uuid.UUID `db:"id"`
	Login        string    `db:"login"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// LoginRequest - запрос на аутентификацию администратора.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}
