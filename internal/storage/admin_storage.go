package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mrseyes/icebot/internal/models"
)

var (
	ErrAdminNotFound = errors.New("admin not found")
	ErrLoginExists   = errors.New("login already exists")
)

// AdminStorage определяет интерфейс учётных записей администраторов.
type AdminStorage interface {
	Create(ctx context.Context, admin *models.Admin) error
	GetByLogin(ctx context.Context, login string) (*models.Admin, error)
}

// PostgresAdminStorage реализует AdminStorage для PostgreSQL.
type PostgresAdminStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresAdminStorage создаёт новый экземпляр PostgresAdminStorage.
func NewPostgresAdminStorage(pool *pgxpool.Pool) *PostgresAdminStorage {
	return &PostgresAdminStorage{pool: pool}
}

// Create создаёт учётную запись администратора.
func (s *PostgresAdminStorage) Create(ctx context.Context, admin *models.Admin) error {
	query := `
		INSERT INTO admins (id, login, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	if admin.ID == uuid.Nil {
		admin.ID = uuid.New()
	}

	err := s.pool.QueryRow(ctx, query,
		admin.ID,
		admin.Login,
		admin.PasswordHash,
	).Scan(&admin.ID, &admin.CreatedAt, &admin.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return ErrLoginExists
		}
		return fmt.Errorf("failed to create admin: %w", err)
	}

	return nil
}

// GetByLogin возвращает администратора по логину.
func (s *PostgresAdminStorage) GetByLogin(ctx context.Context, login string) (*models.Admin, error) {
	query := `
		SELECT id, login, password_hash, created_at, updated_at
		FROM admins
		WHERE login = $1
	`

	var admin models.Admin
	err := s.pool.QueryRow(ctx, query, login).Scan(
		&admin.ID,
		&admin.Login,
		&admin.PasswordHash,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}

	return &admin, nil
}
