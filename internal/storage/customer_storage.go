package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CustomerStorage определяет интерфейс реестра известных покупателей.
type CustomerStorage interface {
	Upsert(ctx context.Context, chatID int64, username, displayName string) error
	ListChatIDs(ctx context.Context) ([]int64, error)
}

// PostgresCustomerStorage реализует CustomerStorage для PostgreSQL.
type PostgresCustomerStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresCustomerStorage создаёт новый экземпляр PostgresCustomerStorage.
func NewPostgresCustomerStorage(pool *pgxpool.Pool) *PostgresCustomerStorage {
	return &PostgresCustomerStorage{pool: pool}
}

// Upsert регистрирует покупателя или обновляет его данные.
func (s *PostgresCustomerStorage) Upsert(ctx context.Context, chatID int64, username, displayName string) error {
	query := `
		INSERT INTO customers (chat_id, username, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (chat_id) DO UPDATE
		SET username = EXCLUDED.username,
		    display_name = EXCLUDED.display_name,
		    updated_at = NOW()
	`

	_, err := s.pool.Exec(ctx, query, chatID, nullable(username), nullable(displayName))
	if err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}
	return nil
}

// ListChatIDs возвращает идентификаторы всех известных покупателей.
func (s *PostgresCustomerStorage) ListChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT chat_id FROM customers ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		ids = append(ids, id)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}

	return ids, nil
}
