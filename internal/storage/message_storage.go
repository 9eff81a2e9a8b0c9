package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mrseyes/icebot/internal/models"
)

// MessageStorage определяет интерфейс переписки по заказам.
type MessageStorage interface {
	Append(ctx context.Context, orderID int64, sender, message string) error
	ListByOrder(ctx context.Context, orderID int64, limit int) ([]*models.OrderMessage, error)
}

// PostgresMessageStorage реализует MessageStorage для PostgreSQL.
type PostgresMessageStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresMessageStorage создаёт новый экземпляр PostgresMessageStorage.
func NewPostgresMessageStorage(pool *pgxpool.Pool) *PostgresMessageStorage {
	return &PostgresMessageStorage{pool: pool}
}

// Append добавляет сообщение в переписку заказа.
func (s *PostgresMessageStorage) Append(ctx context.Context, orderID int64, sender, message string) error {
	query := `
		INSERT INTO order_messages (order_id, sender, message, created_at)
		VALUES ($1, $2, $3, NOW())
	`

	_, err := s.pool.Exec(ctx, query, orderID, sender, message)
	if err != nil {
		return fmt.Errorf("failed to append order message: %w", err)
	}
	return nil
}

// ListByOrder возвращает переписку заказа в хронологическом порядке.
func (s *PostgresMessageStorage) ListByOrder(ctx context.Context, orderID int64, limit int) ([]*models.OrderMessage, error) {
	if limit <= 0 {
		limit = 200
	}

	query := `
		SELECT id, order_id, sender, message, created_at
		FROM order_messages
		WHERE order_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, orderID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query order messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.OrderMessage
	for rows.Next() {
		var m models.OrderMessage
		if err := rows.Scan(&m.ID, &m.OrderID, &m.Sender, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order message: %w", err)
		}
		messages = append(messages, &m)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}

	return messages, nil
}
