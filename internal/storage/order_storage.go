package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mrseyes/icebot/internal/models"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrTerminalStage = errors.New("order stage is terminal")
)

// OrderStorage определяет интерфейс журнала заказов.
type OrderStorage interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	List(ctx context.Context, limit int, stage *models.Stage) ([]*models.Order, error)
	UpdateStage(ctx context.Context, id int64, stage models.Stage) error
	SetDeliveryLink(ctx context.Context, id int64, link string) error
	LatestActiveByCustomer(ctx context.Context, chatID int64) (*models.Order, error)
	MarkReceivedByCustomer(ctx context.Context, chatID int64) (int64, error)
}

// PostgresOrderStorage реализует OrderStorage для PostgreSQL.
type PostgresOrderStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresOrderStorage создаёт новый экземпляр PostgresOrderStorage.
func NewPostgresOrderStorage(pool *pgxpool.Pool) *PostgresOrderStorage {
	return &PostgresOrderStorage{pool: pool}
}

const orderColumns = `id, customer_chat_id, name, phone, address,
		coords_lat, coords_lon, items, payment_proof,
		status, status_stage, delivery_link, created_at, updated_at`

// Create добавляет запись заказа и присваивает ей последовательный id.
func (s *PostgresOrderStorage) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders
			(customer_chat_id, name, phone, address, coords_lat, coords_lon,
			 items, payment_proof, status, status_stage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}

	var lat, lon *float64
	if order.Coords != nil {
		lat = &order.Coords.Latitude
		lon = &order.Coords.Longitude
	}

	order.Stage = models.StagePreparing
	order.Status = order.Stage.Label()

	err = s.pool.QueryRow(ctx, query,
		order.CustomerID,
		nullable(order.Name),
		nullable(order.Phone),
		nullable(order.Address),
		lat,
		lon,
		items,
		nullable(order.PaymentProof),
		order.Status,
		int(order.Stage),
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// GetByID возвращает заказ по идентификатору.
func (s *PostgresOrderStorage) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(s.pool.QueryRow(ctx, query, id))
}

// List возвращает последние limit заказов, новые первыми,
// опционально отфильтрованные по этапу.
func (s *PostgresOrderStorage) List(ctx context.Context, limit int, stage *models.Stage) ([]*models.Order, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []interface{}{}
	if stage != nil {
		query += ` WHERE status_stage = $1`
		args = append(args, int(*stage))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}

	return orders, nil
}

// UpdateStage переводит заказ на новый этап. Конечные этапы (-1, 2)
// менять запрещено.
func (s *PostgresOrderStorage) UpdateStage(ctx context.Context, id int64, stage models.Stage) error {
	query := `
		UPDATE orders
		SET status_stage = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND status_stage NOT IN (-1, 2)
	`

	tag, err := s.pool.Exec(ctx, query, int(stage), stage.Label(), id)
	if err != nil {
		return fmt.Errorf("failed to update order stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.notUpdatedReason(ctx, id)
	}
	return nil
}

// SetDeliveryLink сохраняет ссылку доставки и, если заказ не в конечном
// этапе, переводит его в "out_for_delivery".
func (s *PostgresOrderStorage) SetDeliveryLink(ctx context.Context, id int64, link string) error {
	query := `
		UPDATE orders
		SET delivery_link = $1, status_stage = $2, status = $3, updated_at = NOW()
		WHERE id = $4 AND status_stage NOT IN (-1, 2)
	`

	tag, err := s.pool.Exec(ctx, query,
		link, int(models.StageOutForDelivery), models.StageOutForDelivery.Label(), id)
	if err != nil {
		return fmt.Errorf("failed to set delivery link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.notUpdatedReason(ctx, id)
	}
	return nil
}

// LatestActiveByCustomer возвращает последний неотменённый заказ покупателя.
func (s *PostgresOrderStorage) LatestActiveByCustomer(ctx context.Context, chatID int64) (*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_chat_id = $1 AND status_stage <> -1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanOrder(s.pool.QueryRow(ctx, query, chatID))
}

// MarkReceivedByCustomer завершает все незавершённые заказы покупателя
// и возвращает число затронутых записей.
func (s *PostgresOrderStorage) MarkReceivedByCustomer(ctx context.Context, chatID int64) (int64, error) {
	query := `
		UPDATE orders
		SET status_stage = $1, status = $2, updated_at = NOW()
		WHERE customer_chat_id = $3 AND status_stage NOT IN (-1, 2)
	`

	tag, err := s.pool.Exec(ctx, query,
		int(models.StageCompleted), models.StageCompleted.Label(), chatID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark orders received: %w", err)
	}
	return tag.RowsAffected(), nil
}

// notUpdatedReason различает отсутствующий заказ и конечный этап.
func (s *PostgresOrderStorage) notUpdatedReason(ctx context.Context, id int64) error {
	var stage int
	err := s.pool.QueryRow(ctx, `SELECT status_stage FROM orders WHERE id = $1`, id).Scan(&stage)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	return ErrTerminalStage
}

// scanOrder сканирует одну строку заказа.
func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		order    models.Order
		name     *string
		phone    *string
		address  *string
		lat      *float64
		lon      *float64
		items    []byte
		proof    *string
		stage    int
		link     *string
	)

	err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&name,
		&phone,
		&address,
		&lat,
		&lon,
		&items,
		&proof,
		&order.Status,
		&stage,
		&link,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	order.Name = deref(name)
	order.Phone = deref(phone)
	order.Address = deref(address)
	order.PaymentProof = deref(proof)
	order.DeliveryLink = deref(link)
	order.Stage = models.Stage(stage)

	if lat != nil && lon != nil {
		order.Coords = &models.Coordinates{Latitude: *lat, Longitude: *lon}
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &order.Items); err != nil {
			return nil, fmt.Errorf("decode order items: %w", err)
		}
	}

	return &order, nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
