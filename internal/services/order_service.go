package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrseyes/icebot/internal/models"
)

// ErrInvalidStage возвращается при попытке перевести заказ на
// несуществующий этап.
var ErrInvalidStage = errors.New("invalid order stage")

// OrderService оборачивает журнал заказов бизнес-правилами:
// снимок сессии копируется по значению, этапы валидируются.
type OrderService struct {
	orders OrderStorage
}

// NewOrderService создаёт новый сервис заказов.
func NewOrderService(orders OrderStorage) *OrderService {
	return &OrderService{orders: orders}
}

// CreateFromSession оформляет заказ по снимку сессии. Корзина и профиль
// доставки копируются: последующие изменения сессии не затрагивают запись.
func (s *OrderService) CreateFromSession(ctx context.Context, sess *models.Session) (*models.Order, error) {
	order := &models.Order{
		CustomerID:   sess.ChatID,
		Name:         sess.Name,
		Phone:        sess.Phone,
		Address:      sess.Address,
		PaymentProof: sess.PaymentProof,
	}

	if sess.Coords != nil {
		coords := *sess.Coords
		order.Coords = &coords
	}
	if len(sess.Cart) > 0 {
		order.Items = make([]models.CartItem, len(sess.Cart))
		copy(order.Items, sess.Cart)
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

// GetByID возвращает заказ по идентификатору.
func (s *OrderService) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// UpdateStage переводит заказ на новый этап.
func (s *OrderService) UpdateStage(ctx context.Context, id int64, stage models.Stage) error {
	if !stage.Valid() {
		return ErrInvalidStage
	}
	return s.orders.UpdateStage(ctx, id, stage)
}

// SetDeliveryLink сохраняет ссылку доставки, переводя заказ в доставку.
func (s *OrderService) SetDeliveryLink(ctx context.Context, id int64, link string) error {
	return s.orders.SetDeliveryLink(ctx, id, link)
}

// ListRecent возвращает последние заказы, новые первыми.
func (s *OrderService) ListRecent(ctx context.Context, limit int, stage *models.Stage) ([]*models.Order, error) {
	return s.orders.List(ctx, limit, stage)
}

// LatestActive возвращает последний неотменённый заказ покупателя.
func (s *OrderService) LatestActive(ctx context.Context, chatID int64) (*models.Order, error) {
	return s.orders.LatestActiveByCustomer(ctx, chatID)
}

// MarkReceived завершает незавершённые заказы покупателя.
func (s *OrderService) MarkReceived(ctx context.Context, chatID int64) (int64, error) {
	return s.orders.MarkReceivedByCustomer(ctx, chatID)
}

// MapToResponse преобразует domain модели заказов в DTO для HTTP-ответа.
func MapToResponse(orders []*models.Order) []*models.OrderResponse {
	response := make([]*models.OrderResponse, 0, len(orders))
	for _, order := range orders {
		items := order.Items
		if items == nil {
			items = []models.CartItem{}
		}
		response = append(response, &models.OrderResponse{
			ID:           order.ID,
			CustomerID:   order.CustomerID,
			Name:         order.Name,
			Phone:        order.Phone,
			Address:      order.Address,
			Coords:       order.Coords,
			Items:        items,
			PaymentProof: order.PaymentProof,
			Status:       order.Status,
			StatusStage:  int(order.Stage),
			DeliveryLink: order.DeliveryLink,
			CreatedAt:    order.CreatedAt.Format(time.RFC3339),
			UpdatedAt:    order.UpdatedAt.Format(time.RFC3339),
		})
	}
	return response
}
