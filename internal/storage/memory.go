package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mrseyes/icebot/internal/models"
)

// MemoryOrderStorage - реализация OrderStorage в памяти. Используется
// как хранилище без PostgreSQL и как дублёр в тестах. Все записи
// копируются на входе и выходе, чтобы журнал не делил память с
// вызывающим кодом.
type MemoryOrderStorage struct {
	mu     sync.Mutex
	nextID int64
	orders []*models.Order
	byID   map[int64]*models.Order
	// Now подменяется в тестах для детерминированного времени.
	Now func() time.Time
}

// NewMemoryOrderStorage создаёт пустой журнал в памяти.
func NewMemoryOrderStorage() *MemoryOrderStorage {
	return &MemoryOrderStorage{
		nextID: 1,
		byID:   make(map[int64]*models.Order),
		Now:    time.Now,
	}
}

// Create добавляет запись заказа и присваивает ей последовательный id.
func (s *MemoryOrderStorage) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	order.ID = s.nextID
	s.nextID++
	order.Stage = models.StagePreparing
	order.Status = order.Stage.Label()
	order.CreatedAt = now
	order.UpdatedAt = now

	stored := cloneOrder(order)
	s.orders = append(s.orders, stored)
	s.byID[stored.ID] = stored
	return nil
}

// GetByID возвращает копию заказа по идентификатору.
func (s *MemoryOrderStorage) GetByID(_ context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.byID[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// List возвращает последние limit заказов, новые первыми.
func (s *MemoryOrderStorage) List(_ context.Context, limit int, stage *models.Stage) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	var result []*models.Order
	for _, order := range s.orders {
		if stage != nil && order.Stage != *stage {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// UpdateStage переводит заказ на новый этап с защитой конечных этапов.
func (s *MemoryOrderStorage) UpdateStage(_ context.Context, id int64, stage models.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.byID[id]
	if !ok {
		return ErrOrderNotFound
	}
	if order.Stage.Terminal() {
		return ErrTerminalStage
	}

	order.Stage = stage
	order.Status = stage.Label()
	order.UpdatedAt = s.Now()
	return nil
}

// SetDeliveryLink сохраняет ссылку доставки и переводит заказ в доставку.
func (s *MemoryOrderStorage) SetDeliveryLink(_ context.Context, id int64, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.byID[id]
	if !ok {
		return ErrOrderNotFound
	}
	if order.Stage.Terminal() {
		return ErrTerminalStage
	}

	order.DeliveryLink = link
	order.Stage = models.StageOutForDelivery
	order.Status = order.Stage.Label()
	order.UpdatedAt = s.Now()
	return nil
}

// LatestActiveByCustomer возвращает последний неотменённый заказ покупателя.
func (s *MemoryOrderStorage) LatestActiveByCustomer(_ context.Context, chatID int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.orders) - 1; i >= 0; i-- {
		order := s.orders[i]
		if order.CustomerID == chatID && order.Stage != models.StageCanceled {
			return cloneOrder(order), nil
		}
	}
	return nil, ErrOrderNotFound
}

// MarkReceivedByCustomer завершает незавершённые заказы покупателя.
func (s *MemoryOrderStorage) MarkReceivedByCustomer(_ context.Context, chatID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for _, order := range s.orders {
		if order.CustomerID != chatID || order.Stage.Terminal() {
			continue
		}
		order.Stage = models.StageCompleted
		order.Status = order.Stage.Label()
		order.UpdatedAt = s.Now()
		affected++
	}
	return affected, nil
}

// cloneOrder делает глубокую копию записи заказа.
func cloneOrder(order *models.Order) *models.Order {
	clone := *order
	if order.Coords != nil {
		coords := *order.Coords
		clone.Coords = &coords
	}
	if order.Items != nil {
		clone.Items = make([]models.CartItem, len(order.Items))
		copy(clone.Items, order.Items)
	}
	return &clone
}

// MemoryCustomerStorage - реестр покупателей в памяти.
type MemoryCustomerStorage struct {
	mu        sync.Mutex
	customers map[int64]struct{}
}

// NewMemoryCustomerStorage создаёт пустой реестр.
func NewMemoryCustomerStorage() *MemoryCustomerStorage {
	return &MemoryCustomerStorage{customers: make(map[int64]struct{})}
}

// Upsert регистрирует покупателя.
func (s *MemoryCustomerStorage) Upsert(_ context.Context, chatID int64, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[chatID] = struct{}{}
	return nil
}

// ListChatIDs возвращает идентификаторы всех известных покупателей.
func (s *MemoryCustomerStorage) ListChatIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.customers))
	for id := range s.customers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// MemoryMessageStorage - переписка по заказам в памяти.
type MemoryMessageStorage struct {
	mu       sync.Mutex
	nextID   int64
	messages map[int64][]*models.OrderMessage
}

// NewMemoryMessageStorage создаёт пустую переписку.
func NewMemoryMessageStorage() *MemoryMessageStorage {
	return &MemoryMessageStorage{
		nextID:   1,
		messages: make(map[int64][]*models.OrderMessage),
	}
}

// Append добавляет сообщение в переписку заказа.
func (s *MemoryMessageStorage) Append(_ context.Context, orderID int64, sender, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[orderID] = append(s.messages[orderID], &models.OrderMessage{
		ID:        s.nextID,
		OrderID:   orderID,
		Sender:    sender,
		Message:   message,
		CreatedAt: time.Now(),
	})
	s.nextID++
	return nil
}

// ListByOrder возвращает переписку заказа в хронологическом порядке.
func (s *MemoryMessageStorage) ListByOrder(_ context.Context, orderID int64, limit int) ([]*models.OrderMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 200
	}

	msgs := s.messages[orderID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}

	result := make([]*models.OrderMessage, len(msgs))
	for i, m := range msgs {
		clone := *m
		result[i] = &clone
	}
	return result, nil
}

// MemoryAdminStorage - учётные записи администраторов в памяти.
type MemoryAdminStorage struct {
	mu     sync.Mutex
	admins map[string]*models.Admin
}

// NewMemoryAdminStorage создаёт пустое хранилище администраторов.
func NewMemoryAdminStorage() *MemoryAdminStorage {
	return &MemoryAdminStorage{admins: make(map[string]*models.Admin)}
}

// Create создаёт учётную запись администратора.
func (s *MemoryAdminStorage) Create(_ context.Context, admin *models.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.admins[admin.Login]; exists {
		return ErrLoginExists
	}

	now := time.Now()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	clone := *admin
	s.admins[admin.Login] = &clone
	return nil
}

// GetByLogin возвращает администратора по логину.
func (s *MemoryAdminStorage) GetByLogin(_ context.Context, login string) (*models.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	admin, ok := s.admins[login]
	if !ok {
		return nil, ErrAdminNotFound
	}
	clone := *admin
	return &clone, nil
}
