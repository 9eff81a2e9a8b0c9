package bridge

import (
	"errors"
	"sync"
)

// ErrNotFound возвращается, когда ответ администратора не удаётся
// сопоставить с покупателем.
var ErrNotFound = errors.New("bridge entry not found")

// Entry связывает исходящее админское уведомление с покупателем
// и, опционально, заказом (OrderID == 0 - без заказа).
type Entry struct {
	CustomerID int64
	OrderID    int64
}

// Bridge сопоставляет идентификаторы отправленных в админский чат
// сообщений с покупателями, чтобы ответ администратора "in reply to"
// ушёл нужному адресату.
type Bridge struct {
	mu      sync.RWMutex
	entries map[int]Entry
	order   []int
	maxSize int
}

// New создаёт мост. maxSize <= 0 отключает ограничение размера.
func New(maxSize int) *Bridge {
	return &Bridge{
		entries: make(map[int]Entry),
		maxSize: maxSize,
	}
}

// Register записывает связь для исходящего сообщения. Существующая
// запись никогда не перезаписывается.
func (b *Bridge) Register(messageID int, customerID, orderID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.entries[messageID]; exists {
		return
	}
	b.entries[messageID] = Entry{CustomerID: customerID, OrderID: orderID}
	b.order = append(b.order, messageID)

	// Ограничение памяти: старые записи вытесняются первыми.
	for b.maxSize > 0 && len(b.order) > b.maxSize {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.entries, oldest)
	}
}

// Resolve возвращает запись для сообщения, на которое ответил администратор.
func (b *Bridge) Resolve(messageID int) (Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.entries[messageID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// Len возвращает число живых записей.
func (b *Bridge) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
