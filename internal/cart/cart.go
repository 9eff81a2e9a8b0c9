package cart

import (
	"errors"
	"fmt"

	"github.com/mrseyes/icebot/internal/models"
)

var (
	// ErrInvalidSelection возвращается при добавлении без выбранной категории и суммы.
	ErrInvalidSelection = errors.New("category and amount must be selected first")
	// ErrEmptyCart возвращается при оформлении пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
)

// Add добавляет одну позицию в корзину сессии.
func Add(s *models.Session, category, amount string) error {
	if category == "" || amount == "" {
		return ErrInvalidSelection
	}
	s.Cart = append(s.Cart, models.CartItem{Category: category, Amount: amount})
	return nil
}

// Lines возвращает позиции корзины в порядке добавления,
// отформатированные с единичной нумерацией.
func Lines(s *models.Session) []string {
	lines := make([]string, 0, len(s.Cart))
	for i, it := range s.Cart {
		lines = append(lines, fmt.Sprintf("%d. %s — %s", i+1, it.Category, it.Amount))
	}
	return lines
}

// Checkout подготавливает корзину к оформлению. Если корзина пуста, но
// категория и сумма уже выбраны, висящая пара добавляется автоматически -
// совместимость со сценарием одной позиции без явного "добавить".
func Checkout(s *models.Session) error {
	if len(s.Cart) == 0 && s.Category != "" && s.SelectedAmount != "" {
		s.Cart = append(s.Cart, models.CartItem{Category: s.Category, Amount: s.SelectedAmount})
	}
	if len(s.Cart) == 0 {
		return ErrEmptyCart
	}
	return nil
}
