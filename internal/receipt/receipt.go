// Package receipt строит текстовый электронный чек заказа.
package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/mrseyes/icebot/internal/models"
	"github.com/mrseyes/icebot/internal/utils"
	"github.com/shopspring/decimal"
)

// manilaLocation - часовой пояс магазина для меток времени чека.
var manilaLocation = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// Total суммирует распарсенные ценовые метки позиций.
func Total(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(utils.ParsePeso(it.Amount))
	}
	return total
}

// Build формирует текстовый чек для покупателя.
func Build(order *models.Order) string {
	var b strings.Builder

	b.WriteString("🧾 Mrs Eyes e-Receipt\n")
	b.WriteString("Thank you for your purchase!\n\n")
	fmt.Fprintf(&b, "🆔 Order #: %d\n", order.ID)
	fmt.Fprintf(&b, "⏰ %s\n\n", order.CreatedAt.In(manilaLocation).Format("Jan 2, 2006 3:04 PM"))

	b.WriteString("SALE TRANSACTION\n")
	for i, it := range order.Items {
		price := utils.ParsePeso(it.Amount)
		fmt.Fprintf(&b, "%d. %s — %s (₱%s)\n", i+1, it.Category, it.Amount, price.StringFixed(0))
	}
	fmt.Fprintf(&b, "\nTOTAL: ₱%s\n", Total(order.Items).StringFixed(0))

	if order.Name != "" {
		fmt.Fprintf(&b, "\n👤 %s\n", order.Name)
	}
	if order.Phone != "" {
		fmt.Fprintf(&b, "📱 %s\n", order.Phone)
	}
	if order.Address != "" {
		fmt.Fprintf(&b, "📍 %s\n", order.Address)
	}

	return strings.TrimRight(b.String(), "\n")
}
