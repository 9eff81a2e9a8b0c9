package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePeso извлекает числовое значение из ценовой метки вида "₱1,000".
// Нечитаемые метки дают ноль - метка остаётся непарсимым текстом для
// покупателя, сумма нужна только для итога чека.
func ParsePeso(label string) decimal.Decimal {
	var b strings.Builder
	dotSeen := false
	for _, r := range label {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !dotSeen:
			dotSeen = true
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if cleaned == "" || cleaned == "." {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}
