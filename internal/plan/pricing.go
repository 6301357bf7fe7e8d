package plan

import (
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/shopspring/decimal"
)

// Calculate считает общую сумму и еженедельный платеж.
// Товары без цены не учитываются, weekly округляется до центов.
func Calculate(quantities models.Quantities, prices map[int64]decimal.Decimal, weeks int) (total, weekly decimal.Decimal) {
	total = decimal.Zero
	for id, n := range quantities {
		if n <= 0 {
			continue
		}
		price, ok := prices[id]
		if !ok {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(n))))
	}
	if weeks < 1 {
		return total, total
	}
	weekly = total.DivRound(decimal.NewFromInt(int64(weeks)), 2)
	return total, weekly
}
