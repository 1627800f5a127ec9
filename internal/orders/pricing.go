package orders

import (
	"github.com/shopspring/decimal"

	"github.com/dalgayunus/iTicket/pkg/db/models"
)

var oneHundred = decimal.NewFromInt(100)

// Total sums quantity times the snapshotted unit price across all lines.
// Live ticket prices never enter this calculation.
func Total(lines []models.OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// DiscountFor computes the promo discount, rounded half-up to cents.
func DiscountFor(total, percent decimal.Decimal) decimal.Decimal {
	return total.Mul(percent).Div(oneHundred).Round(2)
}

// FinalFor subtracts the discount and rounds again, independently of the
// discount rounding. Collapsing the two roundings into one changes results
// at the half-cent boundary.
func FinalFor(total, discount decimal.Decimal) decimal.Decimal {
	return total.Sub(discount).Round(2)
}
