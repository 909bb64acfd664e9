package tracking

import "github.com/shopspring/decimal"

// AmountPaid sums payment amounts.
func AmountPaid(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Balance is the amount still owed on an order.
func Balance(total, paid decimal.Decimal) decimal.Decimal {
	return total.Sub(paid)
}

// Settled reports whether nothing remains to be paid.
func Settled(total, paid decimal.Decimal) bool {
	return !Balance(total, paid).IsPositive()
}
