package utils

import (
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places every derived money field is rounded to.
const MoneyPlaces = 2

var (
	decimalZero = decimal.Zero
	decimalOne  = decimal.NewFromInt(1)
)

// LineAmounts are the derived money fields of one cart or transaction line.
type LineAmounts struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
}

func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// CalculateLineAmounts rounds the line total once from the exact product
// unitPrice * quantity * (1 - discount) * (1 + tax). Subtotal and discount are rounded
// on their own and tax takes the remainder, so total == subtotal - discount + tax holds
// exactly for lines and their sums.
func CalculateLineAmounts(unitPrice decimal.Decimal, quantity int, discountRate decimal.Decimal, taxRate decimal.Decimal) LineAmounts {
	gross := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	total := RoundMoney(gross.Mul(decimalOne.Sub(discountRate)).Mul(decimalOne.Add(taxRate)))
	subtotal := RoundMoney(gross)
	discountAmount := CalculateDiscountAmount(subtotal, discountRate)
	return LineAmounts{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		TaxAmount:      total.Sub(subtotal.Sub(discountAmount)),
		Total:          total,
	}
}

// CalculateDiscountAmount applies a fractional discount (0.15 = 15%).
func CalculateDiscountAmount(subtotal decimal.Decimal, discountRate decimal.Decimal) decimal.Decimal {
	if discountRate.LessThanOrEqual(decimalZero) {
		return RoundMoney(decimalZero)
	}
	return RoundMoney(subtotal.Mul(discountRate))
}

// IsFraction reports whether d lies in [0,1].
func IsFraction(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(decimalOne)
}
