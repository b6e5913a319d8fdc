package core

import (
	"github.com/shopspring/decimal"
)

// Totals are derived from a transaction list and never stored. A new value
// replaces the old one on every load.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
	Count   int
}

// Aggregate folds records into totals in a single pass. Income is the sum of
// non-negative amounts, expense the sum of absolute negative amounts, and
// balance their difference. No rounding happens here.
func Aggregate(records []TransactionRecord) Totals {
	income := decimal.Zero
	expense := decimal.Zero
	for _, r := range records {
		amount := r.DecimalAmount()
		if r.IsExpense() {
			expense = expense.Add(amount.Abs())
		} else {
			income = income.Add(amount)
		}
	}
	return Totals{
		Income:  income,
		Expense: expense,
		Balance: income.Sub(expense),
		Count:   len(records),
	}
}

// AggregateJSON decodes a raw list payload and aggregates it.
func AggregateJSON(raw []byte) ([]TransactionRecord, Totals, error) {
	records, err := DecodeRecords(raw)
	if err != nil {
		return nil, Totals{}, err
	}
	return records, Aggregate(records), nil
}

// ExpenseRatio is expense as a percentage of income for progress bars,
// clamped to [0, 100]. Zero income yields 0 rather than a non-finite value.
func ExpenseRatio(t Totals) float64 {
	if !t.Income.IsPositive() {
		return 0
	}
	ratio := t.Expense.Div(t.Income).Mul(decimal.NewFromInt(100))
	if ratio.GreaterThan(decimal.NewFromInt(100)) {
		return 100
	}
	if ratio.IsNegative() {
		return 0
	}
	return ratio.Round(2).InexactFloat64()
}

// IsZero reports whether no money moved at all.
func (t Totals) IsZero() bool {
	return t.Income.IsZero() && t.Expense.IsZero()
}
