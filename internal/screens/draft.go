package screens

import (
	"strings"

	"fintrack/internal/api"
	"fintrack/internal/core"
)

// Fallback categories when the form leaves the label blank.
const (
	FallbackIncomeCategory  = "Income"
	FallbackExpenseCategory = "Other"
)

// Draft is the add-transaction form as typed.
type Draft struct {
	Description string
	Amount      string
	Category    string
	IsIncome    bool
}

// Build validates the draft and produces the request body. The toggle alone
// decides the sign: income is +|amount|, expense is -|amount|.
func (d Draft) Build() (api.NewTransaction, error) {
	desc := strings.TrimSpace(d.Description)
	raw := strings.TrimLeft(strings.TrimSpace(d.Amount), "+-")
	if desc == "" || raw == "" {
		return api.NewTransaction{}, ErrFieldsRequired
	}
	amount, err := core.ParseAmount(raw)
	if err != nil {
		return api.NewTransaction{}, err
	}
	if !d.IsIncome {
		amount = amount.Neg()
	}

	category := strings.TrimSpace(d.Category)
	if category == "" {
		category = FallbackExpenseCategory
		if d.IsIncome {
			category = FallbackIncomeCategory
		}
	}
	return api.NewTransaction{
		Description: desc,
		Amount:      amount.InexactFloat64(),
		Category:    category,
	}, nil
}

// KindLabel is "Income" or "Expense".
func (d Draft) KindLabel() string {
	if d.IsIncome {
		return "Income"
	}
	return "Expense"
}

// SuccessMessage is shown after the store accepted the draft.
func (d Draft) SuccessMessage() string {
	return d.KindLabel() + " added successfully!"
}
