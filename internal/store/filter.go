package store

import (
	"strings"

	"gota/internal/core"
)

// Match reports whether e passes every set field of f.
func (f ExpenseFilter) Match(e core.Expense) bool {
	if f.Month != "" && e.Date.Bucket() != f.Month {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.PaymentMethod != "" && e.PaymentMethod != f.PaymentMethod {
		return false
	}
	if f.CardID != "" && (e.CardID == nil || *e.CardID != f.CardID) {
		return false
	}
	if f.Currency != "" && e.Currency != f.Currency {
		return false
	}
	if !f.From.IsZero() && e.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To.Time) {
		return false
	}
	return true
}

// NormalizeEmail is the canonical form under which users are stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
