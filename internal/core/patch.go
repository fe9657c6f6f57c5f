package core

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Nullable is a JSON field that distinguishes "absent" from "explicit null".
// Set is true when the key was present; Value is nil for an explicit null.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// Some returns a present, non-null Nullable.
func Some[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

// Null returns a present, explicit-null Nullable.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// ExpensePatch is a partial expense update. Nil pointers and unset Nullables
// leave the stored value untouched.
type ExpensePatch struct {
	Amount        *decimal.Decimal `json:"amount"`
	Currency      *Currency        `json:"currency"`
	Category      *Category        `json:"category"`
	Description   *string          `json:"description"`
	IsWant        Nullable[bool]   `json:"is_want"`
	PaymentMethod *PaymentMethod   `json:"payment_method"`
	CardID        Nullable[string] `json:"card_id"`
	Date          *Date            `json:"date"`
}

// Empty reports whether the patch changes nothing.
func (p ExpensePatch) Empty() bool {
	return p.Amount == nil && p.Currency == nil && p.Category == nil &&
		p.Description == nil && !p.IsWant.Set && p.PaymentMethod == nil &&
		!p.CardID.Set && p.Date == nil
}

// Apply returns e with the patch applied. The result must be re-validated.
//
// Moving an expense into the card-payment category clears is_want unless the
// patch sets it explicitly, so the stored row can never keep a stale
// classification.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Currency != nil {
		e.Currency = *p.Currency
	}
	if p.Category != nil {
		e.Category = *p.Category
		if e.Category == CardPayment && !p.IsWant.Set {
			e.IsWant = nil
		}
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.IsWant.Set {
		e.IsWant = p.IsWant.Value
	}
	if p.PaymentMethod != nil {
		e.PaymentMethod = *p.PaymentMethod
	}
	if p.CardID.Set {
		e.CardID = p.CardID.Value
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	return e
}
