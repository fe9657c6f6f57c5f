package core

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MinAmount is the smallest accepted expense amount.
var MinAmount = decimal.NewFromInt(1)

// Validate checks field rules and the cross-field invariants of an expense:
// CREDIT and card-payment expenses need a card, and card payments carry no
// need/want classification.
func (e Expense) Validate() error {
	verr := &ValidationError{}

	if e.Amount.LessThan(MinAmount) {
		verr.Add("amount", "El monto debe ser mayor a 0")
	}
	if !e.Currency.Valid() {
		verr.Add("currency", "Moneda inválida")
	}
	if !e.Category.Valid() {
		verr.Add("category", "Categoría inválida")
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLength {
		verr.Add("description", "Máximo 100 caracteres")
	}
	if !e.PaymentMethod.Valid() {
		verr.Add("payment_method", "Medio de pago inválido")
	}
	if e.Date.IsZero() {
		verr.Add("date", "Fecha requerida")
	}

	hasCard := e.CardID != nil && strings.TrimSpace(*e.CardID) != ""
	if e.PaymentMethod == Credit && !hasCard {
		verr.Add("card_id", "Tarjeta requerida para pagos con crédito")
	}
	if e.Category == CardPayment {
		if !hasCard {
			verr.Add("card_id", "Tarjeta requerida para Pago de Tarjetas")
		}
		if e.IsWant != nil {
			verr.Add("is_want", "Pago de Tarjetas no se clasifica como necesidad o deseo")
		}
	}

	return verr.Err()
}

// Validate checks an income upsert: every bucket is non-negative.
func (f IncomeFields) Validate() error {
	verr := &ValidationError{}
	for field, v := range map[string]decimal.Decimal{
		"amount_ars":        f.AmountARS,
		"amount_usd":        f.AmountUSD,
		"saldo_inicial_ars": f.SaldoInicialARS,
		"saldo_inicial_usd": f.SaldoInicialUSD,
	} {
		if v.IsNegative() {
			verr.Add(field, "No puede ser negativo")
		}
	}
	return verr.Err()
}

// Validate checks a config update. Card ids must be unique within the
// collection and names must be non-empty.
func (p ConfigPatch) Validate() error {
	verr := &ValidationError{}
	if p.DefaultCurrency != nil && !p.DefaultCurrency.Valid() {
		verr.Add("default_currency", "Moneda inválida")
	}
	if p.Cards != nil {
		seen := make(map[string]struct{}, len(*p.Cards))
		for _, c := range *p.Cards {
			id := strings.TrimSpace(c.ID)
			if id == "" {
				verr.Add("cards", "Cada tarjeta necesita un id")
				continue
			}
			if _, dup := seen[id]; dup {
				verr.Add("cards", "Id de tarjeta repetido: "+id)
			}
			seen[id] = struct{}{}
			if strings.TrimSpace(c.Name) == "" {
				verr.Add("cards", "Nombre de tarjeta requerido")
			}
		}
	}
	return verr.Err()
}

// Apply returns cfg with the patch applied.
func (p ConfigPatch) Apply(cfg UserConfig) UserConfig {
	if p.DefaultCurrency != nil {
		cfg.DefaultCurrency = *p.DefaultCurrency
	}
	if p.Cards != nil {
		cards := make([]Card, len(*p.Cards))
		copy(cards, *p.Cards)
		cfg.Cards = cards
	}
	return cfg
}
