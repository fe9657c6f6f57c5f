package core

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ARS Currency = "ARS"
	USD Currency = "USD"
)

const (
	Cash     PaymentMethod = "CASH"
	Debit    PaymentMethod = "DEBIT"
	Transfer PaymentMethod = "TRANSFER"
	Credit   PaymentMethod = "CREDIT"
)

// MaxDescriptionLength is counted in runes.
const MaxDescriptionLength = 100

type (
	// Currency is a non-convertible money bucket.
	Currency string

	PaymentMethod string

	Expense struct {
		ID            string          `json:"id"`
		UserID        string          `json:"user_id"`
		Amount        decimal.Decimal `json:"amount"`
		Currency      Currency        `json:"currency"`
		Category      Category        `json:"category"`
		Description   string          `json:"description"`
		IsWant        *bool           `json:"is_want"`
		PaymentMethod PaymentMethod   `json:"payment_method"`
		CardID        *string         `json:"card_id"`
		Date          Date            `json:"date"`
		CreatedAt     time.Time       `json:"created_at"`
		UpdatedAt     time.Time       `json:"updated_at"`
	}

	// MonthlyIncome is the per-user income configuration of one calendar month.
	MonthlyIncome struct {
		ID              string          `json:"id"`
		UserID          string          `json:"user_id"`
		Month           Month           `json:"month"`
		AmountARS       decimal.Decimal `json:"amount_ars"`
		AmountUSD       decimal.Decimal `json:"amount_usd"`
		SaldoInicialARS decimal.Decimal `json:"saldo_inicial_ars"`
		SaldoInicialUSD decimal.Decimal `json:"saldo_inicial_usd"`
		CreatedAt       time.Time       `json:"created_at"`
		UpdatedAt       time.Time       `json:"updated_at"`
	}

	// IncomeFields are the writable fields of a MonthlyIncome upsert.
	IncomeFields struct {
		AmountARS       decimal.Decimal `json:"amount_ars"`
		AmountUSD       decimal.Decimal `json:"amount_usd"`
		SaldoInicialARS decimal.Decimal `json:"saldo_inicial_ars"`
		SaldoInicialUSD decimal.Decimal `json:"saldo_inicial_usd"`
	}

	Card struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Archived bool   `json:"archived"`
	}

	// UserConfig is the per-user settings aggregate. Cards are owned by it and
	// keep insertion order.
	UserConfig struct {
		UserID          string    `json:"user_id"`
		DefaultCurrency Currency  `json:"default_currency"`
		Cards           []Card    `json:"cards"`
		UpdatedAt       time.Time `json:"updated_at"`
	}

	// ConfigPatch is a partial UserConfig update; nil fields are left untouched.
	ConfigPatch struct {
		DefaultCurrency *Currency `json:"default_currency,omitempty"`
		Cards           *[]Card   `json:"cards,omitempty"`
	}

	// Principal is the authenticated owner of every scoped read and write.
	Principal struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
	}

	// DuplicateMatch is an existing expense that plausibly repeats a candidate.
	DuplicateMatch struct {
		ID          string    `json:"id"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"created_at"`
	}
)

// Valid reports whether c is one of the two supported buckets.
func (c Currency) Valid() bool {
	return c == ARS || c == USD
}

func (p PaymentMethod) Valid() bool {
	switch p {
	case Cash, Debit, Transfer, Credit:
		return true
	default:
		return false
	}
}

// Label returns the Spanish label shown to users and written to exports.
func (p PaymentMethod) Label() string {
	switch p {
	case Cash:
		return "Efectivo"
	case Debit:
		return "Débito"
	case Transfer:
		return "Transferencia"
	case Credit:
		return "Crédito"
	default:
		return string(p)
	}
}

// Income returns the income amount of the given bucket.
func (m MonthlyIncome) Income(c Currency) decimal.Decimal {
	if c == USD {
		return m.AmountUSD
	}
	return m.AmountARS
}

// SaldoInicial returns the carried-in balance of the given bucket.
func (m MonthlyIncome) SaldoInicial(c Currency) decimal.Decimal {
	if c == USD {
		return m.SaldoInicialUSD
	}
	return m.SaldoInicialARS
}

// DefaultUserConfig is what a user without a stored config row sees.
func DefaultUserConfig(userID string) UserConfig {
	return UserConfig{UserID: userID, DefaultCurrency: ARS, Cards: []Card{}}
}

// ActiveCards returns the cards that are not archived, in insertion order.
func (c UserConfig) ActiveCards() []Card {
	out := make([]Card, 0, len(c.Cards))
	for _, card := range c.Cards {
		if !card.Archived {
			out = append(out, card)
		}
	}
	return out
}

// CardName resolves a card id to its name, archived cards included.
func (c UserConfig) CardName(id string) (string, bool) {
	for _, card := range c.Cards {
		if card.ID == id {
			return card.Name, true
		}
	}
	return "", false
}

// IsCardPayment reports whether the expense moves already-spent money to a card bill.
func (e Expense) IsCardPayment() bool {
	return e.Category == CardPayment
}

// Key returns the duplicate-detection key of the expense.
func (e Expense) Key() DuplicateKey {
	return DuplicateKey{Amount: e.Amount.String(), Category: e.Category, Date: e.Date.String()}
}

// DuplicateKey identifies a candidate write for duplicate checking.
type DuplicateKey struct {
	Amount   string
	Category Category
	Date     string
}

// SortRecent orders expenses newest first: by date, then by insertion time.
func SortRecent(expenses []Expense) {
	slices.SortStableFunc(expenses, func(a, b Expense) int {
		if n := b.Date.Compare(a.Date.Time); n != 0 {
			return n
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
