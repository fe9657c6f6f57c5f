// Package aggregate computes the dashboard and analytics figures of a month.
//
// Every function here is pure: callers read the month's expenses and income
// from the stores and pass them in. Card-bill payments ("Pago de Tarjetas")
// never count as spending; they are tracked on their own in SaldoVivo.
package aggregate

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"gota/internal/core"
)

const (
	TopCategories = 3
	RecentCount   = 5
)

var hundred = decimal.NewFromInt(100)

// SaldoVivo is the live balance of one currency bucket for a month.
type SaldoVivo struct {
	Ingresos         decimal.Decimal `json:"ingresos"`
	SaldoInicial     decimal.Decimal `json:"saldo_inicial"`
	GastosPercibidos decimal.Decimal `json:"gastos_percibidos"`
	PagoTarjetas     decimal.Decimal `json:"pago_tarjetas"`
	Disponible       decimal.Decimal `json:"disponible"`
	// Display is the formatted Disponible; a negative balance carries a
	// leading minus sign (U+2212) in front of the absolute amount.
	Display string `json:"display"`
}

// FiltroEstoico is the need/want tally of the month's classified expenses.
type FiltroEstoico struct {
	Necesidad int `json:"necesidad"`
	Deseo     int `json:"deseo"`
}

// CategoryTotal is one row of the Top 3.
type CategoryTotal struct {
	Category core.Category   `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// ComputeSaldoVivo returns nil when the month has no income row: "income not
// configured" is a distinct state, not a zero balance.
func ComputeSaldoVivo(income *core.MonthlyIncome, expenses []core.Expense, c core.Currency) *SaldoVivo {
	if income == nil {
		return nil
	}

	sv := &SaldoVivo{
		Ingresos:         income.Income(c),
		SaldoInicial:     income.SaldoInicial(c),
		GastosPercibidos: decimal.Zero,
		PagoTarjetas:     decimal.Zero,
	}
	for _, e := range expenses {
		if e.Currency != c {
			continue
		}
		switch {
		case e.IsCardPayment():
			sv.PagoTarjetas = sv.PagoTarjetas.Add(e.Amount)
		case e.PaymentMethod == core.Credit:
			// Deferred: lands in a later month's card payment.
		default:
			sv.GastosPercibidos = sv.GastosPercibidos.Add(e.Amount)
		}
	}
	sv.Disponible = sv.Ingresos.Sub(sv.GastosPercibidos).Sub(sv.PagoTarjetas)
	sv.Display = FormatSigned(sv.Disponible, c)
	return sv
}

// FormatSigned formats amount with an explicit minus marker when negative.
func FormatSigned(amount decimal.Decimal, c core.Currency) string {
	if amount.IsNegative() {
		return "−" + core.FormatAmount(amount.Abs(), c)
	}
	return core.FormatAmount(amount, c)
}

// GastosTarjeta sums CREDIT expenses of the bucket. The figure is informational
// and is never subtracted from SaldoVivo.
func GastosTarjeta(expenses []core.Expense, c core.Currency) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		if e.Currency == c && e.PaymentMethod == core.Credit && !e.IsCardPayment() {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// ComputeFiltroEstoico counts needs and wants among classified spend expenses
// of every currency.
func ComputeFiltroEstoico(expenses []core.Expense) FiltroEstoico {
	var f FiltroEstoico
	for _, e := range expenses {
		if e.IsCardPayment() || e.IsWant == nil {
			continue
		}
		if *e.IsWant {
			f.Deseo++
		} else {
			f.Necesidad++
		}
	}
	return f
}

// Top3 returns the highest-spend categories of the bucket, ties broken by name.
func Top3(expenses []core.Expense, c core.Currency) []CategoryTotal {
	totals := categoryTotals(expenses, c)
	slices.SortFunc(totals, func(a, b CategoryTotal) int {
		if n := b.Total.Cmp(a.Total); n != 0 {
			return n
		}
		return cmp.Compare(a.Category, b.Category)
	})
	if len(totals) > TopCategories {
		totals = totals[:TopCategories]
	}
	return totals
}

// Ultimos5 returns the most recent expenses by (date desc, created_at desc).
// Card payments and both currencies are included.
func Ultimos5(expenses []core.Expense) []core.Expense {
	out := slices.Clone(expenses)
	core.SortRecent(out)
	if len(out) > RecentCount {
		out = out[:RecentCount]
	}
	return out
}

// TotalSpend sums every non card-payment expense of the bucket.
func TotalSpend(expenses []core.Expense, c core.Currency) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		if isSpend(e, c) {
			total = total.Add(e.Amount)
		}
	}
	return total
}

func isSpend(e core.Expense, c core.Currency) bool {
	return e.Currency == c && !e.IsCardPayment()
}

// categoryTotals groups spend by category in first-seen order.
func categoryTotals(expenses []core.Expense, c core.Currency) []CategoryTotal {
	index := make(map[core.Category]int)
	var out []CategoryTotal
	for _, e := range expenses {
		if !isSpend(e, c) {
			continue
		}
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategoryTotal{Category: e.Category, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(e.Amount)
		out[i].Count++
	}
	if out == nil {
		return []CategoryTotal{}
	}
	return out
}

// percent returns round(part/whole*100), half away from zero.
func percent(part, whole decimal.Decimal) int {
	if whole.IsZero() {
		return 0
	}
	return int(part.Mul(hundred).DivRound(whole, 8).Round(0).IntPart())
}
