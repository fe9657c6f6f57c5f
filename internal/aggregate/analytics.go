package aggregate

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"gota/internal/core"
)

// TrendMonths is the width of the trends window.
const TrendMonths = 6

type CategoryShare struct {
	Category core.Category   `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Pct      int             `json:"pct"`
}

type NeedWant struct {
	Category core.Category `json:"category"`
	Want     int           `json:"want"`
	Need     int           `json:"need"`
	WantPct  int           `json:"want_pct"`
}

type TrendPoint struct {
	Month        core.Month      `json:"month"`
	Label        string          `json:"label"`
	Expenses     decimal.Decimal `json:"expenses"`
	Income       decimal.Decimal `json:"income"`
	ExpenseLabel string          `json:"expense_label"`
	IncomeLabel  string          `json:"income_label"`
	IsSelected   bool            `json:"is_selected"`
}

// Distribution returns each category's share of the month's spend, highest
// first. Independent rounding means the shares may not add up to exactly 100.
func Distribution(expenses []core.Expense, c core.Currency) []CategoryShare {
	totals := categoryTotals(expenses, c)
	spend := decimal.Zero
	for _, t := range totals {
		spend = spend.Add(t.Total)
	}

	out := make([]CategoryShare, 0, len(totals))
	if spend.IsZero() {
		return out
	}
	for _, t := range totals {
		out = append(out, CategoryShare{Category: t.Category, Total: t.Total, Pct: percent(t.Total, spend)})
	}
	slices.SortFunc(out, func(a, b CategoryShare) int {
		if n := cmp.Compare(b.Pct, a.Pct); n != 0 {
			return n
		}
		if n := b.Total.Cmp(a.Total); n != 0 {
			return n
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out
}

// NeedWantByCategory reports the want share per category over classified
// expenses, highest first.
func NeedWantByCategory(expenses []core.Expense) []NeedWant {
	index := make(map[core.Category]int)
	out := []NeedWant{}
	for _, e := range expenses {
		if e.IsCardPayment() || e.IsWant == nil {
			continue
		}
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, NeedWant{Category: e.Category})
		}
		if *e.IsWant {
			out[i].Want++
		} else {
			out[i].Need++
		}
	}
	for i := range out {
		nw := &out[i]
		nw.WantPct = percent(decimal.NewFromInt(int64(nw.Want)), decimal.NewFromInt(int64(nw.Want+nw.Need)))
	}
	slices.SortFunc(out, func(a, b NeedWant) int {
		if n := cmp.Compare(b.WantPct, a.WantPct); n != 0 {
			return n
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out
}

// Trends returns TrendMonths points ending at selected. Expenses may span any
// range; only those dated inside the window count. Months without data are
// reported as zero, never omitted.
func Trends(selected core.Month, expenses []core.Expense, incomes []core.MonthlyIncome, c core.Currency) []TrendPoint {
	window := core.MonthWindow(selected, TrendMonths)
	spend := make(map[core.Month]decimal.Decimal, TrendMonths)
	income := make(map[core.Month]decimal.Decimal, TrendMonths)

	for _, e := range expenses {
		if !isSpend(e, c) {
			continue
		}
		m := e.Date.Bucket()
		spend[m] = spend[m].Add(e.Amount)
	}
	for _, inc := range incomes {
		income[inc.Month] = income[inc.Month].Add(inc.Income(c))
	}

	out := make([]TrendPoint, len(window))
	for i, m := range window {
		p := TrendPoint{
			Month:      m,
			Label:      m.ShortLabel(),
			Expenses:   spend[m],
			Income:     income[m],
			IsSelected: m == selected,
		}
		p.ExpenseLabel = core.FormatCompact(p.Expenses, c)
		p.IncomeLabel = core.FormatCompact(p.Income, c)
		out[i] = p
	}
	return out
}
