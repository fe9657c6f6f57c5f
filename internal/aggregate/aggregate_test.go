package aggregate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gota/internal/core"
)

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

type exp struct {
	amount   int64
	currency core.Currency
	category core.Category
	method   core.PaymentMethod
	want     *bool
	date     core.Date
	created  time.Time
}

func build(items ...exp) []core.Expense {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]core.Expense, len(items))
	for i, it := range items {
		e := core.Expense{
			ID:            string(rune('a' + i)),
			UserID:        "u1",
			Amount:        dec(it.amount),
			Currency:      it.currency,
			Category:      it.category,
			PaymentMethod: it.method,
			IsWant:        it.want,
			Date:          it.date,
			CreatedAt:     it.created,
		}
		if e.Currency == "" {
			e.Currency = core.ARS
		}
		if e.PaymentMethod == "" {
			e.PaymentMethod = core.Cash
		}
		if e.Date.IsZero() {
			e.Date = core.NewDate(2025, 3, 10)
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		}
		if e.PaymentMethod == core.Credit || e.Category == core.CardPayment {
			e.CardID = strPtr("visa")
		}
		out[i] = e
	}
	return out
}

func TestComputeSaldoVivo(t *testing.T) {
	income := &core.MonthlyIncome{Month: "2025-03", AmountARS: dec(100000)}

	t.Run("card payment tracked separately", func(t *testing.T) {
		expenses := build(
			exp{amount: 500, category: "Supermercado", want: boolPtr(false)},
			exp{amount: 2000, category: core.CardPayment},
		)
		sv := ComputeSaldoVivo(income, expenses, core.ARS)
		require.NotNil(t, sv)
		assert.True(t, sv.GastosPercibidos.Equal(dec(500)))
		assert.True(t, sv.PagoTarjetas.Equal(dec(2000)))
		assert.True(t, sv.Disponible.Equal(dec(97500)), "disponible = %s", sv.Disponible)
		assert.Equal(t, "$ 97.500", sv.Display)
	})

	t.Run("credit spend is deferred", func(t *testing.T) {
		expenses := build(exp{amount: 1000, category: "Restaurantes", method: core.Credit, want: boolPtr(true)})
		sv := ComputeSaldoVivo(income, expenses, core.ARS)
		require.NotNil(t, sv)
		assert.True(t, sv.GastosPercibidos.IsZero())
		assert.True(t, GastosTarjeta(expenses, core.ARS).Equal(dec(1000)))
	})

	t.Run("other currency ignored", func(t *testing.T) {
		expenses := build(exp{amount: 50, currency: core.USD, category: "Otros", want: boolPtr(true)})
		sv := ComputeSaldoVivo(income, expenses, core.ARS)
		assert.True(t, sv.Disponible.Equal(dec(100000)))
	})

	t.Run("overspend has explicit minus", func(t *testing.T) {
		small := &core.MonthlyIncome{AmountARS: dec(1000)}
		expenses := build(exp{amount: 3500, category: "Supermercado", want: boolPtr(false)})
		sv := ComputeSaldoVivo(small, expenses, core.ARS)
		assert.True(t, sv.Disponible.Equal(dec(-2500)))
		assert.Equal(t, "−$ 2.500", sv.Display)
	})

	t.Run("no income row", func(t *testing.T) {
		assert.Nil(t, ComputeSaldoVivo(nil, build(exp{amount: 1, category: "Otros"}), core.ARS))
	})
}

func TestComputeFiltroEstoico(t *testing.T) {
	expenses := build(
		exp{amount: 10, category: "Supermercado", want: boolPtr(false)},
		exp{amount: 10, category: "Restaurantes", want: boolPtr(true)},
		exp{amount: 10, category: "Delivery", want: boolPtr(true)},
		exp{amount: 10, category: "Otros"},
		exp{amount: 10, category: core.CardPayment},
		exp{amount: 10, currency: core.USD, category: "Regalos", want: boolPtr(true)},
	)
	assert.Equal(t, FiltroEstoico{Necesidad: 1, Deseo: 3}, ComputeFiltroEstoico(expenses))
}

func TestTop3(t *testing.T) {
	expenses := build(
		exp{amount: 100, category: "Supermercado"},
		exp{amount: 300, category: "Restaurantes"},
		exp{amount: 250, category: "Supermercado"},
		exp{amount: 50, category: "Farmacia"},
		exp{amount: 200, category: "Delivery"},
		exp{amount: 9000, category: core.CardPayment},
		exp{amount: 9000, currency: core.USD, category: "Regalos"},
	)

	got := Top3(expenses, core.ARS)
	require.Len(t, got, 3)
	assert.Equal(t, core.Category("Supermercado"), got[0].Category)
	assert.True(t, got[0].Total.Equal(dec(350)))
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, core.Category("Restaurantes"), got[1].Category)
	assert.Equal(t, core.Category("Delivery"), got[2].Category)

	assert.Empty(t, Top3(nil, core.ARS))
}

func TestUltimos5(t *testing.T) {
	noon := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	expenses := build(
		exp{amount: 1, category: "Otros", date: core.NewDate(2025, 3, 9), created: noon.Add(5 * time.Hour)},
		exp{amount: 2, category: "Otros", date: core.NewDate(2025, 3, 10), created: noon},
		exp{amount: 3, category: "Otros", date: core.NewDate(2025, 3, 10), created: noon.Add(time.Hour)},
		exp{amount: 4, category: "Otros", date: core.NewDate(2025, 3, 1), created: noon},
		exp{amount: 5, category: "Otros", date: core.NewDate(2025, 3, 2), created: noon},
		exp{amount: 6, category: "Otros", date: core.NewDate(2025, 3, 3), created: noon},
	)

	got := Ultimos5(expenses)
	require.Len(t, got, 5)
	var amounts []int64
	for _, e := range got {
		amounts = append(amounts, e.Amount.IntPart())
	}
	assert.Equal(t, []int64{3, 2, 1, 6, 5}, amounts)
	assert.Equal(t, int64(1), expenses[0].Amount.IntPart(), "input must not be reordered")
}

func TestDistribution(t *testing.T) {
	t.Run("empty month", func(t *testing.T) {
		got := Distribution(nil, core.ARS)
		assert.NotNil(t, got)
		assert.Empty(t, got)
		assert.Empty(t, Distribution(build(exp{amount: 5, category: core.CardPayment}), core.ARS))
	})

	t.Run("shares and totals", func(t *testing.T) {
		expenses := build(
			exp{amount: 1, category: "Supermercado"},
			exp{amount: 1, category: "Farmacia"},
			exp{amount: 1, category: "Delivery"},
			exp{amount: 4000, category: core.CardPayment},
		)
		got := Distribution(expenses, core.ARS)
		require.Len(t, got, 3)

		sum := decimal.Zero
		pct := 0
		for _, s := range got {
			sum = sum.Add(s.Total)
			pct += s.Pct
			assert.Equal(t, 33, s.Pct)
		}
		assert.True(t, sum.Equal(TotalSpend(expenses, core.ARS)))
		assert.InDelta(t, 100, pct, float64(len(got)))
	})

	t.Run("sorted by pct", func(t *testing.T) {
		expenses := build(
			exp{amount: 25, category: "Farmacia"},
			exp{amount: 75, category: "Supermercado"},
		)
		got := Distribution(expenses, core.ARS)
		assert.Equal(t, core.Category("Supermercado"), got[0].Category)
		assert.Equal(t, 75, got[0].Pct)
		assert.Equal(t, 25, got[1].Pct)
	})

	t.Run("half rounds up", func(t *testing.T) {
		expenses := build(
			exp{amount: 1, category: "Farmacia"},
			exp{amount: 7, category: "Supermercado"},
		)
		got := Distribution(expenses, core.ARS)
		assert.Equal(t, 88, got[0].Pct) // 87.5
		assert.Equal(t, 13, got[1].Pct) // 12.5
	})
}

func TestNeedWantByCategory(t *testing.T) {
	expenses := build(
		exp{amount: 1, category: "Restaurantes", want: boolPtr(true)},
		exp{amount: 1, category: "Restaurantes", want: boolPtr(true)},
		exp{amount: 1, category: "Restaurantes", want: boolPtr(false)},
		exp{amount: 1, category: "Supermercado", want: boolPtr(false)},
		exp{amount: 1, category: "Supermercado"},
		exp{amount: 1, category: core.CardPayment},
	)

	got := NeedWantByCategory(expenses)
	require.Len(t, got, 2)
	assert.Equal(t, NeedWant{Category: "Restaurantes", Want: 2, Need: 1, WantPct: 67}, got[0])
	assert.Equal(t, NeedWant{Category: "Supermercado", Want: 0, Need: 1, WantPct: 0}, got[1])
}

func TestTrends(t *testing.T) {
	expenses := build(
		exp{amount: 100, category: "Otros", date: core.NewDate(2025, 3, 5)},
		exp{amount: 50, category: "Otros", date: core.NewDate(2025, 1, 20)},
		exp{amount: 999, category: core.CardPayment, date: core.NewDate(2025, 3, 5)},
		exp{amount: 7, category: "Otros", date: core.NewDate(2024, 9, 30)},
		exp{amount: 8, currency: core.USD, category: "Otros", date: core.NewDate(2025, 3, 5)},
	)
	incomes := []core.MonthlyIncome{
		{Month: "2025-03", AmountARS: dec(5000), AmountUSD: dec(10)},
	}

	got := Trends("2025-03", expenses, incomes, core.ARS)
	require.Len(t, got, TrendMonths)
	assert.Equal(t, core.Month("2024-10"), got[0].Month)
	assert.Equal(t, core.Month("2025-03"), got[5].Month)

	for i, p := range got {
		assert.Equal(t, i == 5, p.IsSelected, "month %s", p.Month)
	}
	assert.True(t, got[5].Expenses.Equal(dec(100)))
	assert.True(t, got[5].Income.Equal(dec(5000)))
	assert.True(t, got[3].Expenses.Equal(dec(50)))
	assert.True(t, got[0].Expenses.IsZero())
	assert.Equal(t, "Mar", got[5].Label)
	assert.Equal(t, "", got[1].ExpenseLabel)
}

func TestComputeStreak(t *testing.T) {
	today := core.NewDate(2025, 3, 10)

	tests := []struct {
		name       string
		dates      []core.Date
		wantStreak int
		wantActive int
		wantText   string
	}{
		{
			name:       "three consecutive days",
			dates:      []core.Date{today, today.AddDays(-1), today.AddDays(-2), today.AddDays(-4)},
			wantStreak: 3,
			wantActive: 4,
			wantText:   "3 días seguidos · 4 de 10",
		},
		{
			name:       "today inactive breaks at zero",
			dates:      []core.Date{today.AddDays(-1)},
			wantStreak: 0,
			wantActive: 1,
			wantText:   "1 de 10",
		},
		{
			name:       "short streak",
			dates:      []core.Date{today, today.AddDays(-5), today.AddDays(-5)},
			wantStreak: 1,
			wantActive: 2,
			wantText:   "2 de 10 · racha 1",
		},
		{
			name:       "outside window ignored",
			dates:      []core.Date{today.AddDays(-10), today.AddDays(1)},
			wantStreak: 0,
			wantActive: 0,
			wantText:   "Empezá tu racha hoy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStreak(tt.dates, today)
			assert.Equal(t, tt.wantStreak, got.Streak)
			assert.Equal(t, tt.wantActive, got.Active)
			assert.Equal(t, tt.wantText, got.Text)
			require.Len(t, got.Days, StreakDays)
			assert.True(t, got.Days[StreakDays-1].IsToday)
			assert.Equal(t, today.AddDays(-9).String(), got.Days[0].Date.String())
		})
	}
}
