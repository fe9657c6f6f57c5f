package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gota/internal/aggregate"
	"gota/internal/core"
	"gota/internal/store"
	"gota/internal/store/memory"
)

// fixedNow is 2025-03-14 10:00 in UTC-3.
var fixedNow = time.Date(2025, 3, 14, 13, 0, 0, 0, time.UTC)

func seedMonth(t *testing.T, stores store.Stores) {
	t.Helper()
	ctx := context.Background()
	visa := "visa"
	rows := []core.Expense{
		cashExpense("100000", "Supermercado", core.NewDate(2025, 3, 14)),
		cashExpense("50000", "Restaurantes", core.NewDate(2025, 3, 13)),
		{Amount: amount("30000"), Currency: core.ARS, Category: "Ropa e Indumentaria", IsWant: boolPtr(true),
			PaymentMethod: core.Credit, CardID: &visa, Date: core.NewDate(2025, 3, 12)},
		{Amount: amount("200000"), Currency: core.ARS, Category: core.CardPayment,
			PaymentMethod: core.Transfer, CardID: &visa, Date: core.NewDate(2025, 3, 10)},
		{Amount: amount("40"), Currency: core.USD, Category: "Suscripciones", IsWant: boolPtr(true),
			PaymentMethod: core.Debit, Date: core.NewDate(2025, 3, 5)},
		cashExpense("70000", "Supermercado", core.NewDate(2025, 2, 20)),
	}
	for _, e := range rows {
		e.UserID = ana.UserID
		_, err := stores.Expenses.Insert(ctx, e)
		require.NoError(t, err)
	}
	_, err := stores.Income.Upsert(ctx, ana.UserID, "2025-03", core.IncomeFields{AmountARS: amount("1000000"), AmountUSD: amount("500")})
	require.NoError(t, err)
	_, err = stores.Income.Upsert(ctx, ana.UserID, "2025-02", core.IncomeFields{AmountARS: amount("900000")})
	require.NoError(t, err)
	cards := []core.Card{{ID: "visa", Name: "Visa"}, {ID: "old", Name: "Vieja", Archived: true}}
	_, err = stores.Config.Update(ctx, ana.UserID, core.ConfigPatch{Cards: &cards})
	require.NoError(t, err)
}

func newDashboard(stores store.Stores) *DashboardService {
	svc := NewDashboardService(stores.Expenses, stores.Income, stores.Config, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestDashboardService(t *testing.T) {
	stores := memory.New().Stores()
	seedMonth(t, stores)

	d := newDashboard(stores).Dashboard(context.Background(), ana, "", "")
	assert.Equal(t, core.Month("2025-03"), d.Month)
	assert.True(t, d.IsCurrentMonth)
	assert.Equal(t, core.ARS, d.Currency)
	assert.Empty(t, d.Degraded)
	assert.True(t, d.IncomeConfigured)

	require.NotNil(t, d.SaldoVivo)
	assert.True(t, d.SaldoVivo.GastosPercibidos.Equal(amount("150000")), "credit and card payments are not perceived spend")
	assert.True(t, d.SaldoVivo.PagoTarjetas.Equal(amount("200000")))
	assert.True(t, d.SaldoVivo.Disponible.Equal(amount("650000")))

	require.NotNil(t, d.GastosTarjeta)
	assert.True(t, d.GastosTarjeta.Equal(amount("30000")))
	assert.Equal(t, aggregate.FiltroEstoico{Necesidad: 2, Deseo: 2}, *d.FiltroEstoico)

	require.Len(t, d.Top3, 3)
	assert.Equal(t, core.Category("Supermercado"), d.Top3[0].Category)
	require.Len(t, d.Ultimos5, 5)
	assert.Equal(t, "2025-03-14", d.Ultimos5[0].Date.String())

	require.NotNil(t, d.Streak)
	assert.Equal(t, 3, d.Streak.Streak)
	assert.Equal(t, []core.Card{{ID: "visa", Name: "Visa"}}, d.Cards)
}

func TestDashboardService_USDAndPastMonth(t *testing.T) {
	stores := memory.New().Stores()
	seedMonth(t, stores)
	svc := newDashboard(stores)

	d := svc.Dashboard(context.Background(), ana, "2025-03", core.USD)
	require.NotNil(t, d.SaldoVivo)
	assert.True(t, d.SaldoVivo.Disponible.Equal(amount("460")))

	d = svc.Dashboard(context.Background(), ana, "2025-01", "")
	assert.False(t, d.IsCurrentMonth)
	assert.False(t, d.IncomeConfigured)
	assert.Nil(t, d.SaldoVivo, "no income row means no Saldo Vivo")
	assert.NotNil(t, d.Top3)
	assert.Empty(t, d.Top3)
}

type failingFind struct{ store.ExpenseStore }

func (failingFind) Find(context.Context, string, store.ExpenseFilter, store.Page) ([]core.Expense, int, error) {
	return nil, 0, errors.New("database is locked")
}

type failingIncome struct{ store.IncomeStore }

func (failingIncome) Get(context.Context, string, core.Month) (*core.MonthlyIncome, error) {
	return nil, errors.New("database is locked")
}

func (failingIncome) Range(context.Context, string, core.Month, core.Month) ([]core.MonthlyIncome, error) {
	return nil, errors.New("database is locked")
}

func TestDashboardService_DegradesOnlyFailedSections(t *testing.T) {
	stores := memory.New().Stores()
	seedMonth(t, stores)

	svc := NewDashboardService(stores.Expenses, failingIncome{stores.Income}, stores.Config, nil)
	svc.now = func() time.Time { return fixedNow }
	d := svc.Dashboard(context.Background(), ana, "", "")
	assert.Equal(t, []string{SectionSaldoVivo}, d.Degraded)
	assert.Nil(t, d.SaldoVivo)
	assert.NotNil(t, d.GastosTarjeta)
	assert.NotNil(t, d.Streak)

	svc = NewDashboardService(failingFind{stores.Expenses}, stores.Income, stores.Config, nil)
	svc.now = func() time.Time { return fixedNow }
	d = svc.Dashboard(context.Background(), ana, "", "")
	assert.ElementsMatch(t, []string{
		SectionGastosTarjeta, SectionFiltro, SectionTop3, SectionUltimos5, SectionSaldoVivo, SectionStreak,
	}, d.Degraded)
	assert.Nil(t, d.SaldoVivo)
	assert.Nil(t, d.Top3)
	assert.True(t, d.IncomeConfigured, "income itself was read")
	assert.Len(t, d.Cards, 1)
}

func TestAnalyticsService(t *testing.T) {
	stores := memory.New().Stores()
	seedMonth(t, stores)
	svc := NewAnalyticsService(stores.Expenses, stores.Income, stores.Config, nil)
	svc.now = func() time.Time { return fixedNow }

	a := svc.Analytics(context.Background(), ana, "", "")
	assert.Equal(t, core.Month("2025-03"), a.Month)
	assert.Empty(t, a.Degraded)
	require.NotNil(t, a.TotalSpend)
	assert.True(t, a.TotalSpend.Equal(amount("180000")), "february rows stay out of the month total")

	require.Len(t, a.Distribution, 3)
	assert.Equal(t, core.Category("Supermercado"), a.Distribution[0].Category)
	assert.Equal(t, 56, a.Distribution[0].Pct)

	require.Len(t, a.Trends, aggregate.TrendMonths)
	last := a.Trends[len(a.Trends)-1]
	assert.True(t, last.IsSelected)
	assert.True(t, last.Expenses.Equal(amount("180000")))
	feb := a.Trends[len(a.Trends)-2]
	assert.True(t, feb.Expenses.Equal(amount("70000")))
	assert.True(t, feb.Income.Equal(amount("900000")))
	assert.True(t, a.Trends[0].Expenses.IsZero(), "empty months are reported as zero")
}

func TestAnalyticsService_Degraded(t *testing.T) {
	stores := memory.New().Stores()
	seedMonth(t, stores)

	svc := NewAnalyticsService(stores.Expenses, failingIncome{stores.Income}, stores.Config, nil)
	svc.now = func() time.Time { return fixedNow }
	a := svc.Analytics(context.Background(), ana, "", "")
	assert.Equal(t, []string{SectionTrends}, a.Degraded)
	assert.Nil(t, a.Trends)
	assert.NotNil(t, a.Distribution)

	svc = NewAnalyticsService(failingFind{stores.Expenses}, stores.Income, stores.Config, nil)
	a = svc.Analytics(context.Background(), ana, "2025-03", "")
	assert.Len(t, a.Degraded, 4)
	assert.Nil(t, a.TotalSpend)
}
