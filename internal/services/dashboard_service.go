package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"gota/internal/aggregate"
	"gota/internal/core"
	"gota/internal/log"
	"gota/internal/store"
)

// Dashboard section names, as reported in Degraded.
const (
	SectionSaldoVivo     = "saldo_vivo"
	SectionGastosTarjeta = "gastos_tarjeta"
	SectionFiltro        = "filtro_estoico"
	SectionTop3          = "top3"
	SectionUltimos5      = "ultimos5"
	SectionStreak        = "streak"
	SectionCards         = "cards"
	SectionDistribution  = "distribution"
	SectionNeedWant      = "need_want"
	SectionTrends        = "trends"
	SectionTotalSpend    = "total_spend"
)

// Dashboard is the home screen of one month. A section whose reads failed is
// null and named in Degraded; it is never filled with a partial figure.
type Dashboard struct {
	Month            core.Month                `json:"month"`
	MonthLabel       string                    `json:"month_label"`
	IsCurrentMonth   bool                      `json:"is_current_month"`
	Currency         core.Currency             `json:"currency"`
	IncomeConfigured bool                      `json:"income_configured"`
	SaldoVivo        *aggregate.SaldoVivo      `json:"saldo_vivo"`
	GastosTarjeta    *decimal.Decimal          `json:"gastos_tarjeta"`
	FiltroEstoico    *aggregate.FiltroEstoico  `json:"filtro_estoico"`
	Top3             []aggregate.CategoryTotal `json:"top3"`
	Ultimos5         []core.Expense            `json:"ultimos5"`
	Streak           *aggregate.Streak         `json:"streak"`
	Cards            []core.Card               `json:"cards"`
	Degraded         []string                  `json:"degraded"`
}

// DashboardService reads a month's data concurrently and aggregates it.
type DashboardService struct {
	expenses store.ExpenseStore
	income   store.IncomeStore
	configs  store.ConfigStore
	now      func() time.Time
	logger   *log.StructuredLogger
}

func NewDashboardService(expenses store.ExpenseStore, income store.IncomeStore, configs store.ConfigStore, logger *log.Logger) *DashboardService {
	return &DashboardService{
		expenses: expenses,
		income:   income,
		configs:  configs,
		now:      time.Now,
		logger:   log.NewStructuredLogger(logger),
	}
}

func (s *DashboardService) today() core.Date {
	return core.DateOf(s.now().In(core.Zone))
}

// Dashboard aggregates month in currency. An empty month means the current
// one and an empty currency means the user's default.
func (s *DashboardService) Dashboard(ctx context.Context, p core.Principal, month core.Month, currency core.Currency) Dashboard {
	today := s.today()
	if month == "" {
		month = today.Bucket()
	}

	var (
		monthRows, streakRows []core.Expense
		income                *core.MonthlyIncome
		cfg                   core.UserConfig
		monthErr, streakErr   error
		incomeErr, cfgErr     error
	)

	var g errgroup.Group
	g.Go(func() error {
		monthRows, _, monthErr = s.expenses.Find(ctx, p.UserID, store.ExpenseFilter{Month: month}, store.All)
		return nil
	})
	g.Go(func() error {
		income, incomeErr = s.income.Get(ctx, p.UserID, month)
		return nil
	})
	g.Go(func() error {
		cfg, cfgErr = s.configs.Get(ctx, p.UserID)
		return nil
	})
	g.Go(func() error {
		f := store.ExpenseFilter{From: today.AddDays(1 - aggregate.StreakDays), To: today}
		streakRows, _, streakErr = s.expenses.Find(ctx, p.UserID, f, store.All)
		return nil
	})
	g.Wait()

	d := Dashboard{
		Month:          month,
		MonthLabel:     month.Label(),
		IsCurrentMonth: month == today.Bucket(),
		Currency:       resolveCurrency(currency, cfg, cfgErr),
		Degraded:       []string{},
	}
	degrade := func(err error, sections ...string) bool {
		if err == nil {
			return false
		}
		for _, section := range sections {
			s.logger.LogDegraded(ctx, log.ComponentDashboard, section, p.UserID, err)
		}
		d.Degraded = append(d.Degraded, sections...)
		return true
	}

	if !degrade(monthErr, SectionGastosTarjeta, SectionFiltro, SectionTop3, SectionUltimos5) {
		gt := aggregate.GastosTarjeta(monthRows, d.Currency)
		fe := aggregate.ComputeFiltroEstoico(monthRows)
		d.GastosTarjeta = &gt
		d.FiltroEstoico = &fe
		d.Top3 = nonNil(aggregate.Top3(monthRows, d.Currency))
		d.Ultimos5 = nonNil(aggregate.Ultimos5(monthRows))
	}
	switch {
	case incomeErr != nil:
		degrade(incomeErr, SectionSaldoVivo)
	case monthErr != nil:
		d.IncomeConfigured = income != nil
		degrade(monthErr, SectionSaldoVivo)
	default:
		d.IncomeConfigured = income != nil
		d.SaldoVivo = aggregate.ComputeSaldoVivo(income, monthRows, d.Currency)
	}
	if !degrade(streakErr, SectionStreak) {
		dates := make([]core.Date, len(streakRows))
		for i, e := range streakRows {
			dates[i] = e.Date
		}
		st := aggregate.ComputeStreak(dates, today)
		d.Streak = &st
	}
	if !degrade(cfgErr, SectionCards) {
		d.Cards = cfg.ActiveCards()
	}
	return d
}

// resolveCurrency picks the requested bucket, falling back to the user's
// default and then to ARS.
func resolveCurrency(requested core.Currency, cfg core.UserConfig, cfgErr error) core.Currency {
	if requested.Valid() {
		return requested
	}
	if cfgErr == nil && cfg.DefaultCurrency.Valid() {
		return cfg.DefaultCurrency
	}
	return core.ARS
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
