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

// Analytics is the breakdown screen of one month.
type Analytics struct {
	Month        core.Month                `json:"month"`
	MonthLabel   string                    `json:"month_label"`
	Currency     core.Currency             `json:"currency"`
	TotalSpend   *decimal.Decimal          `json:"total_spend"`
	Distribution []aggregate.CategoryShare `json:"distribution"`
	NeedWant     []aggregate.NeedWant      `json:"need_want"`
	Trends       []aggregate.TrendPoint    `json:"trends"`
	Degraded     []string                  `json:"degraded"`
}

type AnalyticsService struct {
	expenses store.ExpenseStore
	income   store.IncomeStore
	configs  store.ConfigStore
	now      func() time.Time
	logger   *log.StructuredLogger
}

func NewAnalyticsService(expenses store.ExpenseStore, income store.IncomeStore, configs store.ConfigStore, logger *log.Logger) *AnalyticsService {
	return &AnalyticsService{
		expenses: expenses,
		income:   income,
		configs:  configs,
		now:      time.Now,
		logger:   log.NewStructuredLogger(logger),
	}
}

// Analytics reads the trends window ending at month in one pass and derives
// the month's figures from it.
func (s *AnalyticsService) Analytics(ctx context.Context, p core.Principal, month core.Month, currency core.Currency) Analytics {
	if month == "" {
		month = core.MonthOf(s.now().In(core.Zone))
	}
	window := core.MonthWindow(month, aggregate.TrendMonths)
	first := window[0]

	var (
		windowRows []core.Expense
		incomes    []core.MonthlyIncome
		cfg        core.UserConfig
		expErr     error
		incErr     error
		cfgErr     error
	)
	var g errgroup.Group
	g.Go(func() error {
		f := store.ExpenseFilter{From: first.FirstDay(), To: month.LastDay()}
		windowRows, _, expErr = s.expenses.Find(ctx, p.UserID, f, store.All)
		return nil
	})
	g.Go(func() error {
		incomes, incErr = s.income.Range(ctx, p.UserID, first, month)
		return nil
	})
	g.Go(func() error {
		cfg, cfgErr = s.configs.Get(ctx, p.UserID)
		return nil
	})
	g.Wait()

	a := Analytics{
		Month:      month,
		MonthLabel: month.Label(),
		Currency:   resolveCurrency(currency, cfg, cfgErr),
		Degraded:   []string{},
	}
	degrade := func(err error, sections ...string) {
		for _, section := range sections {
			s.logger.LogDegraded(ctx, log.ComponentAnalytics, section, p.UserID, err)
		}
		a.Degraded = append(a.Degraded, sections...)
	}

	if expErr != nil {
		degrade(expErr, SectionTotalSpend, SectionDistribution, SectionNeedWant, SectionTrends)
		return a
	}

	monthRows := make([]core.Expense, 0, len(windowRows))
	for _, e := range windowRows {
		if month.Contains(e.Date) {
			monthRows = append(monthRows, e)
		}
	}
	total := aggregate.TotalSpend(monthRows, a.Currency)
	a.TotalSpend = &total
	a.Distribution = nonNil(aggregate.Distribution(monthRows, a.Currency))
	a.NeedWant = nonNil(aggregate.NeedWantByCategory(monthRows))

	if incErr != nil {
		degrade(incErr, SectionTrends)
		return a
	}
	a.Trends = aggregate.Trends(month, windowRows, incomes, a.Currency)
	return a
}
