package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"gota/internal/core"
	"gota/internal/log"
	"gota/internal/store"
)

// IncomeView is a month's income as shown to the user. Configured is false
// when the month has no row; the amounts are then zero.
type IncomeView struct {
	Month           core.Month      `json:"month"`
	AmountARS       decimal.Decimal `json:"amount_ars"`
	AmountUSD       decimal.Decimal `json:"amount_usd"`
	SaldoInicialARS decimal.Decimal `json:"saldo_inicial_ars"`
	SaldoInicialUSD decimal.Decimal `json:"saldo_inicial_usd"`
	Configured      bool            `json:"configured"`
}

func incomeView(m core.Month, row *core.MonthlyIncome) IncomeView {
	if row == nil {
		return IncomeView{
			Month:           m,
			AmountARS:       decimal.Zero,
			AmountUSD:       decimal.Zero,
			SaldoInicialARS: decimal.Zero,
			SaldoInicialUSD: decimal.Zero,
		}
	}
	return IncomeView{
		Month:           row.Month,
		AmountARS:       row.AmountARS,
		AmountUSD:       row.AmountUSD,
		SaldoInicialARS: row.SaldoInicialARS,
		SaldoInicialUSD: row.SaldoInicialUSD,
		Configured:      true,
	}
}

type IncomeService struct {
	income store.IncomeStore
	logger *log.StructuredLogger
}

func NewIncomeService(income store.IncomeStore, logger *log.Logger) *IncomeService {
	return &IncomeService{income: income, logger: log.NewStructuredLogger(logger)}
}

// Get accepts YYYY-MM or YYYY-MM-DD.
func (s *IncomeService) Get(ctx context.Context, p core.Principal, month string) (IncomeView, error) {
	m, err := parseMonthField(month)
	if err != nil {
		return IncomeView{}, err
	}
	row, err := s.income.Get(ctx, p.UserID, m)
	if err != nil {
		s.logger.LogError(ctx, "Failed to read income", err, log.ComponentIncome, log.OpRead,
			log.NewFields().WithUser(p.UserID).WithMonth(string(m)))
		return IncomeView{}, core.Upstream("get income", err)
	}
	return incomeView(m, row), nil
}

// Upsert writes the month's income. Every amount must be non-negative.
func (s *IncomeService) Upsert(ctx context.Context, p core.Principal, month string, f core.IncomeFields) (IncomeView, error) {
	verr := &core.ValidationError{}
	m, err := core.ParseMonth(month)
	if err != nil {
		verr.Add("month", invalidMonth)
	}
	var fields *core.ValidationError
	if errors.As(f.Validate(), &fields) {
		verr.Fields = append(verr.Fields, fields.Fields...)
	}
	if err := verr.Err(); err != nil {
		return IncomeView{}, err
	}

	row, err := s.income.Upsert(ctx, p.UserID, m, f)
	if err != nil {
		s.logger.LogError(ctx, "Failed to save income", err, log.ComponentIncome, log.OpUpsert,
			log.NewFields().WithUser(p.UserID).WithMonth(string(m)))
		return IncomeView{}, core.Upstream("upsert income", err)
	}
	return incomeView(m, &row), nil
}

const invalidMonth = "Mes inválido (usá AAAA-MM)"

// parseMonthField returns a ValidationError on the "month" field.
func parseMonthField(s string) (core.Month, error) {
	m, err := core.ParseMonth(s)
	if err != nil {
		verr := &core.ValidationError{}
		verr.Add("month", invalidMonth)
		return "", verr
	}
	return m, nil
}
