package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gota/internal/amqp"
	"gota/internal/core"
	"gota/internal/store"
	"gota/internal/store/memory"
)

var (
	ana = core.Principal{UserID: "u-ana", Email: "ana@example.com"}
	bob = core.Principal{UserID: "u-bob", Email: "bob@example.com"}
)

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.UserEventMessage
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, msg *amqp.UserEventMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, msg)
	return r.err
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func boolPtr(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }
func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func cashExpense(amt string, category core.Category, date core.Date) core.Expense {
	return core.Expense{
		Amount:        amount(amt),
		Currency:      core.ARS,
		Category:      category,
		Description:   string(category),
		IsWant:        boolPtr(false),
		PaymentMethod: core.Cash,
		Date:          date,
	}
}

func newExpenseService(t *testing.T, limit int) (*ExpenseService, store.Stores, *recordingPublisher) {
	t.Helper()
	stores := memory.New().Stores()
	pub := &recordingPublisher{}
	return NewExpenseService(stores.Expenses, pub, ExpenseOptions{DailyLimit: limit}, nil), stores, pub
}

func TestExpenseService_Create(t *testing.T) {
	svc, stores, pub := newExpenseService(t, 0)
	ctx := context.Background()

	e := cashExpense("1500", "Supermercado", core.NewDate(2025, 3, 14))
	e.UserID = "someone-else"
	saved, err := svc.Create(ctx, ana, e, "")
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, ana.UserID, saved.UserID, "owner comes from the principal")

	got, err := stores.Expenses.Get(ctx, ana.UserID, saved.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(amount("1500")))
	assert.Equal(t, []string{amqp.EventExpenseChanged}, pub.types())
}

func TestExpenseService_CreateValidation(t *testing.T) {
	svc, _, pub := newExpenseService(t, 0)

	tests := []struct {
		name  string
		edit  func(*core.Expense)
		field string
	}{
		{"amount below one", func(e *core.Expense) { e.Amount = amount("0.5") }, "amount"},
		{"credit without card", func(e *core.Expense) { e.PaymentMethod = core.Credit }, "card_id"},
		{"card payment without card", func(e *core.Expense) { e.Category = core.CardPayment; e.IsWant = nil }, "card_id"},
		{"card payment with is_want", func(e *core.Expense) {
			e.Category = core.CardPayment
			e.CardID = strPtr("visa")
			e.IsWant = boolPtr(true)
		}, "is_want"},
		{"long description", func(e *core.Expense) { e.Description = string(make([]rune, 101)) }, "description"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := cashExpense("100", "Otros", core.NewDate(2025, 3, 14))
			tt.edit(&e)
			_, err := svc.Create(context.Background(), ana, e, "")
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has(tt.field), "fields: %v", verr.Fields)
		})
	}
	assert.Empty(t, pub.types())
}

func TestExpenseService_DailyLimit(t *testing.T) {
	svc, _, _ := newExpenseService(t, 2)
	ctx := context.Background()

	for i, amt := range []string{"100", "200"} {
		_, err := svc.Create(ctx, ana, cashExpense(amt, "Otros", core.NewDate(2025, 3, 14)), "")
		require.NoError(t, err, "insert %d", i)
	}
	_, err := svc.Create(ctx, ana, cashExpense("300", "Otros", core.NewDate(2025, 3, 14)), "")
	assert.ErrorIs(t, err, core.ErrDailyLimitReached)

	_, err = svc.Create(ctx, bob, cashExpense("300", "Otros", core.NewDate(2025, 3, 14)), "")
	assert.NoError(t, err, "the limit is per user")
}

func TestExpenseService_DuplicateGate(t *testing.T) {
	svc, stores, _ := newExpenseService(t, 0)
	ctx := context.Background()
	day := core.NewDate(2025, 3, 14)

	first, err := svc.Create(ctx, ana, cashExpense("1500", "Supermercado", day), "")
	require.NoError(t, err)

	_, err = svc.Create(ctx, ana, cashExpense("1500.00", "Supermercado", day), "draft-1")
	var warn *DuplicateWarning
	require.ErrorAs(t, err, &warn)
	assert.Equal(t, "draft-1", warn.DraftID)
	require.Len(t, warn.Matches, 1)
	assert.Equal(t, first.ID, warn.Matches[0].ID)

	// Changing one of the three fields needs a fresh check.
	_, err = svc.Create(ctx, ana, cashExpense("1500", "Supermercado", day.AddDays(1)), "draft-1")
	require.NoError(t, err, "no duplicate on the next day")

	_, err = svc.Create(ctx, ana, cashExpense("1500", "Supermercado", day), "draft-2")
	require.ErrorAs(t, err, &warn)
	_, err = svc.Create(ctx, ana, cashExpense("1500", "Supermercado", day), "draft-2")
	require.NoError(t, err, "confirming the same draft and key saves")

	_, total, err := stores.Expenses.Find(ctx, ana.UserID, store.ExpenseFilter{}, store.All)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	_, err = svc.Create(ctx, bob, cashExpense("1500", "Supermercado", day), "")
	assert.NoError(t, err, "other users' expenses are not duplicates")
}

type brokenDuplicates struct{ store.ExpenseStore }

func (brokenDuplicates) FindDuplicates(context.Context, string, core.DuplicateKey) ([]core.DuplicateMatch, error) {
	return nil, errors.New("disk I/O error")
}

func TestExpenseService_DuplicateLookupFailsOpen(t *testing.T) {
	stores := memory.New().Stores()
	svc := NewExpenseService(brokenDuplicates{stores.Expenses}, nil, ExpenseOptions{}, nil)
	ctx := context.Background()
	day := core.NewDate(2025, 3, 14)

	_, err := svc.Create(ctx, ana, cashExpense("1500", "Supermercado", day), "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, ana, cashExpense("1500", "Supermercado", day), "")
	assert.NoError(t, err)
	assert.Empty(t, svc.Duplicates(ctx, ana, core.DuplicateKey{Amount: "1500", Category: "Supermercado", Date: day.String()}))
}

func TestExpenseService_UpdateAndDelete(t *testing.T) {
	svc, _, pub := newExpenseService(t, 0)
	ctx := context.Background()

	saved, err := svc.Create(ctx, ana, cashExpense("1500", "Supermercado", core.NewDate(2025, 3, 14)), "")
	require.NoError(t, err)

	desc := "Coto"
	updated, err := svc.Update(ctx, ana, saved.ID, core.ExpensePatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Coto", updated.Description)

	credit := core.Credit
	_, err = svc.Update(ctx, ana, saved.ID, core.ExpensePatch{PaymentMethod: &credit})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr, "the merged row is re-validated")

	_, err = svc.Update(ctx, bob, saved.ID, core.ExpensePatch{Description: &desc})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, bob, saved.ID), core.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, ana, saved.ID))
	_, err = svc.Get(ctx, ana, saved.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Equal(t, []string{amqp.EventExpenseChanged, amqp.EventExpenseChanged, amqp.EventExpenseChanged}, pub.types())
}

func TestExpenseService_List(t *testing.T) {
	svc, _, _ := newExpenseService(t, 0)
	ctx := context.Background()

	for day := 1; day <= 25; day++ {
		_, err := svc.Create(ctx, ana, cashExpense("100", "Otros", core.NewDate(2025, 3, day)), "")
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, ana, store.ExpenseFilter{Month: "2025-03"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, store.DefaultPageSize, page.PageSize)
	require.Len(t, page.Expenses, store.DefaultPageSize)
	assert.Equal(t, "2025-03-25", page.Expenses[0].Date.String())

	page, err = svc.List(ctx, ana, store.ExpenseFilter{Month: "2025-03"}, 2)
	require.NoError(t, err)
	assert.Len(t, page.Expenses, 5)

	page, err = svc.List(ctx, bob, store.ExpenseFilter{}, 1)
	require.NoError(t, err)
	assert.NotNil(t, page.Expenses)
	assert.Zero(t, page.Total)
}

func TestExpenseService_PublishFailureDoesNotFailWrite(t *testing.T) {
	stores := memory.New().Stores()
	pub := &recordingPublisher{err: amqp.ErrCircuitOpen}
	svc := NewExpenseService(stores.Expenses, pub, ExpenseOptions{}, nil)

	_, err := svc.Create(context.Background(), ana, cashExpense("100", "Otros", core.NewDate(2025, 3, 14)), "")
	assert.NoError(t, err)
}

func TestExpenseService_ForgetUser(t *testing.T) {
	svc, _, _ := newExpenseService(t, 0)
	ctx := context.Background()
	day := core.NewDate(2025, 3, 14)

	_, err := svc.Create(ctx, ana, cashExpense("1500", "Supermercado", day), "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, ana, cashExpense("1500", "Supermercado", day), "d")
	require.Error(t, err)

	svc.ForgetUser(ana.UserID)
	_, err = svc.Create(ctx, ana, cashExpense("1500", "Supermercado", day), "d")
	var warn *DuplicateWarning
	assert.ErrorAs(t, err, &warn, "forgotten drafts are checked again")
}
