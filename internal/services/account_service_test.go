package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gota/internal/amqp"
	"gota/internal/auth"
	"gota/internal/classify"
	"gota/internal/core"
	"gota/internal/store"
	"gota/internal/store/memory"
)

func registerAna(t *testing.T, svc *auth.Service) core.Principal {
	t.Helper()
	u, err := svc.Register(context.Background(), "ana@example.com", "longenough")
	require.NoError(t, err)
	return u.Principal()
}

func TestAccountService_Delete(t *testing.T) {
	stores := memory.New().Stores()
	authSvc := auth.NewService(stores.Users, stores.Sessions, time.Hour, nil)
	p := registerAna(t, authSvc)
	ctx := context.Background()

	e := cashExpense("100", "Otros", core.NewDate(2025, 3, 14))
	e.UserID = p.UserID
	_, err := stores.Expenses.Insert(ctx, e)
	require.NoError(t, err)
	_, err = stores.Income.Upsert(ctx, p.UserID, "2025-03", core.IncomeFields{AmountARS: amount("10")})
	require.NoError(t, err)
	usd := core.USD
	_, err = stores.Config.Update(ctx, p.UserID, core.ConfigPatch{DefaultCurrency: &usd})
	require.NoError(t, err)
	sess, err := authSvc.Login(ctx, "ana@example.com", "longenough")
	require.NoError(t, err)

	var forgotten []string
	pub := &recordingPublisher{}
	svc := NewAccountService(stores, authSvc, pub, nil, func(id string) { forgotten = append(forgotten, id) })
	require.NoError(t, svc.Delete(ctx, p))

	_, total, err := stores.Expenses.Find(ctx, p.UserID, store.ExpenseFilter{}, store.All)
	require.NoError(t, err)
	assert.Zero(t, total)
	inc, err := stores.Income.Get(ctx, p.UserID, "2025-03")
	require.NoError(t, err)
	assert.Nil(t, inc)
	cfg, err := stores.Config.Get(ctx, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, core.ARS, cfg.DefaultCurrency, "config is back to defaults")

	_, _, err = authSvc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	_, err = authSvc.Login(ctx, "ana@example.com", "longenough")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	assert.Equal(t, []string{p.UserID}, forgotten)
	assert.Equal(t, []string{amqp.EventAccountDeleted}, pub.types())
}

type failingDeleteAll struct{ store.IncomeStore }

func (failingDeleteAll) DeleteAll(context.Context, string) error {
	return errors.New("disk full")
}

type failingPrincipal struct{}

func (failingPrincipal) DeleteUser(context.Context, string) error {
	return errors.New("auth backend down")
}

func TestAccountService_DeleteFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("data deletion failure keeps the principal", func(t *testing.T) {
		stores := memory.New().Stores()
		authSvc := auth.NewService(stores.Users, stores.Sessions, time.Hour, nil)
		p := registerAna(t, authSvc)

		broken := stores
		broken.Income = failingDeleteAll{stores.Income}
		pub := &recordingPublisher{}
		err := NewAccountService(broken, authSvc, pub, nil).Delete(ctx, p)

		var ue *core.UpstreamError
		require.ErrorAs(t, err, &ue)
		_, err = authSvc.Login(ctx, "ana@example.com", "longenough")
		assert.NoError(t, err, "the user can still log in and retry")
		assert.Empty(t, pub.types())
	})

	t.Run("principal deletion failure is explicit", func(t *testing.T) {
		stores := memory.New().Stores()
		pub := &recordingPublisher{}
		err := NewAccountService(stores, failingPrincipal{}, pub, nil).Delete(ctx, ana)
		assert.ErrorIs(t, err, ErrAuthDeletion)
		assert.Empty(t, pub.types())
	})
}

func TestExportService(t *testing.T) {
	stores := memory.New().Stores()
	seedMonth(t, stores)
	svc := NewExportService(stores.Expenses, stores.Config, nil)
	svc.now = func() time.Time { return fixedNow }

	out, err := svc.Export(context.Background(), ana)
	require.NoError(t, err)
	assert.Equal(t, "gota-2025-03-14.csv", out.Filename)
	require.Len(t, out.Rows, 6)
	assert.Equal(t, "2025-03-14", out.Rows[0][0])
	assert.Equal(t, "Visa", out.Rows[2][6], "card ids resolve to names")

	out, err = svc.Export(context.Background(), bob)
	require.NoError(t, err)
	assert.Empty(t, out.Rows)
}

type scriptedModel struct {
	out    string
	err    error
	prompt classify.Prompt
}

func (m *scriptedModel) Complete(_ context.Context, p classify.Prompt) (string, error) {
	m.prompt = p
	return m.out, m.err
}

func TestParseService(t *testing.T) {
	stores := memory.New().Stores()
	ctx := context.Background()
	cards := []core.Card{{ID: "old", Name: "Vieja", Archived: true}, {ID: "visa", Name: "Visa"}}
	_, err := stores.Config.Update(ctx, ana.UserID, core.ConfigPatch{Cards: &cards})
	require.NoError(t, err)

	model := &scriptedModel{out: "```json\n" + `{"is_valid":true,"amount":45000,"category":"Ropa e Indumentaria","description":"Zapatillas","is_want":true,"payment_method":"CREDIT"}` + "\n```"}
	svc := NewParseService(classify.NewClassifier(model, nil), stores.Config, nil)
	svc.now = func() time.Time { return fixedNow }

	res, err := svc.Parse(ctx, ana, "zapatillas 45000 con la visa")
	require.NoError(t, err)
	require.True(t, res.IsValid, res.Reason)
	require.NotNil(t, res.CardID)
	assert.Equal(t, "visa", *res.CardID, "archived cards are never the default")
	assert.Equal(t, "2025-03-14", res.Date.String())
	assert.True(t, strings.Contains(model.prompt.User, "zapatillas"))

	model.out = `{"is_valid":false,"reason":"Eso no parece un gasto"}`
	res, err = svc.Parse(ctx, ana, "hola")
	require.NoError(t, err)
	assert.False(t, res.IsValid)

	model.err = errors.New("connection refused")
	_, err = svc.Parse(ctx, ana, "pizza 2500")
	var ue *core.UpstreamError
	assert.ErrorAs(t, err, &ue)
}

func TestParseService_NoClassifier(t *testing.T) {
	svc := NewParseService(nil, memory.New().Stores().Config, nil)
	_, err := svc.Parse(context.Background(), ana, "pizza 2500")
	assert.ErrorIs(t, err, ErrClassifierUnavailable)
}
