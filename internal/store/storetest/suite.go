// Package storetest is the conformance suite every store backend runs.
package storetest

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"gota/internal/core"
	"gota/internal/store"
)

// Suite exercises a store.Stores produced fresh for every test by Open.
type Suite struct {
	suite.Suite
	Open   func() (store.Stores, func())
	stores store.Stores
	close  func()
	ctx    context.Context
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.stores, s.close = s.Open()
}

func (s *Suite) TearDownTest() {
	if s.close != nil {
		s.close()
	}
}

func ptr[T any](v T) *T { return &v }

func expense(userID string, amount int64, category core.Category, date core.Date) core.Expense {
	return core.Expense{
		UserID:        userID,
		Amount:        decimal.NewFromInt(amount),
		Currency:      core.ARS,
		Category:      category,
		Description:   "gasto " + string(category),
		IsWant:        ptr(false),
		PaymentMethod: core.Cash,
		Date:          date,
	}
}

func (s *Suite) insert(e core.Expense) core.Expense {
	got, err := s.stores.Expenses.Insert(s.ctx, e)
	s.Require().NoError(err)
	return got
}

func (s *Suite) TestExpenseRoundTrip() {
	in := core.Expense{
		UserID:        "u1",
		Amount:        decimal.RequireFromString("1234.5"),
		Currency:      core.USD,
		Category:      "Restaurantes",
		Description:   "Cena con amigos ñ",
		IsWant:        ptr(true),
		PaymentMethod: core.Credit,
		CardID:        ptr("visa"),
		Date:          core.NewDate(2025, 3, 14),
	}

	saved := s.insert(in)
	s.NotEmpty(saved.ID)
	s.False(saved.CreatedAt.IsZero())

	got, err := s.stores.Expenses.Get(s.ctx, "u1", saved.ID)
	s.Require().NoError(err)
	s.True(in.Amount.Equal(got.Amount), "amount %s", got.Amount)
	s.Equal(in.Currency, got.Currency)
	s.Equal(in.Category, got.Category)
	s.Equal(in.Description, got.Description)
	s.Equal(in.IsWant, got.IsWant)
	s.Equal(in.PaymentMethod, got.PaymentMethod)
	s.Equal(in.CardID, got.CardID)
	s.Equal(in.Date.String(), got.Date.String())
	s.Equal(saved.ID, got.ID)
	s.True(saved.CreatedAt.Equal(got.CreatedAt))

	null := s.insert(core.Expense{
		UserID: "u1", Amount: decimal.NewFromInt(5), Currency: core.ARS, Category: core.CardPayment,
		PaymentMethod: core.Transfer, CardID: ptr("visa"), Date: core.NewDate(2025, 3, 14),
	})
	got, err = s.stores.Expenses.Get(s.ctx, "u1", null.ID)
	s.Require().NoError(err)
	s.Nil(got.IsWant)
}

func (s *Suite) TestInsertRejectsInvalid() {
	e := expense("u1", 100, "Otros", core.NewDate(2025, 3, 1))
	e.PaymentMethod = core.Credit
	_, err := s.stores.Expenses.Insert(s.ctx, e)
	var verr *core.ValidationError
	s.ErrorAs(err, &verr)

	rows, total, err := s.stores.Expenses.Find(s.ctx, "u1", store.ExpenseFilter{}, store.All)
	s.Require().NoError(err)
	s.Zero(total)
	s.Empty(rows)
}

func (s *Suite) TestFindOrderingFiltersAndPages() {
	d10 := core.NewDate(2025, 3, 10)
	first := s.insert(expense("u1", 100, "Supermercado", d10))
	second := s.insert(expense("u1", 200, "Supermercado", d10))
	older := s.insert(expense("u1", 300, "Farmacia", core.NewDate(2025, 3, 2)))
	s.insert(expense("u1", 400, "Farmacia", core.NewDate(2025, 2, 27)))
	s.insert(expense("u2", 500, "Supermercado", d10))

	rows, total, err := s.stores.Expenses.Find(s.ctx, "u1", store.ExpenseFilter{Month: "2025-03"}, store.All)
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Require().Len(rows, 3)
	s.Equal(second.ID, rows[0].ID, "same date breaks ties by created_at desc")
	s.Equal(first.ID, rows[1].ID)
	s.Equal(older.ID, rows[2].ID)

	rows, total, err = s.stores.Expenses.Find(s.ctx, "u1", store.ExpenseFilter{Category: "Farmacia"}, store.All)
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Len(rows, 2)

	rows, total, err = s.stores.Expenses.Find(s.ctx, "u1", store.ExpenseFilter{}, store.Page{Number: 2, Size: 3})
	s.Require().NoError(err)
	s.Equal(4, total)
	s.Len(rows, 1)

	rows, _, err = s.stores.Expenses.Find(s.ctx, "u1", store.ExpenseFilter{From: core.NewDate(2025, 3, 1), To: core.NewDate(2025, 3, 5)}, store.All)
	s.Require().NoError(err)
	s.Len(rows, 1)

	credit := expense("u1", 50, "Regalos", d10)
	credit.PaymentMethod = core.Credit
	credit.CardID = ptr("amex")
	credit.Currency = core.USD
	s.insert(credit)

	for _, f := range []store.ExpenseFilter{
		{PaymentMethod: core.Credit},
		{CardID: "amex"},
		{Currency: core.USD},
	} {
		rows, total, err = s.stores.Expenses.Find(s.ctx, "u1", f, store.All)
		s.Require().NoError(err)
		s.Equal(1, total, "filter %+v", f)
		s.Len(rows, 1)
	}
}

func (s *Suite) TestUpdate() {
	e := s.insert(expense("u1", 100, "Supermercado", core.NewDate(2025, 3, 10)))

	got, err := s.stores.Expenses.Update(s.ctx, "u1", e.ID, core.ExpensePatch{
		Amount:      ptr(decimal.NewFromInt(150)),
		Description: ptr("editado"),
	})
	s.Require().NoError(err)
	s.Equal("150", got.Amount.String())
	s.Equal("editado", got.Description)
	s.Equal(core.Category("Supermercado"), got.Category)
	s.True(e.CreatedAt.Equal(got.CreatedAt))

	_, err = s.stores.Expenses.Update(s.ctx, "u1", e.ID, core.ExpensePatch{PaymentMethod: ptr(core.Credit)})
	var verr *core.ValidationError
	s.ErrorAs(err, &verr, "credit without card must be rejected")

	stored, err := s.stores.Expenses.Get(s.ctx, "u1", e.ID)
	s.Require().NoError(err)
	s.Equal(core.Cash, stored.PaymentMethod, "rejected update must not be applied")

	_, err = s.stores.Expenses.Update(s.ctx, "u2", e.ID, core.ExpensePatch{Description: ptr("x")})
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *Suite) TestDeleteIsUserScoped() {
	e := s.insert(expense("u1", 100, "Otros", core.NewDate(2025, 3, 10)))

	s.ErrorIs(s.stores.Expenses.Delete(s.ctx, "u2", e.ID), core.ErrNotFound)
	_, err := s.stores.Expenses.Get(s.ctx, "u2", e.ID)
	s.ErrorIs(err, core.ErrNotFound)

	s.NoError(s.stores.Expenses.Delete(s.ctx, "u1", e.ID))
	s.ErrorIs(s.stores.Expenses.Delete(s.ctx, "u1", e.ID), core.ErrNotFound)
}

func (s *Suite) TestDeleteAll() {
	s.insert(expense("u1", 1, "Otros", core.NewDate(2025, 3, 10)))
	s.insert(expense("u1", 2, "Otros", core.NewDate(2025, 3, 11)))
	s.insert(expense("u2", 3, "Otros", core.NewDate(2025, 3, 11)))

	s.Require().NoError(s.stores.Expenses.DeleteAll(s.ctx, "u1"))
	_, total, err := s.stores.Expenses.Find(s.ctx, "u1", store.ExpenseFilter{}, store.All)
	s.Require().NoError(err)
	s.Zero(total)
	_, total, _ = s.stores.Expenses.Find(s.ctx, "u2", store.ExpenseFilter{}, store.All)
	s.Equal(1, total)
}

func (s *Suite) TestFindDuplicates() {
	d := core.NewDate(2025, 3, 10)
	match := s.insert(expense("u1", 1500, "Restaurantes", d))
	s.insert(expense("u1", 1500, "Restaurantes", d.AddDays(1)))
	s.insert(expense("u1", 1500, "Delivery", d))
	s.insert(expense("u2", 1500, "Restaurantes", d))

	got, err := s.stores.Expenses.FindDuplicates(s.ctx, "u1", core.DuplicateKey{Amount: "1500.00", Category: "Restaurantes", Date: "2025-03-10"})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(match.ID, got[0].ID)
	s.Equal(match.Description, got[0].Description)
}

func (s *Suite) TestCountCreatedSince() {
	before := time.Now().Add(-time.Minute)
	s.insert(expense("u1", 1, "Otros", core.NewDate(2025, 3, 10)))
	s.insert(expense("u1", 2, "Otros", core.NewDate(2020, 1, 1)))

	n, err := s.stores.Expenses.CountCreatedSince(s.ctx, "u1", before)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = s.stores.Expenses.CountCreatedSince(s.ctx, "u1", time.Now().Add(time.Hour))
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *Suite) TestIncomeUpsert() {
	got, err := s.stores.Income.Get(s.ctx, "u1", "2025-03")
	s.Require().NoError(err)
	s.Nil(got, "absent row is not a zero row")

	first, err := s.stores.Income.Upsert(s.ctx, "u1", "2025-03", core.IncomeFields{AmountARS: decimal.NewFromInt(100000)})
	s.Require().NoError(err)
	second, err := s.stores.Income.Upsert(s.ctx, "u1", "2025-03", core.IncomeFields{
		AmountARS: decimal.NewFromInt(120000), AmountUSD: decimal.NewFromInt(50), SaldoInicialARS: decimal.NewFromInt(7000),
	})
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID, "upsert must update in place")

	got, err = s.stores.Income.Get(s.ctx, "u1", "2025-03")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("120000", got.AmountARS.String())
	s.Equal("50", got.AmountUSD.String())
	s.Equal("7000", got.SaldoInicialARS.String())
	s.True(got.SaldoInicialUSD.IsZero())

	other, err := s.stores.Income.Get(s.ctx, "u2", "2025-03")
	s.Require().NoError(err)
	s.Nil(other)

	_, err = s.stores.Income.Upsert(s.ctx, "u1", "2025-04", core.IncomeFields{AmountARS: decimal.NewFromInt(-1)})
	var verr *core.ValidationError
	s.ErrorAs(err, &verr)
}

func (s *Suite) TestIncomeRange() {
	for _, m := range []core.Month{"2024-12", "2025-01", "2025-03", "2025-06"} {
		_, err := s.stores.Income.Upsert(s.ctx, "u1", m, core.IncomeFields{AmountARS: decimal.NewFromInt(1)})
		s.Require().NoError(err)
	}

	rows, err := s.stores.Income.Range(s.ctx, "u1", "2025-01", "2025-03")
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal(core.Month("2025-01"), rows[0].Month)
	s.Equal(core.Month("2025-03"), rows[1].Month)

	s.Require().NoError(s.stores.Income.DeleteAll(s.ctx, "u1"))
	rows, err = s.stores.Income.Range(s.ctx, "u1", "2000-01", "2100-01")
	s.Require().NoError(err)
	s.Empty(rows)
}

func (s *Suite) TestConfig() {
	cfg, err := s.stores.Config.Get(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(core.ARS, cfg.DefaultCurrency)
	s.Empty(cfg.Cards)

	cards := []core.Card{{ID: "visa", Name: "Visa"}, {ID: "amex", Name: "Amex", Archived: true}}
	cfg, err = s.stores.Config.Update(s.ctx, "u1", core.ConfigPatch{Cards: &cards})
	s.Require().NoError(err)
	s.Equal(cards, cfg.Cards)

	cfg, err = s.stores.Config.Update(s.ctx, "u1", core.ConfigPatch{DefaultCurrency: ptr(core.USD)})
	s.Require().NoError(err)
	s.Equal(core.USD, cfg.DefaultCurrency)
	s.Equal(cards, cfg.Cards, "partial update keeps cards")

	cfg, err = s.stores.Config.Get(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(core.USD, cfg.DefaultCurrency)
	s.Equal([]core.Card{{ID: "visa", Name: "Visa"}, {ID: "amex", Name: "Amex", Archived: true}}, cfg.Cards, "insertion order kept")

	dup := []core.Card{{ID: "x", Name: "A"}, {ID: "x", Name: "B"}}
	_, err = s.stores.Config.Update(s.ctx, "u1", core.ConfigPatch{Cards: &dup})
	var verr *core.ValidationError
	s.ErrorAs(err, &verr)

	s.Require().NoError(s.stores.Config.DeleteAll(s.ctx, "u1"))
	cfg, err = s.stores.Config.Get(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(core.ARS, cfg.DefaultCurrency)
}

func (s *Suite) TestUsersAndSessions() {
	u, err := s.stores.Users.CreateUser(s.ctx, " Ana@Example.com ", "hash")
	s.Require().NoError(err)
	s.Equal("ana@example.com", u.Email)

	_, err = s.stores.Users.CreateUser(s.ctx, "ana@example.com", "other")
	s.ErrorIs(err, core.ErrConflict)

	got, err := s.stores.Users.GetUserByEmail(s.ctx, "ANA@example.com")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)
	s.Equal("hash", got.PasswordHash)

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	s.Require().NoError(s.stores.Sessions.CreateSession(s.ctx, core.Session{Token: "tok", UserID: u.ID, Email: u.Email, ExpiresAt: expires}))

	sess, err := s.stores.Sessions.GetSession(s.ctx, "tok")
	s.Require().NoError(err)
	s.Equal(u.ID, sess.UserID)
	s.Equal(u.Email, sess.Email)
	s.True(expires.Equal(sess.ExpiresAt))

	later := expires.Add(time.Hour)
	s.Require().NoError(s.stores.Sessions.RenewSession(s.ctx, "tok", later))
	sess, err = s.stores.Sessions.GetSession(s.ctx, "tok")
	s.Require().NoError(err)
	s.True(later.Equal(sess.ExpiresAt))

	ids, err := s.stores.Users.ListUserIDs(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{u.ID}, ids)

	s.Require().NoError(s.stores.Users.DeleteUser(s.ctx, u.ID))
	_, err = s.stores.Sessions.GetSession(s.ctx, "tok")
	s.ErrorIs(err, core.ErrNotFound, "sessions go with their user")
	_, err = s.stores.Users.GetUserByEmail(s.ctx, "ana@example.com")
	s.ErrorIs(err, core.ErrNotFound)
	s.ErrorIs(s.stores.Users.DeleteUser(s.ctx, u.ID), core.ErrNotFound)
}

func (s *Suite) TestDeleteSessions() {
	u, err := s.stores.Users.CreateUser(s.ctx, "b@example.com", "hash")
	s.Require().NoError(err)
	exp := time.Now().Add(time.Hour)
	s.Require().NoError(s.stores.Sessions.CreateSession(s.ctx, core.Session{Token: "a", UserID: u.ID, Email: u.Email, ExpiresAt: exp}))
	s.Require().NoError(s.stores.Sessions.CreateSession(s.ctx, core.Session{Token: "b", UserID: u.ID, Email: u.Email, ExpiresAt: exp}))

	s.Require().NoError(s.stores.Sessions.DeleteSession(s.ctx, "a"))
	_, err = s.stores.Sessions.GetSession(s.ctx, "a")
	s.ErrorIs(err, core.ErrNotFound)

	s.Require().NoError(s.stores.Sessions.DeleteUserSessions(s.ctx, u.ID))
	_, err = s.stores.Sessions.GetSession(s.ctx, "b")
	s.ErrorIs(err, core.ErrNotFound)

	s.NoError(s.stores.Health.Ping(s.ctx))
}
