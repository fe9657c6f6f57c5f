// Package memory is the in-process backend. It keeps every row in maps
// guarded by one mutex and is used for local development and tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gota/internal/core"
	"gota/internal/store"
)

type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	last     time.Time
	expenses map[string]core.Expense
	income   map[string]core.MonthlyIncome
	configs  map[string]core.UserConfig
	users    map[string]core.User
	sessions map[string]core.Session
}

func New() *Store {
	return &Store{
		now:      time.Now,
		expenses: make(map[string]core.Expense),
		income:   make(map[string]core.MonthlyIncome),
		configs:  make(map[string]core.UserConfig),
		users:    make(map[string]core.User),
		sessions: make(map[string]core.Session),
	}
}

// Stores exposes s through every store port.
func (s *Store) Stores() store.Stores {
	return store.Stores{
		Expenses: (*Expenses)(s),
		Income:   (*Income)(s),
		Config:   (*Config)(s),
		Users:    (*Users)(s),
		Sessions: (*Users)(s),
		Health:   s,
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// stamp returns a strictly increasing microsecond timestamp so that rows
// inserted back to back keep their insertion order. Callers hold s.mu.
func (s *Store) stamp() time.Time {
	now := s.now().UTC().Truncate(time.Microsecond)
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

// Expenses implements store.ExpenseStore.
type Expenses Store

func (x *Expenses) Find(_ context.Context, userID string, f store.ExpenseFilter, page store.Page) ([]core.Expense, int, error) {
	s := (*Store)(x)
	s.mu.Lock()
	var rows []core.Expense
	for _, e := range s.expenses {
		if e.UserID == userID && f.Match(e) {
			rows = append(rows, cloneExpense(e))
		}
	}
	s.mu.Unlock()

	core.SortRecent(rows)
	total := len(rows)
	if page.Size > 0 {
		start := min(page.Offset(), total)
		end := min(start+page.Size, total)
		rows = rows[start:end]
	}
	if rows == nil {
		rows = []core.Expense{}
	}
	return rows, total, nil
}

func (x *Expenses) Get(_ context.Context, userID, id string) (core.Expense, error) {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return core.Expense{}, core.ErrNotFound
	}
	return cloneExpense(e), nil
}

func (x *Expenses) Insert(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.stamp()
	e.ID = uuid.NewString()
	e.CreatedAt = now
	e.UpdatedAt = now
	s.expenses[e.ID] = cloneExpense(e)
	return e, nil
}

func (x *Expenses) Update(_ context.Context, userID, id string, p core.ExpensePatch) (core.Expense, error) {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.expenses[id]
	if !ok || cur.UserID != userID {
		return core.Expense{}, core.ErrNotFound
	}
	next := p.Apply(cloneExpense(cur))
	if err := next.Validate(); err != nil {
		return core.Expense{}, err
	}
	next.UpdatedAt = s.now().UTC()
	s.expenses[id] = next
	return cloneExpense(next), nil
}

func (x *Expenses) Delete(_ context.Context, userID, id string) error {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (x *Expenses) DeleteAll(_ context.Context, userID string) error {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.expenses {
		if e.UserID == userID {
			delete(s.expenses, id)
		}
	}
	return nil
}

func (x *Expenses) CountCreatedSince(_ context.Context, userID string, since time.Time) (int, error) {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.expenses {
		if e.UserID == userID && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (x *Expenses) FindDuplicates(_ context.Context, userID string, key core.DuplicateKey) ([]core.DuplicateMatch, error) {
	amount, err := decimal.NewFromString(key.Amount)
	if err != nil {
		return nil, core.ErrInvalidAmount
	}
	s := (*Store)(x)
	s.mu.Lock()
	var rows []core.Expense
	for _, e := range s.expenses {
		if e.UserID == userID && e.Category == key.Category && e.Date.String() == key.Date && e.Amount.Equal(amount) {
			rows = append(rows, e)
		}
	}
	s.mu.Unlock()

	core.SortRecent(rows)
	out := make([]core.DuplicateMatch, len(rows))
	for i, e := range rows {
		out[i] = core.DuplicateMatch{ID: e.ID, Description: e.Description, CreatedAt: e.CreatedAt}
	}
	return out, nil
}

// Income implements store.IncomeStore.
type Income Store

func incomeKey(userID string, m core.Month) string { return userID + "|" + string(m) }

func (x *Income) Get(_ context.Context, userID string, month core.Month) (*core.MonthlyIncome, error) {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.income[incomeKey(userID, month)]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (x *Income) Range(_ context.Context, userID string, from, to core.Month) ([]core.MonthlyIncome, error) {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []core.MonthlyIncome{}
	for _, row := range s.income {
		if row.UserID == userID && row.Month >= from && row.Month <= to {
			out = append(out, row)
		}
	}
	slices.SortFunc(out, func(a, b core.MonthlyIncome) int {
		if a.Month < b.Month {
			return -1
		}
		if a.Month > b.Month {
			return 1
		}
		return 0
	})
	return out, nil
}

func (x *Income) Upsert(_ context.Context, userID string, month core.Month, f core.IncomeFields) (core.MonthlyIncome, error) {
	if err := f.Validate(); err != nil {
		return core.MonthlyIncome{}, err
	}
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	k := incomeKey(userID, month)
	row, ok := s.income[k]
	if !ok {
		row = core.MonthlyIncome{ID: uuid.NewString(), UserID: userID, Month: month, CreatedAt: now}
	}
	row.AmountARS = f.AmountARS
	row.AmountUSD = f.AmountUSD
	row.SaldoInicialARS = f.SaldoInicialARS
	row.SaldoInicialUSD = f.SaldoInicialUSD
	row.UpdatedAt = now
	s.income[k] = row
	return row, nil
}

func (x *Income) DeleteAll(_ context.Context, userID string) error {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, row := range s.income {
		if row.UserID == userID {
			delete(s.income, k)
		}
	}
	return nil
}

// Config implements store.ConfigStore.
type Config Store

func (x *Config) Get(_ context.Context, userID string) (core.UserConfig, error) {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[userID]
	if !ok {
		return core.DefaultUserConfig(userID), nil
	}
	cfg.Cards = slices.Clone(cfg.Cards)
	return cfg, nil
}

func (x *Config) Update(_ context.Context, userID string, p core.ConfigPatch) (core.UserConfig, error) {
	if err := p.Validate(); err != nil {
		return core.UserConfig{}, err
	}
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[userID]
	if !ok {
		cfg = core.DefaultUserConfig(userID)
	}
	cfg = p.Apply(cfg)
	cfg.UpdatedAt = s.now().UTC()
	s.configs[userID] = cfg

	cfg.Cards = slices.Clone(cfg.Cards)
	return cfg, nil
}

func (x *Config) DeleteAll(_ context.Context, userID string) error {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.configs, userID)
	return nil
}

// Users implements store.UserStore and store.SessionStore.
type Users Store

func (x *Users) CreateUser(_ context.Context, email, passwordHash string) (core.User, error) {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	email = store.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return core.User{}, core.ErrConflict
		}
	}
	u := core.User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, CreatedAt: s.now().UTC()}
	s.users[u.ID] = u
	return u, nil
}

func (x *Users) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	email = store.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (x *Users) DeleteUser(_ context.Context, userID string) error {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return core.ErrNotFound
	}
	delete(s.users, userID)
	for token, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}

func (x *Users) ListUserIDs(context.Context) ([]string, error) {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (x *Users) CreateSession(_ context.Context, sess core.Session) error {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[sess.UserID]; !ok {
		return core.ErrNotFound
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now().UTC()
	}
	s.sessions[sess.Token] = sess
	return nil
}

func (x *Users) GetSession(_ context.Context, token string) (core.Session, error) {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return core.Session{}, core.ErrNotFound
	}
	return sess, nil
}

func (x *Users) RenewSession(_ context.Context, token string, expiresAt time.Time) error {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return core.ErrNotFound
	}
	sess.ExpiresAt = expiresAt
	s.sessions[token] = sess
	return nil
}

func (x *Users) DeleteSession(_ context.Context, token string) error {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (x *Users) DeleteUserSessions(_ context.Context, userID string) error {
	s := (*Store)(x)
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}

func cloneExpense(e core.Expense) core.Expense {
	if e.IsWant != nil {
		v := *e.IsWant
		e.IsWant = &v
	}
	if e.CardID != nil {
		v := *e.CardID
		e.CardID = &v
	}
	return e
}
