package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gota/internal/core"
	"gota/internal/store"
)

// IncomeRepository implements store.IncomeStore on SQLite.
type IncomeRepository struct {
	r *SQLiteRepository
}

const incomeColumns = `id, user_id, month, amount_ars, amount_usd, saldo_inicial_ars, saldo_inicial_usd, created_at, updated_at`

func scanIncome(row rowScanner) (core.MonthlyIncome, error) {
	var (
		m                             core.MonthlyIncome
		month, ars, usd, siARS, siUSD string
		created, updated              string
	)
	if err := row.Scan(&m.ID, &m.UserID, &month, &ars, &usd, &siARS, &siUSD, &created, &updated); err != nil {
		return core.MonthlyIncome{}, err
	}
	m.Month = core.Month(month)

	var err error
	if m.AmountARS, err = parseDecimal(ars); err != nil {
		return core.MonthlyIncome{}, err
	}
	if m.AmountUSD, err = parseDecimal(usd); err != nil {
		return core.MonthlyIncome{}, err
	}
	if m.SaldoInicialARS, err = parseDecimal(siARS); err != nil {
		return core.MonthlyIncome{}, err
	}
	if m.SaldoInicialUSD, err = parseDecimal(siUSD); err != nil {
		return core.MonthlyIncome{}, err
	}
	if m.CreatedAt, err = parseTime(created); err != nil {
		return core.MonthlyIncome{}, err
	}
	if m.UpdatedAt, err = parseTime(updated); err != nil {
		return core.MonthlyIncome{}, err
	}
	return m, nil
}

func (x *IncomeRepository) Get(ctx context.Context, userID string, month core.Month) (*core.MonthlyIncome, error) {
	row := x.r.db.QueryRowContext(ctx,
		"SELECT "+incomeColumns+" FROM monthly_income WHERE user_id = ? AND month = ?", userID, string(month))
	m, err := scanIncome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get income: %w", err)
	}
	return &m, nil
}

func (x *IncomeRepository) Range(ctx context.Context, userID string, from, to core.Month) ([]core.MonthlyIncome, error) {
	rows, err := x.r.db.QueryContext(ctx,
		"SELECT "+incomeColumns+" FROM monthly_income WHERE user_id = ? AND month >= ? AND month <= ? ORDER BY month",
		userID, string(from), string(to))
	if err != nil {
		return nil, fmt.Errorf("query income: %w", err)
	}
	defer rows.Close()

	out := []core.MonthlyIncome{}
	for rows.Next() {
		m, err := scanIncome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (x *IncomeRepository) Upsert(ctx context.Context, userID string, month core.Month, f core.IncomeFields) (core.MonthlyIncome, error) {
	if err := f.Validate(); err != nil {
		return core.MonthlyIncome{}, err
	}

	now := formatTime(x.r.stamp())
	_, err := x.r.db.ExecContext(ctx,
		`INSERT INTO monthly_income (`+incomeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, month) DO UPDATE SET
		   amount_ars = excluded.amount_ars,
		   amount_usd = excluded.amount_usd,
		   saldo_inicial_ars = excluded.saldo_inicial_ars,
		   saldo_inicial_usd = excluded.saldo_inicial_usd,
		   updated_at = excluded.updated_at`,
		uuid.NewString(), userID, string(month),
		f.AmountARS.String(), f.AmountUSD.String(), f.SaldoInicialARS.String(), f.SaldoInicialUSD.String(),
		now, now)
	if err != nil {
		return core.MonthlyIncome{}, fmt.Errorf("upsert income: %w", err)
	}

	m, err := x.Get(ctx, userID, month)
	if err != nil {
		return core.MonthlyIncome{}, err
	}
	if m == nil {
		return core.MonthlyIncome{}, fmt.Errorf("upsert income: row for %s vanished", month)
	}
	return *m, nil
}

func (x *IncomeRepository) DeleteAll(ctx context.Context, userID string) error {
	if _, err := x.r.db.ExecContext(ctx, "DELETE FROM monthly_income WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	return nil
}

// ConfigRepository implements store.ConfigStore on SQLite. Cards live in a
// JSON column so their order survives round trips.
type ConfigRepository struct {
	r *SQLiteRepository
}

func getConfig(ctx context.Context, q queryRower, userID string) (core.UserConfig, error) {
	var currency, cards, updated string
	err := q.QueryRowContext(ctx,
		"SELECT default_currency, cards, updated_at FROM user_config WHERE user_id = ?", userID).
		Scan(&currency, &cards, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DefaultUserConfig(userID), nil
	}
	if err != nil {
		return core.UserConfig{}, fmt.Errorf("get config: %w", err)
	}

	cfg := core.UserConfig{UserID: userID, DefaultCurrency: core.Currency(currency), Cards: []core.Card{}}
	if err := json.Unmarshal([]byte(cards), &cfg.Cards); err != nil {
		return core.UserConfig{}, fmt.Errorf("decode cards: %w", err)
	}
	if cfg.UpdatedAt, err = parseTime(updated); err != nil {
		return core.UserConfig{}, err
	}
	return cfg, nil
}

func (x *ConfigRepository) Get(ctx context.Context, userID string) (core.UserConfig, error) {
	return getConfig(ctx, x.r.db, userID)
}

func (x *ConfigRepository) Update(ctx context.Context, userID string, p core.ConfigPatch) (core.UserConfig, error) {
	if err := p.Validate(); err != nil {
		return core.UserConfig{}, err
	}

	var out core.UserConfig
	err := x.r.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := getConfig(ctx, tx, userID)
		if err != nil {
			return err
		}
		next := p.Apply(cur)
		next.UpdatedAt = x.r.stamp()

		cards, err := json.Marshal(next.Cards)
		if err != nil {
			return fmt.Errorf("encode cards: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO user_config (user_id, default_currency, cards, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (user_id) DO UPDATE SET
			   default_currency = excluded.default_currency,
			   cards = excluded.cards,
			   updated_at = excluded.updated_at`,
			userID, string(next.DefaultCurrency), string(cards), formatTime(next.UpdatedAt))
		if err != nil {
			return fmt.Errorf("update config: %w", err)
		}
		out = next
		return nil
	})
	return out, err
}

func (x *ConfigRepository) DeleteAll(ctx context.Context, userID string) error {
	if _, err := x.r.db.ExecContext(ctx, "DELETE FROM user_config WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete config: %w", err)
	}
	return nil
}

// UserRepository implements store.UserStore and store.SessionStore.
type UserRepository struct {
	r *SQLiteRepository
}

func (x *UserRepository) CreateUser(ctx context.Context, email, passwordHash string) (core.User, error) {
	u := core.User{
		ID:           uuid.NewString(),
		Email:        store.NormalizeEmail(email),
		PasswordHash: passwordHash,
		CreatedAt:    x.r.stamp(),
	}
	_, err := x.r.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		u.ID, u.Email, u.PasswordHash, formatTime(u.CreatedAt))
	if isUniqueViolation(err) {
		return core.User{}, core.ErrConflict
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (x *UserRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var (
		u       core.User
		created string
	)
	err := x.r.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE email = ?", store.NormalizeEmail(email)).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return core.User{}, err
	}
	return u, nil
}

// DeleteUser removes the user row; sessions follow through the foreign key.
func (x *UserRepository) DeleteUser(ctx context.Context, userID string) error {
	res, err := x.r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return affectedOne(res)
}

func (x *UserRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := x.r.db.QueryContext(ctx, "SELECT id FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (x *UserRepository) CreateSession(ctx context.Context, s core.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = x.r.now()
	}
	_, err := x.r.db.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, email, expires_at, created_at) VALUES (?, ?, ?, ?, ?)",
		s.Token, s.UserID, s.Email, formatTime(s.ExpiresAt), formatTime(s.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return core.ErrNotFound
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (x *UserRepository) GetSession(ctx context.Context, token string) (core.Session, error) {
	var (
		s                core.Session
		expires, created string
	)
	err := x.r.db.QueryRowContext(ctx,
		"SELECT token, user_id, email, expires_at, created_at FROM sessions WHERE token = ?", token).
		Scan(&s.Token, &s.UserID, &s.Email, &expires, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Session{}, core.ErrNotFound
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("get session: %w", err)
	}
	if s.ExpiresAt, err = parseTime(expires); err != nil {
		return core.Session{}, err
	}
	if s.CreatedAt, err = parseTime(created); err != nil {
		return core.Session{}, err
	}
	return s, nil
}

func (x *UserRepository) RenewSession(ctx context.Context, token string, expiresAt time.Time) error {
	res, err := x.r.db.ExecContext(ctx, "UPDATE sessions SET expires_at = ? WHERE token = ?", formatTime(expiresAt), token)
	if err != nil {
		return fmt.Errorf("renew session: %w", err)
	}
	return affectedOne(res)
}

func (x *UserRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := x.r.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (x *UserRepository) DeleteUserSessions(ctx context.Context, userID string) error {
	if _, err := x.r.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}
