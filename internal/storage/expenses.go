package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gota/internal/core"
	"gota/internal/store"
)

const expenseColumns = `id, user_id, amount, currency, category, description, is_want, payment_method, card_id, date, created_at, updated_at`

// ExpenseRepository implements store.ExpenseStore on SQLite.
type ExpenseRepository struct {
	r *SQLiteRepository
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e                              core.Expense
		amount, date, created, updated string
		currency, category, method     string
		isWant                         sql.NullBool
		cardID                         sql.NullString
	)
	err := row.Scan(&e.ID, &e.UserID, &amount, &currency, &category, &e.Description,
		&isWant, &method, &cardID, &date, &created, &updated)
	if err != nil {
		return core.Expense{}, err
	}

	if e.Amount, err = parseDecimal(amount); err != nil {
		return core.Expense{}, err
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Expense{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return core.Expense{}, err
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Expense{}, err
	}
	e.Currency = core.Currency(currency)
	e.Category = core.Category(category)
	e.PaymentMethod = core.PaymentMethod(method)
	if isWant.Valid {
		v := isWant.Bool
		e.IsWant = &v
	}
	if cardID.Valid {
		v := cardID.String
		e.CardID = &v
	}
	return e, nil
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func whereExpenses(userID string, f store.ExpenseFilter) (string, []any) {
	clauses := []string{"user_id = ?"}
	args := []any{userID}

	if f.Month != "" {
		clauses = append(clauses, "date >= ? AND date <= ?")
		args = append(args, f.Month.FirstDay().String(), f.Month.LastDay().String())
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.PaymentMethod != "" {
		clauses = append(clauses, "payment_method = ?")
		args = append(args, string(f.PaymentMethod))
	}
	if f.CardID != "" {
		clauses = append(clauses, "card_id = ?")
		args = append(args, f.CardID)
	}
	if f.Currency != "" {
		clauses = append(clauses, "currency = ?")
		args = append(args, string(f.Currency))
	}
	if !f.From.IsZero() {
		clauses = append(clauses, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "date <= ?")
		args = append(args, f.To.String())
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (x *ExpenseRepository) Find(ctx context.Context, userID string, f store.ExpenseFilter, page store.Page) ([]core.Expense, int, error) {
	where, args := whereExpenses(userID, f)

	var total int
	if err := x.r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM expenses"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count expenses: %w", err)
	}

	query := "SELECT " + expenseColumns + " FROM expenses" + where + " ORDER BY date DESC, created_at DESC"
	if page.Size > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, page.Size, page.Offset())
	}

	rows, err := x.r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, total, nil
}

func (x *ExpenseRepository) Get(ctx context.Context, userID, id string) (core.Expense, error) {
	return getExpense(ctx, x.r.db, userID, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getExpense(ctx context.Context, q queryRower, userID, id string) (core.Expense, error) {
	row := q.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ? AND user_id = ?", id, userID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (x *ExpenseRepository) Insert(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	now := x.r.stamp()
	e.ID = uuid.NewString()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := x.r.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Amount.String(), string(e.Currency), string(e.Category), e.Description,
		nullableBool(e.IsWant), string(e.PaymentMethod), nullableString(e.CardID), e.Date.String(),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return e, nil
}

func (x *ExpenseRepository) Update(ctx context.Context, userID, id string, p core.ExpensePatch) (core.Expense, error) {
	var out core.Expense
	err := x.r.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := getExpense(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		next := p.Apply(cur)
		if err := next.Validate(); err != nil {
			return err
		}
		next.UpdatedAt = x.r.now().UTC().Truncate(time.Microsecond)

		_, err = tx.ExecContext(ctx,
			`UPDATE expenses SET amount = ?, currency = ?, category = ?, description = ?, is_want = ?,
			 payment_method = ?, card_id = ?, date = ?, updated_at = ?
			 WHERE id = ? AND user_id = ?`,
			next.Amount.String(), string(next.Currency), string(next.Category), next.Description,
			nullableBool(next.IsWant), string(next.PaymentMethod), nullableString(next.CardID),
			next.Date.String(), formatTime(next.UpdatedAt), id, userID)
		if err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		out = next
		return nil
	})
	return out, err
}

func (x *ExpenseRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := x.r.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return affectedOne(res)
}

func (x *ExpenseRepository) DeleteAll(ctx context.Context, userID string) error {
	if _, err := x.r.db.ExecContext(ctx, "DELETE FROM expenses WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete expenses: %w", err)
	}
	return nil
}

func (x *ExpenseRepository) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := x.r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM expenses WHERE user_id = ? AND created_at >= ?",
		userID, formatTime(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

func (x *ExpenseRepository) FindDuplicates(ctx context.Context, userID string, key core.DuplicateKey) ([]core.DuplicateMatch, error) {
	amount, err := decimal.NewFromString(key.Amount)
	if err != nil {
		return nil, core.ErrInvalidAmount
	}

	rows, err := x.r.db.QueryContext(ctx,
		`SELECT id, description, created_at FROM expenses
		 WHERE user_id = ? AND amount = ? AND category = ? AND date = ?
		 ORDER BY created_at DESC`,
		userID, amount.String(), string(key.Category), key.Date)
	if err != nil {
		return nil, fmt.Errorf("query duplicates: %w", err)
	}
	defer rows.Close()

	var out []core.DuplicateMatch
	for rows.Next() {
		var (
			m       core.DuplicateMatch
			created string
		)
		if err := rows.Scan(&m.ID, &m.Description, &created); err != nil {
			return nil, fmt.Errorf("scan duplicate: %w", err)
		}
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
