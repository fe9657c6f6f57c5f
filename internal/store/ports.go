// Package store defines the persistence ports. Every method is scoped to a
// user id: a row owned by another user behaves exactly like a missing row.
package store

import (
	"context"
	"time"

	"gota/internal/core"
)

// DefaultPageSize is the expense list page size.
const DefaultPageSize = 20

// ExpenseFilter narrows Find. Zero values mean "any". Month and the From/To
// range may be combined; the range is inclusive on both ends.
type ExpenseFilter struct {
	Month         core.Month
	Category      core.Category
	PaymentMethod core.PaymentMethod
	CardID        string
	Currency      core.Currency
	From          core.Date
	To            core.Date
}

// Page selects a 1-based page. Size 0 returns every row.
type Page struct {
	Number int
	Size   int
}

// All is the Page that disables pagination.
var All = Page{}

// Offset returns the number of rows skipped before the page.
func (p Page) Offset() int {
	if p.Size <= 0 || p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Ports for outbound adapters.
type (
	ExpenseStore interface {
		// Find returns the matching page ordered by (date desc, created_at
		// desc) and the total number of matching rows.
		Find(ctx context.Context, userID string, f ExpenseFilter, page Page) ([]core.Expense, int, error)
		Get(ctx context.Context, userID, id string) (core.Expense, error)
		// Insert assigns id and timestamps and returns the stored row.
		Insert(ctx context.Context, e core.Expense) (core.Expense, error)
		// Update applies the patch, re-validates the merged row and stores it
		// atomically.
		Update(ctx context.Context, userID, id string, p core.ExpensePatch) (core.Expense, error)
		Delete(ctx context.Context, userID, id string) error
		DeleteAll(ctx context.Context, userID string) error
		// CountCreatedSince counts rows inserted at or after since.
		CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
		// FindDuplicates returns rows with the same amount, category and date.
		FindDuplicates(ctx context.Context, userID string, key core.DuplicateKey) ([]core.DuplicateMatch, error)
	}

	IncomeStore interface {
		// Get returns nil, nil when the month has no row.
		Get(ctx context.Context, userID string, month core.Month) (*core.MonthlyIncome, error)
		// Range returns the rows for months from..to inclusive.
		Range(ctx context.Context, userID string, from, to core.Month) ([]core.MonthlyIncome, error)
		Upsert(ctx context.Context, userID string, month core.Month, f core.IncomeFields) (core.MonthlyIncome, error)
		DeleteAll(ctx context.Context, userID string) error
	}

	ConfigStore interface {
		// Get returns core.DefaultUserConfig when the user has no row.
		Get(ctx context.Context, userID string) (core.UserConfig, error)
		Update(ctx context.Context, userID string, p core.ConfigPatch) (core.UserConfig, error)
		DeleteAll(ctx context.Context, userID string) error
	}

	UserStore interface {
		CreateUser(ctx context.Context, email, passwordHash string) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		DeleteUser(ctx context.Context, userID string) error
		// ListUserIDs returns every user id, for background resyncs.
		ListUserIDs(ctx context.Context) ([]string, error)
	}

	SessionStore interface {
		CreateSession(ctx context.Context, s core.Session) error
		GetSession(ctx context.Context, token string) (core.Session, error)
		RenewSession(ctx context.Context, token string, expiresAt time.Time) error
		DeleteSession(ctx context.Context, token string) error
		DeleteUserSessions(ctx context.Context, userID string) error
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Stores bundles every port of one backend.
type Stores struct {
	Expenses ExpenseStore
	Income   IncomeStore
	Config   ConfigStore
	Users    UserStore
	Sessions SessionStore
	Health   Pinger
}
