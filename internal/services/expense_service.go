package services

import (
	"context"
	"fmt"
	"time"

	"gota/internal/amqp"
	"gota/internal/core"
	"gota/internal/duplicate"
	"gota/internal/log"
	"gota/internal/store"
)

const (
	DefaultDailyLimit = 50
	DefaultDraftTTL   = 30 * time.Minute
	maxDrafts         = 10_000
)

// DuplicateWarning is returned by Create when the expense probably repeats an
// existing one. Sending the same draft id again with an unchanged amount,
// category and date saves it.
type DuplicateWarning struct {
	DraftID string                `json:"draft_id"`
	Matches []core.DuplicateMatch `json:"matches"`
}

func (w *DuplicateWarning) Error() string {
	return fmt.Sprintf("possible duplicate of %d expense(s)", len(w.Matches))
}

type ExpenseOptions struct {
	// DailyLimit caps inserts per calendar day in core.Zone; 0 disables it.
	DailyLimit int
	DraftTTL   time.Duration
}

// ExpensePage is one page of a filtered expense list.
type ExpensePage struct {
	Expenses []core.Expense `json:"expenses"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// ExpenseService orchestrates expense writes across the store, the duplicate
// gate and the event publisher.
type ExpenseService struct {
	expenses   store.ExpenseStore
	detector   *duplicate.Detector
	tracker    *duplicate.Tracker
	publisher  EventPublisher
	dailyLimit int
	now        func() time.Time
	logger     *log.Logger
	errors     *log.StructuredLogger
}

func NewExpenseService(expenses store.ExpenseStore, publisher EventPublisher, opts ExpenseOptions, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.DraftTTL <= 0 {
		opts.DraftTTL = DefaultDraftTTL
	}
	return &ExpenseService{
		expenses:   expenses,
		detector:   duplicate.NewDetector(expenses, logger),
		tracker:    duplicate.NewTracker(maxDrafts, opts.DraftTTL),
		publisher:  publisher,
		dailyLimit: opts.DailyLimit,
		now:        time.Now,
		logger:     logger.WithComponent(log.ComponentExpense),
		errors:     log.NewStructuredLogger(logger),
	}
}

// Tracker exposes the draft tracker for cache cleanup and account deletion.
func (s *ExpenseService) Tracker() *duplicate.Tracker {
	return s.tracker
}

// Create validates and stores a new expense owned by p.
//
// Gates run in order: field validation, the daily insert limit, then the
// duplicate check. The duplicate check runs once per draft and key; an empty
// draftID starts a new draft.
func (s *ExpenseService) Create(ctx context.Context, p core.Principal, e core.Expense, draftID string) (core.Expense, error) {
	e.UserID = p.UserID
	e.ID = ""
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if err := s.checkDailyLimit(ctx, p.UserID); err != nil {
		return core.Expense{}, err
	}

	if draftID == "" {
		draftID = duplicate.NewDraftID()
	}
	if s.tracker.Begin(p.UserID, draftID, e.Key()) {
		if matches := s.detector.Check(ctx, p.UserID, e.Key()); len(matches) > 0 {
			s.logger.InfoContext(ctx, "Possible duplicate expense",
				log.FieldUserID, p.UserID,
				"matches", len(matches))
			return core.Expense{}, &DuplicateWarning{DraftID: draftID, Matches: matches}
		}
	}

	saved, err := s.expenses.Insert(ctx, e)
	if err != nil {
		s.logFailure(ctx, "Failed to save expense", err, log.OpCreate, p.UserID)
		return core.Expense{}, core.Upstream("insert expense", err)
	}
	s.tracker.Complete(p.UserID, draftID)

	s.errors.LogExpenseWritten(ctx, log.OpCreate, p.UserID, saved.ID, saved.Amount.String(),
		string(saved.Currency), string(saved.Category), string(saved.PaymentMethod))
	notify(ctx, s.publisher, s.logger, amqp.EventExpenseChanged, p.UserID, saved.ID)
	return saved, nil
}

func (s *ExpenseService) checkDailyLimit(ctx context.Context, userID string) error {
	if s.dailyLimit <= 0 {
		return nil
	}
	today := core.DateOf(s.now().In(core.Zone))
	since := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, core.Zone)

	n, err := s.expenses.CountCreatedSince(ctx, userID, since)
	if err != nil {
		s.logFailure(ctx, "Failed to count today's expenses", err, log.OpRead, userID)
		return core.Upstream("count expenses", err)
	}
	if n >= s.dailyLimit {
		return core.ErrDailyLimitReached
	}
	return nil
}

// Update applies a partial update. The merged row is validated again before
// it is stored.
func (s *ExpenseService) Update(ctx context.Context, p core.Principal, id string, patch core.ExpensePatch) (core.Expense, error) {
	if patch.Empty() {
		return s.Get(ctx, p, id)
	}
	updated, err := s.expenses.Update(ctx, p.UserID, id, patch)
	if err != nil {
		s.logFailure(ctx, "Failed to update expense", err, log.OpUpdate, p.UserID)
		return core.Expense{}, core.Upstream("update expense", err)
	}
	notify(ctx, s.publisher, s.logger, amqp.EventExpenseChanged, p.UserID, id)
	return updated, nil
}

func (s *ExpenseService) Delete(ctx context.Context, p core.Principal, id string) error {
	if err := s.expenses.Delete(ctx, p.UserID, id); err != nil {
		s.logFailure(ctx, "Failed to delete expense", err, log.OpDelete, p.UserID)
		return core.Upstream("delete expense", err)
	}
	s.logger.InfoContext(ctx, "Expense deleted", log.FieldUserID, p.UserID, log.FieldExpenseID, id)
	notify(ctx, s.publisher, s.logger, amqp.EventExpenseChanged, p.UserID, id)
	return nil
}

func (s *ExpenseService) Get(ctx context.Context, p core.Principal, id string) (core.Expense, error) {
	e, err := s.expenses.Get(ctx, p.UserID, id)
	return e, core.Upstream("get expense", err)
}

// List returns one page of the filtered list. Page numbers below 1 are
// treated as 1.
func (s *ExpenseService) List(ctx context.Context, p core.Principal, f store.ExpenseFilter, page int) (ExpensePage, error) {
	if page < 1 {
		page = 1
	}
	pg := store.Page{Number: page, Size: store.DefaultPageSize}
	rows, total, err := s.expenses.Find(ctx, p.UserID, f, pg)
	if err != nil {
		s.logFailure(ctx, "Failed to list expenses", err, log.OpList, p.UserID)
		return ExpensePage{}, core.Upstream("find expenses", err)
	}
	if rows == nil {
		rows = []core.Expense{}
	}
	return ExpensePage{Expenses: rows, Total: total, Page: page, PageSize: pg.Size}, nil
}

// Duplicates is the advisory lookup behind the pre-save warning. It never
// fails.
func (s *ExpenseService) Duplicates(ctx context.Context, p core.Principal, key core.DuplicateKey) []core.DuplicateMatch {
	matches := s.detector.Check(ctx, p.UserID, key)
	if matches == nil {
		matches = []core.DuplicateMatch{}
	}
	return matches
}

// ForgetUser drops every pending draft of the user.
func (s *ExpenseService) ForgetUser(userID string) {
	s.tracker.Forget(userID)
}

func (s *ExpenseService) logFailure(ctx context.Context, msg string, err error, op, userID string) {
	if !isUpstream(err) {
		return
	}
	s.errors.LogError(ctx, msg, err, log.ComponentExpense, op,
		log.NewFields().WithUser(userID).WithErrorType(log.ErrorTypeDatabase))
}
