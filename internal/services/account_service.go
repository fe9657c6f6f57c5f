package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"gota/internal/amqp"
	"gota/internal/core"
	"gota/internal/log"
	"gota/internal/store"
)

// ErrAuthDeletion means the user's data is gone but the login could not be
// removed. The client is told so explicitly.
var ErrAuthDeletion = errors.New("account data deleted but the login could not be removed")

// PrincipalDeleter removes the authenticated principal and its sessions.
type PrincipalDeleter interface {
	DeleteUser(ctx context.Context, userID string) error
}

// AccountService deletes a user and everything the user owns.
type AccountService struct {
	expenses  store.ExpenseStore
	income    store.IncomeStore
	configs   store.ConfigStore
	auth      PrincipalDeleter
	publisher EventPublisher
	forget    []func(userID string)
	logger    *log.Logger
	errors    *log.StructuredLogger
}

// NewAccountService creates the service. forget hooks run after a successful
// deletion to drop any per-user in-memory state.
func NewAccountService(stores store.Stores, auth PrincipalDeleter, publisher EventPublisher, logger *log.Logger, forget ...func(userID string)) *AccountService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AccountService{
		expenses:  stores.Expenses,
		income:    stores.Income,
		configs:   stores.Config,
		auth:      auth,
		publisher: publisher,
		forget:    forget,
		logger:    logger.WithComponent(log.ComponentAccount),
		errors:    log.NewStructuredLogger(logger),
	}
}

// Delete removes expenses, income rows and settings concurrently, then the
// principal. A failed data delete leaves the principal in place so the user
// can retry.
func (s *AccountService) Delete(ctx context.Context, p core.Principal) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return wrapDelete("expenses", s.expenses.DeleteAll(gctx, p.UserID))
	})
	g.Go(func() error {
		return wrapDelete("income", s.income.DeleteAll(gctx, p.UserID))
	})
	g.Go(func() error {
		return wrapDelete("config", s.configs.DeleteAll(gctx, p.UserID))
	})
	if err := g.Wait(); err != nil {
		s.errors.LogError(ctx, "Account data deletion failed", err, log.ComponentAccount, log.OpDelete,
			log.NewFields().WithUser(p.UserID).WithErrorType(log.ErrorTypeDatabase))
		return core.Upstream("delete account data", err)
	}

	if err := s.auth.DeleteUser(ctx, p.UserID); err != nil {
		s.errors.LogError(ctx, "Principal deletion failed", err, log.ComponentAccount, log.OpDelete,
			log.NewFields().WithUser(p.UserID).WithErrorType(log.ErrorTypeAuth))
		return fmt.Errorf("%w: %w", ErrAuthDeletion, err)
	}

	for _, f := range s.forget {
		f(p.UserID)
	}
	s.logger.InfoContext(ctx, "Account deleted", log.FieldUserID, p.UserID)
	notify(ctx, s.publisher, s.logger, amqp.EventAccountDeleted, p.UserID, "")
	return nil
}

func wrapDelete(what string, err error) error {
	if err != nil {
		return fmt.Errorf("delete %s: %w", what, err)
	}
	return nil
}
