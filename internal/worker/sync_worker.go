// Package worker keeps the spreadsheet mirror in step with the store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"gota/internal/amqp"
	"gota/internal/export"
	"gota/internal/log"
	"gota/internal/sheets"
	"gota/internal/store"
)

const resyncConcurrency = 4

// SyncWorker rewrites a user's tab whenever the user's expenses change and
// drops it when the account is deleted.
type SyncWorker struct {
	expenses store.ExpenseStore
	configs  store.ConfigStore
	users    store.UserStore
	mirror   sheets.Mirror
	logger   *log.Logger
}

func NewSyncWorker(expenses store.ExpenseStore, configs store.ConfigStore, users store.UserStore, mirror sheets.Mirror, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		expenses: expenses,
		configs:  configs,
		users:    users,
		mirror:   mirror,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent processes one broker message. A returned error requeues it.
func (w *SyncWorker) HandleEvent(ctx context.Context, msg *amqp.UserEventMessage) error {
	w.logger.DebugContext(ctx, "Processing user event",
		log.FieldEventType, msg.Type,
		log.FieldUserID, msg.UserID)

	switch msg.Type {
	case amqp.EventExpenseChanged:
		return w.SyncUser(ctx, msg.UserID)
	case amqp.EventAccountDeleted:
		if err := w.mirror.DeleteUser(ctx, sheets.TabName(msg.UserID)); err != nil {
			return fmt.Errorf("delete user tab: %w", err)
		}
		w.logger.InfoContext(ctx, "Removed mirror of deleted account", log.FieldUserID, msg.UserID)
		return nil
	default:
		return fmt.Errorf("unknown event type %q", msg.Type)
	}
}

// SyncUser rewrites the user's tab from the store.
func (w *SyncWorker) SyncUser(ctx context.Context, userID string) error {
	rows, err := export.Load(ctx, w.expenses, w.configs, userID)
	if err != nil {
		return fmt.Errorf("load rows: %w", err)
	}
	if err := w.mirror.SyncUser(ctx, sheets.TabName(userID), rows); err != nil {
		return fmt.Errorf("sync user tab: %w", err)
	}
	return nil
}

// ResyncAll mirrors every user. It keeps going past individual failures and
// returns them joined.
func (w *SyncWorker) ResyncAll(ctx context.Context) error {
	ids, err := w.users.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	var (
		failed atomic.Int64
		errs   = make([]error, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resyncConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			if err := w.SyncUser(gctx, id); err != nil {
				failed.Add(1)
				errs[i] = fmt.Errorf("user %s: %w", id, err)
			}
			return nil
		})
	}
	g.Wait()

	w.logger.InfoContext(ctx, "Resync completed",
		"users", len(ids),
		"errors", failed.Load())
	return errors.Join(errs...)
}

// RunPeriodic calls ResyncAll once at start and then every interval until ctx
// is done.
func (w *SyncWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	if err := w.ResyncAll(ctx); err != nil {
		w.logger.WarnContext(ctx, "Startup resync had errors", log.FieldError, err)
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ResyncAll(ctx); err != nil {
				w.logger.WarnContext(ctx, "Periodic resync had errors", log.FieldError, err)
			}
		}
	}
}
