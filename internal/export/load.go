package export

import (
	"context"

	"golang.org/x/sync/errgroup"

	"gota/internal/core"
	"gota/internal/store"
)

// Load reads every expense of userID, newest first, together with the card
// names and returns the export rows.
func Load(ctx context.Context, expenses store.ExpenseStore, configs store.ConfigStore, userID string) ([][]string, error) {
	var (
		rows []core.Expense
		cfg  core.UserConfig
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, _, err = expenses.Find(gctx, userID, store.ExpenseFilter{}, store.All)
		return core.Upstream("find expenses", err)
	})
	g.Go(func() error {
		var err error
		cfg, err = configs.Get(gctx, userID)
		return core.Upstream("get config", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Rows(rows, cfg), nil
}
