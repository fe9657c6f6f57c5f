package services

import (
	"context"
	"time"

	"gota/internal/core"
	"gota/internal/export"
	"gota/internal/log"
	"gota/internal/store"
)

// CSVExport is a ready-to-write export of every expense of a user.
type CSVExport struct {
	Filename string
	Rows     [][]string
}

type ExportService struct {
	expenses store.ExpenseStore
	configs  store.ConfigStore
	now      func() time.Time
	logger   *log.StructuredLogger
}

func NewExportService(expenses store.ExpenseStore, configs store.ConfigStore, logger *log.Logger) *ExportService {
	return &ExportService{expenses: expenses, configs: configs, now: time.Now, logger: log.NewStructuredLogger(logger)}
}

func (s *ExportService) Export(ctx context.Context, p core.Principal) (CSVExport, error) {
	rows, err := export.Load(ctx, s.expenses, s.configs, p.UserID)
	if err != nil {
		s.logger.LogError(ctx, "Failed to load export", err, log.ComponentExport, log.OpExport,
			log.NewFields().WithUser(p.UserID).WithErrorType(log.ErrorTypeDatabase))
		return CSVExport{}, err
	}
	return CSVExport{
		Filename: export.Filename(core.DateOf(s.now().In(core.Zone))),
		Rows:     rows,
	}, nil
}
