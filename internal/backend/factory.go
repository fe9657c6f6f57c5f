package backend

import (
	"context"
	"fmt"

	"gota/internal/log"
	"gota/internal/sheets"
	gsheet "gota/internal/sheets/google"
	memmirror "gota/internal/sheets/memory"
	"gota/internal/storage"
	"gota/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{Stores: repo.Stores(), Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context) (*BackendResult, error) {
	f.logger.WarnContext(ctx, "Initialized memory backend; data is lost on restart")
	return &BackendResult{Stores: memory.New().Stores()}, nil
}

// CreateMirror returns the Google Sheets mirror when a spreadsheet is
// configured and an in-memory one otherwise.
func (f *DefaultFactory) CreateMirror(ctx context.Context, config Config) (sheets.Mirror, error) {
	if !config.HasSheets() {
		f.logger.WarnContext(ctx, "No spreadsheet configured; mirroring to memory")
		return memmirror.New(), nil
	}

	client, err := gsheet.New(ctx, config.GoogleSpreadsheetID, gsheet.Credentials{
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
		OAuthClientJSON:    config.GoogleOAuthClientJSON,
		OAuthClientFile:    config.GoogleOAuthClientFile,
		OAuthTokenJSON:     config.GoogleOAuthTokenJSON,
		OAuthTokenFile:     config.GoogleOAuthTokenFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized Google Sheets mirror")
	return client, nil
}
