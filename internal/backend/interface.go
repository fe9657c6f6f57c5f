// Package backend builds the store and mirror implementations selected by
// configuration.
package backend

import (
	"context"

	"gota/internal/sheets"
	"gota/internal/store"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the stores and an optional cleanup function
type BackendResult struct {
	Stores  store.Stores
	Cleanup CleanupFunc
}

// Close runs Cleanup when there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateMirror returns the spreadsheet mirror used by the worker.
	CreateMirror(ctx context.Context, config Config) (sheets.Mirror, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string

	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenJSON     string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
