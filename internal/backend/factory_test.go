package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gota/internal/config"
	memmirror "gota/internal/sheets/memory"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", GoogleSpreadsheetID: "s"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.True(t, cfg.HasSheets())
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	t.Run("memory", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend})
		require.NoError(t, err)
		assert.NoError(t, res.Stores.Health.Ping(ctx))
		assert.NoError(t, res.Close())
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "gota.db")
		res, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
		require.NoError(t, err)
		defer res.Close()
		assert.NoError(t, res.Stores.Health.Ping(ctx))
		cfg, err := res.Stores.Config.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1", cfg.UserID)
	})

	t.Run("sqlite without path", func(t *testing.T) {
		_, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend})
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := f.CreateBackend(ctx, Config{Type: "sheets"})
		assert.Error(t, err)
	})
}

func TestCreateMirror_DefaultsToMemory(t *testing.T) {
	m, err := NewFactory(nil).CreateMirror(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)
	assert.IsType(t, &memmirror.Mirror{}, m)
}
