package main

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marsgrid/ticksync/internal/config"
	"github.com/marsgrid/ticksync/internal/storage/memory"
	sqlstore "github.com/marsgrid/ticksync/internal/storage/sql"
)

func TestCreateStorageBackend(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	b, closer, err := createStorageBackend(config.StorageConfig{Type: "memory"}, zerolog.Nop(), start)
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)
	assert.Nil(t, closer)

	b, _, err = createStorageBackend(config.StorageConfig{Type: "none"}, zerolog.Nop(), start)
	require.NoError(t, err)
	assert.Nil(t, b)

	b, closer, err = createStorageBackend(config.StorageConfig{
		Type:   "sqlite",
		Memory: config.MemoryConfig{OutputDir: t.TempDir()},
	}, zerolog.Nop(), start)
	require.NoError(t, err)
	sb, ok := b.(*sqlstore.Backend)
	require.True(t, ok)
	require.NoError(t, sb.Init())
	require.NoError(t, sb.Close())
	require.NotNil(t, closer)
	require.NoError(t, closer.Close())

	_, _, err = createStorageBackend(config.StorageConfig{Type: "websocket"}, zerolog.Nop(), start)
	assert.Error(t, err)
}
