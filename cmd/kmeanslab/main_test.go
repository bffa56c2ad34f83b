package main

import (
	"context"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kmeanslab/internal/config"
	"github.com/hupe1980/kmeanslab/snapshot"
)

func TestRun_Dispatch(t *testing.T) {
	ctx := context.Background()

	assert.ErrorIs(t, run(ctx, nil), flag.ErrHelp)
	assert.NoError(t, run(ctx, []string{"help"}))
	assert.ErrorContains(t, run(ctx, []string{"bogus"}), "unknown command")
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default().Storage
	store, err := openStore(ctx, cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, store)

	cfg.Backend = "local"
	cfg.Path = t.TempDir()
	store, err = openStore(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "a", []byte("x")))

	cfg.Backend = "tape"
	_, err = openStore(ctx, cfg, nil)
	assert.Error(t, err)
}

func TestOpenRepository(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default().Storage
	cfg.Compression = "lz4"

	repo, err := openRepository(ctx, cfg, nil)
	require.NoError(t, err)

	names, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	cfg.Compression = "brotli"
	_, err = openRepository(ctx, cfg, nil)
	assert.Error(t, err)

	_, err = snapshot.ParseCompression("zstd")
	assert.NoError(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Format = "text"

	logger, err := newLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	cfg.Log.Level = "loud"
	_, err = newLogger(cfg)
	assert.Error(t, err)
}
