package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/kmeanslab"
	"github.com/hupe1980/kmeanslab/blobstore"
	"github.com/hupe1980/kmeanslab/blobstore/minio"
	"github.com/hupe1980/kmeanslab/blobstore/s3"
	"github.com/hupe1980/kmeanslab/codec"
	"github.com/hupe1980/kmeanslab/internal/config"
	"github.com/hupe1980/kmeanslab/internal/server"
	"github.com/hupe1980/kmeanslab/resource"
	"github.com/hupe1980/kmeanslab/snapshot"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "YAML configuration file")
		envFile    = fs.String("env", "", "dotenv file (default .env if present)")
		addr       = fs.String("addr", "", "listen address, overrides the configuration")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	rc := resource.NewController(resource.Config{
		RequestsPerSecond: cfg.Limits.RequestsPerSecond,
		Burst:             cfg.Limits.Burst,
		MaxConcurrentRuns: cfg.Limits.MaxConcurrentRuns,
		MemoryLimitBytes:  cfg.Limits.MemoryLimitBytes,
	})

	repo, err := openRepository(ctx, cfg.Storage, rc)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server,
		server.WithLogger(logger),
		server.WithResourceController(rc),
		server.WithSessionCapacity(cfg.Sessions.Capacity),
		server.WithQueueTimeout(cfg.Limits.QueueTimeout),
		server.WithSnapshotRepository(repo),
	)

	logger.Info("starting kmeanslab",
		"addr", cfg.Server.Addr,
		"storage", cfg.Storage.Backend,
		"compression", cfg.Storage.Compression,
		"session_capacity", cfg.Sessions.Capacity,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Listen(cfg.Server.Addr)
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func newLogger(cfg config.Config) (*kmeanslab.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		return kmeanslab.NewTextLogger(level), nil
	default:
		return kmeanslab.NewJSONLogger(level), nil
	}
}

// openStore builds the blob store selected by cfg.Backend. Remote backends
// get a read cache when CacheBytes is positive.
func openStore(ctx context.Context, cfg config.StorageConfig, rc *resource.Controller) (blobstore.Store, error) {
	var (
		store  blobstore.Store
		remote bool
	)

	switch strings.ToLower(cfg.Backend) {
	case "memory":
		store = blobstore.NewMemoryStore()
	case "local":
		store = blobstore.NewLocalStore(cfg.Path)
	case "minio":
		ms, err := minio.Dial(ctx, cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Secure, cfg.Bucket, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("minio storage: %w", err)
		}
		store, remote = ms, true
	case "s3":
		ss, err := s3.NewStoreFromEnv(ctx, cfg.Bucket, cfg.Prefix, cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("s3 storage: %w", err)
		}
		store, remote = ss, true
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	if remote && cfg.CacheBytes > 0 {
		store = blobstore.NewCachingStore(store, cfg.CacheBytes, rc)
	}

	return store, nil
}

func openRepository(ctx context.Context, cfg config.StorageConfig, rc *resource.Controller) (*snapshot.Repository, error) {
	store, err := openStore(ctx, cfg, rc)
	if err != nil {
		return nil, err
	}

	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	comp, err := snapshot.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	return snapshot.NewRepository(store, snapshot.Options{Codec: c, Compression: comp}), nil
}
