package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ggoodman/appfunctions-go/catalog"
	"github.com/ggoodman/appfunctions-go/functions"
	"github.com/ggoodman/appfunctions-go/storage"
	"github.com/ggoodman/appfunctions-go/storage/memory"
	"github.com/ggoodman/appfunctions-go/storage/redis"
)

// runtime bundles the pieces every command needs: a function service over
// the configured storage, loaded from the catalog directory.
type runtime struct {
	cfg     Config
	log     *slog.Logger
	store   storage.Storage
	svc     *functions.Service
	catalog *catalog.Catalog
}

func newStorage(cfg Config) (storage.Storage, error) {
	if cfg.RedisURL == "" {
		st, err := memory.New(memory.Unbounded)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	st, err := redis.NewFromURL(cfg.RedisURL, cfg.RedisPrefix)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// newRuntime builds the service and loads the catalog. Documents that fail to
// load are reported through the logger; they do not stop the others.
func newRuntime(ctx context.Context, cfg Config, log *slog.Logger, reg prometheus.Registerer) (*runtime, error) {
	store, err := newStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	opts := []functions.Option{functions.WithLogger(log), functions.WithStorage(store)}
	if reg != nil {
		opts = append(opts, functions.WithMetricsRegisterer(reg))
	}
	svc, err := functions.NewService(opts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	rt := &runtime{
		cfg:     cfg,
		log:     log,
		store:   store,
		svc:     svc,
		catalog: catalog.New(cfg.CatalogDir, svc, catalog.WithLogger(log)),
	}
	if err := rt.catalog.Load(ctx); err != nil {
		log.WarnContext(ctx, "appfunctions.catalog.partial", slog.String("dir", cfg.CatalogDir), slog.String("err", err.Error()))
	}
	return rt, nil
}

func (rt *runtime) Close() error {
	return errors.Join(rt.svc.Close(), rt.store.Close())
}
