package cmd

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/oneconcern/microkernel/pkg/backend"
	"github.com/oneconcern/microkernel/pkg/backend/bdgr"
	"github.com/oneconcern/microkernel/pkg/blob"
	"github.com/oneconcern/microkernel/pkg/dlogger"
	"github.com/oneconcern/microkernel/pkg/kernel"
	"github.com/oneconcern/microkernel/pkg/metrics"
	"github.com/oneconcern/microkernel/pkg/replicated"
	"github.com/oneconcern/microkernel/pkg/revstore"
	"github.com/oneconcern/microkernel/pkg/storage"
	"github.com/oneconcern/microkernel/pkg/storage/localfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// env holds the shared resources of a command
type env struct {
	l *zap.Logger
	m *metrics.Metrics
}

func newEnv(cfg *Config) (*env, *http.Server, error) {
	l, err := dlogger.GetLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	m := metrics.New("mk")
	if cfg.MetricsAddr == "" {
		return &env{l: l, m: m}, nil, nil
	}

	registry := prometheus.NewRegistry()
	if err = m.Register(registry); err != nil {
		return nil, nil, err
	}
	srv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return &env{l: l, m: m}, srv, nil
}

// dirFs roots a filesystem in some sub-directory of the repository
func dirFs(cfg *Config, sub string) afero.Fs {
	if cfg.Backend == backendMemory {
		return afero.NewMemMapFs()
	}
	return afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(cfg.Dir, sub))
}

func openBackend(cfg *Config, e *env) (backend.Backend, error) {
	switch cfg.Backend {
	case backendMemory:
		return backend.NewMemory(), nil
	case backendLocalFS:
		objects, err := localfs.New(dirFs(cfg, "revisions"))
		if err != nil {
			return nil, err
		}
		return backend.NewStorage(storage.Instrument(objects, storage.Logger(e.l), storage.Metrics(e.m))), nil
	case backendBadger:
		db, err := bdgr.New(filepath.Join(cfg.Dir, "badger"),
			bdgr.ValueLogFileSize(cfg.valueLogFileSize),
			bdgr.Logger(e.l),
		)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}
}

// openStore opens and initializes the revision store of a repository
func openStore(ctx context.Context, cfg *Config, e *env) (revstore.RevisionStore, error) {
	b, err := openBackend(cfg, e)
	if err != nil {
		return nil, err
	}

	var store revstore.RevisionStore
	if cfg.Distributed {
		shared, ok := b.(backend.Shared)
		if !ok {
			_ = b.Close()
			return nil, fmt.Errorf("backend %v does not support distributed commits", b)
		}
		store = replicated.New(shared,
			replicated.CacheSize(cfg.CacheSize),
			replicated.Retries(cfg.Retries),
			replicated.RetryDelay(cfg.retryDelay),
			replicated.Ordered(cfg.Ordered),
			replicated.Logger(e.l),
			replicated.Metrics(e.m),
		)
	} else {
		store = revstore.New(b,
			revstore.CacheSize(cfg.CacheSize),
			revstore.Ordered(cfg.Ordered),
			revstore.Logger(e.l),
			revstore.Metrics(e.m),
		)
	}
	if err = store.Initialize(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	return store, nil
}

// openKernel opens the repository described by the configuration
func openKernel(ctx context.Context, cfg *Config) (*kernel.MicroKernel, error) {
	e, srv, err := newEnv(cfg)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg, e)
	if err != nil {
		if srv != nil {
			_ = srv.Close()
		}
		return nil, err
	}

	objects, err := localfs.New(dirFs(cfg, "blobs"))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	opts := []kernel.Option{
		kernel.Logger(e.l),
		kernel.Blobs(blob.New(storage.Instrument(objects, storage.Logger(e.l), storage.Metrics(e.m)), blob.Logger(e.l))),
	}
	if srv != nil {
		opts = append(opts, kernel.CloseWith(srv))
	}
	return kernel.New(store, opts...), nil
}

// withKernel runs a command against the configured repository
func withKernel(ctx context.Context, fn func(*kernel.MicroKernel) error) (err error) {
	k, err := openKernel(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := k.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(k)
}
