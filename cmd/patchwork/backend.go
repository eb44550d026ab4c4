package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arloliu/patchwork"
	"github.com/arloliu/patchwork/types"
	"github.com/arloliu/patchwork/writer"
)

// storage is a configured writer plus whatever must be released with it.
type storage struct {
	w       types.Writer
	release func()
}

// lister is implemented by writers that can enumerate their entries.
type lister interface {
	Entries(ctx context.Context) ([]string, error)
}

// newStorage builds the writer selected by cfg. The writer is not opened.
func newStorage(cfg patchwork.WriterConfig, opts ...writer.Option) (*storage, error) {
	opts = append(opts, writer.WithChecksumVerification(cfg.VerifyChecksums))

	switch cfg.Backend {
	case patchwork.BackendMemory:
		return &storage{w: writer.NewMemory(opts...), release: func() {}}, nil
	case patchwork.BackendSQLite:
		return &storage{w: writer.NewSQLite(cfg.SQLitePath, opts...), release: func() {}}, nil
	case patchwork.BackendNATS:
		nc, err := nats.Connect(cfg.NATSURL,
			nats.Name("patchwork"),
			nats.Timeout(cfg.OperationTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
		}
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}

		return &storage{w: writer.NewObjectStore(js, cfg.Bucket, opts...), release: nc.Close}, nil
	default:
		return nil, fmt.Errorf("%w: unknown writer.backend %q", patchwork.ErrInvalidConfig, cfg.Backend)
	}
}

// entries lists the writer's entries when the backend supports it.
func (s *storage) entries(ctx context.Context) ([]string, error) {
	switch w := s.w.(type) {
	case *writer.Memory:
		return w.Entries(), nil
	case lister:
		return w.Entries(ctx)
	default:
		return nil, fmt.Errorf("writer %T cannot list entries", s.w)
	}
}

// serveMetrics exposes the registry on addr until ctx ends.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger types.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}

	return nil
}
