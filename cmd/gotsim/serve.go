package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/okian/gotsim/internal/adapters/http/api"
	"github.com/okian/gotsim/internal/adapters/http/site"
	"github.com/okian/gotsim/internal/adapters/http/swagger"
	"github.com/okian/gotsim/internal/adapters/repository"
	service "github.com/okian/gotsim/internal/app"
	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/pkg/logger"
	"github.com/okian/gotsim/pkg/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// readStore is what the web view needs from a prediction store.
type readStore interface {
	api.Store
	Count(ctx context.Context) (int, error)
}

func (c *cli) serveCommand() *cobra.Command {
	var (
		addr    string
		fromCSV string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the prediction lookup web view",
		Long: `Serve the lookup form, the JSON lookup API and the metrics endpoint.

Predictions are read from the configured database, or, with --from-csv,
from an offline score table held in memory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, closeStore, err := c.serveStore(ctx, fromCSV)
			if err != nil {
				return err
			}
			defer closeStore()
			return c.serve(ctx, orDefault(addr, c.cfg.Addr), store)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default addr)")
	cmd.Flags().StringVar(&fromCSV, "from-csv", "", "serve this offline score table from memory instead of the database")
	return cmd
}

// serveStore opens the store the web view reads from.
func (c *cli) serveStore(ctx context.Context, fromCSV string) (readStore, func(), error) {
	if fromCSV != "" {
		preds, err := service.LoadPredictions(fromCSV, c.cfg.Score.Features)
		if err != nil {
			return nil, nil, err
		}
		s, err := repository.NewMemoryStore(c.cfg.Score.Features,
			repository.WithLogger(c.log), repository.WithMetrics(c.metrics))
		if err != nil {
			return nil, nil, err
		}
		if err := s.Replace(ctx, preds, true); err != nil {
			return nil, nil, err
		}
		c.log.Info(ctx, "serving predictions from memory", logger.String("input", fromCSV), logger.Int("rows", len(preds)))
		return s, func() {}, nil
	}

	s, err := c.openStore()
	if err != nil {
		return nil, nil, err
	}
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

// newMux registers every route of the web view.
func newMux(ctx context.Context, store api.Store, log logger.Logger, m *metrics.Manager) *http.ServeMux {
	mux := http.NewServeMux()
	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	api.NewServer(store, api.WithLogger(log), api.WithMetrics(m)).Register(ctx, mux)
	return mux
}

// serve runs the HTTP server and the metrics refresher until ctx is done.
func (c *cli) serve(ctx context.Context, addr string, store readStore) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(ctx, store, c.log, c.metrics),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.log.Info(gctx, "starting HTTP server", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%w: http server: %v", failure.ErrExternal, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		c.log.Info(ctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			c.log.Error(ctx, "server shutdown failed", logger.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		refreshMetrics(gctx, c.metrics, store)
		return nil
	})

	err := g.Wait()
	c.log.Info(ctx, "server stopped")
	return err
}

// refreshMetrics updates system and store gauges until ctx is done.
func refreshMetrics(ctx context.Context, m *metrics.Manager, store readStore) {
	update := func() {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		m.UpdateSystem(ms.HeapAlloc, runtime.NumGoroutine())
		if n, err := store.Count(ctx); err == nil {
			m.SetStoreRecords(n)
		}
	}
	update()

	ticker := time.NewTicker(m.RefreshInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
