package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rogerio-castellano/mall-billing/internal/catalog"
	"github.com/rogerio-castellano/mall-billing/internal/config"
	"github.com/rogerio-castellano/mall-billing/internal/db"
	api "github.com/rogerio-castellano/mall-billing/internal/http"
	"github.com/rogerio-castellano/mall-billing/internal/http/handlers"
	rl "github.com/rogerio-castellano/mall-billing/internal/http/rate_limiter"
	"github.com/rogerio-castellano/mall-billing/internal/logger"
	"github.com/rogerio-castellano/mall-billing/internal/mirror"
	"github.com/rogerio-castellano/mall-billing/internal/notify"
	"github.com/rogerio-castellano/mall-billing/internal/redissvc"
	"github.com/rogerio-castellano/mall-billing/internal/repo"
	"github.com/rogerio-castellano/mall-billing/internal/sheets"
	"github.com/rogerio-castellano/mall-billing/internal/syncer"
)

// @title Mall Billing API
// @version 1.0
// @description Catalog, stock and billing API backed by a spreadsheet store with a local mirror.
// @host localhost:8080
// @BasePath /
func main() {
	cfg, err := config.Load(".env", ".")
	if err != nil {
		log.Fatalf("❌ Could not load config: %v", err)
	}

	lg, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("❌ Could not create logger: %v", err)
	}

	if err := run(cfg, lg); err != nil {
		lg.Error("server stopped", zap.Error(err))
		lg.Sync()
		os.Exit(1)
	}
	lg.Sync()
}

type storage struct {
	mirror    *mirror.Mirror
	movements repo.MovementRepository
	closers   []func() error
}

func (s *storage) Close() {
	for _, c := range s.closers {
		c()
	}
}

func openStorage(ctx context.Context, cfg config.Config, lg *logger.Logger) (*storage, error) {
	st := &storage{}

	var database *sql.DB
	if cfg.Database.URL != "" {
		conn, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		database = conn
		st.closers = append(st.closers, conn.Close)

		movements := repo.NewPostgresMovementRepository(conn)
		if err := movements.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, err
		}
		st.movements = movements
	} else {
		st.movements = repo.NewInMemoryMovementRepository()
	}

	switch cfg.Mirror.Backend {
	case config.BackendRedis:
		rdb, err := redissvc.Connect(ctx, redissvc.Options{
			URL:          cfg.Redis.URL,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			st.Close()
			return nil, err
		}
		st.closers = append(st.closers, rdb.Close)
		st.mirror = mirror.NewRedis(rdb, cfg.Mirror.Prefix)
	case config.BackendPostgres:
		m, err := mirror.NewPostgres(ctx, database)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.mirror = m
	default:
		st.mirror = mirror.NewMemory()
	}

	lg.Info("storage ready",
		zap.String("mirror", cfg.Mirror.Backend),
		zap.Bool("persistent_journal", database != nil))
	return st, nil
}

func newRemote(cfg config.Config, lg *logger.Logger) (*sheets.Client, error) {
	shape, err := sheets.ParseShape(cfg.Sheets.Shape, cfg.Sheets.BaseURL)
	if err != nil {
		return nil, err
	}
	enc, err := sheets.ParseEncoding(cfg.Sheets.Payload)
	if err != nil {
		return nil, err
	}
	var limiter *rate.Limiter
	if cfg.Sheets.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Sheets.RatePerSec), cfg.Sheets.Burst)
	}
	return sheets.New(sheets.Options{
		BaseURL:    cfg.Sheets.BaseURL,
		Shape:      shape,
		Encoding:   enc,
		HTTPClient: &http.Client{Timeout: cfg.Sheets.Timeout},
		Limiter:    limiter,
		Log:        lg.Named("sheets"),
	}), nil
}

func run(cfg config.Config, lg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg, lg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	feed := notify.NewFeed(cfg.Notify.Capacity)
	mode := catalog.ModeFor(cfg.Configured())

	opts := catalog.Options{
		Mode:      mode,
		Mirror:    st.mirror,
		Movements: st.movements,
		Feed:      feed,
		Log:       lg.Named("catalog"),
	}

	if mode == catalog.RemoteBacked {
		remote, err := newRemote(cfg, lg)
		if err != nil {
			return fmt.Errorf("remote store: %w", err)
		}
		sy := syncer.New(st.mirror, remote, syncer.Options{
			Interval: cfg.Sync.Interval,
			Log:      lg.Named("sync"),
			OnError: func(collection string, err error) {
				feed.PublishRetryable(fmt.Sprintf("Could not refresh %s: %v", collection, err))
			},
		})
		sy.Start(ctx)
		defer sy.Stop()

		opts.Remote = remote
		opts.Syncer = sy
		lg.Info("remote store configured", zap.String("shape", remote.Shape().String()))
	} else {
		lg.Warn("no remote store configured, running on the local mirror only")
	}

	facade, err := catalog.New(opts)
	if err != nil {
		return err
	}

	visitors := rl.NewVisitors(cfg.RateLimit.PerSec, cfg.RateLimit.Burst)
	go visitors.StartCleanupLoop(ctx, time.Minute, 3*time.Minute)

	server := handlers.NewServer(facade, st.movements, lg.Named("handlers"))
	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.NewRouter(server, api.RouterOptions{
			Log:      lg.Named("http"),
			Visitors: visitors,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Sheets.Timeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("✅ Server running", zap.String("addr", cfg.HTTP.Addr), zap.String("mode", mode.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down", zap.Duration("timeout", cfg.Shutdown.Timeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
