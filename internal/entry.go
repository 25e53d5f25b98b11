// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/almanac/internal/api"
	"github.com/starford/almanac/internal/checksum"
	"github.com/starford/almanac/internal/dailyrecord"
	"github.com/starford/almanac/internal/index"
	"github.com/starford/almanac/internal/mcpserver"
	"github.com/starford/almanac/internal/memos"
	"github.com/starford/almanac/internal/para"
	"github.com/starford/almanac/internal/period"
	"github.com/starford/almanac/internal/periodic"
	"github.com/starford/almanac/internal/service"
	"github.com/starford/almanac/internal/storage"
	"github.com/starford/almanac/internal/vault"
)

// runtime holds the components shared by every entry point.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
	engine *dailyrecord.Engine
	svc    *service.Service
	reg    *prometheus.Registry
}

func (rt *runtime) Close() error {
	return rt.db.Close()
}

// build wires storage, index, vault and the domain components into a Service.
// Logs go to logOut so stdio-based commands keep stdout clean.
func build(app *application, logOut io.Writer) (*runtime, error) {
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("periodic_folder", cfg.Periodic.Folder),
		slog.Bool("daily_record", cfg.DailyRecord.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	loc, err := cfg.Periodic.Location()
	if err != nil {
		return nil, err
	}
	templates, err := cfg.Periodic.TemplateKinds()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial index sync failed", slog.String("error", err.Error()))
	}

	v := vault.New(store, db, logger)
	notes := periodic.New(v, periodic.Config{
		Folder:      cfg.Periodic.Folder,
		Location:    loc,
		Templates:   templates,
		DailyHeader: cfg.DailyRecord.Header,
	}, logger)
	resolver := period.NewResolver(loc, cfg.Periodic.Folder, v)
	pm := para.New(v, para.Config{
		Folders:   cfg.Para.Folders(),
		IndexName: cfg.Para.IndexName,
	}, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var engine *dailyrecord.Engine
	if dr := cfg.DailyRecord; dr.Enabled() {
		observer, err := dailyrecord.NewPrometheusObserver(reg)
		if err != nil {
			db.Close()
			return nil, err
		}
		client := memos.New(dr.API, dr.Token,
			memos.WithTimeout(dr.Timeout),
			memos.WithLogger(logger))
		engine = dailyrecord.New(client, notes, v, db, dailyrecord.Config{
			Header:           dr.Header,
			AutoCreate:       dr.AutoCreate,
			WarnMissing:      dr.WarnMissing,
			AttachmentFolder: dr.AttachmentFolder,
			Location:         loc,
			CreateDelay:      dr.CreateDelay,
			Namespace:        checksum.Namespace("daily-record", dr.Token),
			Concurrency:      dr.Concurrency,
			Observer:         observer,
		}, logger)
	} else {
		logger.Info("daily record sync disabled: api or token not set")
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		store:  store,
		db:     db,
		engine: engine,
		svc:    service.New(v, resolver, notes, pm, engine, logger),
		reg:    reg,
	}, nil
}

// Run starts the HTTP service with the vault watcher and the scheduled sync.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	rt, err := build(app, os.Stdout)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg, logger := rt.cfg, rt.logger

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token,
		filepath.Join(rt.store.Root(), filepath.FromSlash(cfg.DailyRecord.AttachmentFolder)))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.HandlerFor(rt.reg, promhttp.HandlerOpts{}))

	r.Mount("/api/"+service.Version, apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := index.Watch(gCtx, rt.db, rt.store, rt.store.Root(), logger, func(kind, path string) {
			logger.Debug("vault changed", slog.String("kind", kind), slog.String("path", path))
		})
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	if rt.engine != nil && cfg.DailyRecord.Interval > 0 {
		scheduler := dailyrecord.NewScheduler(rt.engine, cfg.DailyRecord.Interval, logger)
		g.Go(func() error {
			return scheduler.Run(gCtx)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher and scheduler stop with the server.
var errShutdown = errors.New("shutdown")

// RunSync runs one daily-record sync pass and prints its report.
func RunSync(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	rt, err := build(app, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	rep, err := rt.svc.SyncDailyRecords(ctx, app.force)
	if rep.StartedAt.IsZero() {
		return err
	}
	if perr := printJSON(app.out, rep); perr != nil {
		return perr
	}
	return err
}

// RunPeriod prints the resolution of a periodic note file name.
func RunPeriod(ctx context.Context, filename string, opts ...Option) error {
	app := newApplication(opts)
	rt, err := build(app, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	return printJSON(app.out, rt.svc.ResolvePeriod(filename))
}

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	rt, err := build(app, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := index.Watch(watchCtx, rt.db, rt.store, rt.store.Root(), rt.logger, nil); err != nil {
			rt.logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
	}()

	return mcpserver.New(rt.svc).ServeStdio()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
