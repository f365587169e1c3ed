package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/iconidentify/dispatcher/internal/api"
	"github.com/iconidentify/dispatcher/internal/api/handler"
	"github.com/iconidentify/dispatcher/internal/archive"
	"github.com/iconidentify/dispatcher/internal/config"
	"github.com/iconidentify/dispatcher/internal/domain"
	"github.com/iconidentify/dispatcher/internal/preview"
	"github.com/iconidentify/dispatcher/internal/repository"
	"github.com/iconidentify/dispatcher/internal/service"
	"github.com/iconidentify/dispatcher/internal/sink"
	"github.com/iconidentify/dispatcher/internal/watcher"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file (.yaml or .toml)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dispatcher %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	logger.Info("starting dispatcher",
		"version", Version,
		"build_time", BuildTime,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("dispatcher failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One session per machine
	if err := os.MkdirAll(filepath.Dir(cfg.Server.LockPath), 0755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(cfg.Server.LockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another dispatcher instance is already running")
	}
	defer lock.Unlock()

	if err := os.MkdirAll(cfg.Storage.TempPath, 0755); err != nil {
		return fmt.Errorf("create temp directory: %w", err)
	}

	// Initialize dependencies
	out, err := sink.New(ctx, cfg.Sink, logger)
	if err != nil {
		return fmt.Errorf("create sink: %w", err)
	}
	history, err := repository.NewExportHistory(cfg.History.SQLitePath, cfg.History.Size)
	if err != nil {
		return fmt.Errorf("open export history: %w", err)
	}
	defer history.Close()

	store := repository.NewUploadStore(cfg.Storage.TempPath, cfg.Storage.MaxUploadSize)
	previews := preview.NewRegistry()

	// Initialize services
	ws := domain.NewWorkspace(cfg.Workspace.DefaultFolders...).WithPlaceholder(cfg.Workspace.PlaceholderName)
	workspaceSvc := service.NewWorkspaceService(ws, previews, logger)
	defer workspaceSvc.Close()

	exportSvc := service.NewExportService(
		workspaceSvc,
		archive.NewBuilder(cfg.Workspace.FallbackExtension),
		out,
		history,
		logger,
	)

	// Optional inbox directory
	var inbox *watcher.Inbox
	if cfg.Inbox.Dir != "" {
		inbox = watcher.New(watcher.Config{Dir: cfg.Inbox.Dir, Settle: cfg.Inbox.Settle}, workspaceSvc, logger)
		if err := inbox.Start(ctx); err != nil {
			return fmt.Errorf("start inbox: %w", err)
		}
	}

	// Initialize handlers
	outputDir := ""
	if cfg.Sink.Kind == config.SinkDesktop {
		outputDir = out.Location()
	}
	router := api.NewRouter(
		handler.NewWorkspaceHandler(workspaceSvc, store, logger),
		handler.NewExportHandler(exportSvc, cfg.Storage.MaxUploadSize, logger),
		handler.NewPreviewHandler(workspaceSvc, logger),
		handler.NewHealthHandler(workspaceSvc, exportSvc, history, cfg.Storage.TempPath, outputDir),
		handler.NewUIHandler(),
		logger,
		cfg.Server.APIKey,
	)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr, "sink", out.Location())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("shutting down")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if inbox != nil {
		if err := inbox.Stop(5 * time.Second); err != nil {
			logger.Error("inbox shutdown error", "error", err)
		}
	}
	return nil
}
