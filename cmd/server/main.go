package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/frametech/leads-dashboard/internal/api"
	"github.com/frametech/leads-dashboard/internal/config"
	"github.com/frametech/leads-dashboard/internal/dashboard"
	"github.com/frametech/leads-dashboard/internal/feed"
	"github.com/frametech/leads-dashboard/internal/middleware/custom"
	"github.com/frametech/leads-dashboard/internal/session"
	"github.com/frametech/leads-dashboard/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run returns instead of exiting so deferred closes always happen.
func run() error {
	cfg, err := config.Load(os.Getenv("LEADS_CONFIG"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg.LogLevel)

	if cfg.IsSQLite() {
		// Ensure DB directory exists
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath()), 0o755); err != nil {
			log.Warnf("failed to create db directory: %v", err)
		}
	}

	rs, err := store.Open(cfg.BackendURL, cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to open leads backend: %w", err)
	}
	defer rs.Close()

	sqliteStore, _ := rs.(*store.Store)
	flags, err := session.OpenFlagStore(cfg.SessionKind(), sqliteStore)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	changes, err := feed.Open(cfg.ChangesURL, cfg.PollInterval)
	if err != nil {
		return fmt.Errorf("failed to open change feed: %w", err)
	}

	d := dashboard.New(rs, changes)
	srv, err := api.NewServer(d, session.Gate{
		Username:     cfg.AdminUsername,
		Password:     cfg.AdminPassword,
		PasswordHash: cfg.AdminPasswordHash,
	}, flags)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	srv.LoginLimiter = custom.NewRateLimiter(rate.Every(cfg.LoginEvery), cfg.LoginBurst)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := d.Run(ctx); err != nil {
			log.WithError(err).Error("live updates disabled")
		}
	}()

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr":     cfg.Listen,
			"backend":  backendKind(cfg),
			"sessions": sessionKind(cfg),
		}).Info("leads dashboard listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
	return nil
}

func setupLogging(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// backendKind names the backend without leaking credentials from the URL.
func backendKind(cfg *config.Config) string {
	if cfg.IsSQLite() {
		return "sqlite:" + cfg.SQLitePath()
	}
	scheme, _, _ := strings.Cut(cfg.BackendURL, ":")
	return scheme
}

func sessionKind(cfg *config.Config) string {
	k := cfg.SessionKind()
	if strings.HasPrefix(k, "redis") {
		return "redis"
	}
	return k
}
