// Command kanband runs the kanban API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alandsidel/kanban/internal/auth"
	"github.com/alandsidel/kanban/internal/config"
	"github.com/alandsidel/kanban/internal/database"
	"github.com/alandsidel/kanban/internal/kanban"
	"github.com/alandsidel/kanban/internal/server"
	"github.com/alandsidel/kanban/internal/session"
	"github.com/alandsidel/kanban/internal/store"
)

func main() {
	configPath := flag.String("config", "kanband.yaml", "path to config file")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if err := run(*configPath); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	if err := bootstrapAdmin(ctx, db); err != nil {
		return err
	}

	sessionStore, err := newSessionStore(cfg, db)
	if err != nil {
		return err
	}
	defer sessionStore.Close()

	sessions := session.NewManager(session.Config{
		Store:      sessionStore,
		CookieName: cfg.Session.CookieName,
		Lifetime:   cfg.Session.Lifetime,
	})

	repo := kanban.NewRepository(db)
	guard := auth.NewGuard(db, cfg.Auth.RevalidateAdmin)
	srv := server.New(cfg, repo, guard, sessions)

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddr, err)
	}

	httpServer := &http.Server{Handler: srv.Handler()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	slog.Info("server listening", "addr", listener.Addr().String(), "db", cfg.DB.DSN)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
	}

	return nil
}

// bootstrapAdmin seeds the initial admin account on a fresh database and
// logs its generated password exactly once.
func bootstrapAdmin(ctx context.Context, db *database.DB) error {
	password, err := auth.GeneratePassword(12)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	created, err := database.SeedAdmin(ctx, db, "admin", hash)
	if err != nil {
		return err
	}
	if created {
		slog.Info("admin user created", "username", "admin", "password", password)
	}
	return nil
}

func newSessionStore(cfg config.Config, db *database.DB) (store.Store, error) {
	opts := store.Options{
		Lifetime:      cfg.Session.Lifetime,
		GCProbability: cfg.Session.GCProbability,
	}

	switch cfg.Session.Store {
	case "", "db":
		if db.Driver() == database.DriverPostgres {
			return store.NewPostgresStore(db, opts)
		}
		return store.NewSQLiteStore(db, opts)
	case "memcached":
		if len(cfg.Session.MemcachedAddrs) == 0 {
			return nil, errors.New("memcached session store requires memcached_addrs")
		}
		return store.NewMemcachedStore(opts, cfg.Session.MemcachedAddrs...), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}
