package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	api "github.com/mind-engage/coursegate/internal/api/http"
	auth "github.com/mind-engage/coursegate/internal/auth/middleware"
	"github.com/mind-engage/coursegate/internal/config"
	"github.com/mind-engage/coursegate/internal/db"
	"github.com/mind-engage/coursegate/internal/logger"
	"github.com/mind-engage/coursegate/internal/progression"
	syncx "github.com/mind-engage/coursegate/internal/sync"
)

func main() {
	cfg := config.FromEnv()

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	err = run(cfg, lg)
	if err != nil {
		lg.Error("gateway stopped", "error", err)
	}
	lg.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run owns every resource the gateway opens so they are released before main exits.
func run(cfg config.Config, lg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		return fmt.Errorf("db open (%s): %w", cfg.DBDriver, err)
	}
	defer dbh.Close()

	events := syncx.NewEventRepo(cfg.Events.SiteID)
	coord := progression.New(progression.Deps{
		DB:     dbh,
		Config: cfg,
		Log:    lg,
		Events: events,
	})

	// --- Outbox relay (Redis when configured, log otherwise) ---
	var pub syncx.Publisher = syncx.NewLogPublisher(lg)
	if cfg.Events.RedisAddr != "" {
		rp, err := syncx.NewRedisPublisher(ctx, lg, cfg.Events.RedisAddr, cfg.Events.RedisChannel)
		if err != nil {
			return fmt.Errorf("redis publisher %s: %w", cfg.Events.RedisAddr, err)
		}
		pub = rp
	}
	defer pub.Close()

	relay := syncx.NewRelay(dbh, events, pub, lg, cfg.Events.RelayBatch)
	sched, err := relay.Schedule(cfg.Events.RelaySchedule)
	if err != nil {
		return fmt.Errorf("event relay schedule %q: %w", cfg.Events.RelaySchedule, err)
	}

	// --- HTTP ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(cfg, lg, dbh, coord, authSvc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")
		<-sched.Stop().Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		// flush whatever the last requests appended
		if _, err := relay.RunOnce(shutdownCtx); err != nil {
			lg.Warn("final relay run", "error", err)
		}
		return nil
	})

	return g.Wait()
}
