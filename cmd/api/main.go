package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"garageflow/assignment"
	"garageflow/booking"
	"garageflow/config"
	"garageflow/db"
	"garageflow/httpapi"
	"garageflow/identity"
	"garageflow/worker"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	if cfg.MigrationsPath != "" {
		if err := db.Migrate(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	identityRepo := identity.NewRepository(pool)
	bookingRepo := booking.NewRepository(pool)
	workerRepo := worker.NewRepository(pool)

	handlers := httpapi.Handlers{
		Identity:    identity.NewService(identityRepo, cfg.JWTSecret),
		Bookings:    booking.NewService(pool, bookingRepo),
		Workers:     worker.NewService(pool, workerRepo),
		Assignments: assignment.NewEngine(pool, bookingRepo, workerRepo),
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("http listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
}
