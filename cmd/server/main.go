package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nekogravitycat/hotel-pms-backend/internal/app"
	"github.com/nekogravitycat/hotel-pms-backend/internal/auth"
	"github.com/nekogravitycat/hotel-pms-backend/internal/channel"
	"github.com/nekogravitycat/hotel-pms-backend/internal/config"
	"github.com/nekogravitycat/hotel-pms-backend/internal/db"
	"github.com/nekogravitycat/hotel-pms-backend/internal/event"
	"github.com/nekogravitycat/hotel-pms-backend/internal/logger"
	"github.com/nekogravitycat/hotel-pms-backend/internal/reservation"
	"github.com/nekogravitycat/hotel-pms-backend/internal/store"
)

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.IsProduction, "hotel-pms")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	// Connect DB (optional)
	var st store.Store = store.Nop{}
	if cfg.DBDSN != "" {
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			lg.Fatal("failed to connect to db", zap.Error(err))
		}
		defer pool.Close()

		pg := store.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			lg.Fatal("failed to migrate schema", zap.Error(err))
		}
		st = pg
	} else {
		lg.Warn("DB_DSN not set, state is kept in memory only")
	}

	// Connect Redis (optional)
	var publisher event.Publisher = event.NewLogPublisher(lg.Named("event"))
	if cfg.RedisAddr != "" {
		client, err := db.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			lg.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		publisher = event.NewRedisPublisher(client, cfg.EventStream, 100000)
	}

	var operators []auth.Operator
	if cfg.OperatorEmail != "" {
		operators = append(operators, auth.Operator{
			Email:        cfg.OperatorEmail,
			Role:         auth.RoleManager,
			PasswordHash: cfg.OperatorPasswordHash,
		})
	}

	container := app.NewContainer(app.Config{
		IsProduction:   cfg.IsProduction,
		ProdOrigins:    cfg.ProdOrigins,
		Store:          st,
		Publisher:      publisher,
		Logger:         lg,
		JWTSecret:      cfg.JWTSecret,
		JWTTTL:         cfg.JWTAccessTokenTTL,
		BcryptCost:     cfg.BcryptCost,
		LockTimeout:    cfg.LockTimeout,
		ChannelTimeout: cfg.ChannelTimeout,
		Property:       cfg.Property,
		Operators:      operators,
	})
	if container.Operators.Len() == 0 {
		lg.Warn("no operators configured, login is disabled")
	}

	if err := container.Restore(ctx); err != nil {
		lg.Fatal("failed to restore state", zap.Error(err))
	}
	if err := container.Seed(ctx); err != nil {
		lg.Fatal("failed to seed property", zap.Error(err))
	}

	// Background workers
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		reservation.NewSweeper(container.Reservations, cfg.NoShowSweepInterval, lg.Named("sweeper")).Run(ctx)
	}()
	go func() {
		defer wg.Done()
		channel.NewPoller(container.Channels, cfg.ChannelPollInterval, lg.Named("poller")).Run(ctx)
	}()

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in separate goroutine
	go func() {
		lg.Info("server running", zap.String("addr", cfg.HTTPAddr), zap.String("property", cfg.Property.Code))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for Ctrl+C
	<-ctx.Done()
	lg.Info("shutdown signal received")

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Warn("server forced to shutdown", zap.Error(err))
	}
	wg.Wait()

	lg.Info("server exited gracefully")
}
