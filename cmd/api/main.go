package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/studymate/study-mate-backend/config"
	"github.com/studymate/study-mate-backend/internal/auth"
	authservice "github.com/studymate/study-mate-backend/internal/auth/service"
	"github.com/studymate/study-mate-backend/internal/auth/session"
	"github.com/studymate/study-mate-backend/internal/bootstrap"
	"github.com/studymate/study-mate-backend/internal/connections/reconcile"
	"github.com/studymate/study-mate-backend/internal/logger"
	"github.com/studymate/study-mate-backend/internal/metrics"
	"github.com/studymate/study-mate-backend/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.App.Environment, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	sqlDB, err := postgres.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := postgres.EnsureSchema(ctx, sqlDB); err != nil {
		return err
	}

	pool, err := bootstrap.OpenPool(ctx, bootstrap.DBOptions{
		DSN:      postgres.DSN(&cfg.Database),
		MaxConns: int32(cfg.Database.MaxConns),
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb := bootstrap.OpenRedis(ctx, &cfg.Redis, zl)
	if rdb != nil {
		defer rdb.Close()
	}

	var verifier authservice.IdentityVerifier
	if cfg.Firebase.CredentialsPath != "" {
		fb, err := auth.InitializeFirebase(ctx, &cfg.Firebase)
		if err != nil {
			zl.Warn("firebase init failed, federated login disabled", zap.Error(err))
		} else {
			verifier = auth.NewFirebaseVerifier(fb)
		}
	} else {
		zl.Info("FIREBASE_CREDENTIALS_PATH not set, federated login disabled")
	}

	issuer, err := session.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTExpiresIn)
	if err != nil {
		return err
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		Config:   cfg,
		Log:      zl,
		SQL:      sqlDB,
		Pool:     pool,
		Redis:    rdb,
		Sessions: issuer,
		Verifier: verifier,
		Gatherer: prometheus.DefaultGatherer,
	})

	scheduler := reconcile.NewScheduler(reconcile.NewReconciler(pool, zl, time.Minute), zl)
	if err := scheduler.Start(cfg.Requests.ReconcileCron); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Environment))
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

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}
