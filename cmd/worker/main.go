package main

import (
	"context"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/studymate/study-mate-backend/config"
	"github.com/studymate/study-mate-backend/internal/bootstrap"
	"github.com/studymate/study-mate-backend/internal/connections/reconcile"
	"github.com/studymate/study-mate-backend/internal/logger"
	"github.com/studymate/study-mate-backend/internal/storage/postgres"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: worker <migrate|reconcile>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.App.Environment, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()

	switch os.Args[1] {
	case "migrate":
		err = runMigrate(ctx, cfg, zl)
	case "reconcile":
		err = runReconcile(ctx, cfg, zl)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
	if err != nil {
		zl.Fatal(os.Args[1]+" failed", zap.Error(err))
	}
}

func runMigrate(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	db, err := postgres.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}
	zl.Info("schema applied")
	return nil
}

func runReconcile(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	pool, err := bootstrap.OpenPool(ctx, bootstrap.DBOptions{DSN: postgres.DSN(&cfg.Database)})
	if err != nil {
		return err
	}
	defer pool.Close()

	report, err := reconcile.NewReconciler(pool, zl, 5*time.Minute).Run(ctx)
	if err != nil {
		return err
	}
	zl.Info("reconcile finished",
		zap.Int64("users_repaired", report.UsersRepaired),
		zap.Int64("partners_repaired", report.PartnersRepaired),
		zap.Duration("took", report.Took))
	return nil
}
