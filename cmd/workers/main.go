package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"luma-ledger/ledger-backend/internal/config"
	"luma-ledger/ledger-backend/internal/emissions/factors"
	"luma-ledger/ledger-backend/pkg/logger"
)

// The factor worker keeps the emission_factors table in line with the seed
// file. Every run re-reads the file, upserts it and then loads the whole
// table once to check that the API will accept it.
func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}

	log := logger.Must(logger.New(cfg.Logging.Level)).Named("factor-worker")
	defer log.Sync()

	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal("Failed to open gorm session", zap.Error(err))
	}

	refresher := factors.NewRefresher(factors.NewGormRepository(gdb), factors.NewStore(nil), log)
	sync := func(ctx context.Context) error {
		seed, err := factors.LoadYAMLFile(cfg.Factors.SeedPath)
		if err != nil {
			return err
		}
		if err := refresher.Sync(ctx, seed); err != nil {
			return err
		}
		return refresher.Refresh(ctx)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sync(ctx); err != nil {
		log.Error("Initial factor sync failed", zap.Error(err))
	}

	c, err := factors.Schedule(ctx, cfg.Factors.RefreshSchedule, sync, nil, log)
	if err != nil {
		log.Fatal("Failed to schedule factor sync", zap.Error(err))
	}
	log.Info("Factor worker started",
		zap.String("schedule", cfg.Factors.RefreshSchedule),
		zap.String("seed", cfg.Factors.SeedPath),
		zap.Int("jobs", len(c.Entries())))

	<-ctx.Done()
	log.Info("Shutting down factor worker...")
}
