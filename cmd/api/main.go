package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	v1 "luma-ledger/ledger-backend/api/v1"
	"luma-ledger/ledger-backend/internal/audit"
	"luma-ledger/ledger-backend/internal/config"
	"luma-ledger/ledger-backend/internal/documents"
	"luma-ledger/ledger-backend/internal/emissions/factors"
	"luma-ledger/ledger-backend/internal/metrics"
	"luma-ledger/ledger-backend/internal/notifications"
	"luma-ledger/ledger-backend/internal/ocr"
	"luma-ledger/ledger-backend/internal/pipeline"
	"luma-ledger/ledger-backend/internal/reports"
	"luma-ledger/ledger-backend/internal/reports/dashboard"
	"luma-ledger/ledger-backend/pkg/cloud"
	"luma-ledger/ledger-backend/pkg/logger"
	"luma-ledger/ledger-backend/pkg/storage"
)

const dashboardTTL = 5 * time.Minute

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}

	log := logger.Must(logger.New(cfg.Logging.Level))
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	log.Info("Connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.String("db", cfg.Database.DBName))
	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal("Failed to open gorm session", zap.Error(err))
	}

	reg := metrics.NewRegistry()

	// Emission factors: seed an empty table, then serve from memory.
	seed, err := factors.LoadYAMLFile(cfg.Factors.SeedPath)
	if err != nil {
		log.Fatal("Failed to load factor seed", zap.String("path", cfg.Factors.SeedPath), zap.Error(err))
	}
	seedTable, err := factors.NewTable(seed)
	if err != nil {
		log.Fatal("Invalid factor seed", zap.Error(err))
	}
	store := factors.NewStore(seedTable)
	refresher := factors.NewRefresher(factors.NewGormRepository(gdb), store, log.Named("factors"))
	if err := refresher.SeedIfEmpty(ctx, seed); err != nil {
		log.Warn("Could not seed emission factors", zap.Error(err))
	}
	refresh := func(ctx context.Context) error {
		err := refresher.Refresh(ctx)
		reg.ObserveFactorRefresh(err, store.Snapshot().Len())
		return err
	}
	if err := refresh(ctx); err != nil {
		log.Warn("Serving the seed factor table", zap.Error(err))
	}
	if _, err := factors.Schedule(ctx, cfg.Factors.RefreshSchedule, refresh, nil, log.Named("factors")); err != nil {
		log.Fatal("Failed to schedule factor refresh", zap.Error(err))
	}

	// AWS clients are only built for the services that are configured.
	var awsCfg *aws.Config
	awsConfig := func() aws.Config {
		if awsCfg == nil {
			c, err := cloud.LoadConfig(ctx, cloud.Options{
				Region:          cfg.Storage.Region,
				AccessKeyID:     cfg.Storage.AccessKeyID,
				SecretAccessKey: cfg.Storage.SecretAccessKey,
			})
			if err != nil {
				log.Fatal("Failed to load AWS configuration", zap.Error(err))
			}
			awsCfg = &c
		}
		return *awsCfg
	}

	var (
		objects storage.S3Client
		bucket  = cfg.Storage.Bucket
	)
	if bucket != "" {
		objects = storage.NewS3Client(awsConfig(), storage.S3Options{
			Endpoint:     cfg.Storage.Endpoint,
			UsePathStyle: cfg.Storage.UsePathStyle,
		})
	} else {
		log.Warn("No storage bucket configured, keeping documents in memory")
		objects = storage.NewMemoryClient()
		bucket = "local"
	}

	var alerts documents.AlertPublisher
	if arn := cfg.Notifications.FactorGapTopicARN; arn != "" {
		alerts = notifications.NewPublisher(sns.NewFromConfig(awsConfig()), arn, log.Named("notifications"))
	}

	// Without a table the audit log only writes to the logger.
	var dynamo audit.DynamoAPI
	if cfg.Audit.TableName != "" {
		dynamo = dynamodb.NewFromConfig(awsConfig())
	}
	auditLog := audit.NewLog(dynamo, cfg.Audit.TableName, log.Named("audit"))

	ocrCfg := ocr.Config{
		PdfToTextPath: cfg.OCR.PdfToTextPath,
		PdfToPPMPath:  cfg.OCR.PdfToPPMPath,
		TesseractPath: cfg.OCR.TesseractPath,
		Languages:     cfg.OCR.Languages,
		DPI:           cfg.OCR.DPI,
		MinTextChars:  cfg.OCR.MinTextChars,
	}
	recognizer, err := ocr.NewRecognizer(ocrCfg)
	if err != nil {
		log.Fatal("Failed to initialize OCR", zap.Error(err))
	}

	// Documents and reports
	documentsRepo := documents.NewRepository(db)
	aggregator := dashboard.NewAggregator(documentsRepo, dashboardTTL, log.Named("dashboard"))
	defer aggregator.Stop()

	documentDeps := documents.Dependencies{
		Repo:       documentsRepo,
		Storage:    documents.NewStorageProvider(objects, bucket),
		Analyzer:   pipeline.NewDefault(store, log.Named("pipeline")),
		OCR:        ocr.NewExtractor(ocrCfg, recognizer, log.Named("ocr")),
		Alerts:     alerts,
		Audit:      auditLog,
		Dashboards: aggregator,
		Metrics:    reg,
		Logger:     log.Named("documents"),
		OCRTimeout: cfg.OCR.Timeout,
	}
	reportDeps := reports.Dependencies{
		Repo:       reports.NewRepository(db),
		Aggregates: aggregator,
		Storage:    objects,
		Bucket:     bucket,
		Audit:      auditLog,
		Logger:     log.Named("reports"),
	}

	documentsHandler := documents.NewHandler(documents.NewService(documentDeps), cfg.Server.MaxUploadSize)
	reportsHandler := reports.NewHandler(reports.NewService(reportDeps), log.Named("reports"))

	gin.SetMode(gin.ReleaseMode)
	router := v1.SetupRouter(v1.RouterDeps{
		Documents: documentsHandler,
		Reports:   reportsHandler,
		Factors:   factors.NewHandler(store),
		Audit:     audit.NewHandler(auditLog),
		Metrics:   reg,
		JWTSecret: []byte(cfg.Security.JWTSecret),
		Logger:    log.Named("http"),
	})

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()
	log.Info("Server started", zap.String("addr", srv.Addr))

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exiting")
}
