package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/contatus/contatus/internal/config"
	"github.com/contatus/contatus/internal/filestore"
	"github.com/contatus/contatus/internal/handler"
	"github.com/contatus/contatus/internal/importer"
	"github.com/contatus/contatus/internal/job"
	"github.com/contatus/contatus/internal/middleware"
	"github.com/contatus/contatus/internal/repo"
	"github.com/contatus/contatus/internal/schedule"
	"github.com/contatus/contatus/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "contatus",
		Short: "contatus backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run contatus server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			db, err := repo.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := repo.ApplyMigrations(db); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, db)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, db *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_path", cfg.DBPath),
		zap.String("file_store", cfg.FileStore.Type),
	)

	contactRepo := repo.NewContactRepo(db)
	tagRepo := repo.NewTagRepo(db)
	orgRepo := repo.NewOrganizationRepo(db)
	jobRepo := repo.NewImportJobRepo(db)

	importService := importer.NewService(contactRepo, tagRepo, orgRepo, jobRepo, cfg.Import.MaxAttempts)
	contactService := service.NewContactService(contactRepo, orgRepo)
	tagService := service.NewTagService(tagRepo)
	orgService := service.NewOrganizationService(orgRepo)

	archive, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	deps := handler.RouterDeps{
		Contacts:      handler.NewContactHandler(contactService),
		Tags:          handler.NewTagHandler(tagService),
		Imports:       handler.NewImportHandler(importService, archive, cfg.Import.MaxUploadBytes),
		Org:           handler.NewOrgHandler(orgService),
		JWTSecret:     []byte(cfg.JWTSecret),
		ImportLimiter: time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := importer.NewWorker(jobRepo, importService, importer.WorkerConfig{
		Workers:      cfg.Import.Workers,
		PollInterval: time.Duration(cfg.Import.PollIntervalSeconds) * time.Second,
		RetryBackoff: time.Duration(cfg.Import.RetryBackoffSeconds) * time.Second,
	})
	worker.Start(ctx)

	scheduler := schedule.NewCronScheduler()
	cleanup := job.NewImportCleanupJob(jobRepo,
		time.Duration(cfg.Import.CompletedRetentionHours)*time.Hour,
		time.Duration(cfg.Import.FailedRetentionHours)*time.Hour,
	)
	if err := scheduler.AddJob(cleanup, cfg.Import.CleanupSpec); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	scheduler.Start(ctx)

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	scheduler.Stop()
	worker.Wait()
	return nil
}
