package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mapro-backend/internal/config"
	"mapro-backend/internal/domain"
	apphttp "mapro-backend/internal/http"
	"mapro-backend/internal/repository/sqlite"
	"mapro-backend/internal/service"
	"mapro-backend/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	auditDB, err := sqlite.Open(cfg.Database.AuditPath)
	if err != nil {
		logger.Fatalf("open audit database: %v", err)
	}
	defer auditDB.Close()

	userRepo := sqlite.NewUserRepository(db)
	prefRepo := sqlite.NewPreferenceRepository(db)
	auditRepo := sqlite.NewAuditRepository(auditDB)

	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}
	if err := prefRepo.Init(ctx); err != nil {
		logger.Fatalf("init preference repository: %v", err)
	}
	if err := auditRepo.Init(ctx); err != nil {
		logger.Fatalf("init audit repository: %v", err)
	}

	if cfg.Seed.Path != "" {
		categories, err := loadSeedFile(cfg.Seed.Path)
		if err != nil {
			logger.Fatalf("load seed file: %v", err)
		}
		if err := prefRepo.Seed(ctx, categories); err != nil {
			logger.Fatalf("seed preference options: %v", err)
		}
		logger.Infof("seeded %d preference categories", len(categories))
	}

	archiveStore, err := buildArchiveStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup archive storage: %v", err)
	}

	tokenTTL := time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute
	authService := service.NewAuthService(userRepo, cfg.Auth.JWTSecret, tokenTTL)
	userService := service.NewUserService(userRepo)
	prefService := service.NewPreferenceService(prefRepo)
	activityLogger := service.NewActivityLogger(auditRepo, archiveStore, cfg.Archive.Bucket, cfg.Archive.KeyPrefix)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		authService,
		userService,
		prefService,
		activityLogger,
		cfg.Auth.JWTSecret,
		logger,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

type seedCategory struct {
	Name    string   `json:"name"`
	Options []string `json:"options"`
}

func loadSeedFile(path string) ([]domain.PreferenceCategory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed []seedCategory
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	categories := make([]domain.PreferenceCategory, len(seed))
	for i, cat := range seed {
		options := make([]domain.PreferenceOption, len(cat.Options))
		for j, name := range cat.Options {
			options[j] = domain.PreferenceOption{Name: name}
		}
		categories[i] = domain.PreferenceCategory{
			Name:    cat.Name,
			Options: options,
		}
	}
	return categories, nil
}

func buildArchiveStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Archive.Bucket == "" {
		logger.Info("audit archive disabled (no bucket configured)")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Archive.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Archive.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Archive.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("archiving audit logs to s3 bucket %s (region %s)", cfg.Archive.Bucket, cfg.Archive.Region)
	return storage.NewS3Service(client), nil
}
