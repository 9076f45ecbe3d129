package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	api "github.com/synxit/synxit-server/internal/api/http"
	"github.com/synxit/synxit-server/internal/config"
	"github.com/synxit/synxit-server/internal/logger"
	"github.com/synxit/synxit-server/internal/model"
	"github.com/synxit/synxit-server/internal/repository/disk"
	"github.com/synxit/synxit-server/internal/server"
	"github.com/synxit/synxit-server/internal/service"
	diskstorage "github.com/synxit/synxit-server/internal/storage/disk"
	miniostorage "github.com/synxit/synxit-server/internal/storage/minio"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	accountRepo := disk.NewAccountRepository(cfg.Storage.DataDir)
	shareRepo := disk.NewShareRepository(cfg.Storage.DataDir)

	blobBackend, err := newBlobBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize blob backend", "error", err)
	}

	authService := service.NewAuth(accountRepo, cfg.Auth.SessionTimeout, cfg.Auth.AuthSessionTimeout, logger)
	accountService := service.NewAccount(accountRepo, cfg.Auth.RegistrationEnabled, cfg.Auth.DefaultTier, logger)
	shareService := service.NewShare(shareRepo, logger)
	blobService := service.NewBlob(blobBackend, accountRepo, shareService, cfg.Tier, logger)
	federationService := service.NewFederation(cfg.Federation, cfg.Domain, blobService, shareService, accountService, logger)

	// Login attempts do not survive a restart.
	if err := authService.InvalidateAllAuthSessions(ctx); err != nil {
		logger.Error("failed to invalidate stale auth sessions", "error", err)
	}

	metrics := api.NewMetrics()
	router := api.NewRouter(&api.RouterDeps{
		Auth:       api.NewAuthHandler(authService, accountService, logger),
		Blob:       api.NewBlobHandler(blobService, accountService, authService, logger),
		Share:      api.NewShareHandler(shareService, authService, logger),
		Register:   api.NewRegisterHandler(accountService, logger),
		Federation: api.NewFederationHandler(federationService, authService, logger),
		Status:     api.NewStatusHandler(buildVersion, cfg.Domain, cfg.Federation.Enabled, cfg.Auth.RegistrationEnabled),
		Metrics:    metrics,
		Logger:     logger,
		WebAppURL:  cfg.HTTP.WebAppURL,
	})

	httpServer := api.NewServer(router, fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port))

	var sl model.SecurityLayer
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
		}
	}(httpServer)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func newBlobBackend(ctx context.Context, cfg *config.Config, logger *logger.Logger) (model.BlobBackend, error) {
	switch cfg.Storage.Backend {
	case "s3":
		minioClient, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
			Secure: cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create minio client: %w", err)
		}
		return miniostorage.NewClient(ctx, minioClient, cfg.Minio.Bucket)
	case "disk":
		return diskstorage.NewBackend(cfg.Storage.DataDir), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
