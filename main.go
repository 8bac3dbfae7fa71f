package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/gigwork/internal/acquisition"
	"github.com/example/gigwork/internal/auth"
	"github.com/example/gigwork/internal/config"
	"github.com/example/gigwork/internal/facematch"
	"github.com/example/gigwork/internal/grpcclient"
	"github.com/example/gigwork/internal/handlers"
	"github.com/example/gigwork/internal/identity"
	"github.com/example/gigwork/internal/imageprocessor"
	"github.com/example/gigwork/internal/logging"
	"github.com/example/gigwork/internal/metrics"
	"github.com/example/gigwork/internal/mrzlocate"
	"github.com/example/gigwork/internal/ocr"
	"github.com/example/gigwork/internal/repository"
	"github.com/example/gigwork/internal/storage"
	"github.com/example/gigwork/internal/upload"
	"github.com/example/gigwork/internal/usecase"
)

func main() {
	cfg, err := config.Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db := initDatabase(ctx, cfg, logger)
	if err := repository.Migrate(ctx, db); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}
	accountRepo := repository.NewAccountRepository(db)
	if err := accountRepo.EnsureRoles(ctx, uuid.NewString, auth.RoleAdministrator, auth.RoleAdmin, auth.RoleUser); err != nil {
		logger.Fatal("failed to seed roles", zap.Error(err))
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	redisClient := initRedis(redisCtx, cfg, logger)
	defer redisClient.Close()

	store, err := storage.NewAzureStore(storage.AzureConfig{
		AccountName: cfg.AzureAccountName,
		AccountKey:  cfg.AzureAccountKey,
		Endpoint:    cfg.AzureEndpoint,
	}, logger)
	if err != nil {
		logger.Fatal("failed to configure object storage", zap.Error(err))
	}

	collector := metrics.New()
	codec := imageprocessor.NewCodec()

	loader, closeFaces := initFaceModels(ctx, cfg, codec, logger)
	defer closeFaces()
	defer loader.Close() //nolint:errcheck

	acquirer := acquisition.NewAcquirer(cfg.UploadsDir, acquisition.NewHTTPFetcher(acquisition.FetcherConfig{
		Timeout:            cfg.ImageFetchTimeout,
		MaxBytes:           cfg.ImageFetchMaxBytes,
		InsecureSkipVerify: cfg.ImageFetchInsecureTLS,
	}), codec, logger)
	if err := acquirer.EnsureDir(); err != nil {
		logger.Fatal("failed to create uploads directory", zap.Error(err))
	}
	recognizer := ocr.NewTesseractRecognizer(ocr.Config{
		TessdataDir:    cfg.OCRTessdataDir,
		Language:       cfg.OCRLanguage,
		Timeout:        cfg.OCRTimeout,
		MaxConcurrency: cfg.OCRMaxConcurrency,
	}, nil, logger)
	identityService := identity.NewService(acquirer, mrzlocate.New(codec, mrzlocate.Options{}), codec, recognizer, collector, logger)
	matcher := facematch.NewMatcher(loader, codec, cfg.FaceTimeout, collector, logger)

	verificationRepo := repository.NewVerificationRepository(db, logger)
	cache := usecase.NewRedisCache(redisClient, cfg.ProjectTag)
	audit := usecase.NewVerificationUseCase(verificationRepo, cache, collector, logger)

	issuer := auth.NewIssuer(cfg.JWTSecretAdmin, cfg.JWTSecretApp, cfg.ProjectTag, cfg.TokenTTL)
	accounts := usecase.NewAccountUseCase(accountRepo, store, issuer, uuid.NewString, logger)
	if err := accounts.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
		logger.Fatal("failed to create bootstrap admin", zap.Error(err))
	}
	profiles := usecase.NewProfileUseCase(repository.NewProfileRepository(db), store, cfg.DefaultFilePath, uuid.NewString, logger)
	locations := usecase.NewLocationUseCase(repository.NewLocationRepository(db), cache, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadSize
	r.Use(logging.GinMiddleware(logger))

	handlers.RegisterRoutes(r, handlers.Dependencies{
		Logger:          logger,
		Metrics:         collector,
		Identity:        identityService,
		Faces:           matcher,
		Audit:           audit,
		Accounts:        accounts,
		Profiles:        profiles,
		Locations:       locations,
		Auth:            auth.NewMiddleware(issuer, accountRepo, logger),
		IdentityUploads: upload.NewStore(cfg.UploadsDir, cfg.MaxUploadSize),
		IdentityDir:     cfg.UploadsDir,
		Uploads:         upload.NewStore(cfg.UploadsDir, cfg.MaxUploadSize),
		Production:      cfg.IsProduction(),
		AIRequireAuth:   cfg.AIRequireAuth,
		HealthChecks: map[string]handlers.HealthCheck{
			"postgres": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": cache.Ping,
		},
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("gigwork API listening", zap.String("addr", cfg.Addr), zap.String("env", cfg.Env))
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initDatabase(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) *gorm.DB {
	logLevel := gormlogger.Info
	if cfg.IsProduction() {
		logLevel = gormlogger.Warn
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

// initFaceModels picks the descriptor backend. dlib models load lazily on the
// first comparison; the grpc backend dials at startup.
func initFaceModels(ctx context.Context, cfg *config.Config, codec imageprocessor.Codec, zapLogger *zap.Logger) (*facematch.ModelLoader, func()) {
	if cfg.FaceBackend == config.FaceBackendGRPC {
		conn, err := grpcclient.Dial(ctx, cfg.FaceGRPCAddr, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed to connect to face embedder", zap.Error(err))
		}
		embedder := grpcclient.NewFaceEmbedder(conn, zapLogger)
		loader := facematch.NewModelLoader(func(context.Context) (facematch.Detector, error) {
			return facematch.NewRemoteDetector(embedder, codec), nil
		}, zapLogger)
		return loader, func() { conn.Close() }
	}

	loader := facematch.NewModelLoader(func(context.Context) (facematch.Detector, error) {
		detector, err := facematch.NewDlibDetector(cfg.FaceModelsDir, codec)
		if err != nil {
			return nil, err
		}
		return detector, nil
	}, zapLogger)
	return loader, func() {}
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
