package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/akashmaurya09/intelligrade/internal/config"
	"github.com/akashmaurya09/intelligrade/internal/database"
	"github.com/akashmaurya09/intelligrade/internal/handler"
	"github.com/akashmaurya09/intelligrade/internal/middleware"
	"github.com/akashmaurya09/intelligrade/internal/preview"
	"github.com/akashmaurya09/intelligrade/internal/repository"
	"github.com/akashmaurya09/intelligrade/internal/router"
	"github.com/akashmaurya09/intelligrade/internal/service"
	"github.com/akashmaurya09/intelligrade/pkg/ai"
	cloud "github.com/akashmaurya09/intelligrade/pkg/cloudinary"
	"github.com/akashmaurya09/intelligrade/pkg/imaging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	var previews preview.Registry = preview.NewMemoryRegistry()
	if redisClient != nil {
		previews = preview.NewRedisRegistry(redisClient, "intelligrade", cfg.PreviewTTL)
	}

	var mirror service.AttachmentMirror
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if cloudCfg.Enabled() {
		uploader, err := cloud.New(cloudCfg, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		mirror = uploader
	}

	grader, err := newGrader(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to create %s grader: %v", cfg.AIProvider, err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	store := repository.NewAttachmentStore(db, previews, cfg.PreviewPlaceholder)
	compressor := imaging.NewCompressor(imaging.Options{MaxWidth: cfg.ImageMaxWidth, Quality: cfg.ImageQuality}, logger)
	storage := service.NewStorageService(store, compressor, mirror, logger)

	// One peer transport is enough; NATS wins when both are configured.
	peerRedis := redisClient
	if natsConn != nil {
		peerRedis = nil
	}
	notifications := service.NewNotificationService(peerRedis, cfg.NATSSubject, natsConn, logger)
	notifications.Start(ctx)

	seeder := service.NewSeedService(storage, cfg.SeedSamples, logger)
	workspace := service.NewWorkspaceService(storage, previews, seeder, notifications, validate, logger)
	if cfg.SeedOnStartup && cfg.SeedSamples {
		err = workspace.Init(ctx)
	} else {
		_, err = workspace.RefreshData(ctx)
	}
	if err != nil {
		log.Fatalf("failed to load workspace: %v", err)
	}

	grading := service.NewGradingService(workspace, grader, notifications, cfg.GradingConcurrency, logger)
	if recovered, err := grading.RecoverInterrupted(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to recover interrupted grading runs")
	} else if recovered > 0 {
		logger.Info().Int("count", recovered).Msg("recovered interrupted grading runs")
	}

	review := service.NewReviewService(workspace, notifications, logger)

	var denylist repository.TokenDenylist = repository.NewMemoryDenylist()
	if redisClient != nil {
		denylist = repository.NewRedisDenylist(redisClient, "intelligrade:revoked")
	}
	auth := service.NewAuthService(repository.NewProfileRepository(db), denylist, validate, cfg.JWTSecret, cfg.JWTTTL, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    2*handler.MaxUploadBytes + 1<<20,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(auth, validate, logger),
		PaperHandler:        handler.NewPaperHandler(workspace, grading, validate, logger),
		SubmissionHandler:   handler.NewSubmissionHandler(workspace, validate, logger),
		GradingHandler:      handler.NewGradingHandler(grading, workspace, logger),
		ReviewHandler:       handler.NewReviewHandler(review, validate, logger),
		WorkspaceHandler:    handler.NewWorkspaceHandler(workspace, logger),
		PreviewHandler:      handler.NewPreviewHandler(previews, logger),
		NotificationHandler: handler.NewNotificationHandler(notifications, logger, 15*time.Second),
		HealthChecks:        healthChecks(db, redisClient, natsConn),
		JWTMiddleware:       middleware.JWTProtected(auth),
		AuthRateLimit:       middleware.RateLimit("auth", 10, time.Minute),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Str("provider", grader.Name()).Msg("intelligrade api started")
	waitForShutdown(ctx, app, logger)
}

func newGrader(ctx context.Context, cfg config.Config, logger zerolog.Logger) (ai.Grader, error) {
	switch cfg.AIProvider {
	case "openai":
		return ai.NewOpenAIGrader(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
	default:
		return ai.NewGeminiGrader(ctx, ai.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
			Logger: logger,
		})
	}
}

func healthChecks(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthCheckFunc {
	checks := map[string]handler.HealthCheckFunc{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		checks["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return checks
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
