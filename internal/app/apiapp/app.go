package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/leorifa93/desires-backend/internal/config"
	s3infra "github.com/leorifa93/desires-backend/internal/infra/s3"
	"github.com/leorifa93/desires-backend/internal/infra/telegram"
	pgrepo "github.com/leorifa93/desires-backend/internal/repo/postgres"
	redrepo "github.com/leorifa93/desires-backend/internal/repo/redis"
	accountsvc "github.com/leorifa93/desires-backend/internal/services/accounts"
	authsvc "github.com/leorifa93/desires-backend/internal/services/auth"
	candidatesvc "github.com/leorifa93/desires-backend/internal/services/candidates"
	decksvc "github.com/leorifa93/desires-backend/internal/services/deck"
	interactionsvc "github.com/leorifa93/desires-backend/internal/services/interactions"
	locationsvc "github.com/leorifa93/desires-backend/internal/services/locations"
	ratesvc "github.com/leorifa93/desires-backend/internal/services/rate"
	swipesvc "github.com/leorifa93/desires-backend/internal/services/swipes"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	rateRepo := redrepo.NewRateRepo(redisClient)
	fallbackCacheRepo := redrepo.NewFallbackCacheRepo(redisClient)
	profileRepo := pgrepo.NewProfileRepo(pool)
	interactionRepo := pgrepo.NewInteractionRepo(pool)
	accountRepo := pgrepo.NewAccountRepo(pool)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	interactionService := interactionsvc.NewService(pool, interactionRepo)
	accountService := accountsvc.NewService(accountRepo)
	locationService := locationsvc.NewService(profileRepo)
	candidateService := candidatesvc.NewService(profileRepo, candidatesvc.Config{
		DefaultRadiusKM:   cfg.Discovery.RadiusDefaultKM,
		MaxRadiusKM:       cfg.Discovery.RadiusMaxKM,
		RangeQueryLimit:   cfg.Discovery.RangeQueryLimit,
		FallbackBatchSize: cfg.Discovery.FallbackBatchSize,
		FallbackCacheTTL:  cfg.Discovery.FallbackCacheTTL,
	})
	candidateService.AttachFallbackCache(fallbackCacheRepo)

	rateLimiter := ratesvc.NewLimiter(rateRepo, cfg.Rate.LikesPerMinute, cfg.Rate.LikesPer10Sec)
	swipeService := swipesvc.NewService(interactionService, accountService, rateLimiter, log)
	if cfg.Bot.Token != "" {
		if bot, err := telegram.NewBot(cfg.Bot.Token); err != nil {
			log.Warn("telegram init failed, like notifications disabled", zap.Error(err))
		} else {
			swipeService.AttachNotifier(bot)
		}
	}

	deckManager := decksvc.NewManager(interactionService, candidateService, swipeService, log, decksvc.Config{
		RadiusKM:      cfg.Discovery.RadiusDefaultKM,
		FetchAttempts: cfg.Discovery.FetchAttempts,
		RetryBackoff:  cfg.Discovery.RetryBackoff,
	})

	var s3Client *minio.Client
	var presigner *s3infra.PhotoPresigner
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
		presigner = s3infra.NewPhotoPresigner(c, cfg.S3.Bucket, cfg.S3.PresignTTL)
	}

	deps := Dependencies{
		JWTManager:      jwtManager,
		DeckManager:     deckManager,
		AccountService:  accountService,
		LocationService: locationService,
		ProfileSource:   profileRepo,
		Logger:          log,
	}
	if presigner != nil {
		deps.Presigner = presigner
	}
	RegisterRoutes(r, deps)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
