package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/crowdprice-backend/internal/app"
	"github.com/sandeepkv93/crowdprice-backend/internal/config"
	"github.com/sandeepkv93/crowdprice-backend/internal/database"
	"github.com/sandeepkv93/crowdprice-backend/internal/health"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/handler"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/middleware"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/router"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"
	"github.com/sandeepkv93/crowdprice-backend/internal/repository"
	"github.com/sandeepkv93/crowdprice-backend/internal/security"
	"github.com/sandeepkv93/crowdprice-backend/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideMinIOClient,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
	repository.NewProductRepository,
	repository.NewProductRequestRepository,
	repository.NewPostRepository,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
	wire.Bind(new(service.TokenIssuer), new(*security.JWTManager)),
	wire.Bind(new(middleware.TokenParser), new(*security.JWTManager)),
)

var ServiceSet = wire.NewSet(
	provideProductImageStorage,
	providePriceCacheStore,
	provideAuthAbuseGuard,
	service.NewUserService,
	provideProductService,
	providePriceService,
	providePostService,
	wire.Bind(new(service.UserService), new(*service.UserServiceImpl)),
	wire.Bind(new(middleware.UserLookup), new(*service.UserServiceImpl)),
	wire.Bind(new(service.ProductService), new(*service.ProductServiceImpl)),
	wire.Bind(new(service.PriceService), new(*service.PriceServiceImpl)),
	wire.Bind(new(service.PostService), new(*service.PostServiceImpl)),
)

var HTTPSet = wire.NewSet(
	handler.NewUserHandler,
	provideProductHandler,
	handler.NewPriceHandler,
	handler.NewPostHandler,
	provideGlobalRateLimiter,
	provideAuthRateLimiter,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

// provideRuntimeDB opens the pool and, in local environments, applies the
// schema and demo catalogue. Elsewhere the migrate tool owns schema changes.
func provideRuntimeDB(cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if !cfg.DatabaseAutoMigrate {
		return db, nil
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	report, err := database.Seed(db)
	if err != nil {
		return nil, err
	}
	logger.Info("database auto-migrated", "seeded_products", report.CreatedProducts)
	return db, nil
}

// provideRedisClient returns nil unless a Redis-backed feature is enabled.
func provideRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if !cfg.RateLimitRedisEnabled && !cfg.PriceCacheRedisEnabled && !cfg.AuthAbuseRedisEnabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	observability.InstrumentRedisClient(client, logger,
		observability.RedisKeyspace{Prefix: cfg.RateLimitRedisPrefix, Feature: "rate_limit"},
		observability.RedisKeyspace{Prefix: cfg.PriceCacheRedisPrefix, Feature: "price_cache"},
		observability.RedisKeyspace{Prefix: cfg.AuthAbuseRedisPrefix, Feature: "auth_abuse"},
	)
	return client
}

func provideMinIOClient(cfg *config.Config) (*minio.Client, error) {
	if !cfg.StorageEnabled {
		return nil, nil
	}
	return service.NewMinIOClient(cfg.StorageEndpoint, cfg.StorageAccessKey, cfg.StorageSecretKey, cfg.StorageRegion, cfg.StorageUseSSL)
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
}

func provideProductImageStorage(cfg *config.Config, client *minio.Client) service.ProductImageStorage {
	if client == nil {
		return nil
	}
	return service.NewMinIOProductImageStorage(client, cfg.StorageBucket, cfg.ProductImageMaxBytes, cfg.ProductImageURLTTL)
}

func providePriceCacheStore(cfg *config.Config, redisClient redis.UniversalClient) service.PriceCacheStore {
	if !cfg.PriceCacheEnabled {
		return service.NewNoopPriceCacheStore()
	}
	if cfg.PriceCacheRedisEnabled && redisClient != nil {
		return service.NewRedisPriceCacheStore(redisClient, cfg.PriceCacheRedisPrefix)
	}
	return service.NewInMemoryPriceCacheStore()
}

func provideAuthAbuseGuard(cfg *config.Config, redisClient redis.UniversalClient) service.AuthAbuseGuard {
	if !cfg.AuthAbuseProtectionEnabled {
		return service.NewNoopAuthAbuseGuard()
	}
	policy := service.AuthAbusePolicy{
		FreeAttempts: cfg.AuthAbuseFreeAttempts,
		BaseDelay:    cfg.AuthAbuseBaseDelay,
		Multiplier:   cfg.AuthAbuseMultiplier,
		MaxDelay:     cfg.AuthAbuseMaxDelay,
		ResetWindow:  cfg.AuthAbuseResetWindow,
	}
	if cfg.AuthAbuseRedisEnabled && redisClient != nil {
		return service.NewRedisAuthAbuseGuard(redisClient, cfg.AuthAbuseRedisPrefix, policy)
	}
	return service.NewInMemoryAuthAbuseGuard(policy)
}

func provideProductService(repo repository.ProductRepository, images service.ProductImageStorage, logger *slog.Logger) *service.ProductServiceImpl {
	return service.NewProductService(repo, images, logger)
}

func providePriceService(
	cfg *config.Config,
	products repository.ProductRepository,
	requests repository.ProductRequestRepository,
	cache service.PriceCacheStore,
	images service.ProductImageStorage,
	logger *slog.Logger,
) *service.PriceServiceImpl {
	svcCfg := service.PriceServiceConfig{DefaultRankingLimit: cfg.RankingDefaultLimit}
	if cfg.PriceCacheEnabled {
		svcCfg.CacheTTL = cfg.PriceCacheTTL
	}
	return service.NewPriceService(products, requests, cache, images, svcCfg, logger)
}

func providePostService(cfg *config.Config, posts repository.PostRepository, products repository.ProductRepository) *service.PostServiceImpl {
	return service.NewPostService(posts, products, cfg.PostReactionDedupEnabled)
}

func provideProductHandler(cfg *config.Config, svc service.ProductService) *handler.ProductHandler {
	return handler.NewProductHandler(svc, cfg.ProductImageMaxBytes)
}

// provideGlobalRateLimiter keys authenticated callers by subject and everyone
// else by client IP. The Redis limiter fails open.
func provideGlobalRateLimiter(cfg *config.Config, redisClient redis.UniversalClient, tokens middleware.TokenParser) router.GlobalRateLimiterFunc {
	keyFunc := middleware.SubjectOrIPKeyFunc(tokens)
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RateLimitRedisPrefix)
		return middleware.NewDistributedRateLimiterWithKey(
			redisLimiter,
			cfg.APIRateLimitPerMin,
			time.Minute,
			middleware.FailOpen,
			"api",
			keyFunc,
		).Middleware()
	}
	return middleware.NewDistributedRateLimiterWithKey(
		middleware.NewLocalFixedWindowLimiter(),
		cfg.APIRateLimitPerMin,
		time.Minute,
		middleware.FailClosed,
		"api",
		keyFunc,
	).Middleware()
}

// provideAuthRateLimiter guards signup and signin per client IP. With Redis,
// RATE_LIMIT_FAIL_CLOSED selects the failure mode.
func provideAuthRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.AuthRateLimiterFunc {
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		mode := middleware.FailOpen
		if cfg.RateLimitFailClosed {
			mode = middleware.FailClosed
		}
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RateLimitRedisPrefix)
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.AuthRateLimitPerMin,
			time.Minute,
			mode,
			"auth",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.AuthRateLimitPerMin, time.Minute, "auth").Middleware()
}

func provideRouterDependencies(
	userHandler *handler.UserHandler,
	productHandler *handler.ProductHandler,
	priceHandler *handler.PriceHandler,
	postHandler *handler.PostHandler,
	tokens middleware.TokenParser,
	users middleware.UserLookup,
	globalRateLimiter router.GlobalRateLimiterFunc,
	authRateLimiter router.AuthRateLimiterFunc,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		UserHandler:       userHandler,
		ProductHandler:    productHandler,
		PriceHandler:      priceHandler,
		PostHandler:       postHandler,
		Tokens:            tokens,
		Users:             users,
		CORSOrigins:       cfg.CORSAllowedOrigins,
		AuthRateLimitRPM:  cfg.AuthRateLimitPerMin,
		APIRateLimitRPM:   cfg.APIRateLimitPerMin,
		GlobalRateLimiter: globalRateLimiter,
		AuthRateLimiter:   authRateLimiter,
		MaxImageBytes:     cfg.ProductImageMaxBytes,
		Readiness:         readiness,
		EnableOTelHTTP:    cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient, minioClient *minio.Client) *health.ProbeRunner {
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, cfg.ServerStartGracePeriod,
		health.NewDBChecker(db),
		health.NewRedisChecker(redisClient),
		health.NewBucketChecker(minioClient, cfg.StorageBucket),
	)
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	readiness *health.ProbeRunner,
) *app.App {
	return app.New(cfg, logger, server, runtime, db, redisClient, readiness)
}
