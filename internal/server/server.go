package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"pharma-pos/internal/cache"
	"pharma-pos/internal/config"
	"pharma-pos/internal/database"
	"pharma-pos/internal/druginfo"
	custommiddleware "pharma-pos/internal/middleware"
	"pharma-pos/internal/repository"
	"pharma-pos/internal/service"
	"pharma-pos/internal/transport"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	cache  *cache.Redis
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.CORSOrigins, cfg.Server.Env == "development"))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	// Redis is optional: without it the register runs uncached and
	// unthrottled, but it runs.
	redisCache, err := cache.New(
		fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.CacheTTL,
		logger,
	)
	if err != nil {
		logger.Warn("Redis unavailable, product cache and rate limiting disabled", zap.Error(err))
		redisCache = nil
	}

	if redisCache != nil {
		router.Use(custommiddleware.RateLimitMiddleware(redisCache.Client(), custommiddleware.RateLimitConfig{
			RequestsPerWindow: 100,
			Window:            time.Minute,
			KeyPrefix:         "ratelimit",
		}, logger))
	}

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithJSON(w, http.StatusOK, database.Health(db))
	})

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	productRepo := repository.NewProductRepository(db)

	// Browse paths read through the cache; the sale engine writes through
	// the plain repository and invalidates after commit.
	var catalogRepo repository.ProductRepository = productRepo
	var invalidator service.CacheInvalidator
	if redisCache != nil {
		cached := repository.NewCachedProductRepository(productRepo, redisCache, logger)
		catalogRepo = cached
		invalidator = cached
	}

	// Initialize services
	userService := service.NewUserService(userRepo, refreshTokenRepo, cfg.JWT.Secret)
	productService := service.NewProductService(catalogRepo)
	saleService := service.NewSaleService(productRepo, saleRepo, invalidator, cfg.POS.DefaultPayment, logger)
	saleQueryService := service.NewSaleQueryService(saleRepo)
	reportService := service.NewReportService(productRepo, saleRepo, cfg.POS.ExpiryAlertDays)
	drugInfoClient := druginfo.NewClient(logger)

	// Initialize handlers
	userHandler := transport.NewUserHandler(userService, logger)
	productHandler := transport.NewProductHandler(productService, saleQueryService, cfg.POS, logger)
	saleHandler := transport.NewSaleHandler(saleService, saleQueryService, logger)
	reportHandler := transport.NewReportHandler(reportService, logger)
	drugInfoHandler := transport.NewDrugInfoHandler(drugInfoClient, logger)

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	adminOnly := custommiddleware.RequireAdmin(logger)

	// Register routes
	userHandler.RegisterRoutes(router, authMiddleware, adminOnly)
	productHandler.RegisterRoutes(router, authMiddleware, adminOnly)
	saleHandler.RegisterRoutes(router, authMiddleware)
	reportHandler.RegisterRoutes(router, authMiddleware, adminOnly)
	drugInfoHandler.RegisterRoutes(router, authMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		cache:  redisCache,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
