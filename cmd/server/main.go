package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	billingapp "github.com/schoolbill/backend/internal/application/billing"
	identityapp "github.com/schoolbill/backend/internal/application/identity"
	schoolapp "github.com/schoolbill/backend/internal/application/school"
	"github.com/schoolbill/backend/internal/infrastructure/auth"
	"github.com/schoolbill/backend/internal/infrastructure/config"
	"github.com/schoolbill/backend/internal/infrastructure/logger"
	"github.com/schoolbill/backend/internal/infrastructure/persistence"
	"github.com/schoolbill/backend/internal/interfaces/http/handler"
	"github.com/schoolbill/backend/internal/interfaces/http/middleware"
	"github.com/schoolbill/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting SchoolBill backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Repositories
	ledger := persistence.NewGormLedgerStore(db.DB)
	schoolRepo := persistence.NewGormSchoolRepository(db.DB)
	studentRepo := persistence.NewGormStudentRepository(db.DB)
	userRepo := persistence.NewGormUserRepository(db.DB)

	// Token infrastructure. Redis backs the blacklist so revocations
	// survive restarts and are shared between instances.
	jwtService := auth.NewJWTService(cfg.JWT)
	var blacklist auth.TokenBlacklist
	redisBlacklist, err := auth.NewRedisTokenBlacklist(cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, falling back to in-memory token blacklist", zap.Error(err))
		blacklist = auth.NewInMemoryTokenBlacklist()
	} else {
		defer func() {
			if err := redisBlacklist.Close(); err != nil {
				log.Error("Error closing Redis connection", zap.Error(err))
			}
		}()
		blacklist = redisBlacklist
	}

	// Application services
	authService := identityapp.NewAuthService(userRepo, jwtService, blacklist, log)
	userService := identityapp.NewUserService(userRepo, schoolRepo)
	schoolService := schoolapp.NewSchoolService(schoolRepo)
	studentService := schoolapp.NewStudentService(studentRepo, schoolRepo)
	invoiceService := billingapp.NewInvoiceService(ledger, studentRepo, log)
	paymentService := billingapp.NewPaymentService(ledger, studentRepo, log)
	allocationService := billingapp.NewAllocationService(ledger, log)
	balanceService := billingapp.NewBalanceService(ledger, schoolRepo, studentRepo)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer rateLimiter.Stop()
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	r := router.New(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.Auth(middleware.AuthConfig{
		JWTService: jwtService,
		Blacklist:  blacklist,
		SkipPaths: []string{
			"/api/v1/auth/login",
			"/api/v1/auth/refresh",
			"/api/v1/system/health",
			"/api/v1/system/info",
		},
		Logger: log,
	}))

	// Login attempts get a tighter per-IP budget than the global limiter.
	if cfg.HTTP.AuthRateLimitEnabled {
		authLimiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		defer authLimiter.Stop()
		limitLogin := middleware.RateLimit(authLimiter)
		r.Use(func(c *gin.Context) {
			if c.Request.Method == http.MethodPost && c.Request.URL.Path == "/api/v1/auth/login" {
				limitLogin(c)
				return
			}
			c.Next()
		})
	}

	r.Register(
		handler.NewSystemHandler(db),
		handler.NewAuthHandler(authService),
		handler.NewUserHandler(userService),
		handler.NewSchoolHandler(schoolService, balanceService),
		handler.NewStudentHandler(studentService, balanceService),
		handler.NewInvoiceHandler(invoiceService),
		handler.NewPaymentHandler(paymentService),
		handler.NewAllocationHandler(allocationService),
	)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}
