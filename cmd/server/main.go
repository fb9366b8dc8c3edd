// Package main runs the Teach Niche marketplace HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teachniche/backend/config"
	"github.com/teachniche/backend/internal/auth"
	"github.com/teachniche/backend/internal/lessons"
	"github.com/teachniche/backend/internal/middleware"
	"github.com/teachniche/backend/internal/payments"
	"github.com/teachniche/backend/internal/payouts"
	"github.com/teachniche/backend/internal/purchases"
	"github.com/teachniche/backend/pkg/database"
	"github.com/teachniche/backend/pkg/queue"
	"github.com/teachniche/backend/pkg/redis"
	"github.com/teachniche/backend/pkg/response"
	"github.com/teachniche/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			VideosBucket:         cfg.AWS.VideosBucket,
			ThumbnailsBucket:     cfg.AWS.ThumbnailsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	feePolicy := payments.Policy{
		PlatformFeePercent:     cfg.Fees.PlatformFeePercent,
		ProcessorPercentFee:    cfg.Fees.ProcessorPercentFee,
		ProcessorFixedFeeCents: cfg.Fees.ProcessorFixedFeeCents,
	}

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Lessons + purchases
	lessonRepo := lessons.NewRepository(pool)
	purchaseRepo := purchases.NewRepository(pool)
	lessonHandler := lessons.NewHandler(lessonRepo, purchaseRepo, s3Client, jobQueue, logger)

	reconciler := purchases.NewReconciler(purchaseRepo, feePolicy, logger)
	purchaseHandler := purchases.NewHandler(purchaseRepo, lessonRepo, reconciler, logger)

	// Payments
	stripeClient := payments.NewStripeClient(cfg.Stripe.SecretKey, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL)
	checkoutHandler := payments.NewCheckoutHandler(lessonRepo, purchaseRepo, stripeClient, feePolicy, cfg.Fees.PassFeeToBuyer, logger)
	webhookHandler := payments.NewWebhookHandler(purchaseRepo, jobQueue, feePolicy, cfg.Stripe.WebhookSecret, logger)

	// Payouts
	payoutRepo := payouts.NewRepository(pool)
	payoutHandler := payouts.NewHandler(payoutRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public catalog
	router.GET("/lessons", lessonHandler.List)
	router.GET("/lessons/:id", lessonHandler.GetByID)

	// Webhooks (no JWT; signature verified in the handler)
	router.POST("/webhooks/stripe", webhookHandler.HandleStripeEvent)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (admin)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Lessons (instructor)
		api.GET("/me/lessons", middleware.RequireRole("instructor", "admin"), lessonHandler.ListMine)
		api.POST("/lessons", middleware.RequireRole("instructor", "admin"), lessonHandler.Create)
		api.PATCH("/lessons/:id", lessonHandler.Update)
		api.DELETE("/lessons/:id", lessonHandler.Delete)
		api.POST("/lessons/:id/video/upload-url", lessonHandler.VideoUploadURL)
		api.POST("/lessons/:id/video/complete", lessonHandler.VideoUploadComplete)
		api.POST("/lessons/:id/thumbnail", lessonHandler.UploadThumbnail)

		// Checkout and playback
		api.POST("/lessons/:id/checkout", checkoutHandler.Checkout)
		api.GET("/lessons/:id/playback-url", lessonHandler.PlaybackURL)
		api.GET("/lessons/:id/access", purchaseHandler.Access)

		// Library and earnings
		api.GET("/me/purchases", purchaseHandler.Library)
		api.GET("/me/earnings", middleware.RequireRole("instructor", "admin"), payoutHandler.Earnings)

		// Admin
		api.POST("/admin/purchases/reconcile", middleware.RequireRole("admin"), purchaseHandler.Reconcile)
		api.POST("/admin/payouts/:instructorId/mark-paid", middleware.RequireRole("admin"), payoutHandler.MarkPaid)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
