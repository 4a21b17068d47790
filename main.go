package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sortirkopi/bean-order-api/config"
	"github.com/sortirkopi/bean-order-api/controllers"
	"github.com/sortirkopi/bean-order-api/logging"
	"github.com/sortirkopi/bean-order-api/middleware"
	"github.com/sortirkopi/bean-order-api/models"
	"github.com/sortirkopi/bean-order-api/services"
	"github.com/sortirkopi/bean-order-api/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("main").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	config.SetConfig(cfg)

	log := logging.Init("bean-order-api", cfg.LogFile, cfg.LogLevel)
	log.Info("starting bean order api", "env", cfg.GoEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.ConnectDatabase(cfg.DatabaseURL); err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	db := config.GetDB()
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		log.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	log.Info("database migration completed")

	var cache services.OrderCache = services.NewMemoryOrderCache(cfg.OrderCacheTTL)
	rdb, err := config.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		cache = services.NewRedisOrderCache(rdb, cfg.OrderCacheTTL)
		log.Info("order cache backed by redis")
	}

	var images services.ImageService
	if cfg.UseS3() {
		s3Service, err := services.InitS3Service(ctx, cfg)
		if err != nil {
			log.Error("failed to initialize S3", "error", err)
			os.Exit(1)
		}
		images = services.NewS3ImageService(s3Service)
		log.Info("proof images stored in S3", "bucket", cfg.AWSS3Bucket)
	} else {
		utils.UploadDir = cfg.UploadDir
		images = services.NewLocalImageService(cfg.UploadDir)
		log.Warn("AWS_S3_BUCKET not set, proof images stored on local disk", "dir", cfg.UploadDir)
	}

	services.Init(db, cache, images)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(cfg, middleware.EnsureValidToken(cfg))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// setupRouter wires every route. auth validates the bearer token and fills
// user_id, access_token and validated_claims on the context.
func setupRouter(cfg *config.Config, auth gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.Logging(logging.Base()))
	router.Use(middleware.Metrics())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/pricing", controllers.GetPriceList)
		v1.GET("/pricing/quote", controllers.GetQuote)
		v1.GET("/uploads/:filename", controllers.GetUploadedImage)

		authed := v1.Group("")
		authed.Use(auth)
		{
			authed.POST("/users", controllers.CreateUser)
			authed.GET("/users/me", controllers.GetMyProfile)
			authed.PUT("/users/me", controllers.UpdateMyProfile)

			authed.POST("/orders", controllers.CreateOrder)
			authed.GET("/orders", controllers.ListOrders)
			authed.GET("/orders/:id", controllers.GetOrder)
			authed.POST("/orders/:id/cancel", controllers.CancelOrder)
			authed.DELETE("/orders/:id", controllers.DeleteOrder)
			authed.POST("/orders/:id/payment", controllers.SubmitPayment)
			authed.GET("/orders/:id/payment", controllers.GetPayment)

			authed.GET("/stats", controllers.GetStats)
			authed.GET("/stats/export", controllers.ExportReport)

			admin := authed.Group("/admin")
			admin.Use(middleware.RequireAdmin())
			{
				admin.GET("/orders", controllers.AdminListOrders)
				admin.PATCH("/orders/:id/status", controllers.AdminUpdateOrderStatus)
				admin.POST("/orders/:id/payment/verify", controllers.VerifyPayment)
				admin.POST("/orders/:id/payment/reject", controllers.RejectPayment)
			}
		}
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Bean Order API is running",
	})
}
