package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"otp_auth/internal/config"
	"otp_auth/internal/handler"
	"otp_auth/internal/notify"
	"otp_auth/internal/otp"
	"otp_auth/internal/repository"
	"otp_auth/internal/service"
	"otp_auth/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading, relying on environment variables")
	}

	// --- Configuration ---
	cfg, err := config.LoadAppConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	var (
		userRepo repository.UserRepository
		otpRepo  repository.OTPRepository
		ping     = func(context.Context) error { return nil }
	)
	switch cfg.Storage {
	case config.StorageMemory:
		log.Println("WARN: using in-memory storage, all users and codes are lost on restart")
		userRepo = repository.NewMemoryUserRepository()
		otpRepo = repository.NewMemoryOTPRepository()
	default:
		dbCfg, err := config.LoadDBConfig()
		if err != nil {
			log.Fatalf("Failed to load DB config: %v", err)
		}
		dbPool, err := config.ConnectDB(ctx, dbCfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer dbPool.Close()

		if err := config.AutoMigrate(ctx, dbPool); err != nil {
			log.Fatalf("Failed to auto-migrate database: %v", err)
		}
		userRepo = repository.NewUserRepository(dbPool)
		otpRepo = repository.NewOTPRepository(dbPool)
		ping = dbPool.Ping
	}

	// --- Initialize Utilities ---
	jwtUtil := utils.NewJWTUtil(cfg.JWTSecret, cfg.JWTExpirationHours)
	policy := otp.PolicyFor(cfg.Env)
	notifier := notify.NewRouter(notify.NewSMSClient(cfg.SMSAPIKey, cfg.SMSBaseURL, cfg.SMSSender))
	log.Printf("INFO: env=%s storage=%s debug code accepted=%t", cfg.Env, cfg.Storage, policy.AcceptDebugCode)

	// --- Initialize Services ---
	authService := service.NewAuthService(userRepo, otpRepo, notifier, policy, jwtUtil)
	userService := service.NewUserService(userRepo)

	// --- Setup Gin Router ---
	router := handler.NewRouter(authService, userService, jwtUtil)

	router.GET("/health", func(c *gin.Context) {
		if err := ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "db": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "healthy"})
	})

	// --- Start Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
