package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"echochat/internal/auth"
	"echochat/internal/chat"
	"echochat/internal/db"
	"echochat/internal/handlers"
	"echochat/internal/presence"
	"echochat/internal/push"
	"echochat/internal/ws"
	"echochat/pkg/config"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "status" {
		runStatus(os.Args[2:])
		return
	}

	cfg := config.Load()

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()
	conn := database.GetConn()

	users := chat.NewUsers(conn)
	friends := chat.NewFriends(conn, users)
	conversations := chat.NewConversations(conn)
	messages := chat.NewMessages(conn)
	keys := chat.NewKeys(conn)
	authService := auth.New(conn, cfg.JWTSecret)
	notifier := push.NewNotifier(conn, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	if notifier == nil {
		log.Println("push: VAPID keys not configured, notifications disabled")
	}

	hub := ws.NewHub(presence.NewDirectory(), &ws.Services{
		Users:         users,
		Friends:       friends,
		Conversations: conversations,
		Messages:      messages,
		Keys:          keys,
	}, notifier)
	go hub.Run()

	sweeper := chat.NewSweeper(messages, cfg.CleanupInterval)
	go sweeper.Run()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), corsMiddleware(cfg.CORSOrigins))

	authHandler := handlers.NewAuthHandler(authService)
	uploadHandler := handlers.NewUploadHandler(friends, conversations, messages, hub, cfg.FileStoragePath, cfg.MaxUploadSize)
	pushHandler := handlers.NewPushHandler(conn, notifier)
	profileHandler := handlers.NewProfileHandler(users, keys, cfg.FileStoragePath, cfg.MaxUploadSize)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Credential endpoints are the brute-force surface, so they get their
	// own per-IP rate limits.
	router.POST("/api/register", rateLimit(2, time.Minute), authHandler.Register)
	router.POST("/api/login", rateLimit(5, time.Minute), authHandler.Login)

	protected := router.Group("/api", handlers.AuthMiddleware(authService))
	{
		protected.GET("/profile", profileHandler.Get)
		protected.POST("/profile/picture", profileHandler.UploadPicture)
		protected.DELETE("/profile", profileHandler.Delete)
		protected.POST("/upload/image", uploadHandler.UploadImage)
		protected.POST("/push/subscribe", pushHandler.Subscribe)
		protected.POST("/push/unsubscribe", pushHandler.Unsubscribe)
		protected.GET("/push/vapid-public-key", pushHandler.VAPIDPublicKey)
	}

	router.GET("/ws", handlers.AuthMiddleware(authService), hub.HandleWebSocket)
	router.Static("/uploads", cfg.FileStoragePath)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	sweeper.Stop()
}

func rateLimit(limit int64, period time.Duration) gin.HandlerFunc {
	store := memory.NewStore()
	instance := limiter.New(store, limiter.Rate{Period: period, Limit: limit})
	return mgin.NewMiddleware(instance)
}

func corsMiddleware(origins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origins)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
