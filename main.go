package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/Cleo-11/ocean-mining-game/auth"
	"github.com/Cleo-11/ocean-mining-game/crypto"
	"github.com/Cleo-11/ocean-mining-game/game"
	"github.com/Cleo-11/ocean-mining-game/migrations"
	"github.com/Cleo-11/ocean-mining-game/storage"
	"github.com/Cleo-11/ocean-mining-game/world"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.SetTrustedProxies([]string{"127.0.0.1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		if origin == "" || slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func healthHandler(hub *game.Hub) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), time.Second*2)
		defer cancel()

		stats, err := hub.Health(reqCtx)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}

		ctx.JSON(http.StatusOK, gin.H{
			"status":         "healthy",
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
			"players":        stats.Players,
			"resources":      stats.Resources,
			"uptime":         time.Since(stats.Stats.ServerStartTime).Seconds(),
			"mapSize":        stats.MapSize,
			"activeSessions": stats.ActiveSessions,
			"stats":          stats.Stats,
		})
	}
}

func statusPageHandler(hub *game.Hub) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), time.Second*2)
		defer cancel()

		stats, err := hub.Health(reqCtx)
		if err != nil {
			ctx.String(http.StatusServiceUnavailable, "status unavailable")
			return
		}

		uptime := time.Since(stats.Stats.ServerStartTime)
		page := fmt.Sprintf(`<html>
<head><title>Ocean Mining Resource Server</title></head>
<body>
<h1>Ocean Mining Resource Server</h1>
<p>Status: running</p>
<ul>
<li>Active players: %d</li>
<li>Resource nodes: %d</li>
<li>Map size: %.0fx%.0f</li>
<li>Map expansions: %d</li>
<li>Active sessions: %d</li>
<li>Total players joined: %d</li>
<li>Resources mined: %d</li>
<li>Peak player count: %d</li>
<li>Uptime: %dh %dm</li>
</ul>
<p>Endpoints: GET /health, POST /auth/connect, POST /game/join, GET /ws</p>
</body>
</html>`,
			stats.Players,
			stats.Resources,
			stats.MapSize, stats.MapSize,
			stats.Stats.MapExpansions,
			stats.ActiveSessions,
			stats.Stats.TotalPlayersJoined,
			stats.Stats.TotalResourcesMined,
			stats.Stats.PeakPlayerCount,
			int(uptime.Hours()), int(uptime.Minutes())%60,
		)
		ctx.Header("Content-Type", "text/html; charset=utf-8")
		ctx.String(http.StatusOK, page)
	}
}

func main() {

	// logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ENVs
	ALLOWED_ORIGINS, exists := os.LookupEnv("ALLOWED_ORIGINS")
	if !exists {
		log.Fatal("Missing allowed origins")
	}
	allowedOrigins := strings.Split(ALLOWED_ORIGINS, ",")

	POSTGRES_URL, exists := os.LookupEnv("POSTGRES_URL")
	if !exists {
		log.Fatal("Missing postgres url")
	}

	JWT_KEY, exists := os.LookupEnv("JWT_KEY")
	if !exists {
		log.Fatal("Missing jwt signing key")
	}

	WALLET_VERIFIER_URL, exists := os.LookupEnv("WALLET_VERIFIER_URL")
	if !exists {
		log.Fatal("Missing wallet verifier url")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	// run migrations
	if err := migrations.Migrate(POSTGRES_URL); err != nil {
		log.Fatal(err)
	}

	// Dependencies
	pgRepo, err := storage.NewPostgresRepo(context.Background(), POSTGRES_URL)
	if err != nil {
		log.Fatal(err)
	}
	tokenAge := time.Hour * 24 * 7 // 7 days
	tokenManager := crypto.NewJWTManager(JWT_KEY, tokenAge)
	walletVerifier := auth.NewHTTPVerifier(WALLET_VERIFIER_URL)

	authService := auth.NewService(walletVerifier, pgRepo, tokenManager)
	authHandler := auth.NewAuthHandler(authService)

	gameWorld := world.New(world.DefaultMapConfig(), world.DefaultSeed, rand.New(rand.NewSource(time.Now().UnixNano())))
	tickerGen := game.NewTickerGen()
	hub := game.NewHub(gameWorld, &tickerGen)

	hubStarted := make(chan struct{})
	go hub.HubActor(hubStarted)
	<-hubStarted

	gameHandler := game.NewGameHandler(hub, tokenManager)

	r := CreateServer(allowedOrigins)

	r.GET("/", statusPageHandler(hub))
	r.GET("/health", healthHandler(hub))
	r.GET("/ws", gameHandler.WebsocketHandler)

	{
		authGroup := r.Group("/auth")
		authGroup.POST("/connect", authHandler.ConnectHandler)
	}

	{
		gameGroup := r.Group("/game")
		gameGroup.POST("/join", gameHandler.JoinGameHandler)
	}

	go r.Run(":" + port)
	slog.Info("server started", "port", port, "frontendURL", os.Getenv("FRONTEND_URL"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	<-sigCh

	slog.Info("shutdown signal received, notifying connected clients")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := hub.Shutdown(shutdownCtx); err != nil {
		slog.Error("hub shutdown", "err", err)
	}

	pgRepo.Close()
	slog.Info("shutting down now")
}
