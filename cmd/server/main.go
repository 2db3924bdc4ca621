package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rl-arena/stake-pong-backend/internal/api"
	"github.com/rl-arena/stake-pong-backend/internal/config"
	"github.com/rl-arena/stake-pong-backend/internal/matchmaking"
	"github.com/rl-arena/stake-pong-backend/internal/models"
	"github.com/rl-arena/stake-pong-backend/internal/session"
	"github.com/rl-arena/stake-pong-backend/internal/settlement"
	"github.com/rl-arena/stake-pong-backend/internal/websocket"
	"github.com/rl-arena/stake-pong-backend/pkg/distributed"
	"github.com/rl-arena/stake-pong-backend/pkg/logger"
	"github.com/rl-arena/stake-pong-backend/pkg/ratelimit"
)

// 세션 생성 API 제한 (IP당)
const (
	sessionCreateBurst  = 10
	sessionCreatePerSec = 1
)

func main() {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 로거 초기화
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting Stake Pong Backend",
		"port", cfg.Port,
		"env", cfg.Env,
		"tickRate", cfg.TickRate,
		"winScore", cfg.WinScore,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis 연결 (선택): 이벤트 발행 + 분산 Rate Limit
	var (
		publisher      distributed.Publisher = distributed.NopPublisher{}
		sessionLimiter ratelimit.Limiter
		redisClient    *redis.Client
	)
	if cfg.RedisURL != "" {
		redisClient, err = connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, event feed disabled", "error", err)
		} else {
			defer redisClient.Close()
			publisher = distributed.NewEventPublisher(redisClient, logger.Named("events"))
			sessionLimiter = ratelimit.NewRedisRateLimiter(redisClient, ratelimit.RedisRateLimiterConfig{
				KeyPrefix: "stakepong:ratelimit:sessions:",
				Limit:     sessionCreateBurst * 6,
				Window:    time.Minute,
			})
			logger.Info("Redis connection established")
		}
	}
	if sessionLimiter == nil {
		memLimiter := ratelimit.NewRateLimiter(sessionCreateBurst, sessionCreatePerSec)
		defer memLimiter.Close()
		sessionLimiter = memLimiter
	}

	// WebSocket Hub 초기화 및 시작
	hub := websocket.NewHub(logger.Named("hub"), websocket.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MessageRate:    cfg.WSMessageRate,
		MessageBurst:   cfg.WSMessageBurst,
	})
	go hub.Run(ctx)

	// Settlement Gateway
	gateway := settlement.NewGateway(cfg.SettlementURL, cfg.SettlementTimeout)
	if !gateway.Enabled() {
		logger.Warn("SETTLEMENT_URL not set, settlement calls will only be logged")
	}

	// Session Engine
	settings := models.DefaultSettings()
	settings.WinScore = cfg.WinScore
	sessions := session.NewManager(
		session.NewRegistry(logger.Named("registry")),
		hub,
		gateway,
		publisher,
		logger.Named("session"),
		session.Config{
			Settings:     settings,
			TickInterval: cfg.TickInterval(),
			Retention:    cfg.SessionRetention,
		},
	)

	// Match Negotiator
	negotiator := matchmaking.NewNegotiator(
		hub,
		sessions,
		gateway,
		publisher,
		logger.Named("negotiator"),
		matchmaking.Config{
			SessionEndpoint: cfg.SessionEndpoint,
			PendingTimeout:  cfg.PendingMatchTimeout,
		},
	)
	negotiatorDone := make(chan struct{})
	go func() {
		defer close(negotiatorDone)
		negotiator.Run(ctx)
	}()

	sweeper, err := matchmaking.NewExpirySweeper(negotiator, cfg.PendingSweepInterval, logger.Named("sweeper"))
	if err != nil {
		logger.Fatal("Failed to create pending match sweeper", "error", err)
	}
	sweeper.Start()

	// 라우터 설정
	router := api.SetupRouter(cfg, api.Dependencies{
		Hub:            hub,
		Negotiator:     negotiator,
		Sessions:       sessions,
		SessionLimiter: sessionLimiter,
	})

	// 서버 설정 (WebSocket 연결이 오래 유지되므로 WriteTimeout 없음)
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// 서버 시작 (고루틴)
	go func() {
		logger.Info("Server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown 대기
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 10초 타임아웃으로 종료
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	if err := sweeper.Stop(); err != nil {
		logger.Warn("Failed to stop sweeper", "error", err)
	}

	// 워커와 Hub 종료 후 세션 정리
	cancel()
	select {
	case <-negotiatorDone:
	case <-shutdownCtx.Done():
	}
	sessions.Shutdown()

	logger.Info("Server exited")
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}
