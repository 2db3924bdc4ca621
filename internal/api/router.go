package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rl-arena/stake-pong-backend/internal/api/handlers"
	"github.com/rl-arena/stake-pong-backend/internal/api/middleware"
	"github.com/rl-arena/stake-pong-backend/internal/config"
	"github.com/rl-arena/stake-pong-backend/internal/matchmaking"
	"github.com/rl-arena/stake-pong-backend/internal/session"
	"github.com/rl-arena/stake-pong-backend/internal/websocket"
	"github.com/rl-arena/stake-pong-backend/pkg/logger"
	"github.com/rl-arena/stake-pong-backend/pkg/ratelimit"
)

// Dependencies 라우터가 사용하는 서비스 묶음 (생성/종료는 main에서)
type Dependencies struct {
	Hub        *websocket.Hub
	Negotiator *matchmaking.Negotiator
	Sessions   *session.Manager
	// 세션 생성 API용 Limiter (nil이면 제한 없음)
	SessionLimiter ratelimit.Limiter
}

// SetupRouter API 라우터 설정
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Handler 초기화
	healthHandler := handlers.NewHealthHandler(deps.Negotiator, deps.Sessions, deps.Hub)
	matchmakingHandler := handlers.NewMatchmakingHandler(deps.Hub, deps.Negotiator, logger.Named("matchmaking-ws"))
	sessionHandler := handlers.NewSessionHandler(deps.Hub, deps.Sessions, cfg.SessionEndpoint, logger.Named("session-ws"))

	// Health check / metrics
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1
	v1 := router.Group("/api/v1")
	{
		// WebSocket endpoints
		v1.GET("/ws/matchmaking", matchmakingHandler.HandleWebSocket)
		v1.GET("/ws/session", sessionHandler.HandleWebSocket)

		v1.GET("/queue-status", matchmakingHandler.QueueStatus)

		// Session routes
		sessions := v1.Group("/sessions")
		{
			create := []gin.HandlerFunc{}
			if deps.SessionLimiter != nil {
				create = append(create, middleware.RateLimitMiddleware(middleware.RateLimitConfig{
					Limiter: deps.SessionLimiter,
					KeyFunc: middleware.IPKeyFunc,
				}))
			}
			create = append(create, sessionHandler.CreateSession)

			sessions.POST("", create...)
			sessions.GET("/:matchId", sessionHandler.GetSession)
		}
	}

	return router
}
