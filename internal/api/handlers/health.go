package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rl-arena/stake-pong-backend/internal/matchmaking"
	"github.com/rl-arena/stake-pong-backend/internal/session"
	"github.com/rl-arena/stake-pong-backend/internal/websocket"
)

// HealthHandler 서버 상태 조회
type HealthHandler struct {
	negotiator *matchmaking.Negotiator
	manager    *session.Manager
	hub        *websocket.Hub
}

// NewHealthHandler HealthHandler 생성
func NewHealthHandler(negotiator *matchmaking.Negotiator, manager *session.Manager, hub *websocket.Hub) *HealthHandler {
	return &HealthHandler{
		negotiator: negotiator,
		manager:    manager,
		hub:        hub,
	}
}

// HealthCheck GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	stats, err := h.negotiator.Stats()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	queued := 0
	for _, n := range stats.Queues {
		queued += n
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"service":        "stake-pong-backend",
		"queuedPlayers":  queued,
		"pendingMatches": stats.PendingMatches,
		"activeSessions": h.manager.Count(),
		"connections":    h.hub.Count(),
	})
}
