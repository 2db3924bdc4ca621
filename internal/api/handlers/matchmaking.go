package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rl-arena/stake-pong-backend/internal/matchmaking"
	"github.com/rl-arena/stake-pong-backend/internal/models"
	"github.com/rl-arena/stake-pong-backend/internal/websocket"
	"go.uber.org/zap"
)

// MatchmakingHandler 매칭 프로토콜 WebSocket 엔드포인트
type MatchmakingHandler struct {
	hub        *websocket.Hub
	negotiator *matchmaking.Negotiator
	logger     *zap.Logger
}

// NewMatchmakingHandler MatchmakingHandler 생성
func NewMatchmakingHandler(hub *websocket.Hub, negotiator *matchmaking.Negotiator, logger *zap.Logger) *MatchmakingHandler {
	return &MatchmakingHandler{
		hub:        hub,
		negotiator: negotiator,
		logger:     logger,
	}
}

// HandleWebSocket GET /api/v1/ws/matchmaking
func (h *MatchmakingHandler) HandleWebSocket(c *gin.Context) {
	websocket.ServeWs(h.hub, "matchmaking", h, c.Writer, c.Request)
}

// HandleMessage join_queue / leave_queue / confirm_stake 처리
func (h *MatchmakingHandler) HandleMessage(connID string, env websocket.Envelope) {
	switch env.Type {
	case models.EventJoinQueue:
		var req models.JoinQueueRequest
		if err := decodePayload(env, &req); err != nil {
			sendError(h.hub, connID, "Invalid join_queue payload")
			return
		}
		if _, err := h.negotiator.JoinQueue(connID, req.Address, req.Stake); err != nil {
			sendError(h.hub, connID, err.Error())
		}

	case models.EventLeaveQueue:
		if err := h.negotiator.LeaveQueue(connID); err != nil {
			sendError(h.hub, connID, err.Error())
		}

	case models.EventConfirmStake:
		var req models.ConfirmStakeRequest
		if err := decodePayload(env, &req); err != nil {
			sendError(h.hub, connID, "Invalid confirm_stake payload")
			return
		}
		if err := h.negotiator.ConfirmStake(connID, req.MatchID, req.Proof); err != nil {
			sendError(h.hub, connID, err.Error())
		}

	default:
		sendError(h.hub, connID, "Unknown message type: "+env.Type)
	}
}

// HandleDisconnect 대기열 제거 및 대기 매치에서 이탈 표시
func (h *MatchmakingHandler) HandleDisconnect(connID string) {
	if err := h.negotiator.Disconnect(connID); err != nil {
		h.logger.Debug("Disconnect after negotiator stopped", zap.String("connId", connID))
	}
}

// QueueStatus GET /api/v1/queue-status
func (h *MatchmakingHandler) QueueStatus(c *gin.Context) {
	stats, err := h.negotiator.Stats()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
