package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rl-arena/stake-pong-backend/internal/matchmaking"
	"github.com/rl-arena/stake-pong-backend/internal/models"
	"github.com/rl-arena/stake-pong-backend/internal/session"
	"github.com/rl-arena/stake-pong-backend/internal/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SessionHandler 세션 프로토콜 WebSocket 엔드포인트와 세션 조회/생성 API
type SessionHandler struct {
	hub             *websocket.Hub
	manager         *session.Manager
	sessionEndpoint string
	logger          *zap.Logger
}

// NewSessionHandler SessionHandler 생성
func NewSessionHandler(hub *websocket.Hub, manager *session.Manager, sessionEndpoint string, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		hub:             hub,
		manager:         manager,
		sessionEndpoint: sessionEndpoint,
		logger:          logger,
	}
}

// HandleWebSocket GET /api/v1/ws/session
func (h *SessionHandler) HandleWebSocket(c *gin.Context) {
	websocket.ServeWs(h.hub, "session", h, c.Writer, c.Request)
}

// HandleMessage join_match / set_input 처리
func (h *SessionHandler) HandleMessage(connID string, env websocket.Envelope) {
	switch env.Type {
	case models.EventJoinMatch:
		var req models.JoinMatchRequest
		if err := decodePayload(env, &req); err != nil {
			sendError(h.hub, connID, "Invalid join_match payload")
			return
		}
		if _, err := h.manager.Join(connID, req.MatchID, req.Address); err != nil {
			sendError(h.hub, connID, err.Error())
		}

	case models.EventSetInput:
		var req models.SetInputRequest
		if err := decodePayload(env, &req); err != nil {
			sendError(h.hub, connID, "Invalid set_input payload")
			return
		}
		if err := h.manager.SetInput(connID, req.Intent); err != nil {
			sendError(h.hub, connID, err.Error())
		}

	default:
		sendError(h.hub, connID, "Unknown message type: "+env.Type)
	}
}

// HandleDisconnect 플레이어를 disconnected로 표시 (세션은 계속 진행)
func (h *SessionHandler) HandleDisconnect(connID string) {
	h.manager.Disconnect(connID)
}

// CreateSession POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req models.ProvisionSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: matchId, playerA, playerB, stake"})
		return
	}

	amount, err := decimal.NewFromString(req.Stake)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": matchmaking.ErrInvalidStake.Error()})
		return
	}
	stake, err := matchmaking.NormalizeStake(amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.manager.CreateSession(req.MatchID, req.PlayerA, req.PlayerB, stake); err != nil {
		switch {
		case errors.Is(err, session.ErrDuplicateMatch):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, session.ErrInvalidPlayers):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to create session", zap.String("matchId", req.MatchID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"matchId":         req.MatchID,
		"sessionEndpoint": h.sessionEndpoint,
	})
}

// GetSession GET /api/v1/sessions/:matchId
func (h *SessionHandler) GetSession(c *gin.Context) {
	snap, err := h.manager.Snapshot(c.Param("matchId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, snap)
}
