package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rl-arena/stake-pong-backend/internal/models"
	"github.com/rl-arena/stake-pong-backend/pkg/ratelimit"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	sendBufferSize = 256
)

// Client WebSocket 클라이언트
type Client struct {
	id       string
	endpoint string
	hub      *Hub
	conn     *websocket.Conn
	send     chan *Message
	handler  Handler
	limiter  *ratelimit.TokenBucket
	logger   *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, endpoint string, handler Handler) *Client {
	id := uuid.New().String()
	return &Client{
		id:       id,
		endpoint: endpoint,
		hub:      hub,
		conn:     conn,
		send:     make(chan *Message, sendBufferSize),
		handler:  handler,
		limiter:  ratelimit.NewTokenBucket(hub.opts.MessageBurst, hub.opts.MessageRate),
		logger:   hub.logger.With(zap.String("connId", id), zap.String("endpoint", endpoint)),
	}
}

// ID 연결 ID
func (c *Client) ID() string {
	return c.id
}

// readPump 클라이언트 메시지를 읽어 Handler로 전달
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
		c.handler.HandleDisconnect(c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			break
		}

		if !c.limiter.Allow() {
			c.logger.Debug("Inbound message rate exceeded, dropping")
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			c.hub.SendToConn(c.id, models.EventError, models.ErrorMessage{Message: "Invalid message format"})
			continue
		}

		c.handler.HandleMessage(c.id, env)
	}
}

// writePump Hub로부터 메시지를 받아 클라이언트에게 전송
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub가 채널을 닫음
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				c.logger.Error("Failed to marshal message",
					zap.String("type", message.Type),
					zap.Error(err))
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs WebSocket 연결 업그레이드 및 클라이언트 시작
func ServeWs(hub *Hub, endpoint string, handler Handler, w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     hub.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("Failed to upgrade WebSocket connection",
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return
	}

	client := newClient(hub, conn, endpoint, handler)
	hub.registerClient(client)

	go client.writePump()
	go client.readPump()
}
