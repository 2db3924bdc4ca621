package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// Envelope 클라이언트가 보내는 메시지 ({"type": ..., "payload": {...}})
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message 서버가 보내는 메시지
type Message struct {
	ConnID  string      `json:"-"`       // 수신 연결
	Type    string      `json:"type"`    // 메시지 타입
	Payload interface{} `json:"payload"` // 메시지 내용
}

// Handler 엔드포인트별 메시지 처리기 (매치메이킹/세션)
type Handler interface {
	HandleMessage(connID string, env Envelope)
	HandleDisconnect(connID string)
}

// Options Hub 설정
type Options struct {
	AllowedOrigins []string // 비어 있거나 "*"이면 모두 허용
	MessageRate    int64    // 연결당 초당 허용 메시지 수
	MessageBurst   int64    // 연결당 순간 허용 메시지 수
}

// Hub WebSocket 연결 관리 (연결 ID -> *Client)
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex

	unregister chan *Client
	done       chan struct{}

	opts   Options
	logger *zap.Logger
}

// NewHub Hub 생성
func NewHub(logger *zap.Logger, opts Options) *Hub {
	if opts.MessageRate <= 0 {
		opts.MessageRate = 60
	}
	if opts.MessageBurst <= 0 {
		opts.MessageBurst = 120
	}
	return &Hub{
		clients:    make(map[string]*Client),
		unregister: make(chan *Client, 256),
		done:       make(chan struct{}),
		opts:       opts,
		logger:     logger,
	}
}

// Run Hub 실행. ctx가 끝나면 모든 연결을 닫는다.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// registerClient 클라이언트 등록 (readPump 시작 전에 완료되어야 함)
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.id] = client
	h.logger.Info("WebSocket client registered",
		zap.String("connId", client.id),
		zap.String("endpoint", client.endpoint),
		zap.Int("totalClients", len(h.clients)))
}

// unregisterClient 클라이언트 해제
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.clients[client.id]; exists && current == client {
		delete(h.clients, client.id)
		close(client.send)
		h.logger.Info("WebSocket client unregistered",
			zap.String("connId", client.id),
			zap.Int("totalClients", len(h.clients)))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.send)
	}
}

// SendToConn 특정 연결에 메시지 전송. 전송 버퍼가 가득 차면 버린다 (틱 루프를 막지 않음).
func (h *Hub) SendToConn(connID string, msgType string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[connID]
	if !exists {
		h.logger.Debug("Dropping message for unknown connection",
			zap.String("connId", connID),
			zap.String("type", msgType))
		return
	}

	select {
	case client.send <- &Message{ConnID: connID, Type: msgType, Payload: payload}:
	default:
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("connId", connID),
			zap.String("type", msgType))
	}
}

// Count 연결된 클라이언트 수
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// leave readPump 종료 시 해제 요청 (Run이 끝났으면 무시)
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
