package handlers

import (
	"encoding/json"

	"github.com/rl-arena/stake-pong-backend/internal/models"
	"github.com/rl-arena/stake-pong-backend/internal/websocket"
)

// decodePayload 빈 payload는 빈 객체로 취급
func decodePayload(env websocket.Envelope, v interface{}) error {
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil
	}
	return json.Unmarshal(env.Payload, v)
}

// sendError 요청한 연결에만 에러 전송 (상태 변경 없음)
func sendError(hub *websocket.Hub, connID, message string) {
	hub.SendToConn(connID, models.EventError, models.ErrorMessage{Message: message})
}
