package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 매치 라이프사이클 이벤트 타입
const (
	EventMatchCreated  = "match_created"
	EventMatchReady    = "match_ready"
	EventMatchExpired  = "match_expired"
	EventMatchStarted  = "match_started"
	EventMatchFinished = "match_finished"
)

const defaultEventChannel = "stakepong:events"

// MatchEvent 외부 관찰자에게 발행되는 매치 이벤트
type MatchEvent struct {
	Type      string    `json:"type"`
	MatchID   string    `json:"match_id"`
	Stake     string    `json:"stake,omitempty"`
	Players   []string  `json:"players,omitempty"`
	Winner    string    `json:"winner,omitempty"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher 매치 이벤트 발행 인터페이스
type Publisher interface {
	Publish(ctx context.Context, event MatchEvent) error
}

// NopPublisher Redis가 설정되지 않은 경우 사용
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, MatchEvent) error { return nil }

// EventPublisher Redis Pub/Sub 기반 매치 이벤트 발행자
type EventPublisher struct {
	client     *redis.Client
	logger     *zap.Logger
	instanceID string
	channel    string
}

// NewEventPublisher 이벤트 발행자 생성
func NewEventPublisher(client *redis.Client, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{
		client:     client,
		logger:     logger,
		instanceID: uuid.New().String(),
		channel:    defaultEventChannel,
	}
}

// Channel 발행 채널 이름
func (p *EventPublisher) Channel() string {
	return p.channel
}

// Publish 이벤트 발행
func (p *EventPublisher) Publish(ctx context.Context, event MatchEvent) error {
	event.Timestamp = time.Now()
	event.Source = p.instanceID

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Published match event",
		zap.String("type", event.Type),
		zap.String("matchId", event.MatchID))

	return nil
}

// Subscribe 이벤트 수신 (handler가 에러를 반환해도 계속 수신)
func (p *EventPublisher) Subscribe(ctx context.Context, handler func(MatchEvent) error) error {
	pubsub := p.client.Subscribe(ctx, p.channel)
	defer pubsub.Close()

	// 구독 확인
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var event MatchEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				p.logger.Error("Failed to unmarshal event", zap.Error(err))
				continue
			}

			if err := handler(event); err != nil {
				p.logger.Error("Failed to handle event", zap.Error(err))
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PublishAsync 틱 루프나 코디네이터를 막지 않도록 비동기로 발행
func PublishAsync(pub Publisher, logger *zap.Logger, event MatchEvent) {
	if pub == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := pub.Publish(ctx, event); err != nil {
			logger.Warn("Failed to publish match event",
				zap.String("type", event.Type),
				zap.String("matchId", event.MatchID),
				zap.Error(err))
		}
	}()
}
