package distributed

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupPublisher(t *testing.T) (*redis.Client, *EventPublisher) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 테스트용 DB
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available:", err)
	}

	return client, NewEventPublisher(client, zap.NewNop())
}

func TestEventPublisher_PublishSubscribe(t *testing.T) {
	client, pub := setupPublisher(t)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan MatchEvent, 1)
	go func() {
		_ = pub.Subscribe(ctx, func(e MatchEvent) error {
			received <- e
			return nil
		})
	}()

	// 구독이 붙을 때까지 재발행
	require.Eventually(t, func() bool {
		_ = pub.Publish(ctx, MatchEvent{Type: EventMatchReady, MatchID: "match_1", Stake: "5"})
		select {
		case e := <-received:
			assert.Equal(t, EventMatchReady, e.Type)
			assert.Equal(t, "match_1", e.MatchID)
			assert.NotEmpty(t, e.Source)
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 4*time.Second, 100*time.Millisecond)
}

type recordingPublisher struct {
	events chan MatchEvent
}

func (r *recordingPublisher) Publish(_ context.Context, e MatchEvent) error {
	r.events <- e
	return nil
}

func TestPublishAsync(t *testing.T) {
	rec := &recordingPublisher{events: make(chan MatchEvent, 1)}

	PublishAsync(rec, zap.NewNop(), MatchEvent{Type: EventMatchFinished, MatchID: "m", Winner: "0xAAA"})

	select {
	case e := <-rec.events:
		assert.Equal(t, "0xAAA", e.Winner)
	case <-time.After(time.Second):
		t.Fatal("event was not published")
	}

	assert.NotPanics(t, func() {
		PublishAsync(nil, zap.NewNop(), MatchEvent{})
		_ = NopPublisher{}.Publish(context.Background(), MatchEvent{})
	})
}
