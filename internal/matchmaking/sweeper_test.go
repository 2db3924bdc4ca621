package matchmaking

import (
	"context"
	"testing"
	"time"

	"github.com/rl-arena/stake-pong-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExpirySweeper_ExpiresStalePendingMatches(t *testing.T) {
	f := setupNegotiator(t)
	f.negotiator.cfg.PendingTimeout = 20 * time.Millisecond

	f.join(t, "conn-a", "0xAAA", "5")
	f.join(t, "conn-b", "0xBBB", "5")
	require.Equal(t, 1, f.notifier.count(models.EventMatchFound)/2)

	sweeper, err := NewExpirySweeper(f.negotiator, 10*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	sweeper.Start()
	defer func() { assert.NoError(t, sweeper.Stop()) }()

	require.Eventually(t, func() bool {
		return f.notifier.count(models.EventMatchExpired) == 2
	}, 2*time.Second, 10*time.Millisecond)

	stats, err := f.negotiator.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.PendingMatches)
	// 아무도 확인하지 않았으므로 재등록 없음
	assert.Empty(t, stats.Queues)
}

func TestExpirySweeper_SkipsWhenNegotiatorStopped(t *testing.T) {
	n := NewNegotiator(&fakeNotifier{}, &fakeProvisioner{}, nil, nil, zap.NewNop(), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Run(ctx)

	sweeper, err := NewExpirySweeper(n, time.Hour, zap.NewNop())
	require.NoError(t, err)

	// 워커가 멈춘 뒤에도 sweep은 에러 없이 건너뛴다
	sweeper.sweep()
	require.NoError(t, sweeper.Stop())
}
