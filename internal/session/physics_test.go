package session

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rl-arena/stake-pong-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState() *models.Session {
	return newSessionState("match_1", "5", "0xAAA", "0xBBB", models.DefaultSettings(), time.Now())
}

func TestNewSessionState(t *testing.T) {
	s := testState()

	assert.Equal(t, models.SessionStatusWaiting, s.Status)
	assert.Equal(t, 400.0, s.Ball.X)
	assert.Equal(t, 250.0, s.Ball.Y)
	assert.Equal(t, 10.0, s.Ball.Radius)
	for _, p := range s.Players {
		assert.Equal(t, 210.0, p.Paddle.Y)
		assert.Equal(t, 80.0, p.Paddle.Height)
		assert.Equal(t, models.IntentStop, p.Input)
		assert.False(t, p.Connected)
	}
}

func TestStep_PaddleStaysInBounds(t *testing.T) {
	s := testState()
	rng := rand.New(rand.NewSource(42))
	intents := []models.Intent{models.IntentUp, models.IntentDown, models.IntentStop}
	maxY := s.Settings.CourtHeight - s.Settings.PaddleHeight

	for i := 0; i < 5000; i++ {
		s.Players[0].Input = intents[rng.Intn(len(intents))]
		s.Players[1].Input = intents[rng.Intn(len(intents))]
		// 종료 판정이 루프를 멈추지 않도록 점수는 초기화
		s.Players[0].Score, s.Players[1].Score = 0, 0

		step(s, rng)

		for _, p := range s.Players {
			require.GreaterOrEqual(t, p.Paddle.Y, 0.0)
			require.LessOrEqual(t, p.Paddle.Y, maxY)
		}
	}
}

func TestMovePaddle(t *testing.T) {
	cfg := models.DefaultSettings()

	tests := []struct {
		name     string
		start    float64
		intent   models.Intent
		expected float64
	}{
		{"up moves by speed", 100, models.IntentUp, 92},
		{"down moves by speed", 100, models.IntentDown, 108},
		{"stop is a no-op", 100, models.IntentStop, 100},
		{"up clamps at top", 3, models.IntentUp, 0},
		{"down clamps at bottom", 418, models.IntentDown, 420},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &models.PlayerState{Paddle: models.Paddle{Y: tt.start, Height: cfg.PaddleHeight}, Input: tt.intent}
			movePaddle(p, cfg)
			assert.Equal(t, tt.expected, p.Paddle.Y)
		})
	}
}

func TestStep_WallReflection(t *testing.T) {
	s := testState()
	rng := rand.New(rand.NewSource(1))

	s.Ball.X, s.Ball.Y = 400, 13
	s.Ball.DX, s.Ball.DY = 5, -4
	step(s, rng)
	assert.Equal(t, 9.0, s.Ball.Y)
	assert.Equal(t, 4.0, s.Ball.DY)

	s.Ball.Y, s.Ball.DY = 487, 4
	step(s, rng)
	assert.Equal(t, 491.0, s.Ball.Y)
	assert.Equal(t, -4.0, s.Ball.DY)
}

func TestStep_PaddleCollision(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	t.Run("left paddle", func(t *testing.T) {
		s := testState()
		s.Ball.X, s.Ball.Y = 28, 250
		s.Ball.DX, s.Ball.DY = -5, 0

		res := step(s, rng)

		assert.Equal(t, models.SideNone, res.scorer)
		assert.Equal(t, 5.0, s.Ball.DX)
		assert.Equal(t, 25.0, s.Ball.X)
	})

	t.Run("right paddle", func(t *testing.T) {
		s := testState()
		s.Ball.X, s.Ball.Y = 772, 250
		s.Ball.DX, s.Ball.DY = 5, 0

		step(s, rng)

		assert.Equal(t, -5.0, s.Ball.DX)
		assert.Equal(t, 775.0, s.Ball.X)
	})

	t.Run("ball moving away is not reflected", func(t *testing.T) {
		s := testState()
		s.Ball.X, s.Ball.Y = 20, 250
		s.Ball.DX, s.Ball.DY = 5, 0

		step(s, rng)

		assert.Equal(t, 5.0, s.Ball.DX)
		assert.Equal(t, 25.0, s.Ball.X)
	})

	t.Run("miss when paddle is elsewhere", func(t *testing.T) {
		s := testState()
		s.Players[0].Paddle.Y = 0
		s.Ball.X, s.Ball.Y = 28, 400
		s.Ball.DX, s.Ball.DY = -5, 0

		step(s, rng)

		assert.Equal(t, -5.0, s.Ball.DX)
	})
}

func TestStep_ScoringResetsTowardConcedingPlayer(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		s := testState()
		s.Players[0].Paddle.Y = 0
		s.Players[1].Paddle.Y = 0

		// 왼쪽 골라인 통과: B 득점, A 쪽으로 서브
		s.Ball.X, s.Ball.Y, s.Ball.DX, s.Ball.DY = 2, 400, -5, 0
		res := step(s, rng)
		require.Equal(t, models.SideB, res.scorer)
		assert.Equal(t, 1, s.Players[1].Score)
		assert.Equal(t, 400.0, s.Ball.X)
		assert.Equal(t, 250.0, s.Ball.Y)
		assert.Less(t, s.Ball.DX, 0.0)
		assert.GreaterOrEqual(t, math.Abs(s.Ball.DY), minServeDY)
		assert.Less(t, math.Abs(s.Ball.DY), maxServeDY)

		// 오른쪽 골라인 통과: A 득점, B 쪽으로 서브
		s.Ball.X, s.Ball.Y, s.Ball.DX, s.Ball.DY = 798, 400, 5, 0
		res = step(s, rng)
		require.Equal(t, models.SideA, res.scorer)
		assert.Equal(t, 1, s.Players[0].Score)
		assert.Equal(t, 400.0, s.Ball.X)
		assert.Equal(t, 250.0, s.Ball.Y)
		assert.Greater(t, s.Ball.DX, 0.0)
	}
}

func TestStep_ServeDirectionIsRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	s := testState()

	up, down := 0, 0
	for i := 0; i < 100; i++ {
		serve(s, models.SideB, rng)
		if s.Ball.DY < 0 {
			up++
		} else {
			down++
		}
	}
	assert.NotZero(t, up)
	assert.NotZero(t, down)
}

func TestStep_FinishesAtWinScore(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := testState()
	s.Players[0].Score = 4
	s.Players[1].Paddle.Y = 0

	s.Ball.X, s.Ball.Y, s.Ball.DX, s.Ball.DY = 798, 400, 5, 0
	res := step(s, rng)

	assert.True(t, res.finished)
	assert.Equal(t, 5, s.Players[0].Score)
	assert.Equal(t, models.SideA, winner(s))
}

func TestStep_BallStaysInCourt(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	s := testState()

	for i := 0; i < 10000; i++ {
		s.Players[0].Score, s.Players[1].Score = 0, 0
		step(s, rng)
		require.GreaterOrEqual(t, s.Ball.Y, 0.0)
		require.LessOrEqual(t, s.Ball.Y, s.Settings.CourtHeight)
		require.GreaterOrEqual(t, s.Ball.X, 0.0)
		require.LessOrEqual(t, s.Ball.X, s.Settings.CourtWidth)
	}
}
