package session

import (
	"math/rand"
	"time"

	"github.com/rl-arena/stake-pong-backend/internal/models"
)

// 서브 직후 공의 수직 속도 범위
const (
	minServeDY = 2.0
	maxServeDY = 5.0

	initialServeDY = 3.0
)

type stepResult struct {
	scorer   models.Side
	finished bool
}

// newSessionState 대기 상태의 새 세션
func newSessionState(matchID, stake, playerA, playerB string, settings models.Settings, now time.Time) *models.Session {
	paddleY := (settings.CourtHeight - settings.PaddleHeight) / 2

	s := &models.Session{
		MatchID:   matchID,
		Stake:     stake,
		Status:    models.SessionStatusWaiting,
		Settings:  settings,
		CreatedAt: now,
		Ball: models.BallState{
			X:      settings.CourtWidth / 2,
			Y:      settings.CourtHeight / 2,
			DX:     settings.BallSpeed,
			DY:     initialServeDY,
			Radius: settings.BallRadius,
		},
	}
	for i, addr := range []string{playerA, playerB} {
		s.Players[i] = models.PlayerState{
			Address: addr,
			Paddle:  models.Paddle{Y: paddleY, Height: settings.PaddleHeight},
			Input:   models.IntentStop,
		}
	}
	return s
}

// step 한 틱 진행: 패들, 공 이동, 벽/패들 반사, 득점, 종료 판정 순
func step(s *models.Session, rng *rand.Rand) stepResult {
	cfg := s.Settings
	left, right := s.Player(models.SideA), s.Player(models.SideB)

	movePaddle(left, cfg)
	movePaddle(right, cfg)

	ball := &s.Ball
	ball.X += ball.DX
	ball.Y += ball.DY

	if (ball.Y <= ball.Radius && ball.DY < 0) || (ball.Y >= cfg.CourtHeight-ball.Radius && ball.DY > 0) {
		ball.DY = -ball.DY
	}

	// 패들 면에 고정해서 관통/끼임 방지
	if ball.DX < 0 && ball.X <= cfg.PaddleWidth+ball.Radius && covers(left.Paddle, ball.Y) {
		ball.DX = -ball.DX
		ball.X = cfg.PaddleWidth + ball.Radius
	}
	if ball.DX > 0 && ball.X >= cfg.CourtWidth-cfg.PaddleWidth-ball.Radius && covers(right.Paddle, ball.Y) {
		ball.DX = -ball.DX
		ball.X = cfg.CourtWidth - cfg.PaddleWidth - ball.Radius
	}

	var res stepResult
	switch {
	case ball.X < 0:
		right.Score++
		res.scorer = models.SideB
		serve(s, models.SideA, rng)
	case ball.X > cfg.CourtWidth:
		left.Score++
		res.scorer = models.SideA
		serve(s, models.SideB, rng)
	}

	res.finished = left.Score >= cfg.WinScore || right.Score >= cfg.WinScore
	return res
}

func movePaddle(p *models.PlayerState, cfg models.Settings) {
	switch p.Input {
	case models.IntentUp:
		p.Paddle.Y -= cfg.PaddleSpeed
	case models.IntentDown:
		p.Paddle.Y += cfg.PaddleSpeed
	default:
		return
	}

	maxY := cfg.CourtHeight - p.Paddle.Height
	if p.Paddle.Y < 0 {
		p.Paddle.Y = 0
	}
	if p.Paddle.Y > maxY {
		p.Paddle.Y = maxY
	}
}

func covers(p models.Paddle, y float64) bool {
	return y >= p.Y && y <= p.Y+p.Height
}

// serve 공을 중앙에 두고 실점한 쪽(toward)으로 보냄
func serve(s *models.Session, toward models.Side, rng *rand.Rand) {
	ball := &s.Ball
	ball.X = s.Settings.CourtWidth / 2
	ball.Y = s.Settings.CourtHeight / 2

	dy := minServeDY + rng.Float64()*(maxServeDY-minServeDY)
	if rng.Intn(2) == 0 {
		dy = -dy
	}
	ball.DY = dy

	if toward == models.SideA {
		ball.DX = -s.Settings.BallSpeed
	} else {
		ball.DX = s.Settings.BallSpeed
	}
}

// winner 점수가 높은 쪽
func winner(s *models.Session) models.Side {
	if s.Players[0].Score > s.Players[1].Score {
		return models.SideA
	}
	return models.SideB
}
