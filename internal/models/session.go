package models

import "time"

type SessionStatus string

const (
	SessionStatusWaiting  SessionStatus = "waiting"
	SessionStatusPlaying  SessionStatus = "playing"
	SessionStatusFinished SessionStatus = "finished"
)

// Intent 패들 입력 의도
type Intent string

const (
	IntentUp   Intent = "up"
	IntentDown Intent = "down"
	IntentStop Intent = "stop"
)

func (i Intent) Valid() bool {
	return i == IntentUp || i == IntentDown || i == IntentStop
}

// Settings 세션 동안 변하지 않는 코트 설정
type Settings struct {
	CourtWidth   float64 `json:"courtWidth"`
	CourtHeight  float64 `json:"courtHeight"`
	PaddleWidth  float64 `json:"paddleWidth"`
	PaddleHeight float64 `json:"paddleHeight"`
	PaddleSpeed  float64 `json:"paddleSpeed"`
	BallRadius   float64 `json:"ballRadius"`
	BallSpeed    float64 `json:"ballSpeed"`
	WinScore     int     `json:"winScore"`
}

// DefaultSettings 800x500 코트, 5점 선승
func DefaultSettings() Settings {
	return Settings{
		CourtWidth:   800,
		CourtHeight:  500,
		PaddleWidth:  15,
		PaddleHeight: 80,
		PaddleSpeed:  8,
		BallRadius:   10,
		BallSpeed:    5,
		WinScore:     5,
	}
}

type Paddle struct {
	Y      float64 `json:"y"`
	Height float64 `json:"height"`
}

// PlayerState 세션 내 플레이어 상태
type PlayerState struct {
	Address   string
	ConnID    string
	Connected bool
	Score     int
	Paddle    Paddle
	Input     Intent
}

// BallState 공 위치/속도
type BallState struct {
	X      float64
	Y      float64
	DX     float64
	DY     float64
	Radius float64
}

// Session 매치 한 건의 권위 있는 시뮬레이션 상태
type Session struct {
	MatchID    string
	Stake      string
	Status     SessionStatus
	Players    [2]PlayerState
	Ball       BallState
	Settings   Settings
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	Winner     string
}

// Player 슬롯별 플레이어 상태 포인터
func (s *Session) Player(side Side) *PlayerState {
	return &s.Players[side-1]
}

// Scores 양측 점수
type Scores struct {
	PlayerA int `json:"playerA"`
	PlayerB int `json:"playerB"`
}

func (s *Session) Scores() Scores {
	return Scores{PlayerA: s.Players[0].Score, PlayerB: s.Players[1].Score}
}

type PlayerSnapshot struct {
	Address   string `json:"address"`
	Score     int    `json:"score"`
	Paddle    Paddle `json:"paddle"`
	Connected bool   `json:"connected"`
}

type BallSnapshot struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Snapshot 클라이언트로 전송되는 세션 상태
type Snapshot struct {
	MatchID  string         `json:"matchId"`
	Status   SessionStatus  `json:"status"`
	PlayerA  PlayerSnapshot `json:"playerA"`
	PlayerB  PlayerSnapshot `json:"playerB"`
	Ball     BallSnapshot   `json:"ball"`
	Settings Settings       `json:"settings"`
	Winner   *string        `json:"winner"`
}

// Snapshot 현재 상태의 직렬화용 사본
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		MatchID:  s.MatchID,
		Status:   s.Status,
		PlayerA:  playerSnapshot(&s.Players[0]),
		PlayerB:  playerSnapshot(&s.Players[1]),
		Ball:     BallSnapshot{X: s.Ball.X, Y: s.Ball.Y, Radius: s.Ball.Radius},
		Settings: s.Settings,
	}
	if s.Winner != "" {
		winner := s.Winner
		snap.Winner = &winner
	}
	return snap
}

func playerSnapshot(p *PlayerState) PlayerSnapshot {
	return PlayerSnapshot{
		Address:   p.Address,
		Score:     p.Score,
		Paddle:    p.Paddle,
		Connected: p.Connected,
	}
}
