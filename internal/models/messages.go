package models

import "github.com/shopspring/decimal"

// 매칭 프로토콜 이벤트 (client -> server)
const (
	EventJoinQueue    = "join_queue"
	EventLeaveQueue   = "leave_queue"
	EventConfirmStake = "confirm_stake"
)

// 매칭 프로토콜 이벤트 (server -> client)
const (
	EventQueueJoined    = "queue_joined"
	EventQueueLeft      = "queue_left"
	EventMatchFound     = "match_found"
	EventOpponentStaked = "opponent_staked"
	EventGameReady      = "game_ready"
	EventMatchExpired   = "match_expired"
	EventError          = "error"
)

// 세션 프로토콜 이벤트
const (
	EventJoinMatch    = "join_match"
	EventSetInput     = "set_input"
	EventMatchJoined  = "match_joined"
	EventMatchStarted = "match_started"
	EventStateUpdate  = "state_update"
	EventScore        = "score_event"
	EventMatchEnded   = "match_ended"
)

// JoinQueueRequest stake는 문자열("5")과 숫자(5) 모두 허용
type JoinQueueRequest struct {
	Address string          `json:"address"`
	Stake   decimal.Decimal `json:"stake"`
}

type ConfirmStakeRequest struct {
	MatchID string `json:"matchId"`
	Proof   string `json:"proof"`
}

type JoinMatchRequest struct {
	MatchID string `json:"matchId"`
	Address string `json:"address"`
}

type SetInputRequest struct {
	Intent Intent `json:"intent"`
}

type QueueJoinedMessage struct {
	Stake    string `json:"stake"`
	Position int    `json:"position"`
}

type MatchFoundMessage struct {
	MatchID  string `json:"matchId"`
	Opponent string `json:"opponent"`
	Stake    string `json:"stake"`
	Side     string `json:"side"`
}

type OpponentStakedMessage struct {
	MatchID string `json:"matchId"`
}

type GameReadyMessage struct {
	MatchID         string `json:"matchId"`
	SessionEndpoint string `json:"sessionEndpoint"`
}

type MatchExpiredMessage struct {
	MatchID  string `json:"matchId"`
	Requeued bool   `json:"requeued"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

type MatchJoinedMessage struct {
	Side     Side     `json:"side"`
	Snapshot Snapshot `json:"snapshot"`
}

type MatchStartedMessage struct {
	Message  string   `json:"message"`
	Snapshot Snapshot `json:"snapshot"`
}

type StateUpdateMessage struct {
	Snapshot Snapshot `json:"snapshot"`
}

type ScoreEventMessage struct {
	Scorer string `json:"scorer"`
	Scores Scores `json:"scores"`
}

type MatchEndedMessage struct {
	Winner      string   `json:"winner"`
	FinalScores Scores   `json:"finalScores"`
	Snapshot    Snapshot `json:"snapshot"`
}

// ProvisionSessionRequest 세션 생성 요청 (HTTP)
type ProvisionSessionRequest struct {
	MatchID string `json:"matchId" binding:"required"`
	PlayerA string `json:"playerA" binding:"required"`
	PlayerB string `json:"playerB" binding:"required"`
	Stake   string `json:"stake" binding:"required"`
}
