package models

import "time"

// Side 매치 내 플레이어 슬롯
type Side int

const (
	SideNone Side = 0
	SideA    Side = 1
	SideB    Side = 2
)

func (s Side) String() string {
	switch s {
	case SideA:
		return "playerA"
	case SideB:
		return "playerB"
	default:
		return "none"
	}
}

// Opponent 상대편 슬롯
func (s Side) Opponent() Side {
	switch s {
	case SideA:
		return SideB
	case SideB:
		return SideA
	default:
		return SideNone
	}
}

// QueueEntry 스테이크 큐 대기 항목
type QueueEntry struct {
	ConnID     string    `json:"connId"`
	Address    string    `json:"address"`
	Stake      string    `json:"stake"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

type PendingMatchStatus string

const (
	PendingStatusAwaitingStakes PendingMatchStatus = "awaiting_stakes"
	PendingStatusReady          PendingMatchStatus = "ready"
)

// PendingMatch 스테이크 확인을 기다리는 매치
type PendingMatch struct {
	MatchID   string             `json:"matchId"`
	Stake     string             `json:"stake"`
	Status    PendingMatchStatus `json:"status"`
	Players   [2]QueueEntry      `json:"players"`
	Confirmed [2]bool            `json:"confirmed"`
	Proofs    [2]string          `json:"proofs"`
	Left      [2]bool            `json:"-"`
	CreatedAt time.Time          `json:"createdAt"`
}

// SideOf 연결 ID로 슬롯 조회
func (m *PendingMatch) SideOf(connID string) Side {
	switch connID {
	case m.Players[0].ConnID:
		return SideA
	case m.Players[1].ConnID:
		return SideB
	default:
		return SideNone
	}
}

// Player 슬롯별 대기 항목
func (m *PendingMatch) Player(side Side) QueueEntry {
	return m.Players[side-1]
}

// IsConfirmed 슬롯의 스테이크 확인 여부
func (m *PendingMatch) IsConfirmed(side Side) bool {
	return m.Confirmed[side-1]
}

// BothConfirmed 양측 모두 확인했는지
func (m *PendingMatch) BothConfirmed() bool {
	return m.Confirmed[0] && m.Confirmed[1]
}
