package matchmaking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rl-arena/stake-pong-backend/internal/models"
	"github.com/rl-arena/stake-pong-backend/pkg/distributed"
	"github.com/rl-arena/stake-pong-backend/pkg/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Notifier 연결 단위 메시지 전송
type Notifier interface {
	SendToConn(connID string, msgType string, payload interface{})
}

// SessionProvisioner 양측 스테이크 확인 후 세션 생성
type SessionProvisioner interface {
	CreateSession(matchID, playerA, playerB, stake string) error
}

// SettlementClient 정산 서비스에 세션 생성을 알림 (fire-and-forget)
type SettlementClient interface {
	ProvisionAsync(matchID, playerA, playerB, stake string)
}

// Config Negotiator 설정
type Config struct {
	SessionEndpoint string
	PendingTimeout  time.Duration
}

// Stats 매칭 상태 요약
type Stats struct {
	Queues         map[string]int `json:"queues"`
	PendingMatches int            `json:"pendingMatches"`
}

// Negotiator 큐 페어링과 스테이크 확인 핸드셰이크를 담당.
// 큐와 PendingMatch 테이블은 Run 고루틴 하나만 변경한다.
type Negotiator struct {
	queues  *QueueStore
	pending map[string]*models.PendingMatch
	byConn  map[string]string // connID -> matchID

	notifier   Notifier
	sessions   SessionProvisioner
	settlement SettlementClient
	publisher  distributed.Publisher
	logger     *zap.Logger
	cfg        Config

	now        func() time.Time
	newMatchID func() string

	cmds chan func()
	done chan struct{}
}

// NewNegotiator Negotiator 생성
func NewNegotiator(
	notifier Notifier,
	sessions SessionProvisioner,
	settlement SettlementClient,
	publisher distributed.Publisher,
	logger *zap.Logger,
	cfg Config,
) *Negotiator {
	if publisher == nil {
		publisher = distributed.NopPublisher{}
	}
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = 2 * time.Minute
	}

	return &Negotiator{
		queues:     NewQueueStore(),
		pending:    make(map[string]*models.PendingMatch),
		byConn:     make(map[string]string),
		notifier:   notifier,
		sessions:   sessions,
		settlement: settlement,
		publisher:  publisher,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		newMatchID: generateMatchID,
		cmds:       make(chan func(), 256),
		done:       make(chan struct{}),
	}
}

// Run 코디네이션 워커 실행 (ctx 취소 시 종료)
func (n *Negotiator) Run(ctx context.Context) {
	defer close(n.done)

	n.logger.Info("Match negotiator started")

	for {
		select {
		case cmd := <-n.cmds:
			cmd()
		case <-ctx.Done():
			n.logger.Info("Match negotiator stopped")
			return
		}
	}
}

// do 워커에서 fn을 실행하고 완료까지 대기
func (n *Negotiator) do(fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	select {
	case n.cmds <- wrapped:
	case <-n.done:
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-n.done:
		return ErrStopped
	}
}

// NormalizeStake 스테이크 티어 키 ("5", "5.0", 5 -> "5")
func NormalizeStake(stake decimal.Decimal) (string, error) {
	if !stake.IsPositive() {
		return "", ErrInvalidStake
	}
	return stake.String(), nil
}

// JoinQueue 스테이크 큐에 추가하고 페어링 시도
func (n *Negotiator) JoinQueue(connID, address string, stake decimal.Decimal) (int, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return 0, ErrMissingAddress
	}
	tier, err := NormalizeStake(stake)
	if err != nil {
		return 0, err
	}

	var (
		position int
		joinErr  error
	)
	err = n.do(func() {
		if _, matched := n.byConn[connID]; matched {
			joinErr = ErrAlreadyMatched
			return
		}

		position = n.queues.Enqueue(models.QueueEntry{
			ConnID:     connID,
			Address:    address,
			Stake:      tier,
			EnqueuedAt: n.now(),
		})

		n.logger.Info("Player joined queue",
			zap.String("address", address),
			zap.String("stake", tier),
			zap.Int("position", position))

		n.notifier.SendToConn(connID, models.EventQueueJoined, models.QueueJoinedMessage{
			Stake:    tier,
			Position: position,
		})

		n.pair(tier)
	})
	if err != nil {
		return 0, err
	}

	return position, joinErr
}

// LeaveQueue 큐에서 제거
func (n *Negotiator) LeaveQueue(connID string) error {
	return n.do(func() {
		if entry, ok := n.queues.Remove(connID); ok {
			n.logger.Info("Player left queue",
				zap.String("address", entry.Address),
				zap.String("stake", entry.Stake))
		}
		n.notifier.SendToConn(connID, models.EventQueueLeft, struct{}{})
	})
}

// Disconnect 연결 종료 처리. 대기 중인 PendingMatch는 만료 정책에 맡긴다.
func (n *Negotiator) Disconnect(connID string) error {
	return n.do(func() {
		n.queues.Remove(connID)

		if matchID, ok := n.byConn[connID]; ok {
			if m := n.pending[matchID]; m != nil {
				if side := m.SideOf(connID); side != models.SideNone {
					m.Left[side-1] = true
				}
			}
		}
	})
}

// pair 티어에 두 명 이상이 있는 동안 가장 오래 기다린 두 명을 매칭
func (n *Negotiator) pair(stake string) {
	for n.queues.Len(stake) >= 2 {
		entries := n.queues.DequeueFront(stake)
		first, second := entries[0], entries[1]

		if strings.EqualFold(first.Address, second.Address) {
			// 자기 자신과의 매칭 방지: 원래 순서대로 앞에 되돌림
			n.logger.Warn("Self-match prevented",
				zap.String("address", first.Address),
				zap.String("stake", stake))
			n.queues.PushFront(stake, first, second)
			return
		}

		n.createPending(stake, first, second)
	}
}

func (n *Negotiator) createPending(stake string, first, second models.QueueEntry) {
	matchID := n.newMatchID()
	for i := 0; i < 3 && n.pending[matchID] != nil; i++ {
		n.logger.Warn("Duplicate match id generated, regenerating", zap.String("matchId", matchID))
		matchID = n.newMatchID()
	}

	m := &models.PendingMatch{
		MatchID:   matchID,
		Stake:     stake,
		Status:    models.PendingStatusAwaitingStakes,
		Players:   [2]models.QueueEntry{first, second},
		CreatedAt: n.now(),
	}
	n.pending[matchID] = m
	n.byConn[first.ConnID] = matchID
	n.byConn[second.ConnID] = matchID

	metrics.MatchesCreated.Inc()
	metrics.PendingMatches.Set(float64(len(n.pending)))

	n.logger.Info("Match created",
		zap.String("matchId", matchID),
		zap.String("playerA", first.Address),
		zap.String("playerB", second.Address),
		zap.String("stake", stake))

	for _, side := range []models.Side{models.SideA, models.SideB} {
		n.notifier.SendToConn(m.Player(side).ConnID, models.EventMatchFound, models.MatchFoundMessage{
			MatchID:  matchID,
			Opponent: m.Player(side.Opponent()).Address,
			Stake:    stake,
			Side:     side.String(),
		})
	}

	distributed.PublishAsync(n.publisher, n.logger, distributed.MatchEvent{
		Type:    distributed.EventMatchCreated,
		MatchID: matchID,
		Stake:   stake,
		Players: []string{first.Address, second.Address},
	})
}

// ConfirmStake 스테이크 확인. 알 수 없는 매치 ID는 조용히 무시한다.
func (n *Negotiator) ConfirmStake(connID, matchID, proof string) error {
	var confirmErr error
	err := n.do(func() {
		m := n.pending[matchID]
		if m == nil {
			n.logger.Debug("Stake confirmation for unknown match ignored", zap.String("matchId", matchID))
			return
		}

		side := m.SideOf(connID)
		if side == models.SideNone {
			confirmErr = ErrNotInMatch
			return
		}
		if m.IsConfirmed(side) {
			return
		}

		m.Confirmed[side-1] = true
		m.Proofs[side-1] = proof

		n.logger.Info("Stake confirmed",
			zap.String("matchId", matchID),
			zap.String("address", m.Player(side).Address),
			zap.String("proof", proof))

		if !m.BothConfirmed() {
			n.notifier.SendToConn(m.Player(side.Opponent()).ConnID, models.EventOpponentStaked, models.OpponentStakedMessage{
				MatchID: matchID,
			})
			return
		}

		n.ready(m)
	})
	if err != nil {
		return err
	}
	return confirmErr
}

// ready 양측 확인 완료: 세션 생성, 정산 서비스 알림, game_ready 전송 후 PendingMatch 폐기
func (n *Negotiator) ready(m *models.PendingMatch) {
	m.Status = models.PendingStatusReady
	n.retire(m)

	playerA, playerB := m.Player(models.SideA), m.Player(models.SideB)

	if err := n.sessions.CreateSession(m.MatchID, playerA.Address, playerB.Address, m.Stake); err != nil {
		n.logger.Error("Failed to create session",
			zap.String("matchId", m.MatchID),
			zap.Error(err))
		for _, p := range []models.QueueEntry{playerA, playerB} {
			n.notifier.SendToConn(p.ConnID, models.EventError, models.ErrorMessage{
				Message: fmt.Sprintf("failed to start match %s", m.MatchID),
			})
		}
		return
	}

	if n.settlement != nil {
		n.settlement.ProvisionAsync(m.MatchID, playerA.Address, playerB.Address, m.Stake)
	}

	for _, p := range []models.QueueEntry{playerA, playerB} {
		n.notifier.SendToConn(p.ConnID, models.EventGameReady, models.GameReadyMessage{
			MatchID:         m.MatchID,
			SessionEndpoint: n.cfg.SessionEndpoint,
		})
	}

	n.logger.Info("Game ready", zap.String("matchId", m.MatchID))

	distributed.PublishAsync(n.publisher, n.logger, distributed.MatchEvent{
		Type:    distributed.EventMatchReady,
		MatchID: m.MatchID,
		Stake:   m.Stake,
		Players: []string{playerA.Address, playerB.Address},
	})
}

func (n *Negotiator) retire(m *models.PendingMatch) {
	delete(n.pending, m.MatchID)
	for _, p := range m.Players {
		if n.byConn[p.ConnID] == m.MatchID {
			delete(n.byConn, p.ConnID)
		}
	}
	metrics.PendingMatches.Set(float64(len(n.pending)))
}

// ExpireStale awaiting_stakes 상태로 timeout을 넘긴 매치 만료.
// 스테이크를 확인했고 아직 연결된 쪽은 티어 맨 앞으로 다시 넣는다.
func (n *Negotiator) ExpireStale(now time.Time) (int, error) {
	expired := 0
	err := n.do(func() {
		var stale []*models.PendingMatch
		for _, m := range n.pending {
			if m.Status == models.PendingStatusAwaitingStakes && now.Sub(m.CreatedAt) >= n.cfg.PendingTimeout {
				stale = append(stale, m)
			}
		}
		sort.Slice(stale, func(i, j int) bool {
			return stale[i].CreatedAt.Before(stale[j].CreatedAt)
		})
		for _, m := range stale {
			n.expire(m)
		}
		expired = len(stale)
	})
	return expired, err
}

func (n *Negotiator) expire(m *models.PendingMatch) {
	n.retire(m)
	metrics.MatchesExpired.Inc()

	n.logger.Info("Pending match expired", zap.String("matchId", m.MatchID))

	for i, p := range m.Players {
		requeue := m.Confirmed[i] && !m.Left[i]
		if requeue {
			n.queues.PushFront(m.Stake, p)
		}
		if m.Left[i] {
			continue
		}
		n.notifier.SendToConn(p.ConnID, models.EventMatchExpired, models.MatchExpiredMessage{
			MatchID:  m.MatchID,
			Requeued: requeue,
		})
	}

	distributed.PublishAsync(n.publisher, n.logger, distributed.MatchEvent{
		Type:    distributed.EventMatchExpired,
		MatchID: m.MatchID,
		Stake:   m.Stake,
	})

	n.pair(m.Stake)
}

// Stats 큐/대기 매치 현황
func (n *Negotiator) Stats() (Stats, error) {
	var stats Stats
	err := n.do(func() {
		stats = Stats{
			Queues:         n.queues.Sizes(),
			PendingMatches: len(n.pending),
		}
	})
	return stats, err
}

// PendingMatch 대기 매치 사본 조회
func (n *Negotiator) PendingMatch(matchID string) (models.PendingMatch, bool, error) {
	var (
		out   models.PendingMatch
		found bool
	)
	err := n.do(func() {
		if m := n.pending[matchID]; m != nil {
			out, found = *m, true
		}
	})
	return out, found, err
}

// QueuedEntries 티어 대기열 사본 조회
func (n *Negotiator) QueuedEntries(stake string) ([]models.QueueEntry, error) {
	var out []models.QueueEntry
	err := n.do(func() {
		out = n.queues.Entries(stake)
	})
	return out, err
}

// generateMatchID 시간 기반 + 랜덤 접미사
func generateMatchID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("match_%d_%s", time.Now().UnixMilli(), suffix)
}
