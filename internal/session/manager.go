package session

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rl-arena/stake-pong-backend/internal/models"
	"github.com/rl-arena/stake-pong-backend/pkg/distributed"
	"github.com/rl-arena/stake-pong-backend/pkg/metrics"
	"go.uber.org/zap"
)

// ResultReporter 매치 결과를 정산 서비스에 알림 (fire-and-forget)
type ResultReporter interface {
	ReportAsync(matchID, winner string)
}

// Config Manager 설정
type Config struct {
	Settings     models.Settings
	TickInterval time.Duration
	Retention    time.Duration
}

// Manager 세션 생성, 참가, 입력, 연결 해제를 처리하는 세션 서비스
type Manager struct {
	registry  *Registry
	notifier  Notifier
	reporter  ResultReporter
	publisher distributed.Publisher
	logger    *zap.Logger
	cfg       Config

	newRand func() *rand.Rand
}

// NewManager Manager 생성
func NewManager(
	registry *Registry,
	notifier Notifier,
	reporter ResultReporter,
	publisher distributed.Publisher,
	logger *zap.Logger,
	cfg Config,
) *Manager {
	if publisher == nil {
		publisher = distributed.NopPublisher{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second / 60
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * time.Second
	}
	if cfg.Settings.WinScore <= 0 {
		cfg.Settings = models.DefaultSettings()
	}

	return &Manager{
		registry:  registry,
		notifier:  notifier,
		reporter:  reporter,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// Registry 세션 레지스트리
func (m *Manager) Registry() *Registry {
	return m.registry
}

// CreateSession 대기 상태의 세션 생성 및 등록
func (m *Manager) CreateSession(matchID, playerA, playerB, stake string) error {
	if matchID == "" || playerA == "" || playerB == "" || strings.EqualFold(playerA, playerB) {
		return ErrInvalidPlayers
	}

	state := newSessionState(matchID, stake, playerA, playerB, m.cfg.Settings, time.Now())
	e := newEngine(state, m.newRand(), m.cfg.TickInterval, m.notifier, m.logger)
	e.onFinish = m.finish

	if err := m.registry.Register(e); err != nil {
		return err
	}

	m.logger.Info("Game room created",
		zap.String("matchId", matchID),
		zap.String("playerA", playerA),
		zap.String("playerB", playerB),
		zap.String("stake", stake))

	return nil
}

// Join 매치 참가. 양측이 모두 들어오면 매치를 시작한다.
func (m *Manager) Join(connID, matchID, address string) (BindResult, error) {
	res, err := m.registry.Bind(connID, matchID, address)
	if err != nil {
		return BindResult{}, err
	}

	m.logger.Info("Player joined match",
		zap.String("matchId", matchID),
		zap.String("address", address),
		zap.Int("side", int(res.Side)))

	m.notifier.SendToConn(connID, models.EventMatchJoined, models.MatchJoinedMessage{
		Side:     res.Side,
		Snapshot: res.Snapshot,
	})

	if res.Started {
		e, ok := m.registry.Get(matchID)
		if !ok {
			return res, nil
		}

		m.logger.Info("Starting match", zap.String("matchId", matchID))

		e.broadcast(models.EventMatchStarted, models.MatchStartedMessage{
			Message:  fmt.Sprintf("Match started! First to %d points wins!", m.cfg.Settings.WinScore),
			Snapshot: res.Snapshot,
		})
		e.start()

		a, b := e.Players()
		distributed.PublishAsync(m.publisher, m.logger, distributed.MatchEvent{
			Type:    distributed.EventMatchStarted,
			MatchID: matchID,
			Stake:   e.state.Stake,
			Players: []string{a, b},
		})
	}

	return res, nil
}

// SetInput 연결에 해당하는 플레이어의 입력 갱신
func (m *Manager) SetInput(connID string, intent models.Intent) error {
	if !intent.Valid() {
		return ErrInvalidIntent
	}

	e, side, err := m.registry.Resolve(connID)
	if err != nil {
		return err
	}

	if !e.SetInput(side, intent) {
		m.logger.Debug("Input ignored outside playing state",
			zap.String("matchId", e.MatchID()),
			zap.String("intent", string(intent)))
	}
	return nil
}

// Disconnect 연결 종료 처리 (몰수 없음)
func (m *Manager) Disconnect(connID string) {
	if e, ok := m.registry.Unbind(connID); ok && e.Status() == models.SessionStatusPlaying {
		m.logger.Info("Player disconnected during match", zap.String("matchId", e.MatchID()))
	}
}

// Snapshot 매치 스냅샷 조회 (보존 기간 내 조회 포함)
func (m *Manager) Snapshot(matchID string) (models.Snapshot, error) {
	e, ok := m.registry.Get(matchID)
	if !ok {
		return models.Snapshot{}, ErrMatchNotFound
	}
	return e.Snapshot(), nil
}

// Count 활성 세션 수
func (m *Manager) Count() int {
	return m.registry.Count()
}

// Shutdown 모든 세션 정리
func (m *Manager) Shutdown() {
	if n := m.registry.DisposeAll(); n > 0 {
		m.logger.Info("Disposed sessions on shutdown", zap.Int("count", n))
	}
}

// finish 정산 보고, 이벤트 발행, 보존 기간 후 폐기 예약
func (m *Manager) finish(e *Engine, winner string) {
	metrics.SessionsFinished.Inc()

	if m.reporter != nil {
		m.reporter.ReportAsync(e.MatchID(), winner)
	}

	distributed.PublishAsync(m.publisher, m.logger, distributed.MatchEvent{
		Type:    distributed.EventMatchFinished,
		MatchID: e.MatchID(),
		Stake:   e.state.Stake,
		Winner:  winner,
	})

	matchID := e.MatchID()
	time.AfterFunc(m.cfg.Retention, func() {
		m.registry.Dispose(matchID)
	})
}
