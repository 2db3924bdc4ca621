package session

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rl-arena/stake-pong-backend/internal/models"
	"github.com/rl-arena/stake-pong-backend/pkg/metrics"
	"go.uber.org/zap"
)

// Notifier 연결 단위 메시지 전송
type Notifier interface {
	SendToConn(connID string, msgType string, payload interface{})
}

type outbound struct {
	connID  string
	msgType string
	payload interface{}
}

// Engine 매치 한 건의 권위 있는 상태와 고정 틱 루프
type Engine struct {
	mu    sync.Mutex
	state *models.Session
	rng   *rand.Rand

	tickInterval time.Duration
	notifier     Notifier
	logger       *zap.Logger

	// 종료 직후 루프 고루틴에서 호출 (락 밖)
	onFinish func(e *Engine, winner string)

	stop     chan struct{}
	stopOnce sync.Once
	loopDone chan struct{}
	started  bool
}

func newEngine(state *models.Session, rng *rand.Rand, tickInterval time.Duration, notifier Notifier, logger *zap.Logger) *Engine {
	return &Engine{
		state:        state,
		rng:          rng,
		tickInterval: tickInterval,
		notifier:     notifier,
		logger:       logger.With(zap.String("matchId", state.MatchID)),
		stop:         make(chan struct{}),
		loopDone:     make(chan struct{}),
	}
}

// MatchID 매치 ID
func (e *Engine) MatchID() string {
	return e.state.MatchID
}

// Status 현재 상태
func (e *Engine) Status() models.SessionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Status
}

// Snapshot 현재 상태 스냅샷
func (e *Engine) Snapshot() models.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Snapshot()
}

// Players 양측 주소
func (e *Engine) Players() (string, string) {
	return e.state.Players[0].Address, e.state.Players[1].Address
}

// bind 주소가 일치하는 슬롯에 연결을 묶는다. 대기 상태에서만 허용.
// 양측이 모두 연결되면 playing으로 전환하고 started=true를 반환한다.
func (e *Engine) bind(connID, address string) (side models.Side, prevConn string, snap models.Snapshot, started bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Status != models.SessionStatusWaiting {
		return models.SideNone, "", models.Snapshot{}, false, ErrMatchNotJoinable
	}

	switch address {
	case e.state.Players[0].Address:
		side = models.SideA
	case e.state.Players[1].Address:
		side = models.SideB
	default:
		return models.SideNone, "", models.Snapshot{}, false, ErrNotAMember
	}

	// 한 연결이 두 슬롯을 모두 차지할 수 없다
	if other := e.state.Player(side.Opponent()); other.Connected && other.ConnID == connID {
		return models.SideNone, "", models.Snapshot{}, false, ErrAlreadyBound
	}

	p := e.state.Player(side)
	if p.ConnID != connID {
		prevConn = p.ConnID
	}
	p.ConnID = connID
	p.Connected = true

	if e.state.Players[0].Connected && e.state.Players[1].Connected {
		now := time.Now()
		e.state.Status = models.SessionStatusPlaying
		e.state.StartedAt = &now
		started = true
	}

	return side, prevConn, e.state.Snapshot(), started, nil
}

// disconnect 슬롯의 연결 해제. 진행 중인 매치는 멈추지 않는다.
func (e *Engine) disconnect(side models.Side, connID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.state.Player(side)
	if p.ConnID != connID {
		return
	}
	p.ConnID = ""
	p.Connected = false

	e.logger.Info("Player disconnected",
		zap.String("address", p.Address),
		zap.String("status", string(e.state.Status)))
}

// SetInput playing 상태에서만 반영 (last-write-wins)
func (e *Engine) SetInput(side models.Side, intent models.Intent) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Status != models.SessionStatusPlaying {
		return false
	}
	e.state.Player(side).Input = intent
	return true
}

// start 틱 루프 시작 (한 번만)
func (e *Engine) start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	go e.loop()
}

// Stop 틱 루프 중지 (멱등)
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stop)
	})
}

func (e *Engine) loop() {
	defer close(e.loopDone)

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if done := e.tick(); done {
				return
			}
		case <-e.stop:
			return
		}
	}
}

// tick 한 틱 실행. 매치가 끝나면 true.
func (e *Engine) tick() bool {
	started := time.Now()

	e.mu.Lock()
	if e.state.Status != models.SessionStatusPlaying {
		e.mu.Unlock()
		return true
	}

	res := step(e.state, e.rng)

	var out []outbound
	if res.scorer != models.SideNone {
		out = e.toPlayersLocked(out, models.EventScore, models.ScoreEventMessage{
			Scorer: e.state.Player(res.scorer).Address,
			Scores: e.state.Scores(),
		})
	}

	var winnerAddr string
	if res.finished {
		now := time.Now()
		winnerAddr = e.state.Player(winner(e.state)).Address
		e.state.Status = models.SessionStatusFinished
		e.state.FinishedAt = &now
		e.state.Winner = winnerAddr

		out = e.toPlayersLocked(out, models.EventMatchEnded, models.MatchEndedMessage{
			Winner:      winnerAddr,
			FinalScores: e.state.Scores(),
			Snapshot:    e.state.Snapshot(),
		})
	} else {
		out = e.toPlayersLocked(out, models.EventStateUpdate, models.StateUpdateMessage{
			Snapshot: e.state.Snapshot(),
		})
	}
	scores := e.state.Scores()
	e.mu.Unlock()

	metrics.TickDuration.Observe(time.Since(started).Seconds())

	for _, m := range out {
		e.notifier.SendToConn(m.connID, m.msgType, m.payload)
	}

	if !res.finished {
		return false
	}

	e.logger.Info("Match finished",
		zap.String("winner", winnerAddr),
		zap.Int("scoreA", scores.PlayerA),
		zap.Int("scoreB", scores.PlayerB))

	if e.onFinish != nil {
		e.onFinish(e, winnerAddr)
	}
	return true
}

// broadcast 연결된 양측에 전송
func (e *Engine) broadcast(msgType string, payload interface{}) {
	e.mu.Lock()
	out := e.toPlayersLocked(nil, msgType, payload)
	e.mu.Unlock()

	for _, m := range out {
		e.notifier.SendToConn(m.connID, m.msgType, m.payload)
	}
}

func (e *Engine) toPlayersLocked(out []outbound, msgType string, payload interface{}) []outbound {
	for _, p := range e.state.Players {
		if p.Connected && p.ConnID != "" {
			out = append(out, outbound{connID: p.ConnID, msgType: msgType, payload: payload})
		}
	}
	return out
}
