package session

import (
	"sync"

	"github.com/rl-arena/stake-pong-backend/internal/models"
	"github.com/rl-arena/stake-pong-backend/pkg/metrics"
	"go.uber.org/zap"
)

type binding struct {
	matchID string
	side    models.Side
}

// BindResult Bind 결과
type BindResult struct {
	Side     models.Side
	Snapshot models.Snapshot
	Started  bool
}

// Registry 매치 ID -> 세션, 연결 ID -> (매치, 슬롯) 매핑
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Engine
	bindings map[string]binding
	logger   *zap.Logger
}

// NewRegistry Registry 생성
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Engine),
		bindings: make(map[string]binding),
		logger:   logger,
	}
}

// Register 세션 등록 (중복 ID 거부)
func (r *Registry) Register(e *Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[e.MatchID()]; exists {
		return ErrDuplicateMatch
	}
	r.sessions[e.MatchID()] = e
	metrics.ActiveSessions.Set(float64(len(r.sessions)))

	return nil
}

// Get 매치 ID로 세션 조회
func (r *Registry) Get(matchID string) (*Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[matchID]
	return e, ok
}

// Bind 연결을 주소가 일치하는 플레이어 슬롯에 묶음
func (r *Registry) Bind(connID, matchID, address string) (BindResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[matchID]
	if !ok {
		return BindResult{}, ErrMatchNotFound
	}

	side, prevConn, snap, started, err := e.bind(connID, address)
	if err != nil {
		return BindResult{}, err
	}

	// 다른 매치에 묶여 있던 연결은 그쪽에서 해제
	if old, exists := r.bindings[connID]; exists && old.matchID != matchID {
		if oldEngine, ok := r.sessions[old.matchID]; ok {
			oldEngine.disconnect(old.side, connID)
		}
	}
	if prevConn != "" {
		delete(r.bindings, prevConn)
	}
	r.bindings[connID] = binding{matchID: matchID, side: side}

	return BindResult{Side: side, Snapshot: snap, Started: started}, nil
}

// Resolve 연결이 묶인 세션과 슬롯
func (r *Registry) Resolve(connID string) (*Engine, models.Side, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[connID]
	if !ok {
		return nil, models.SideNone, ErrUnbound
	}
	e, ok := r.sessions[b.matchID]
	if !ok {
		return nil, models.SideNone, ErrUnbound
	}
	return e, b.side, nil
}

// Unbind 연결 해제. 세션은 유지되고 해당 플레이어만 disconnected가 된다.
func (r *Registry) Unbind(connID string) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[connID]
	if !ok {
		return nil, false
	}
	delete(r.bindings, connID)

	e, ok := r.sessions[b.matchID]
	if !ok {
		return nil, false
	}
	e.disconnect(b.side, connID)
	return e, true
}

// Dispose 세션 제거 및 루프 중지. 매치 ID당 한 번만 효과가 있다.
func (r *Registry) Dispose(matchID string) bool {
	r.mu.Lock()
	e, ok := r.sessions[matchID]
	if ok {
		delete(r.sessions, matchID)
		for connID, b := range r.bindings {
			if b.matchID == matchID {
				delete(r.bindings, connID)
			}
		}
	}
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	if !ok {
		return false
	}

	e.Stop()
	r.logger.Info("Session disposed", zap.String("matchId", matchID))
	return true
}

// DisposeAll 종료 시 모든 세션 정리
func (r *Registry) DisposeAll() int {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	disposed := 0
	for _, id := range ids {
		if r.Dispose(id) {
			disposed++
		}
	}
	return disposed
}

// Count 등록된 세션 수
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
