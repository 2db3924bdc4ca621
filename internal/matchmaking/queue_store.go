package matchmaking

import (
	"github.com/rl-arena/stake-pong-backend/internal/models"
	"github.com/rl-arena/stake-pong-backend/pkg/metrics"
)

// QueueStore 스테이크 티어별 FIFO 대기열.
// 동기화는 하지 않으며 Negotiator 워커 고루틴만 접근한다.
type QueueStore struct {
	queues map[string][]models.QueueEntry
	tiers  map[string]string // connID -> stake
}

// NewQueueStore QueueStore 생성
func NewQueueStore() *QueueStore {
	return &QueueStore{
		queues: make(map[string][]models.QueueEntry),
		tiers:  make(map[string]string),
	}
}

// Enqueue 티어 끝에 추가하고 1부터 시작하는 대기 순번 반환.
// 이미 다른 큐에 있던 연결은 먼저 제거된다.
func (s *QueueStore) Enqueue(entry models.QueueEntry) int {
	s.Remove(entry.ConnID)

	s.queues[entry.Stake] = append(s.queues[entry.Stake], entry)
	s.tiers[entry.ConnID] = entry.Stake
	s.observe(entry.Stake)

	return len(s.queues[entry.Stake])
}

// DequeueFront 도착 순서대로 최대 두 명 꺼내기
func (s *QueueStore) DequeueFront(stake string) []models.QueueEntry {
	queue := s.queues[stake]
	n := 2
	if len(queue) < n {
		n = len(queue)
	}
	if n == 0 {
		return nil
	}

	out := make([]models.QueueEntry, n)
	copy(out, queue[:n])
	s.queues[stake] = queue[n:]
	for _, e := range out {
		delete(s.tiers, e.ConnID)
	}
	s.compact(stake)
	s.observe(stake)

	return out
}

// PushFront 항목들을 주어진 순서 그대로 큐 앞에 되돌림
func (s *QueueStore) PushFront(stake string, entries ...models.QueueEntry) {
	if len(entries) == 0 {
		return
	}

	queue := make([]models.QueueEntry, 0, len(entries)+len(s.queues[stake]))
	for _, e := range entries {
		s.Remove(e.ConnID)
		queue = append(queue, e)
	}
	for _, e := range entries {
		s.tiers[e.ConnID] = stake
	}
	queue = append(queue, s.queues[stake]...)
	s.queues[stake] = queue
	s.observe(stake)
}

// Remove 위치와 무관하게 연결의 항목 삭제 (없으면 no-op)
func (s *QueueStore) Remove(connID string) (models.QueueEntry, bool) {
	stake, ok := s.tiers[connID]
	if !ok {
		return models.QueueEntry{}, false
	}

	entry, removed := s.removeFrom(stake, connID)
	delete(s.tiers, connID)
	s.compact(stake)
	s.observe(stake)

	return entry, removed
}

// Contains 연결이 어느 큐에든 있는지
func (s *QueueStore) Contains(connID string) bool {
	_, ok := s.tiers[connID]
	return ok
}

// Len 티어 대기 인원
func (s *QueueStore) Len(stake string) int {
	return len(s.queues[stake])
}

// Entries 티어 대기열 사본
func (s *QueueStore) Entries(stake string) []models.QueueEntry {
	out := make([]models.QueueEntry, len(s.queues[stake]))
	copy(out, s.queues[stake])
	return out
}

// Sizes 티어별 대기 인원
func (s *QueueStore) Sizes() map[string]int {
	sizes := make(map[string]int, len(s.queues))
	for stake, queue := range s.queues {
		sizes[stake] = len(queue)
	}
	return sizes
}

func (s *QueueStore) removeFrom(stake, connID string) (models.QueueEntry, bool) {
	queue := s.queues[stake]
	for i, e := range queue {
		if e.ConnID == connID {
			s.queues[stake] = append(queue[:i:i], queue[i+1:]...)
			return e, true
		}
	}
	return models.QueueEntry{}, false
}

// 빈 티어는 맵에서 제거
func (s *QueueStore) compact(stake string) {
	if len(s.queues[stake]) == 0 {
		delete(s.queues, stake)
	}
}

// 빈 티어는 게이지 시리즈도 제거
func (s *QueueStore) observe(stake string) {
	queue, ok := s.queues[stake]
	if !ok {
		metrics.QueueDepth.DeleteLabelValues(stake)
		return
	}
	metrics.QueueDepth.WithLabelValues(stake).Set(float64(len(queue)))
}
