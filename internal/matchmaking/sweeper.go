package matchmaking

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// ExpirySweeper 주기적으로 오래된 PendingMatch를 만료시킴
type ExpirySweeper struct {
	scheduler  gocron.Scheduler
	negotiator *Negotiator
	interval   time.Duration
	logger     *zap.Logger
}

// NewExpirySweeper 스케줄러 생성 및 작업 등록
func NewExpirySweeper(negotiator *Negotiator, interval time.Duration, logger *zap.Logger) (*ExpirySweeper, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &ExpirySweeper{
		scheduler:  scheduler,
		negotiator: negotiator,
		interval:   interval,
		logger:     logger,
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.sweep),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("failed to register expiry job: %w", err)
	}

	return s, nil
}

// Start 스케줄러 시작
func (s *ExpirySweeper) Start() {
	s.logger.Info("Starting pending match sweeper", zap.Duration("interval", s.interval))
	s.scheduler.Start()
}

// Stop 스케줄러 중지
func (s *ExpirySweeper) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *ExpirySweeper) sweep() {
	expired, err := s.negotiator.ExpireStale(time.Now())
	if err != nil {
		s.logger.Debug("Pending match sweep skipped", zap.Error(err))
		return
	}
	if expired > 0 {
		s.logger.Info("Expired stale pending matches", zap.Int("count", expired))
	}
}
