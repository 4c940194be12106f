// Package scheduler запускает периодические задачи сервиса по cron-расписанию.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = time.Minute

// ReservationSweeper отменяет просроченные резервы.
type ReservationSweeper interface {
	CancelStaleReservations(ctx context.Context) (int, error)
}

// Scheduler управляет расписанием фоновых задач.
type Scheduler struct {
	cron    *cron.Cron
	sweeper ReservationSweeper
	logger  *zap.Logger
}

// NewScheduler создаёт планировщик и регистрирует задачу очистки резервов.
// schedule задаётся в формате cron с секундами, например "0 */30 * * * *".
func NewScheduler(schedule string, sweeper ReservationSweeper, logger *zap.Logger) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	s := &Scheduler{
		cron:    c,
		sweeper: sweeper,
		logger:  logger,
	}

	if _, err := c.AddFunc(schedule, s.SweepReservations); err != nil {
		return nil, fmt.Errorf("register reservation sweep %q: %w", schedule, err)
	}

	return s, nil
}

// SweepReservations отменяет резервы, которые так и не были выданы.
func (s *Scheduler) SweepReservations() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.sweeper.CancelStaleReservations(ctx)
	if err != nil {
		s.logger.Error("reservation sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("stale reservations cancelled", zap.Int("count", n))
	}
}

// Run запускает планировщик и блокируется до отмены ctx, после чего дожидается
// завершения выполняющихся задач.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("starting cron scheduler", zap.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info("cron scheduler stopped")
}
