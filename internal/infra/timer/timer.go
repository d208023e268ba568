package timer

import (
	"context"
	"log/slog"
	"time"

	"github.com/IT-Nick/gatekeeper/internal/infra/metrics"
)

// Queue очередь таймаутов сессий
type Queue interface {
	Schedule(ctx context.Context, sessionID int64, at time.Time) error
	Due(ctx context.Context, now time.Time, limit int) ([]int64, error)
}

// Expirer закрывает сессию по таймауту
type Expirer interface {
	ExpireSession(ctx context.Context, sessionID int64) error
}

const batchSize = 100

// Sweeper периодически забирает истекшие сессии из очереди и закрывает их
type Sweeper struct {
	queue    Queue
	expirer  Expirer
	interval time.Duration
	now      func() time.Time
}

// NewSweeper создает новый экземпляр Sweeper
func NewSweeper(queue Queue, expirer Expirer, interval time.Duration) *Sweeper {
	return &Sweeper{
		queue:    queue,
		expirer:  expirer,
		interval: interval,
		now:      time.Now,
	}
}

// Restore заново планирует таймауты существующих сессий
func (s *Sweeper) Restore(ctx context.Context, deadlines map[int64]time.Time) error {
	for id, at := range deadlines {
		if err := s.queue.Schedule(ctx, id, at); err != nil {
			return err
		}
	}
	slog.Info("restored exam deadlines", "count", len(deadlines))
	return nil
}

// Run работает до отмены контекста
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Контекст отменен, завершаем работу
			slog.Info("deadline sweeper stopped")
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep обрабатывает одну порцию истекших сессий
func (s *Sweeper) Sweep(ctx context.Context) int {
	ids, err := s.queue.Due(ctx, s.now(), batchSize)
	if err != nil {
		slog.Error("failed to fetch due deadlines", "error", err)
	}
	if len(ids) == 0 {
		return 0
	}
	metrics.DeadlineClaimed(len(ids))

	for _, id := range ids {
		if err := s.expirer.ExpireSession(ctx, id); err != nil {
			slog.Error("failed to expire session", "session_id", id, "error", err)
			// Вернем в очередь, чтобы попробовать на следующем тике.
			if err := s.queue.Schedule(ctx, id, s.now().Add(s.interval)); err != nil {
				slog.Error("failed to reschedule deadline", "session_id", id, "error", err)
			}
		}
	}
	return len(ids)
}
