package memory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DeadlineQueue очередь таймаутов в памяти процесса.
// Используется, когда Redis не настроен. После перезапуска очередь
// восстанавливается из таблицы сессий.
type DeadlineQueue struct {
	mu        sync.Mutex
	deadlines map[int64]time.Time
}

func NewDeadlineQueue() *DeadlineQueue {
	return &DeadlineQueue{deadlines: make(map[int64]time.Time)}
}

func (q *DeadlineQueue) Schedule(_ context.Context, sessionID int64, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deadlines[sessionID] = at
	return nil
}

func (q *DeadlineQueue) Cancel(_ context.Context, sessionID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.deadlines, sessionID)
	return nil
}

// Due забирает из очереди сессии со сроком не позже now, самые ранние первыми
func (q *DeadlineQueue) Due(_ context.Context, now time.Time, limit int) ([]int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []int64
	for id, at := range q.deadlines {
		if !at.After(now) {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		ai, aj := q.deadlines[due[i]], q.deadlines[due[j]]
		if ai.Equal(aj) {
			return due[i] < due[j]
		}
		return ai.Before(aj)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for _, id := range due {
		delete(q.deadlines, id)
	}
	return due, nil
}

// Len количество запланированных таймаутов
func (q *DeadlineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.deadlines)
}
