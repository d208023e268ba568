package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const deadlinesKey = "gatekeeper:exam:deadlines"

// DeadlineQueue очередь таймаутов сессий в sorted set.
// Score - unix-время в миллисекундах. Несколько экземпляров бота могут разбирать
// одну очередь: сессию получает тот, чей ZREM удалил элемент.
type DeadlineQueue struct {
	client *redis.Client
	key    string
}

func NewDeadlineQueue(client *redis.Client) *DeadlineQueue {
	return &DeadlineQueue{client: client, key: deadlinesKey}
}

func (q *DeadlineQueue) Schedule(ctx context.Context, sessionID int64, at time.Time) error {
	err := q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: strconv.FormatInt(sessionID, 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule deadline: %w", err)
	}
	return nil
}

func (q *DeadlineQueue) Cancel(ctx context.Context, sessionID int64) error {
	if err := q.client.ZRem(ctx, q.key, strconv.FormatInt(sessionID, 10)).Err(); err != nil {
		return fmt.Errorf("failed to cancel deadline: %w", err)
	}
	return nil
}

// Due забирает из очереди сессии со сроком не позже now
func (q *DeadlineQueue) Due(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due deadlines: %w", err)
	}

	claimed := make([]int64, 0, len(members))
	for _, member := range members {
		removed, err := q.client.ZRem(ctx, q.key, member).Result()
		if err != nil {
			return claimed, fmt.Errorf("failed to claim deadline: %w", err)
		}
		if removed == 0 {
			continue
		}
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		claimed = append(claimed, id)
	}
	return claimed, nil
}
