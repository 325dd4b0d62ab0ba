package schedule

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
)

// Queue 全局提醒队列，按触发时间排序，成员为 interview id
type Queue interface {
	Add(ctx context.Context, interviewID string, at time.Time) error
	// Due 返回触发时间不晚于 now 的条目，最多 limit 个
	Due(ctx context.Context, now time.Time, limit int) ([]string, error)
	// Claim 原子地取走条目，只有一个调用方会得到 true
	Claim(ctx context.Context, interviewID string) (bool, error)
	// Reschedule 记一次失败并在 at 重新入队
	Reschedule(ctx context.Context, interviewID string, at time.Time) error
	// Bury 移入死信集合
	Bury(ctx context.Context, interviewID string, at time.Time) error
	Attempts(ctx context.Context, interviewID string) (int, error)
	// Done 清掉失败计数
	Done(ctx context.Context, interviewID string) error
	// Remove 撤掉条目与失败计数，条目不存在时不报错
	Remove(ctx context.Context, interviewID string) error
}

type RedisQueue struct {
	client      redis.UniversalClient
	key         string
	attemptsKey string
	deadKey     string
}

func NewRedisQueue(client redis.UniversalClient, prefix string) *RedisQueue {
	key := prefix + ":schedule:reminders"
	return &RedisQueue{client: client, key: key, attemptsKey: key + ":attempts", deadKey: key + ":dead"}
}

func score(t time.Time) float64 { return float64(t.UnixMilli()) }

func (q *RedisQueue) Add(ctx context.Context, interviewID string, at time.Time) error {
	return q.client.ZAdd(ctx, q.key, redis.Z{Score: score(at), Member: interviewID}).Err()
}

func (q *RedisQueue) Due(ctx context.Context, now time.Time, limit int) ([]string, error) {
	by := &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatInt(now.UnixMilli(), 10)}
	if limit > 0 {
		by.Count = int64(limit)
	}
	return q.client.ZRangeByScore(ctx, q.key, by).Result()
}

func (q *RedisQueue) Claim(ctx context.Context, interviewID string) (bool, error) {
	n, err := q.client.ZRem(ctx, q.key, interviewID).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (q *RedisQueue) Reschedule(ctx context.Context, interviewID string, at time.Time) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, q.attemptsKey, interviewID, 1)
		pipe.ZAdd(ctx, q.key, redis.Z{Score: score(at), Member: interviewID})
		return nil
	})
	return err
}

func (q *RedisQueue) Bury(ctx context.Context, interviewID string, at time.Time) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, q.deadKey, redis.Z{Score: score(at), Member: interviewID})
		pipe.HDel(ctx, q.attemptsKey, interviewID)
		return nil
	})
	return err
}

func (q *RedisQueue) Attempts(ctx context.Context, interviewID string) (int, error) {
	v, err := q.client.HGet(ctx, q.attemptsKey, interviewID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cast.ToIntE(v)
}

func (q *RedisQueue) Done(ctx context.Context, interviewID string) error {
	return q.client.HDel(ctx, q.attemptsKey, interviewID).Err()
}

func (q *RedisQueue) Remove(ctx context.Context, interviewID string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.key, interviewID)
		pipe.HDel(ctx, q.attemptsKey, interviewID)
		return nil
	})
	return err
}

// MemoryQueue 单进程部署与测试用
type MemoryQueue struct {
	mu       sync.Mutex
	entries  map[string]time.Time
	attempts map[string]int
	dead     map[string]time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		entries:  make(map[string]time.Time),
		attempts: make(map[string]int),
		dead:     make(map[string]time.Time),
	}
}

func (q *MemoryQueue) Add(_ context.Context, interviewID string, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[interviewID] = at
	return nil
}

func (q *MemoryQueue) Due(_ context.Context, now time.Time, limit int) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0)
	for id, at := range q.entries {
		if !at.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := q.entries[ids[i]], q.entries[ids[j]]
		if a.Equal(b) {
			return ids[i] < ids[j]
		}
		return a.Before(b)
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (q *MemoryQueue) Claim(_ context.Context, interviewID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[interviewID]; !ok {
		return false, nil
	}
	delete(q.entries, interviewID)
	return true, nil
}

func (q *MemoryQueue) Reschedule(_ context.Context, interviewID string, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.attempts[interviewID]++
	q.entries[interviewID] = at
	return nil
}

func (q *MemoryQueue) Bury(_ context.Context, interviewID string, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead[interviewID] = at
	delete(q.attempts, interviewID)
	return nil
}

func (q *MemoryQueue) Attempts(_ context.Context, interviewID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.attempts[interviewID], nil
}

func (q *MemoryQueue) Done(_ context.Context, interviewID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.attempts, interviewID)
	return nil
}

func (q *MemoryQueue) Remove(_ context.Context, interviewID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, interviewID)
	delete(q.attempts, interviewID)
	return nil
}

// Scheduled 返回条目的触发时间
func (q *MemoryQueue) Scheduled(interviewID string) (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	at, ok := q.entries[interviewID]
	return at, ok
}

func (q *MemoryQueue) Dead(interviewID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.dead[interviewID]
	return ok
}
