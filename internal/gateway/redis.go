package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/flyingrobots/wfm-core/internal/breaker"
	"github.com/flyingrobots/wfm-core/internal/config"
	"github.com/flyingrobots/wfm-core/internal/wfmerrors"
	"github.com/redis/go-redis/v9"
)

// defaultBreaker trips after a third of calls fail within a 30s window
// (minimum 5 samples), and probes again after a 10s cooldown. Both
// Redis-backed helpers below share this shape so a flaky Redis node
// fails fast instead of piling up blocked callers.
func defaultBreaker() *breaker.CircuitBreaker {
	return breaker.New(30*time.Second, 10*time.Second, 0.33, 5)
}

// NewRedisClient builds a pooled go-redis client sized per spec.md §5
// ("Gateway connections are pooled (default pool 20 + 30 overflow)"),
// the same dial/read/write timeout shape the original queue client used.
func NewRedisClient(cfg config.Redis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize + cfg.PoolOverflow,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
	})
}

// BlockChangeStream backs recent_block_changes with a Redis stream so
// change events survive process restarts, the way the teacher's worker
// pipeline uses Redis lists as durable queues. Entries are polled by the
// Violation Monitor's real-time task. Nothing in this module calls
// Append: the Planner's manual adjustment operations do not emit change
// events.
type BlockChangeStream struct {
	rdb *redis.Client
	key string
	cb  *breaker.CircuitBreaker
}

// NewBlockChangeStream wraps a pooled client around one stream key.
func NewBlockChangeStream(rdb *redis.Client, key string) *BlockChangeStream {
	if key == "" {
		key = "wfm:block_changes"
	}
	return &BlockChangeStream{rdb: rdb, key: key, cb: defaultBreaker()}
}

// Append records a change event, mirroring the Gateway's
// RecordMonitoringEvent write-path guarantee (transactional per call).
func (s *BlockChangeStream) Append(ctx context.Context, c BlockChange) error {
	if !s.cb.Allow() {
		return wfmerrors.Upstream("block change append", fmt.Errorf("circuit open"))
	}
	err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key,
		Values: map[string]interface{}{
			"employee_id": c.EmployeeID,
			"shift_date":  c.ShiftDate.Format(time.RFC3339),
			"changed_at":  c.ChangedAt.Format(time.RFC3339Nano),
			"reason":      c.Reason,
		},
	}).Err()
	s.cb.Record(err == nil)
	if err != nil {
		return wfmerrors.Upstream("block change append", err)
	}
	return nil
}

// Since returns all entries appended after the given instant, ordered
// oldest-first, matching recent_block_changes(since) semantics.
func (s *BlockChangeStream) Since(ctx context.Context, since time.Time) ([]BlockChange, error) {
	if !s.cb.Allow() {
		return nil, wfmerrors.Upstream("block change range", fmt.Errorf("circuit open"))
	}
	id := fmt.Sprintf("%d", since.UnixMilli())
	entries, err := s.rdb.XRange(ctx, s.key, "("+id, "+").Result()
	s.cb.Record(err == nil)
	if err != nil {
		return nil, wfmerrors.Upstream("block change range", err)
	}
	out := make([]BlockChange, 0, len(entries))
	for _, e := range entries {
		c := BlockChange{
			EmployeeID: fmt.Sprint(e.Values["employee_id"]),
			Reason:     fmt.Sprint(e.Values["reason"]),
		}
		if sd, ok := e.Values["shift_date"].(string); ok {
			if t, err := time.Parse(time.RFC3339, sd); err == nil {
				c.ShiftDate = t
			}
		}
		if ca, ok := e.Values["changed_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, ca); err == nil {
				c.ChangedAt = t
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// AlertQueueStore persists queued alerts in a bounded Redis list so the
// Violation Monitor's processor (§4.E) can drain them even across
// restarts, with back-pressure signalled by list length against the
// configured capacity.
type AlertQueueStore struct {
	rdb      *redis.Client
	key      string
	capacity int64
	cb       *breaker.CircuitBreaker
}

// NewAlertQueueStore wraps a pooled client around one bounded list.
func NewAlertQueueStore(rdb *redis.Client, key string, capacity int64) *AlertQueueStore {
	if key == "" {
		key = "wfm:alerts:queue"
	}
	return &AlertQueueStore{rdb: rdb, key: key, capacity: capacity, cb: defaultBreaker()}
}

// Push enqueues a serialized alert, returning a Capacity error if the
// bounded queue is full (spec.md §7 Capacity kind; §5 "producers block
// on full or drop with a back-pressure counter"), or an Upstream error
// if the breaker has tripped on Redis failures.
func (s *AlertQueueStore) Push(ctx context.Context, payload string) error {
	if !s.cb.Allow() {
		return wfmerrors.Upstream("alert queue push", fmt.Errorf("circuit open"))
	}
	n, err := s.rdb.LLen(ctx, s.key).Result()
	if err != nil {
		s.cb.Record(false)
		return wfmerrors.Upstream("alert queue length", err)
	}
	if n >= s.capacity {
		s.cb.Record(true)
		return wfmerrors.Capacity("alert queue at capacity " + strconv.FormatInt(s.capacity, 10))
	}
	err = s.rdb.LPush(ctx, s.key, payload).Err()
	s.cb.Record(err == nil)
	if err != nil {
		return wfmerrors.Upstream("alert queue push", err)
	}
	return nil
}

// Drain pops up to n payloads, oldest first, matching the processor's
// "drains in batches of <=50" behavior (§4.E).
func (s *AlertQueueStore) Drain(ctx context.Context, n int) ([]string, error) {
	if !s.cb.Allow() {
		return nil, wfmerrors.Upstream("alert queue drain", fmt.Errorf("circuit open"))
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		v, err := s.rdb.RPop(ctx, s.key).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			s.cb.Record(false)
			return out, wfmerrors.Upstream("alert queue drain", err)
		}
		out = append(out, v)
	}
	s.cb.Record(true)
	return out, nil
}

// Depth returns the current queue length for the AlertQueueDepth gauge.
func (s *AlertQueueStore) Depth(ctx context.Context) (int64, error) {
	n, err := s.rdb.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, wfmerrors.Upstream("alert queue depth", err)
	}
	return n, nil
}
