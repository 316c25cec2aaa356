package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"PaperTune/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a list-backed job queue with delayed retries. Pending
// messages live in a Redis list, messages awaiting retry in a sorted
// set scored by their due time, and exhausted messages in a dead
// letter list.
type RedisQueue struct {
	log    *logger.Logger
	cfg    QueueConfig
	rdb    *redis.Client
	jobs   map[string]Job
	prefix string

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    sync.WaitGroup
}

// RedisQueueOption adjusts a RedisQueue before Start.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix overrides the Redis key namespace.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(q *RedisQueue) { q.prefix = prefix }
}

// NewRedisQueue builds a queue that both publishes and consumes.
// Register jobs before calling Start.
func NewRedisQueue(log *logger.Logger, cfg *QueueConfig, rdb *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	c := QueueConfig{Workers: 1, RetryLimit: 3, RetryDelay: 10 * time.Second}
	if cfg != nil {
		if cfg.Workers > 0 {
			c.Workers = cfg.Workers
		}
		if cfg.RetryLimit > 0 {
			c.RetryLimit = cfg.RetryLimit
		}
		if cfg.RetryDelay > 0 {
			c.RetryDelay = cfg.RetryDelay
		}
	}

	q := &RedisQueue{
		log:    log,
		cfg:    c,
		rdb:    rdb,
		jobs:   make(map[string]Job),
		prefix: "papertune:queue",
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// RegisterJob binds a job to its message type. Later registrations for
// the same type are ignored.
func (q *RedisQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, dup := q.jobs[job.Type()]; dup {
		q.log.Warn("duplicate job registration",
			logger.String("job", job.Name()),
			logger.String("type", job.Type()))
		return
	}
	q.jobs[job.Type()] = job
}

// Start verifies the Redis connection and launches the worker pool
// plus the retry mover.
func (q *RedisQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return errors.New("queue already started")
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := q.rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.running = true

	for i := 0; i < q.cfg.Workers; i++ {
		q.done.Add(1)
		go q.consume(ctx, i)
	}
	q.done.Add(1)
	go q.moveDueRetries(ctx)

	q.log.Info("redis queue started",
		logger.Int("workers", q.cfg.Workers),
		logger.Int("jobs", len(q.jobs)))
	return nil
}

// Stop cancels the workers and waits for them up to ctx's deadline.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		q.done.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		q.log.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue drain: %w", ctx.Err())
	}
}

// PublishMessage wraps the payload in an envelope and pushes it onto
// the pending list.
func (q *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	running := q.running
	_, known := q.jobs[msgType]
	q.mu.Unlock()
	if !running {
		return errors.New("queue not started")
	}
	if !known {
		return fmt.Errorf("no job registered for %q", msgType)
	}

	raw, err := json.Marshal(Message{
		ID:        strconv.FormatInt(time.Now().UnixNano(), 10),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.pendingKey(), raw).Err(); err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	return nil
}

func (q *RedisQueue) consume(ctx context.Context, id int) {
	defer q.done.Done()
	q.log.Debug("queue worker up", logger.Int("worker", id))

	for ctx.Err() == nil {
		res, err := q.rdb.BRPop(ctx, time.Second, q.pendingKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			q.log.Error("queue pop", logger.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if len(res) == 2 {
			q.dispatch(ctx, []byte(res[1]))
		}
	}
}

func (q *RedisQueue) dispatch(ctx context.Context, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		q.log.Error("queue decode", logger.Error(err))
		return
	}

	q.mu.Lock()
	job := q.jobs[msg.Type]
	q.mu.Unlock()
	if job == nil {
		q.log.Error("unroutable message",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID))
		return
	}

	err := job.Handle(ctx, normalizePayload(msg.Payload))
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	q.log.Error("job failed",
		logger.String("job", job.Name()),
		logger.String("id", msg.ID),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	msg.Attempts++
	if msg.Attempts > q.cfg.RetryLimit {
		q.push(q.deadKey(), msg)
		return
	}
	q.scheduleRetry(msg)
}

// normalizePayload converts generically-decoded JSON objects back to
// raw JSON so ParsePayload can target a concrete type.
func normalizePayload(p interface{}) interface{} {
	if m, ok := p.(map[string]interface{}); ok {
		if raw, err := json.Marshal(m); err == nil {
			return json.RawMessage(raw)
		}
	}
	return p
}

func (q *RedisQueue) scheduleRetry(msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		q.log.Error("encode retry", logger.Error(err))
		return
	}
	due := time.Now().Add(q.cfg.RetryDelay)
	err = q.rdb.ZAdd(context.Background(), q.retryKey(), redis.Z{
		Score:  float64(due.Unix()),
		Member: raw,
	}).Err()
	if err != nil {
		q.log.Error("schedule retry", logger.Error(err))
	}
}

func (q *RedisQueue) push(key string, msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		q.log.Error("encode message", logger.Error(err))
		return
	}
	if err := q.rdb.LPush(context.Background(), key, raw).Err(); err != nil {
		q.log.Error("push message", logger.String("key", key), logger.Error(err))
	}
}

// moveDueRetries periodically shifts due entries from the retry set
// back onto the pending list.
func (q *RedisQueue) moveDueRetries(ctx context.Context) {
	defer q.done.Done()

	tick := time.NewTicker(5 * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		due, err := q.rdb.ZRangeByScore(ctx, q.retryKey(), &redis.ZRangeBy{
			Min: "0",
			Max: strconv.FormatInt(time.Now().Unix(), 10),
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				q.log.Error("scan retries", logger.Error(err))
			}
			continue
		}

		for _, member := range due {
			pipe := q.rdb.TxPipeline()
			pipe.ZRem(ctx, q.retryKey(), member)
			pipe.LPush(ctx, q.pendingKey(), member)
			if _, err := pipe.Exec(ctx); err != nil && ctx.Err() == nil {
				q.log.Error("requeue retry", logger.Error(err))
			}
		}
	}
}

func (q *RedisQueue) pendingKey() string { return q.prefix + ":pending" }
func (q *RedisQueue) retryKey() string   { return q.prefix + ":retry" }
func (q *RedisQueue) deadKey() string    { return q.prefix + ":dead" }
